package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/haproxy-autoconf/internal/config"
	"github.com/psantana5/haproxy-autoconf/internal/haproxy"
	"github.com/psantana5/haproxy-autoconf/internal/uid"
)

var renderOutput string

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the fragments the daemon would install, without installing them",
	Long: `Reads the same environment as the daemon and prints the backend and frontend
fragments together with the paths they would be written to. Nothing is
written to disk.`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "text", "Output format: text, json, yaml, table")
}

// Preview describes the artifacts for one domain set
type Preview struct {
	UID       string            `json:"uid" yaml:"uid"`
	Domains   []string          `json:"domains" yaml:"domains"`
	Backend   string            `json:"backend" yaml:"backend"`
	Artifacts []ArtifactPreview `json:"artifacts" yaml:"artifacts"`
}

// ArtifactPreview is one rendered file
type ArtifactPreview struct {
	Kind    string `json:"kind" yaml:"kind"`
	Path    string `json:"path" yaml:"path"`
	Content string `json:"content" yaml:"content"`
}

// NewPreview renders both artifacts in load order
func NewPreview(cfg *config.Config) Preview {
	id := uid.New(cfg.Domains)
	return Preview{
		UID:     id.String(),
		Domains: cfg.Domains,
		Backend: cfg.Backend,
		Artifacts: []ArtifactPreview{
			{
				Kind:    string(haproxy.KindFrontend),
				Path:    filepath.Join(cfg.ConfigDir, haproxy.KindFrontend.FileName(id)),
				Content: haproxy.RenderFrontend(id, cfg.Domains),
			},
			{
				Kind:    string(haproxy.KindBackend),
				Path:    filepath.Join(cfg.ConfigDir, haproxy.KindBackend.FileName(id)),
				Content: haproxy.RenderBackend(id, cfg.Backend),
			},
		},
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	return outputPreview(cmd.OutOrStdout(), NewPreview(cfg), renderOutput)
}

func outputPreview(w io.Writer, p Preview, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(p)

	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(p); err != nil {
			return err
		}
		return encoder.Close()

	case "table":
		table := tablewriter.NewWriter(w)
		table.Header("Kind", "Path", "Lines")
		for _, a := range p.Artifacts {
			lines := strings.Count(strings.TrimRight(a.Content, "\n"), "\n") + 1
			table.Append([]string{a.Kind, a.Path, fmt.Sprintf("%d", lines)})
		}
		return table.Render()

	case "text":
		fmt.Fprintf(w, "# uid: %s\n", p.UID)
		for _, a := range p.Artifacts {
			fmt.Fprintf(w, "# %s: %s\n", a.Kind, a.Path)
			fmt.Fprint(w, a.Content)
		}
		return nil

	default:
		return fmt.Errorf("unknown output format %q (want text, json, yaml or table)", format)
	}
}
