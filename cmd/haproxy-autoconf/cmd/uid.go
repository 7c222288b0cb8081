package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psantana5/haproxy-autoconf/internal/config"
	"github.com/psantana5/haproxy-autoconf/internal/uid"
)

var uidCmd = &cobra.Command{
	Use:   "uid [domain...]",
	Short: "Print the backend identifier for a set of domains",
	Long: `Prints the identifier the daemon would use for the given domains, or for
HAPROXY_DOMAINS when no domains are passed. Order does not matter.

Example:
  haproxy-autoconf uid a.example.com b.example.com
  HAPROXY_DOMAINS="b.example.com, a.example.com" haproxy-autoconf uid`,
	RunE: runUID,
}

func init() {
	rootCmd.AddCommand(uidCmd)
}

func runUID(cmd *cobra.Command, args []string) error {
	domains := args
	if len(domains) == 0 {
		var err error
		if domains, err = config.LoadDomains(v); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), uid.New(config.ParseDomains(strings.Join(domains, ","))))
	return nil
}
