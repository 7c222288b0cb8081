package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/psantana5/haproxy-autoconf/internal/config"
	"github.com/psantana5/haproxy-autoconf/internal/daemon"
	"github.com/psantana5/haproxy-autoconf/pkg/logging"
)

// v holds environment and flag configuration for every command
var v = config.NewViper()

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "haproxy-autoconf",
	Short: "Keep HAProxy routing fragments installed for the life of the process",
	Long: `haproxy-autoconf derives a backend identifier from HAPROXY_DOMAINS, writes a
backend fragment (200-<uid>.cfg) and a frontend SNI routing fragment
(100-<uid>.cfg) into the HAProxy inbox directory, and removes both when it
receives SIGINT, SIGTERM or SIGQUIT.

HAProxy is expected to pick up changes to the inbox directory on its own.

Environment:
  HAPROXY_DOMAINS        comma-separated domains (required)
  HAPROXY_BACKEND        backend host:port (required)
  HAPROXY_CONFIG_DIR     inbox directory (default /usr/local/etc/haproxy.inbox)
  HAPROXY_POLL_INTERVAL  shutdown poll interval (default 100ms)
  HAPROXY_LOG_LEVEL      debug, info, warn or error (default info)
  HAPROXY_LOG_FORMAT     text or json (default text)
  HAPROXY_METRICS_ADDR   serve /metrics and /health on this address (default off)`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runDaemon,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config-dir", config.DefaultConfigDir, "HAProxy inbox directory")
	flags.Duration("poll-interval", config.DefaultPollInterval, "how often to check for a shutdown request")
	flags.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	flags.String("log-format", config.DefaultLogFormat, "log format: text or json")
	flags.String("metrics-addr", "", "listen address for /metrics and /health (disabled when empty)")

	v.BindPFlag(config.KeyConfigDir, flags.Lookup("config-dir"))
	v.BindPFlag(config.KeyPollInterval, flags.Lookup("poll-interval"))
	v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))
	v.BindPFlag(config.KeyMetricsAddr, flags.Lookup("metrics-addr"))
}

// newLogger builds the diagnostic logger before the rest of the config is
// validated, so that validation errors are logged in the requested format.
func newLogger() *logging.Logger {
	level, _ := logging.ParseLevel(v.GetString(config.KeyLogLevel))
	format := logging.FormatText
	if strings.EqualFold(v.GetString(config.KeyLogFormat), string(logging.FormatJSON)) {
		format = logging.FormatJSON
	}
	return logging.NewLogger(level, format)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	logger.SetOutput(cmd.ErrOrStderr())

	cfg, err := config.Load(v)
	if err != nil {
		logger.Error("Invalid configuration", logging.Fields{"error": err})
		cmd.SilenceErrors = true
		return err
	}

	d := daemon.New(cfg, logger)
	if err := d.Run(cmd.Context()); err != nil {
		logger.Error("Failed to install config", logging.Fields{"error": err})
		cmd.SilenceErrors = true
		return err
	}
	return nil
}
