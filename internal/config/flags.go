package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "otelsink",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Exporter flags
	flags.String("endpoint", "", "OTLP collector endpoint (host:port or URL)")
	flags.String("protocol", "grpc", "OTLP transport: 'grpc' or 'http'")
	flags.Bool("insecure", false, "Disable transport security for the exporter")
	flags.StringSlice("header", nil, "Additional export header in key=value form")
	flags.String("service-name", "", "Service name set on the exported resource")
	flags.String("metric-prefix", "", "Prefix prepended to every emitted metric name")

	// Run identity flags
	flags.String("test-suite", "otelsink", "Test suite tag on every metric")
	flags.String("test-name", "synthetic", "Test name tag on every metric")
	flags.String("session-id", "", "Session id tag (generated when empty)")

	// Replay flags
	flags.DurationP("interval", "i", 5*time.Second, "Reporting tick interval")
	flags.IntP("ticks", "t", 12, "Number of running ticks before the final batch")
	flags.Int64("seed", 1, "Seed for the synthetic statistics generator")

	// Output flags
	flags.String("output", string(OutputOTLP), "Emission target: 'otlp', 'jsonl' or 'console'")
	flags.String("jsonl-path", "", "Path of the JSON-Lines output file (output=jsonl)")
	flags.Bool("dashboard", false, "Show live terminal dashboard while replaying")
	flags.Bool("dump-config", false, "Print the effective configuration as YAML and exit")

	flags.String("config", "", "Path to configuration file (JSON or YAML)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("endpoint") {
		val, err := fs.GetString("endpoint")
		if err != nil {
			return err
		}
		cfg.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("protocol") {
		val, err := fs.GetString("protocol")
		if err != nil {
			return err
		}
		cfg.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("insecure") {
		val, err := fs.GetBool("insecure")
		if err != nil {
			return err
		}
		cfg.Insecure = val
	}
	if fs.Changed("service-name") {
		val, err := fs.GetString("service-name")
		if err != nil {
			return err
		}
		cfg.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("metric-prefix") {
		val, err := fs.GetString("metric-prefix")
		if err != nil {
			return err
		}
		cfg.MetricPrefix = val
	}
	if fs.Changed("test-suite") {
		val, err := fs.GetString("test-suite")
		if err != nil {
			return err
		}
		cfg.TestSuite = strings.TrimSpace(val)
	}
	if fs.Changed("test-name") {
		val, err := fs.GetString("test-name")
		if err != nil {
			return err
		}
		cfg.TestName = strings.TrimSpace(val)
	}
	if fs.Changed("session-id") {
		val, err := fs.GetString("session-id")
		if err != nil {
			return err
		}
		cfg.SessionID = strings.TrimSpace(val)
	}
	if fs.Changed("interval") {
		val, err := fs.GetDuration("interval")
		if err != nil {
			return err
		}
		cfg.Interval = val
	}
	if fs.Changed("ticks") {
		val, err := fs.GetInt("ticks")
		if err != nil {
			return err
		}
		cfg.Ticks = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = Output(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("jsonl-path") {
		val, err := fs.GetString("jsonl-path")
		if err != nil {
			return err
		}
		cfg.JSONLPath = strings.TrimSpace(val)
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("dump-config") {
		val, err := fs.GetBool("dump-config")
		if err != nil {
			return err
		}
		cfg.DumpConfig = val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := strings.TrimSpace(parts[0])
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	return nil
}
