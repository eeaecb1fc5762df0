package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/faultproxy/internal/config"
)

// Environment variables consulted for flag defaults.
const (
	envConfigPath = "FAULTPROXY_CONFIG"
	envLogLevel   = "FAULTPROXY_LOG_LEVEL"
	envLogFormat  = "FAULTPROXY_LOG_FORMAT"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// newRootCmd builds the command tree. Running the root command without a
// subcommand is the same as "serve".
func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "faultproxy",
		Short: "Debugging reverse proxy with deterministic failure injection",
		Long: `faultproxy forwards HTTP requests to a single configured backend,
logs traffic for endpoints marked debug, and replaces backend responses
with synthetic failures according to per-endpoint rules. The configuration
file is reloaded automatically when it changes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", os.Getenv(envConfigPath),
		"Path to configuration file (default: ./"+config.DefaultConfigFile+
			", then ./"+config.ExampleConfigFile+")")
	pf.StringVar(&flags.logLevel, "log-level", os.Getenv(envLogLevel),
		"Override logging.level (DEBUG, INFO, WARNING, ERROR)")
	pf.StringVar(&flags.logFormat, "log-format", os.Getenv(envLogFormat),
		"Override logging.format (json, console)")

	root.AddCommand(
		newServeCmd(flags),
		newValidateCmd(flags),
		newVersionCmd(),
	)

	return root
}

func newServeCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
}

func newValidateCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration file, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.ResolveConfigPath(flags.configPath, ".")
			if err != nil {
				return err
			}

			cfg, err := config.LoadAndValidate(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s: ok\n", path)
			_, _ = fmt.Fprintf(out, "  target:    %s (%s)\n", cfg.TargetName, cfg.Target.URL)
			_, _ = fmt.Fprintf(out, "  endpoints: %d\n", len(cfg.Target.Endpoints))
			_, _ = fmt.Fprintf(out, "  listen:    %s\n", cfg.Server.ListenAddress())
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "faultproxy version %s\n", version)
			_, _ = fmt.Fprintf(out, "  Build time: %s\n", buildTime)
			_, _ = fmt.Fprintf(out, "  Git commit: %s\n", gitCommit)
		},
	}
}
