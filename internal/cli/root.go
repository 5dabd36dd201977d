// Package cli provides the command-line interface for osparc-tables.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/itisfoundation/osparc-tables/internal/config"
	"github.com/itisfoundation/osparc-tables/internal/logging"
	"github.com/itisfoundation/osparc-tables/internal/version"
)

var (
	// Global flags
	cfgFile    string
	apiKey     string
	apiSecret  string
	apiBaseURL string
	defsFile   string
	logFile    string
	verbose    bool
	debug      bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "osparc-tables",
		Short: "Browse and export osparc list endpoints as tables",
		Long: `osparc-tables ` + version.Version + ` - Built: ` + version.BuildTime + `
Reads the paginated osparc list endpoints (payments, resource usage,
licensed item checkouts) page by page and shows them as tables.

Configuration is read from ~/.config/osparc/apiconfig, then OSPARC_*
environment variables, then flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
			path := logFile
			if path == "" {
				if cfg, err := config.LoadAPIConfig(cfgFile); err == nil {
					path = cfg.LogFile
				}
			}
			resolved, err := config.ResolveLogFile(path)
			if err != nil {
				return fmt.Errorf("failed to prepare log file: %w", err)
			}
			logger = logging.NewLogger(logging.Options{
				Console:   cmd.ErrOrStderr(),
				File:      resolved,
				Component: "cli",
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				logger.Close()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "apiconfig file path")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "osparc API key (overrides all other sources)")
	rootCmd.PersistentFlags().StringVar(&apiSecret, "api-secret", "", "osparc API secret (overrides all other sources)")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "osparc platform URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&defsFile, "defs", "", "YAML resource definitions merged over the built-in ones")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", `JSON log file ("default" for the standard location)`)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Repeated Ctrl+C keeps cancelling; the channel close ends the loop.
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling requests...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newResourcesCmd())
	rootCmd.AddCommand(newCountCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newLogsCmd())
	rootCmd.AddCommand(newConfigCmd())

	AddShortcuts(rootCmd)
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// loadConfig reads the apiconfig file and applies environment and flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadAPIConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.MergeWithFlags(apiKey, apiSecret, apiBaseURL, defsFile, logFile)
	return cfg, nil
}
