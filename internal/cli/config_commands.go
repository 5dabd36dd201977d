package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/itisfoundation/osparc-tables/internal/config"
	"github.com/itisfoundation/osparc-tables/internal/constants"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage osparc-tables configuration",
		Long: `Configuration management commands for osparc-tables.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test API connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultAPIConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for osparc-tables.

The configuration is saved to ~/.config/osparc/apiconfig with owner-only
permissions. Use --force to overwrite an existing file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "osparc Configuration Setup")
			fmt.Fprintln(out, "==========================")
			fmt.Fprintln(out)

			p := newPrompter(cmd.InOrStdin(), out)
			cfg := config.Default()

			if cfg.APIBaseURL, err = p.line("Platform URL", constants.DefaultPlatformURL); err != nil {
				return err
			}
			if cfg.APIKey, err = p.required("API Key", false); err != nil {
				return err
			}
			if cfg.APISecret, err = p.required("API Secret", true); err != nil {
				return err
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Table Settings (press Enter for defaults)")
			fmt.Fprintln(out, "-----------------------------------------")
			if cfg.PageConcurrency, err = p.integer("Page requests in flight", cfg.PageConcurrency); err != nil {
				return err
			}
			if cfg.CacheRows, err = p.integer("Cached rows per table", cfg.CacheRows); err != nil {
				return err
			}

			fmt.Fprintln(out)
			proxy, err := p.yes("Configure proxy?")
			if err != nil {
				return err
			}
			if proxy {
				fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
				if cfg.ProxyMode, err = p.line("Proxy mode", "system"); err != nil {
					return err
				}
				if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
					if cfg.ProxyHost, err = p.required("Proxy host", false); err != nil {
						return err
					}
					if cfg.ProxyPort, err = p.integer("Proxy port", 8080); err != nil {
						return err
					}
					if cfg.ProxyUser, err = p.line("Proxy user", ""); err != nil {
						return err
					}
				}
			}

			fmt.Fprintln(out)
			exports, err := p.yes("Configure export storage?")
			if err != nil {
				return err
			}
			if exports {
				if cfg.S3Region, err = p.line("S3 region", "eu-central-1"); err != nil {
					return err
				}
				if cfg.S3Endpoint, err = p.line("S3 endpoint (empty for AWS)", ""); err != nil {
					return err
				}
				if cfg.AzureServiceURL, err = p.line("Azure service URL with SAS (optional)", ""); err != nil {
					return err
				}
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveAPIConfig(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			fmt.Fprintln(out, "Test your configuration with: osparc-tables config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/osparc/apiconfig)
  2. Environment variables (OSPARC_API_KEY, OSPARC_API_SECRET, OSPARC_API_URL)
  3. Command-line flags (--api-key, --api-secret, --api-url)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "API Settings:")
			fmt.Fprintf(out, "  Platform URL: %s\n", cfg.APIBaseURL)
			fmt.Fprintf(out, "  API Key:      %s\n", masked(cfg.APIKey))
			fmt.Fprintf(out, "  API Secret:   %s\n", masked(cfg.APISecret))
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Table Settings:")
			fmt.Fprintf(out, "  Server Max Limit: %d\n", cfg.ServerMaxLimit)
			fmt.Fprintf(out, "  Page Concurrency: %d\n", cfg.PageConcurrency)
			fmt.Fprintf(out, "  Cache Rows:       %d\n", cfg.CacheRows)
			fmt.Fprintf(out, "  Max Retries:      %d\n", cfg.MaxRetries)
			fmt.Fprintf(out, "  Request Timeout:  %s\n", cfg.RequestTimeout)
			if cfg.DefsFile != "" {
				fmt.Fprintf(out, "  Definitions:      %s\n", cfg.DefsFile)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Proxy Settings:")
			fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
				fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
			}
			fmt.Fprintln(out)

			if cfg.S3Region != "" || cfg.S3Endpoint != "" || cfg.AzureServiceURL != "" {
				fmt.Fprintln(out, "Export Settings:")
				if cfg.S3Region != "" {
					fmt.Fprintf(out, "  S3 Region:   %s\n", cfg.S3Region)
				}
				if cfg.S3Endpoint != "" {
					fmt.Fprintf(out, "  S3 Endpoint: %s\n", cfg.S3Endpoint)
				}
				if cfg.AzureServiceURL != "" {
					fmt.Fprintln(out, "  Azure:       <set>")
				}
				fmt.Fprintln(out)
			}

			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}
}

// masked never shows any part of a credential.
func masked(s string) string {
	if s == "" {
		return "<not set>"
	}
	return fmt.Sprintf("<set (%d chars)>", len(s))
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test API connection",
		Long: `Test the API connection with current configuration.

Use this to verify your API key and network connectivity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			client, err := getAPIClient(cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Platform URL: %s\n", cfg.APIBaseURL)

			ctx, cancel := context.WithTimeout(GetContext(), 10*time.Second)
			defer cancel()

			profile, err := client.GetProfile(ctx)
			if err != nil {
				GetLogger().Error().Err(err).Msg("Connection test failed")
				fmt.Fprintln(out, "✗ Connection FAILED")
				return fmt.Errorf("connection test failed: %w", err)
			}
			GetLogger().Info().Msg("Connection test successful")

			fmt.Fprintln(out, "✓ Connection SUCCESSFUL")
			fmt.Fprintf(out, "  Login: %s\n", profile.Login)
			if wallet, err := client.GetDefaultWallet(ctx); err == nil {
				fmt.Fprintf(out, "  Default wallet: %s (%d), %.2f credits\n", wallet.Name, wallet.WalletID, wallet.AvailableCredits)
			}
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, path)
			if info, err := os.Stat(path); err == nil {
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "File does not exist. Create it with: osparc-tables config init")
			}
			return nil
		},
	}
}
