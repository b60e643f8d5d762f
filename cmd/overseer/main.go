package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/httpclient"
)

var (
	// Global flags
	configFiles []string
	serverURL   string
	timeout     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "overseer",
	Short: "Job scheduler, dispatcher and self-healing monitor",
	Long: `overseer runs periodic workflows on dedicated queues, watches component health
and repairs what it can.

Examples:
  overseer serve -c overseer.toml       # Run the server
  overseer trigger linkedin_scraping    # Queue a workflow now
  overseer jobs --limit 20              # Show recent jobs
  overseer health --report              # Show the overall health level`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		common.ResolveVersion()
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL for client commands (default from config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Client request timeout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(workflowsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves config files: flags first, then ./overseer.toml, then deployments/local
func loadConfig() (*common.Config, error) {
	paths := configFiles
	if len(paths) == 0 {
		if _, err := os.Stat("overseer.toml"); err == nil {
			paths = append(paths, "overseer.toml")
		} else if _, err := os.Stat("deployments/local/overseer.toml"); err == nil {
			paths = append(paths, "deployments/local/overseer.toml")
		}
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		arbor.NewLogger().Error().Strs("paths", paths).Err(err).Msg("Failed to load configuration")
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return config, nil
}

// newClient targets --server, or the configured server address
func newClient() (*httpclient.Client, error) {
	if serverURL != "" {
		return httpclient.New(serverURL), nil
	}
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return httpclient.New(config.Server.BaseURL()), nil
}
