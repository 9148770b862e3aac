package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkeep/agents/internal/logging"
	"github.com/inkeep/agents/pkg/client"
)

// Version information (set at build time with -ldflags)
var Version = "dev"

var (
	flagAPIURL string
	flagAPIKey string
	flagTenant string
	flagRef    string
)

var rootCmd = &cobra.Command{
	Use:     "agents-cli",
	Short:   "Manage agent definitions against the agents API",
	Long:    `agents-cli pulls and pushes declarative agent definitions (projects, agents, triggers, datasets, evaluators) between local YAML files and the agents API`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Config{
			Format:    "console",
			Level:     "warn",
			Component: "agents-cli",
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", envOr("AGENTS_API_URL", "http://localhost:3002"), "agents API base URL")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", os.Getenv("AGENTS_API_KEY"), "API key (or AGENTS_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagTenant, "tenant", os.Getenv("AGENTS_TENANT"), "tenant ID (or AGENTS_TENANT)")
	rootCmd.PersistentFlags().StringVar(&flagRef, "ref", "", "branch, tag:<hash> or commit:<hash> to operate on")

	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(pushCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// apiClient builds the client from the global flags.
func apiClient() (*client.Client, error) {
	if flagTenant == "" {
		return nil, fmt.Errorf("a tenant is required (--tenant or AGENTS_TENANT)")
	}
	return client.New(client.Config{
		BaseURL:  flagAPIURL,
		APIKey:   flagAPIKey,
		TenantID: flagTenant,
		Ref:      flagRef,
		Timeout:  60 * time.Second,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
