package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ordolabs/ordo/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show configuration",
	Long: `Display the effective ordo configuration.

Without arguments, displays all configuration values. With a key
argument, displays only that value.

Configuration is stored at ~/.config/ordo/config.yaml
Project-specific overrides can be placed in .ordo/config.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		values := configValues(cfg)
		if len(args) == 0 {
			for _, kv := range values {
				fmt.Printf("%s: %s\n", kv[0], kv[1])
			}
			return
		}
		for _, kv := range values {
			if kv[0] == args[0] {
				fmt.Println(kv[1])
				return
			}
		}
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", args[0])
		os.Exit(1)
	},
}

// configValues flattens the config for display. The API key is masked.
func configValues(cfg *config.Config) [][2]string {
	apiKey := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKey = "****"
	}
	return [][2]string{
		{"state.db_path", cfg.DBPath()},
		{"blob.dir", cfg.BlobDir()},
		{"blob.inline_threshold", fmt.Sprintf("%d", cfg.Blob.InlineThreshold)},
		{"executor.workers", fmt.Sprintf("%d", cfg.Executor.Workers)},
		{"executor.poll_interval", cfg.Executor.PollInterval.String()},
		{"anthropic.api_key", apiKey},
		{"anthropic.model", cfg.Anthropic.Model},
		{"anthropic.use_bedrock", fmt.Sprintf("%t", cfg.Anthropic.UseBedrock)},
		{"anthropic.aws_region", cfg.Anthropic.AWSRegion},
		{"anthropic.aws_profile", cfg.Anthropic.AWSProfile},
		{"debug.log_path", cfg.Debug.LogPath},
	}
}
