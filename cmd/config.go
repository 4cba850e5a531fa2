package cmd

import (
	"fmt"
	"strings"

	"github.com/khrees2412/callscreen/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  "View and update configuration settings",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.AppConfig
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}

		cmd.Println(titleStyle.Render("Configuration"))
		cmd.Printf("%s %s\n", labelStyle.Render("Config File:"), config.GetConfigPath())
		cmd.Printf("%s %s\n", labelStyle.Render("Database:"), cfg.DatabasePath)
		cmd.Printf("%s %s\n", labelStyle.Render("HTTP Address:"), cfg.HTTPAddr)
		cmd.Printf("%s %s\n", labelStyle.Render("Public Host:"), cfg.PublicHost)
		cmd.Printf("%s %s\n", labelStyle.Render("Timezone:"), cfg.Timezone)
		cmd.Printf("%s %s\n", labelStyle.Render("AI Provider:"), cfg.AIProvider)
		cmd.Printf("%s %s\n", labelStyle.Render("Default Model:"), cfg.DefaultModel)
		cmd.Printf("%s %s (%s, %s)\n", labelStyle.Render("Log File:"), cfg.LogPath(), cfg.LogLevel, cfg.LogFormat)

		// Show if secrets are configured (but don't show the actual values)
		configured := func(label, value string) {
			state := successStyle.Render("✓ Configured")
			if value == "" {
				state = errorStyle.Render("✗ Not configured")
			}
			cmd.Printf("%s %s\n", labelStyle.Render(label), state)
		}
		configured("OpenAI Key:", cfg.OpenAIKey)
		configured("Anthropic Key:", cfg.AnthropicKey)
		configured("Twilio Account:", cfg.TwilioAccountSID)
		configured("Twilio Token:", cfg.TwilioAuthToken)
		cmd.Printf("%s %s\n", labelStyle.Render("Caller ID:"), cfg.TwilioPhoneNumber)

		cmd.Printf("%s every %s, %d concurrent\n", labelStyle.Render("Call Worker:"), cfg.WorkerInterval, cfg.WorkerMaxConcurrent)
		cmd.Printf("%s %d attempts, %s backoff\n", labelStyle.Render("Retries:"), cfg.QueueMaxAttempts, cfg.QueueRetryBackoff)
		if cfg.RabbitMQEnabled {
			cmd.Printf("%s %s\n", labelStyle.Render("Event Queue:"), cfg.RabbitMQQueue)
		}
		return nil
	},
}

var setConfigCmd = &cobra.Command{
	Use:   "set",
	Short: "Update a configuration value",
	Example: `  callscreen config set --key openai_key --value sk-...
  callscreen config set --key ai_provider --value anthropic
  callscreen config set --key twilio_phone_number --value +15550100
  callscreen config set --key worker_max_concurrent --value 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		value, _ := cmd.Flags().GetString("value")

		if key == "" || value == "" {
			return fmt.Errorf("both --key and --value are required")
		}
		if !config.ValidKey(key) {
			return fmt.Errorf("invalid key, must be one of: %s", strings.Join(config.Keys, ", "))
		}

		if err := config.Set(key, value); err != nil {
			return fmt.Errorf("update config: %w", err)
		}
		cmd.Println(successStyle.Render("✓ Configuration updated: " + key))

		// Reload config
		if err := config.Initialize(); err != nil {
			cmd.PrintErrf("Warning: Could not reload config: %v\n", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(setConfigCmd)

	// Flags for set command
	setConfigCmd.Flags().String("key", "", "Configuration key")
	setConfigCmd.Flags().String("value", "", "Configuration value")
}
