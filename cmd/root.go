package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/khrees2412/callscreen/internal/app"
	"github.com/spf13/cobra"
)

// application is closed once the command returns
var application *app.App

var rootCmd = &cobra.Command{
	Use:   "callscreen",
	Short: "AI phone screening and interview scheduling",
	Long: `Callscreen phones candidates, screens them with a short voice conversation
and books qualified candidates into free interview slots.
Run 'callscreen serve' to expose the HTTP API and telephony webhooks.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize app with all dependencies
		a, err := app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		application = a

		// Store app in command context
		cmd.SetContext(app.WithApp(cmd.Context(), a))
		return nil
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)

	// Cleanup: close app resources
	if application != nil {
		if cerr := application.Close(); cerr != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("cleanup: "+cerr.Error()))
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Int64("recruiter", 1, "Recruiter the command acts for")
}

// recruiterFlag returns the --recruiter value
func recruiterFlag(cmd *cobra.Command) int64 {
	id, _ := cmd.Flags().GetInt64("recruiter")
	return id
}
