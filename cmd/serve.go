package cmd

import (
	"fmt"

	"github.com/khrees2412/callscreen/internal/app"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and telephony webhooks",
	Example: `  callscreen serve
  callscreen serve --addr :8080 --start-worker`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := app.FromContext(ctx)
		if err != nil {
			return err
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.Config.HTTPAddr
		}

		go a.Registry.RunSweeper(ctx, a.Config.SweepInterval)

		if start, _ := cmd.Flags().GetBool("start-worker"); start {
			a.Worker.Start(ctx)
		}

		cmd.Println(titleStyle.Render("Callscreen"))
		cmd.Printf("%s %s\n", labelStyle.Render("Listening:"), valueStyle.Render(addr))
		cmd.Printf("%s %s\n", labelStyle.Render("Webhooks:"), valueStyle.Render(a.Config.PublicHost))

		if err := a.Server.Run(ctx, addr); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (defaults to http_addr)")
	serveCmd.Flags().Bool("start-worker", false, "Start placing queued calls immediately")
}
