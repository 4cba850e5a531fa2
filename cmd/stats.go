package cmd

import (
	"fmt"

	"github.com/khrees2412/callscreen/internal/app"
	"github.com/khrees2412/callscreen/internal/stats"
	"github.com/khrees2412/callscreen/pkg/models"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "View screening statistics",
	Long:  "Display candidate outcomes, appointments, and call queue activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		d, err := stats.Collect(cmd.Context(), a.Store, recruiterFlag(cmd), a.Registry.Now())
		if err != nil {
			return fmt.Errorf("collect statistics: %w", err)
		}

		if d.TotalCandidates == 0 {
			cmd.Println("No candidates yet. Add one with 'callscreen candidates add'")
			return nil
		}

		cmd.Println(titleStyle.Render("Screening Statistics"))

		// Candidate pipeline
		cmd.Printf("\n%s\n", labelStyle.Render("Candidates"))
		cmd.Printf("  Total: %d\n", d.TotalCandidates)
		for _, status := range []models.CandidateStatus{
			models.CandidatePending, models.CandidateScreening, models.CandidateShortlisted,
			models.CandidateRejected, models.CandidateHired,
		} {
			n := d.Candidates[status]
			percentage := float64(n) / float64(d.TotalCandidates) * 100
			cmd.Printf("  %s: %d (%.1f%%)\n", statusLabel(string(status)), n, percentage)
		}

		cmd.Printf("\n%s\n", labelStyle.Render("Outcomes"))
		cmd.Printf("  Shortlist Rate: %.1f%%\n", d.ShortlistRate)
		cmd.Printf("  Rejection Rate: %.1f%%\n", d.RejectionRate)

		cmd.Printf("\n%s\n", labelStyle.Render("Appointments"))
		cmd.Printf("  Total: %d  Upcoming: %d  Past: %d\n", d.Appointments.Total, d.Appointments.Upcoming, d.Appointments.Past)
		cmd.Printf("  Open Slots: %d\n", d.OpenSlots)

		cmd.Printf("\n%s\n", labelStyle.Render("Calls"))
		for _, status := range []models.CallStatus{models.CallPending, models.CallInProgress, models.CallCompleted, models.CallFailed} {
			cmd.Printf("  %s: %d\n", statusLabel(string(status)), d.Queue[status])
		}
		cmd.Printf("\n%s %d\n", labelStyle.Render("Open Jobs:"), d.Jobs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
