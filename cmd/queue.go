package cmd

import (
	"fmt"
	"time"

	"github.com/khrees2412/callscreen/internal/app"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/queue"
	"github.com/khrees2412/callscreen/pkg/models"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the outbound call queue",
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a screening call for a candidate",
	Example: `  callscreen queue enqueue --candidate 4
  callscreen queue enqueue --candidate 4 --priority 5 --at 2030-01-07T10:00:00Z`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := app.FromContext(ctx)
		if err != nil {
			return err
		}
		candidateID, _ := cmd.Flags().GetInt64("candidate")
		candidate, err := a.Store.GetCandidate(ctx, candidateID)
		if err != nil {
			return fmt.Errorf("load candidate: %w", err)
		}
		if candidate.RecruiterID != recruiterFlag(cmd) {
			return fmt.Errorf("candidate %d: %w", candidateID, database.ErrNotFound)
		}

		req := queue.EnqueueRequest{CandidateID: candidate.ID, RecruiterID: candidate.RecruiterID, JobID: candidate.JobID}
		req.Priority, _ = cmd.Flags().GetInt("priority")
		if at, _ := cmd.Flags().GetString("at"); at != "" {
			if req.ScheduledTime, err = time.Parse(time.RFC3339, at); err != nil {
				return fmt.Errorf("invalid --at, expected RFC 3339: %w", err)
			}
		}

		exists, err := a.Scheduler.Exists(ctx, req.CandidateID, req.RecruiterID, req.JobID)
		if err != nil {
			return err
		}
		if exists {
			cmd.Printf("Candidate %d already has an open call.\n", candidate.ID)
			return nil
		}

		entry, err := a.Scheduler.Enqueue(ctx, req)
		if err != nil {
			return fmt.Errorf("enqueue call: %w", err)
		}
		cmd.Println(successStyle.Render(fmt.Sprintf("✓ Call queued for %s (entry %d)", candidate.Name, entry.ID)))
		return nil
	},
}

var fillQueueCmd = &cobra.Command{
	Use:   "fill",
	Short: "Queue every pending candidate without an open call",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		n, err := a.Scheduler.QueuePendingCandidates(cmd.Context(), recruiterFlag(cmd))
		if err != nil {
			return fmt.Errorf("fill queue: %w", err)
		}
		cmd.Printf("✓ Queued %d candidates\n", n)
		return nil
	},
}

var pendingQueueCmd = &cobra.Command{
	Use:   "pending",
	Short: "List calls waiting to be placed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		entries, err := a.Scheduler.Pending(cmd.Context(), recruiterFlag(cmd))
		if err != nil {
			return fmt.Errorf("fetch queue: %w", err)
		}
		if len(entries) == 0 {
			cmd.Println("No pending calls. Queue candidates with 'callscreen queue fill'")
			return nil
		}

		cmd.Println(titleStyle.Render("Pending Calls"))
		for _, e := range entries {
			printEntry(cmd, e)
		}
		return nil
	},
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue counts by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		counts, err := a.Scheduler.Counts(cmd.Context(), recruiterFlag(cmd))
		if err != nil {
			return fmt.Errorf("count queue: %w", err)
		}

		cmd.Println(titleStyle.Render("Call Queue"))
		for _, status := range []models.CallStatus{models.CallPending, models.CallInProgress, models.CallCompleted, models.CallFailed} {
			cmd.Printf("  %s %d\n", statusLabel(string(status))+":", counts[status])
		}
		return nil
	},
}

var tickQueueCmd = &cobra.Command{
	Use:   "tick",
	Short: "Place due calls once and wait for them to be handed to the telephony provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		result, err := a.Worker.Tick(cmd.Context())
		if err != nil {
			return fmt.Errorf("tick: %w", err)
		}
		a.Worker.Wait()

		switch {
		case result.NoSlots:
			cmd.Println("No interview slots in the booking window; no calls placed.")
		case result.Idle:
			cmd.Println("Queue is empty.")
		case result.Started == 0 && result.NextDue != nil:
			cmd.Printf("Next retry due %s\n", formatTime(*result.NextDue))
		}
		status := a.Worker.Status()
		cmd.Printf("✓ Started %d calls (%d placed, %d failed)\n", result.Started, status.Placed, status.Failed)
		return nil
	},
}

func printEntry(cmd *cobra.Command, e *models.CallQueueEntry) {
	cmd.Printf("\n%s %s\n", labelStyle.Render(fmt.Sprintf("#%d", e.ID)), statusLabel(string(e.Status)))
	cmd.Printf("   %s %d  %s %d\n", labelStyle.Render("Candidate:"), e.CandidateID, labelStyle.Render("Priority:"), e.Priority)
	cmd.Printf("   %s %s\n", labelStyle.Render("Scheduled:"), formatTime(e.ScheduledTime))
	cmd.Printf("   %s %d/%d\n", labelStyle.Render("Attempts:"), e.Attempts, e.MaxAttempts)
	if e.ErrorMessage != "" {
		cmd.Printf("   %s %s\n", labelStyle.Render("Last error:"), mutedStyle.Render(e.ErrorMessage))
	}
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(enqueueCmd, fillQueueCmd, pendingQueueCmd, queueStatusCmd, tickQueueCmd)

	enqueueCmd.Flags().Int64("candidate", 0, "Candidate ID")
	enqueueCmd.Flags().Int("priority", 0, "Higher priorities are called first")
	enqueueCmd.Flags().String("at", "", "Earliest call time (RFC 3339)")
	_ = enqueueCmd.MarkFlagRequired("candidate")
}
