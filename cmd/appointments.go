package cmd

import (
	"fmt"
	"strconv"

	"github.com/khrees2412/callscreen/internal/app"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/scheduling"
	"github.com/khrees2412/callscreen/pkg/models"
	"github.com/spf13/cobra"
)

var appointmentsCmd = &cobra.Command{
	Use:     "appointments",
	Aliases: []string{"appt"},
	Short:   "Manage interview appointments",
}

var listAppointmentsCmd = &cobra.Command{
	Use:   "list",
	Short: "List appointments",
	Example: `  callscreen appointments list
  callscreen appointments list --type upcoming --page 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		kind, _ := cmd.Flags().GetString("type")
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")

		result, err := a.Registry.List(cmd.Context(), recruiterFlag(cmd), database.AppointmentKind(kind), page, limit)
		if err != nil {
			return fmt.Errorf("fetch appointments: %w", err)
		}

		cmd.Println(titleStyle.Render("Appointments"))
		cmd.Printf("%s %d  %s %d  %s %d\n",
			labelStyle.Render("Total:"), result.Counts.Total,
			labelStyle.Render("Upcoming:"), result.Counts.Upcoming,
			labelStyle.Render("Past:"), result.Counts.Past)
		if len(result.Appointments) == 0 {
			cmd.Println("\nNo appointments on this page.")
			return nil
		}
		for _, appt := range result.Appointments {
			printAppointment(cmd, appt)
		}
		return nil
	},
}

var bookAppointmentCmd = &cobra.Command{
	Use:     "book",
	Short:   "Book a candidate into a slot",
	Example: `  callscreen appointments book --job 1 --candidate 4 --slot 12`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := app.FromContext(ctx)
		if err != nil {
			return err
		}
		req := scheduling.BookRequest{RecruiterID: recruiterFlag(cmd)}
		req.JobID, _ = cmd.Flags().GetInt64("job")
		req.CandidateID, _ = cmd.Flags().GetInt64("candidate")
		req.SlotID, _ = cmd.Flags().GetInt64("slot")
		req.MeetingLink, _ = cmd.Flags().GetString("link")
		req.Notes, _ = cmd.Flags().GetString("notes")

		job, err := a.Store.GetJob(ctx, req.JobID)
		if err == nil && job.RecruiterID != req.RecruiterID {
			err = fmt.Errorf("job %d: %w", req.JobID, database.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load job: %w", err)
		}
		candidate, err := a.Store.GetCandidate(ctx, req.CandidateID)
		if err == nil && candidate.RecruiterID != req.RecruiterID {
			err = fmt.Errorf("candidate %d: %w", req.CandidateID, database.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load candidate: %w", err)
		}

		if req.MeetingLink == "" {
			slot, err := a.Store.GetSlot(ctx, req.SlotID)
			if err != nil {
				return fmt.Errorf("load slot: %w", err)
			}
			if req.MeetingLink, err = a.Linker.CreateLink(ctx, req.CandidateID, req.JobID, slot); err != nil {
				a.Logger.Warn("meeting link unavailable", "slot_id", req.SlotID, "error", err)
			}
		}

		appt, err := a.Registry.Book(ctx, req)
		if err != nil {
			return fmt.Errorf("book appointment: %w", err)
		}
		cmd.Println(successStyle.Render(fmt.Sprintf("✓ Appointment booked (ID: %d)", appt.ID)))
		printAppointment(cmd, appt)
		return nil
	},
}

var cancelAppointmentCmd = &cobra.Command{
	Use:   "cancel <appointment-id>",
	Short: "Cancel an appointment and free its slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid appointment ID: %w", err)
		}
		if _, err := a.Registry.Cancel(cmd.Context(), id); err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		cmd.Println(successStyle.Render(fmt.Sprintf("✓ Appointment %d canceled", id)))
		return nil
	},
}

var statusAppointmentCmd = &cobra.Command{
	Use:       "status <appointment-id> <booked|completed|canceled>",
	Short:     "Change an appointment's status",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(models.AppointmentBooked), string(models.AppointmentCompleted), string(models.AppointmentCanceled)},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid appointment ID: %w", err)
		}
		appt, err := a.Registry.UpdateStatus(cmd.Context(), id, models.AppointmentStatus(args[1]))
		if err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		cmd.Printf("✓ Appointment %d is now %s\n", appt.ID, statusLabel(string(appt.Status)))
		return nil
	},
}

var sweepAppointmentsCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Complete every booked appointment whose slot has ended",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		n, err := a.Registry.SweepLapsed(cmd.Context(), a.Registry.Now())
		if err != nil {
			return fmt.Errorf("sweep appointments: %w", err)
		}
		cmd.Printf("✓ Completed %d lapsed appointments\n", n)
		return nil
	},
}

var reconcileAppointmentCmd = &cobra.Command{
	Use:     "reconcile",
	Short:   "Complete a candidate's latest appointment if its slot has ended",
	Example: `  callscreen appointments reconcile --candidate 4 --job 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		f := database.AppointmentFilter{RecruiterID: recruiterFlag(cmd)}
		f.CandidateID, _ = cmd.Flags().GetInt64("candidate")
		f.JobID, _ = cmd.Flags().GetInt64("job")

		appt, changed, err := a.Registry.ReconcileLapsed(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("reconcile appointment: %w", err)
		}
		if changed {
			cmd.Println(successStyle.Render(fmt.Sprintf("✓ Appointment %d marked completed", appt.ID)))
		} else {
			cmd.Printf("Appointment %d unchanged (%s)\n", appt.ID, statusLabel(string(appt.Status)))
		}
		return nil
	},
}

func printAppointment(cmd *cobra.Command, appt *models.Appointment) {
	cmd.Printf("\n%s %s\n", labelStyle.Render(fmt.Sprintf("#%d", appt.ID)), statusLabel(string(appt.Status)))
	cmd.Printf("   %s %d  %s %d\n", labelStyle.Render("Candidate:"), appt.CandidateID, labelStyle.Render("Job:"), appt.JobID)
	if appt.Slot != nil {
		cmd.Printf("   %s %s %s-%s\n", labelStyle.Render("When:"),
			appt.Slot.Date.Format("Mon Jan 2, 2006"), appt.Slot.StartTime, appt.Slot.EndTime)
	}
	if appt.MeetingLink != "" {
		cmd.Printf("   %s %s\n", labelStyle.Render("Link:"), appt.MeetingLink)
	}
	if appt.Notes != "" {
		cmd.Printf("   %s %s\n", labelStyle.Render("Notes:"), appt.Notes)
	}
}

func init() {
	rootCmd.AddCommand(appointmentsCmd)
	appointmentsCmd.AddCommand(listAppointmentsCmd, bookAppointmentCmd, cancelAppointmentCmd,
		statusAppointmentCmd, sweepAppointmentsCmd, reconcileAppointmentCmd)

	listAppointmentsCmd.Flags().String("type", "all", "all, upcoming or past")
	listAppointmentsCmd.Flags().Int("page", 1, "Page number")
	listAppointmentsCmd.Flags().Int("limit", 20, "Appointments per page")

	bookAppointmentCmd.Flags().Int64("job", 0, "Job ID")
	bookAppointmentCmd.Flags().Int64("candidate", 0, "Candidate ID")
	bookAppointmentCmd.Flags().Int64("slot", 0, "Slot ID")
	bookAppointmentCmd.Flags().String("link", "", "Meeting link")
	bookAppointmentCmd.Flags().String("notes", "", "Notes for the interviewer")
	_ = bookAppointmentCmd.MarkFlagRequired("job")
	_ = bookAppointmentCmd.MarkFlagRequired("candidate")
	_ = bookAppointmentCmd.MarkFlagRequired("slot")

	reconcileAppointmentCmd.Flags().Int64("candidate", 0, "Candidate ID")
	reconcileAppointmentCmd.Flags().Int64("job", 0, "Job ID")
	_ = reconcileAppointmentCmd.MarkFlagRequired("candidate")
}
