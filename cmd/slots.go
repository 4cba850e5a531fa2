package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/khrees2412/callscreen/internal/app"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/pkg/models"
	"github.com/spf13/cobra"
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Manage interview slots",
	Long:  "Create, generate, list, and release interviewer slots",
}

var createSlotCmd = &cobra.Command{
	Use:     "create",
	Short:   "Create a single slot",
	Example: `  callscreen slots create --date 2030-01-07 --start 10:00 --end 10:30 --interviewer 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		date, err := dayFlag(cmd, a, "date")
		if err != nil {
			return err
		}
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		interviewer, _ := cmd.Flags().GetInt64("interviewer")

		slot := &models.Slot{Date: date, StartTime: start, EndTime: end, InterviewerID: interviewer}
		if err := a.Ledger.Create(cmd.Context(), slot); err != nil {
			return fmt.Errorf("create slot: %w", err)
		}
		cmd.Println(successStyle.Render(fmt.Sprintf("✓ Slot created: %s %s-%s (ID: %d)",
			slot.Date.Format(models.DateLayout), slot.StartTime, slot.EndTime, slot.ID)))
		return nil
	},
}

var generateSlotsCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate weekday slots between 09:00 and 17:00",
	Example: `  callscreen slots generate --from 2030-01-07 --to 2030-01-11 --interviewer 1
  callscreen slots generate --from 2030-01-07 --to 2030-01-07 --interviewer 2 --interval 60`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		from, err := dayFlag(cmd, a, "from")
		if err != nil {
			return err
		}
		to, err := dayFlag(cmd, a, "to")
		if err != nil {
			return err
		}
		interviewer, _ := cmd.Flags().GetInt64("interviewer")
		interval, _ := cmd.Flags().GetInt("interval")

		slots, err := a.Ledger.GenerateRange(cmd.Context(), from, to, interviewer, interval)
		if err != nil {
			return fmt.Errorf("generate slots: %w", err)
		}
		cmd.Println(successStyle.Render(fmt.Sprintf("✓ Generated %d slots", len(slots))))
		return nil
	},
}

var listSlotsCmd = &cobra.Command{
	Use:   "list",
	Short: "List slots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		f := database.SlotFilter{}
		f.AvailableOnly, _ = cmd.Flags().GetBool("available")
		f.InterviewerID, _ = cmd.Flags().GetInt64("interviewer")
		f.Limit, _ = cmd.Flags().GetInt("limit")
		if cmd.Flags().Changed("from") {
			if f.DateFrom, err = dayFlag(cmd, a, "from"); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("to") {
			if f.DateTo, err = dayFlag(cmd, a, "to"); err != nil {
				return err
			}
		}

		slots, err := a.Ledger.Query(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("fetch slots: %w", err)
		}
		if len(slots) == 0 {
			cmd.Println("No slots found. Create some with 'callscreen slots generate'")
			return nil
		}

		cmd.Println(titleStyle.Render("Interview Slots"))
		for _, s := range slots {
			state := successStyle.Render("available")
			if !s.IsAvailable {
				state = mutedStyle.Render("booked")
			}
			cmd.Printf("  %s %s %s-%s  %s %d  %s\n",
				labelStyle.Render(fmt.Sprintf("#%d", s.ID)),
				s.Date.Format("Mon Jan 2"), s.StartTime, s.EndTime,
				labelStyle.Render("Interviewer:"), s.InterviewerID, state)
		}
		return nil
	},
}

var releaseSlotCmd = &cobra.Command{
	Use:   "release <slot-id>",
	Short: "Make a slot available again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid slot ID: %w", err)
		}
		if err := a.Ledger.Release(cmd.Context(), id); err != nil {
			return fmt.Errorf("release slot: %w", err)
		}
		cmd.Println(successStyle.Render(fmt.Sprintf("✓ Slot %d released", id)))
		return nil
	},
}

// dayFlag parses a YYYY-MM-DD flag in the store's location
func dayFlag(cmd *cobra.Command, a *app.App, name string) (time.Time, error) {
	v, _ := cmd.Flags().GetString(name)
	d, err := time.ParseInLocation(models.DateLayout, v, a.Store.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q, expected YYYY-MM-DD", name, v)
	}
	return d, nil
}

func init() {
	rootCmd.AddCommand(slotsCmd)
	slotsCmd.AddCommand(createSlotCmd, generateSlotsCmd, listSlotsCmd, releaseSlotCmd)

	createSlotCmd.Flags().String("date", "", "Calendar day (YYYY-MM-DD)")
	createSlotCmd.Flags().String("start", "", "Start time (HH:MM)")
	createSlotCmd.Flags().String("end", "", "End time (HH:MM)")
	createSlotCmd.Flags().Int64("interviewer", 0, "Interviewer ID")
	_ = createSlotCmd.MarkFlagRequired("date")
	_ = createSlotCmd.MarkFlagRequired("start")
	_ = createSlotCmd.MarkFlagRequired("end")
	_ = createSlotCmd.MarkFlagRequired("interviewer")

	generateSlotsCmd.Flags().String("from", "", "First day (YYYY-MM-DD)")
	generateSlotsCmd.Flags().String("to", "", "Last day (YYYY-MM-DD)")
	generateSlotsCmd.Flags().Int64("interviewer", 0, "Interviewer ID")
	generateSlotsCmd.Flags().Int("interval", 30, "Slot length in minutes")
	_ = generateSlotsCmd.MarkFlagRequired("from")
	_ = generateSlotsCmd.MarkFlagRequired("to")
	_ = generateSlotsCmd.MarkFlagRequired("interviewer")

	listSlotsCmd.Flags().String("from", "", "First day (YYYY-MM-DD)")
	listSlotsCmd.Flags().String("to", "", "Last day (YYYY-MM-DD)")
	listSlotsCmd.Flags().Int64("interviewer", 0, "Only this interviewer")
	listSlotsCmd.Flags().Bool("available", false, "Only available slots")
	listSlotsCmd.Flags().Int("limit", 50, "Maximum slots to show")
}
