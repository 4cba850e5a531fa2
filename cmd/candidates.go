package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/khrees2412/callscreen/internal/app"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/intake"
	"github.com/khrees2412/callscreen/pkg/models"
	"github.com/spf13/cobra"
)

var candidatesCmd = &cobra.Command{
	Use:     "candidates",
	Aliases: []string{"candidate"},
	Short:   "Manage candidates",
}

var addCandidateCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a candidate",
	Example: `  callscreen candidates add --name "Ada Lovelace" --email ada@example.com --phone +15550001
  callscreen candidates add --name Grace --email grace@example.com --phone +15550002 --job 1 --experience 4 --rating 1=5 --rating 2=4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		c := &models.Candidate{RecruiterID: recruiterFlag(cmd), Source: intake.SourceManual}
		c.Name, _ = cmd.Flags().GetString("name")
		c.Email, _ = cmd.Flags().GetString("email")
		c.Phone, _ = cmd.Flags().GetString("phone")
		c.About, _ = cmd.Flags().GetString("about")
		c.NoticePeriod, _ = cmd.Flags().GetString("notice")
		c.Experience, _ = cmd.Flags().GetFloat64("experience")
		pref, _ := cmd.Flags().GetString("location-preference")
		c.LocationPreference = models.LocationPreference(pref)
		if cmd.Flags().Changed("job") {
			jobID, _ := cmd.Flags().GetInt64("job")
			c.JobID = &jobID
		}

		ratings, _ := cmd.Flags().GetStringToInt("rating")
		for skill, rating := range ratings {
			id, err := strconv.ParseInt(skill, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid --rating skill ID %q", skill)
			}
			c.Ratings = append(c.Ratings, models.SkillRating{SkillID: id, Rating: rating})
		}
		sort.Slice(c.Ratings, func(i, j int) bool { return c.Ratings[i].SkillID < c.Ratings[j].SkillID })

		result, err := a.Intake.Submit(cmd.Context(), c)
		if err != nil {
			return fmt.Errorf("register candidate: %w", err)
		}

		cmd.Println(successStyle.Render(fmt.Sprintf("✓ Candidate registered: %s (ID: %d)", c.Name, c.ID)))
		if result.Match != nil {
			cmd.Printf("%s %d/100 (experience %d, location %d, skills %.0f, summary %d)\n",
				labelStyle.Render("Match:"), result.Match.Total, result.Match.Experience,
				result.Match.Location, result.Match.Skills, result.Match.Semantic)
		}
		cmd.Printf("%s %s\n", labelStyle.Render("Status:"), statusLabel(string(result.Candidate.Status)))
		return nil
	},
}

var listCandidatesCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidates",
	Example: `  callscreen candidates list
  callscreen candidates list --status shortlisted --job 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		f := database.CandidateFilter{RecruiterID: recruiterFlag(cmd)}
		status, _ := cmd.Flags().GetString("status")
		f.Status = models.CandidateStatus(status)
		f.JobID, _ = cmd.Flags().GetInt64("job")
		f.Limit, _ = cmd.Flags().GetInt("limit")

		candidates, err := a.Store.ListCandidates(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("fetch candidates: %w", err)
		}
		if len(candidates) == 0 {
			cmd.Println("No candidates found.")
			return nil
		}

		cmd.Println(titleStyle.Render("Candidates"))
		for _, c := range candidates {
			cmd.Printf("\n%s %s  %s\n", labelStyle.Render(fmt.Sprintf("#%d", c.ID)), c.Name, statusLabel(string(c.Status)))
			cmd.Printf("   %s %s  %s %s\n", labelStyle.Render("Phone:"), c.Phone, labelStyle.Render("Email:"), c.Email)
			if c.Score > 0 {
				cmd.Printf("   %s %.0f\n", labelStyle.Render("Score:"), c.Score)
			}
			if c.LastContact != nil {
				cmd.Printf("   %s %s\n", labelStyle.Render("Last contact:"), formatTime(*c.LastContact))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
	candidatesCmd.AddCommand(addCandidateCmd, listCandidatesCmd)

	addCandidateCmd.Flags().String("name", "", "Full name")
	addCandidateCmd.Flags().String("email", "", "Email address")
	addCandidateCmd.Flags().String("phone", "", "Phone number in E.164 form")
	addCandidateCmd.Flags().String("about", "", "Short professional summary")
	addCandidateCmd.Flags().String("notice", "", "Notice period")
	addCandidateCmd.Flags().String("location-preference", "", "onsite, remote, hybrid or flexible")
	addCandidateCmd.Flags().Float64("experience", 0, "Years of experience")
	addCandidateCmd.Flags().Int64("job", 0, "Job to screen for")
	addCandidateCmd.Flags().StringToInt("rating", nil, "Self rating per skill ID, e.g. 3=4")
	_ = addCandidateCmd.MarkFlagRequired("name")
	_ = addCandidateCmd.MarkFlagRequired("email")
	_ = addCandidateCmd.MarkFlagRequired("phone")

	listCandidatesCmd.Flags().String("status", "", "Only this status")
	listCandidatesCmd.Flags().Int64("job", 0, "Only this job")
	listCandidatesCmd.Flags().Int("limit", 50, "Maximum candidates to show")
}
