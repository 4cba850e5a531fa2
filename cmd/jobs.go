package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/khrees2412/callscreen/internal/app"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/pkg/models"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:     "jobs",
	Aliases: []string{"job"},
	Short:   "Manage job openings",
	Long:    "Add, list, and view the openings candidates are screened for",
}

var addJobCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a job opening",
	Example: `  callscreen jobs add --title "Backend Engineer" --skills go,postgres --min-experience 3
  callscreen jobs add --title "Data Engineer" --type remote --ctc-min 12 --ctc-max 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		job := &models.Job{RecruiterID: recruiterFlag(cmd)}
		job.Title, _ = cmd.Flags().GetString("title")
		job.Description, _ = cmd.Flags().GetString("description")
		job.Requirements, _ = cmd.Flags().GetString("requirements")
		job.Location, _ = cmd.Flags().GetString("location")
		job.MinExperience, _ = cmd.Flags().GetFloat64("min-experience")
		jobType, _ := cmd.Flags().GetString("type")
		job.JobType = models.JobType(strings.ToLower(jobType))
		if cmd.Flags().Changed("ctc-min") {
			v, _ := cmd.Flags().GetFloat64("ctc-min")
			job.CTCMin = &v
		}
		if cmd.Flags().Changed("ctc-max") {
			v, _ := cmd.Flags().GetFloat64("ctc-max")
			job.CTCMax = &v
		}
		skills, _ := cmd.Flags().GetStringSlice("skills")

		if err := a.Catalog.AddJob(cmd.Context(), job, skills); err != nil {
			return fmt.Errorf("save job: %w", err)
		}
		cmd.Println(successStyle.Render(fmt.Sprintf("✓ Job added: %s (ID: %d)", job.Title, job.ID)))
		return nil
	},
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List job openings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		jobs, err := a.Catalog.Jobs(cmd.Context(), recruiterFlag(cmd))
		if err != nil {
			return fmt.Errorf("fetch jobs: %w", err)
		}
		if len(jobs) == 0 {
			cmd.Println("No jobs found. Add one with 'callscreen jobs add --title TITLE'")
			return nil
		}

		cmd.Println(titleStyle.Render("Job Openings"))
		for i, job := range jobs {
			cmd.Printf("\n%s. %s\n", labelStyle.Render(fmt.Sprintf("%d", i+1)), job.Title)
			cmd.Printf("   %s %d\n", labelStyle.Render("ID:"), job.ID)
			cmd.Printf("   %s %s\n", labelStyle.Render("Type:"), titleCaser.String(string(job.JobType)))
			if len(job.Skills) > 0 {
				cmd.Printf("   %s %s\n", labelStyle.Render("Skills:"), strings.Join(job.SkillNames(), ", "))
			}
		}
		return nil
	},
}

var showJobCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show job details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job ID: %w", err)
		}
		job, err := a.Catalog.Job(cmd.Context(), id)
		if err == nil && job.RecruiterID != recruiterFlag(cmd) {
			err = fmt.Errorf("job %d: %w", id, database.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("fetch job: %w", err)
		}

		cmd.Println(titleStyle.Render(job.Title))
		cmd.Printf("%s %s\n", labelStyle.Render("Type:"), valueStyle.Render(titleCaser.String(string(job.JobType))))
		if job.Location != "" {
			cmd.Printf("%s %s\n", labelStyle.Render("Location:"), valueStyle.Render(job.Location))
		}
		cmd.Printf("%s %g years\n", labelStyle.Render("Minimum experience:"), job.MinExperience)
		if job.CTCMin != nil && job.CTCMax != nil {
			cmd.Printf("%s %g-%g lakhs\n", labelStyle.Render("CTC:"), *job.CTCMin, *job.CTCMax)
		}
		if len(job.Skills) > 0 {
			cmd.Printf("%s %s\n", labelStyle.Render("Skills:"), strings.Join(job.SkillNames(), ", "))
		}
		if job.Description != "" {
			cmd.Printf("\n%s\n", job.Description)
		}
		if job.Requirements != "" {
			cmd.Printf("\n%s\n%s\n", labelStyle.Render("Requirements"), job.Requirements)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(addJobCmd, listJobsCmd, showJobCmd)

	addJobCmd.Flags().String("title", "", "Job title")
	addJobCmd.Flags().String("description", "", "Job description")
	addJobCmd.Flags().String("requirements", "", "Requirements text")
	addJobCmd.Flags().String("location", "", "Office location")
	addJobCmd.Flags().String("type", string(models.JobOnsite), "onsite, remote or hybrid")
	addJobCmd.Flags().Float64("min-experience", 0, "Minimum years of experience")
	addJobCmd.Flags().Float64("ctc-min", 0, "Lower CTC bound in lakhs")
	addJobCmd.Flags().Float64("ctc-max", 0, "Upper CTC bound in lakhs")
	addJobCmd.Flags().StringSlice("skills", nil, "Required skills in order, comma separated")
	_ = addJobCmd.MarkFlagRequired("title")
}
