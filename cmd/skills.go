package cmd

import (
	"fmt"

	"github.com/khrees2412/callscreen/internal/app"
	"github.com/spf13/cobra"
)

var skillsCmd = &cobra.Command{
	Use:     "skills",
	Aliases: []string{"skill"},
	Short:   "Manage the skill catalog",
	Long:    "Add and list the skills jobs can require",
}

var addSkillCmd = &cobra.Command{
	Use:   "add <skill-name>",
	Short: "Add a skill",
	Args:  cobra.ExactArgs(1),
	Example: `  callscreen skills add go
  callscreen skills add "system design"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		skill, err := a.Catalog.AddSkill(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("add skill: %w", err)
		}
		cmd.Println(successStyle.Render(fmt.Sprintf("✓ Added skill: %s (ID: %d)", skill.Name, skill.ID)))
		return nil
	},
}

var listSkillsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		skills, err := a.Catalog.Skills(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch skills: %w", err)
		}
		if len(skills) == 0 {
			cmd.Println("No skills found. Add skills with 'callscreen skills add <skill-name>'")
			return nil
		}

		cmd.Println(titleStyle.Render("Skills"))
		for _, s := range skills {
			cmd.Printf("  %s %s\n", labelStyle.Render(fmt.Sprintf("%3d", s.ID)), s.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(skillsCmd)
	skillsCmd.AddCommand(addSkillCmd, listSkillsCmd)
}
