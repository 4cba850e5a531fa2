package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/pkg/models"
)

// Catalog manages jobs and the shared skill list
type Catalog struct {
	store  *database.Store
	logger *slog.Logger
}

// New creates a catalog over the store
func New(store *database.Store, logger *slog.Logger) *Catalog {
	return &Catalog{store: store, logger: logger}
}

// AddSkill adds a skill to the catalog, returning the existing one if the name is taken
func (c *Catalog) AddSkill(ctx context.Context, name string) (*models.Skill, error) {
	return c.store.EnsureSkill(ctx, strings.ToLower(name))
}

// Skills returns the catalog ordered by name
func (c *Catalog) Skills(ctx context.Context) ([]models.Skill, error) {
	return c.store.ListSkills(ctx)
}

// AddJob stores a job requiring the named skills in order. Unknown skills
// are added to the catalog.
func (c *Catalog) AddJob(ctx context.Context, job *models.Job, skillNames []string) error {
	job.Title = strings.TrimSpace(job.Title)
	if err := validateJob(job); err != nil {
		return err
	}

	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		job.Skills = job.Skills[:0]
		seen := map[int64]bool{}
		for _, name := range skillNames {
			if strings.TrimSpace(name) == "" {
				continue
			}
			skill, err := q.EnsureSkill(ctx, strings.ToLower(name))
			if err != nil {
				return err
			}
			if seen[skill.ID] {
				continue
			}
			seen[skill.ID] = true
			job.Skills = append(job.Skills, *skill)
		}
		return q.InsertJob(ctx, job)
	})
	if err != nil {
		return err
	}

	c.logger.Info("job added", "job_id", job.ID, "title", job.Title, "skills", len(job.Skills),
		"recruiter_id", job.RecruiterID)
	return nil
}

// Job returns a job with its skills
func (c *Catalog) Job(ctx context.Context, id int64) (*models.Job, error) {
	return c.store.GetJob(ctx, id)
}

// Jobs returns a recruiter's jobs newest first
func (c *Catalog) Jobs(ctx context.Context, recruiterID int64) ([]*models.Job, error) {
	return c.store.ListJobs(ctx, recruiterID)
}

func validateJob(job *models.Job) error {
	if job.Title == "" {
		return fmt.Errorf("%w: job title is required", database.ErrValidation)
	}
	if job.RecruiterID <= 0 {
		return fmt.Errorf("%w: recruiter is required", database.ErrValidation)
	}
	if job.MinExperience < 0 {
		return fmt.Errorf("%w: minimum experience cannot be negative", database.ErrValidation)
	}
	switch job.JobType {
	case "", models.JobOnsite, models.JobRemote, models.JobHybrid:
	default:
		return fmt.Errorf("%w: unknown job type %q", database.ErrValidation, job.JobType)
	}
	if job.CTCMin != nil && job.CTCMax != nil && *job.CTCMin > *job.CTCMax {
		return fmt.Errorf("%w: ctc minimum is above maximum", database.ErrValidation)
	}
	return nil
}
