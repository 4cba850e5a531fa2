package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/khrees2412/callscreen/pkg/models"
)

// JobSearch is a full-text job lookup
type JobSearch struct {
	Terms         []string
	MaxExperience float64 // only jobs requiring at most this many years
	Limit         int
}

const jobColumns = `j.id, j.title, j.description, j.requirements, j.min_experience, j.ctc_min, j.ctc_max,
	j.location, j.job_type, j.recruiter_id, j.created_at`

// EnsureSkill returns the catalog skill with the given name, creating it if needed
func (q *Queries) EnsureSkill(ctx context.Context, name string) (*models.Skill, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: skill name is required", ErrValidation)
	}
	if _, err := q.q.ExecContext(ctx,
		`INSERT INTO skills (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return nil, wrapError(fmt.Errorf("failed to insert skill: %w", err))
	}

	skill := &models.Skill{}
	err := q.q.QueryRowContext(ctx, `SELECT id, name FROM skills WHERE name = ?`, name).Scan(&skill.ID, &skill.Name)
	if err != nil {
		return nil, wrapError(fmt.Errorf("skill %q: %w", name, err))
	}
	return skill, nil
}

// ListSkills returns the skill catalog ordered by name
func (q *Queries) ListSkills(ctx context.Context) ([]models.Skill, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT id, name FROM skills ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list skills: %w", err)
	}
	defer rows.Close()

	skills := []models.Skill{}
	for rows.Next() {
		var s models.Skill
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// InsertJob stores a job, its ordered skills and its full-text row. Skills are
// referenced by ID and must already exist.
func (q *Queries) InsertJob(ctx context.Context, job *models.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.JobType == "" {
		job.JobType = models.JobOnsite
	}

	query := `INSERT INTO jobs (title, description, requirements, min_experience, ctc_min, ctc_max,
			  location, job_type, recruiter_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := q.q.ExecContext(ctx, query, job.Title, job.Description, job.Requirements, job.MinExperience,
		nullableFloat(job.CTCMin), nullableFloat(job.CTCMax), job.Location, job.JobType, job.RecruiterID,
		instant(job.CreatedAt))
	if err != nil {
		return wrapError(fmt.Errorf("failed to insert job: %w", err))
	}
	id, _ := result.LastInsertId()
	job.ID = id

	for i, s := range job.Skills {
		if _, err := q.q.ExecContext(ctx,
			`INSERT INTO job_skills (job_id, skill_id, position) VALUES (?, ?, ?)`, job.ID, s.ID, i); err != nil {
			return wrapError(fmt.Errorf("failed to link skill %d to job %d: %w", s.ID, job.ID, err))
		}
	}

	if _, err := q.q.ExecContext(ctx,
		`INSERT INTO jobs_fts (docid, title, description, requirements, skills) VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.Title, job.Description, job.Requirements, strings.Join(job.SkillNames(), " ")); err != nil {
		return fmt.Errorf("failed to index job %d: %w", job.ID, err)
	}
	return nil
}

// GetJob returns a job with its ordered skills
func (q *Queries) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs j WHERE j.id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		return nil, wrapError(fmt.Errorf("job %d: %w", id, err))
	}
	if job.Skills, err = q.jobSkills(ctx, id); err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns a recruiter's jobs newest first (0 lists every recruiter)
func (q *Queries) ListJobs(ctx context.Context, recruiterID int64) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs j`
	var args []any
	if recruiterID != 0 {
		query += ` WHERE j.recruiter_id = ?`
		args = append(args, recruiterID)
	}
	query += ` ORDER BY j.created_at DESC, j.id DESC`
	return q.queryJobs(ctx, query, args...)
}

// SearchJobs runs a full-text match over title, description, requirements
// and skill names, best match first. Any term matching is enough.
func (q *Queries) SearchJobs(ctx context.Context, s JobSearch) ([]*models.Job, error) {
	match := MatchExpression(s.Terms)
	if match == "" {
		return []*models.Job{}, nil
	}
	limit := s.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT ` + jobColumns + ` FROM jobs_fts JOIN jobs j ON j.id = jobs_fts.docid
			  WHERE jobs_fts MATCH ? AND j.min_experience <= ?
			  ORDER BY length(offsets(jobs_fts)) DESC, j.created_at DESC
			  LIMIT ?`
	return q.queryJobs(ctx, query, match, s.MaxExperience, limit)
}

// stopWords never reach the match expression. Besides common English
// function words this drops the filler every profile repeats, so a match
// means the text shares a subject with the job.
var stopWords = map[string]bool{
	"a": true, "about": true, "after": true, "all": true, "also": true, "am": true, "an": true,
	"and": true, "any": true, "are": true, "as": true, "at": true, "be": true, "been": true,
	"before": true, "being": true, "but": true, "by": true, "can": true, "could": true,
	"did": true, "do": true, "does": true, "doing": true, "for": true, "from": true,
	"had": true, "has": true, "have": true, "having": true, "he": true, "her": true,
	"here": true, "him": true, "his": true, "how": true, "i": true, "if": true, "in": true,
	"into": true, "is": true, "it": true, "its": true, "just": true, "like": true,
	"me": true, "more": true, "most": true, "my": true, "no": true, "not": true, "now": true,
	"of": true, "on": true, "one": true, "only": true, "or": true, "other": true, "our": true,
	"out": true, "over": true, "she": true, "so": true, "some": true, "such": true,
	"than": true, "that": true, "the": true, "their": true, "them": true, "then": true,
	"there": true, "these": true, "they": true, "this": true, "those": true, "through": true,
	"to": true, "too": true, "under": true, "until": true, "up": true, "very": true,
	"was": true, "we": true, "were": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "who": true, "why": true, "will": true, "with": true,
	"would": true, "you": true, "your": true,
	"experience": true, "experienced": true, "work": true, "worked": true, "working": true,
	"year": true, "years": true,
}

// MatchExpression turns free-text terms into an FTS OR query. Terms are
// lowercased and reduced to letters and digits so user text cannot inject
// query syntax. Stop words and single characters are dropped.
func MatchExpression(terms []string) string {
	seen := map[string]bool{}
	var tokens []string
	for _, term := range terms {
		words := strings.FieldsFunc(strings.ToLower(term), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			if len(w) < 2 || seen[w] || stopWords[w] {
				continue
			}
			seen[w] = true
			tokens = append(tokens, w)
		}
	}
	return strings.Join(tokens, " OR ")
}

func (q *Queries) queryJobs(ctx context.Context, query string, args ...any) ([]*models.Job, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := []*models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Close before loading skills; the store runs on a single connection
	rows.Close()

	for _, job := range jobs {
		if job.Skills, err = q.jobSkills(ctx, job.ID); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func (q *Queries) jobSkills(ctx context.Context, jobID int64) ([]models.Skill, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT s.id, s.name FROM job_skills js
		JOIN skills s ON s.id = js.skill_id WHERE js.job_id = ? ORDER BY js.position`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load skills for job %d: %w", jobID, err)
	}
	defer rows.Close()

	skills := []models.Skill{}
	for rows.Next() {
		var s models.Skill
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

func scanJob(row rowScanner) (*models.Job, error) {
	job := &models.Job{}
	var ctcMin, ctcMax sql.NullFloat64
	if err := row.Scan(&job.ID, &job.Title, &job.Description, &job.Requirements, &job.MinExperience,
		&ctcMin, &ctcMax, &job.Location, &job.JobType, &job.RecruiterID, &job.CreatedAt); err != nil {
		return nil, err
	}
	job.CTCMin = floatPtr(ctcMin)
	job.CTCMax = floatPtr(ctcMax)
	return job, nil
}
