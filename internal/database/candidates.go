package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/khrees2412/callscreen/pkg/models"
)

// CandidateFilter narrows ListCandidates. Zero values match everything.
type CandidateFilter struct {
	RecruiterID int64
	Status      models.CandidateStatus
	JobID       int64
	Limit       int
}

// CandidateUpdate is a partial update; nil fields are left untouched
type CandidateUpdate struct {
	About              *string
	Experience         *float64
	CurrentCTC         *float64
	ExpectedCTC        *float64
	NoticePeriod       *string
	LocationPreference *models.LocationPreference
	Status             *models.CandidateStatus
	Score              *float64
	JobID              *int64
	LastContact        *time.Time
}

const candidateColumns = `id, name, phone, email, about, experience, current_ctc, expected_ctc, notice_period,
	location_preference, status, score, source, job_id, last_contact, recruiter_id, created_at`

// InsertCandidate stores a new candidate with any ratings and sets its ID
func (q *Queries) InsertCandidate(ctx context.Context, c *models.Candidate) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.Status == "" {
		c.Status = models.CandidatePending
	}
	if c.LocationPreference == "" {
		c.LocationPreference = models.PreferFlexible
	}
	if c.Source == "" {
		c.Source = "manual"
	}

	query := `INSERT INTO candidates (name, phone, email, about, experience, current_ctc, expected_ctc,
			  notice_period, location_preference, status, score, source, job_id, last_contact, recruiter_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := q.q.ExecContext(ctx, query, c.Name, c.Phone, c.Email, c.About, c.Experience,
		nullableFloat(c.CurrentCTC), nullableFloat(c.ExpectedCTC), c.NoticePeriod, c.LocationPreference,
		c.Status, c.Score, c.Source, nullableInt(c.JobID), nullableTime(c.LastContact), c.RecruiterID,
		instant(c.CreatedAt))
	if err != nil {
		return wrapError(fmt.Errorf("failed to insert candidate: %w", err))
	}
	id, _ := result.LastInsertId()
	c.ID = id

	for _, r := range c.Ratings {
		if err := q.UpsertRating(ctx, c.ID, r.SkillID, r.Rating); err != nil {
			return err
		}
	}
	return nil
}

// GetCandidate returns a candidate with ratings
func (q *Queries) GetCandidate(ctx context.Context, id int64) (*models.Candidate, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	c, err := scanCandidate(row)
	if err != nil {
		return nil, wrapError(fmt.Errorf("candidate %d: %w", id, err))
	}
	if c.Ratings, err = q.ListRatings(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

// FindCandidateByContact returns the recruiter's candidate with the given
// email or phone. Empty values never match.
func (q *Queries) FindCandidateByContact(ctx context.Context, recruiterID int64, email, phone string) (*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates
			  WHERE recruiter_id = ? AND ((email <> '' AND email = ?) OR (phone <> '' AND phone = ?)) LIMIT 1`
	c, err := scanCandidate(q.q.QueryRowContext(ctx, query, recruiterID, email, phone))
	if err != nil {
		return nil, wrapError(fmt.Errorf("candidate %s/%s: %w", email, phone, err))
	}
	return c, nil
}

// ListCandidates returns candidates newest first. Ratings are not loaded.
func (q *Queries) ListCandidates(ctx context.Context, f CandidateFilter) ([]*models.Candidate, error) {
	var where []string
	var args []any
	if f.RecruiterID != 0 {
		where = append(where, "recruiter_id = ?")
		args = append(args, f.RecruiterID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.JobID != 0 {
		where = append(where, "job_id = ?")
		args = append(args, f.JobID)
	}

	query := `SELECT ` + candidateColumns + ` FROM candidates`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	return q.queryCandidates(ctx, query, args...)
}

// CandidatesToCall returns pending candidates of the recruiter that have no
// appointment and no open queue entry, oldest first
func (q *Queries) CandidatesToCall(ctx context.Context, recruiterID int64) ([]*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates c
			  WHERE c.recruiter_id = ? AND c.status = ?
			  AND NOT EXISTS (SELECT 1 FROM appointments a WHERE a.candidate_id = c.id)
			  AND NOT EXISTS (SELECT 1 FROM call_queue cq WHERE cq.candidate_id = c.id
			                  AND cq.status IN ('pending', 'in_progress'))
			  ORDER BY c.created_at ASC, c.id ASC`
	return q.queryCandidates(ctx, query, recruiterID, models.CandidatePending)
}

// UpdateCandidate applies a partial update
func (q *Queries) UpdateCandidate(ctx context.Context, id int64, u CandidateUpdate) error {
	var p patch
	if u.About != nil {
		p.set("about", *u.About)
	}
	if u.Experience != nil {
		p.set("experience", *u.Experience)
	}
	if u.CurrentCTC != nil {
		p.set("current_ctc", *u.CurrentCTC)
	}
	if u.ExpectedCTC != nil {
		p.set("expected_ctc", *u.ExpectedCTC)
	}
	if u.NoticePeriod != nil {
		p.set("notice_period", *u.NoticePeriod)
	}
	if u.LocationPreference != nil {
		p.set("location_preference", *u.LocationPreference)
	}
	if u.Status != nil {
		p.set("status", *u.Status)
	}
	if u.Score != nil {
		p.set("score", *u.Score)
	}
	if u.JobID != nil {
		p.set("job_id", *u.JobID)
	}
	if u.LastContact != nil {
		p.set("last_contact", instant(*u.LastContact))
	}
	if p.empty() {
		return nil
	}

	query := `UPDATE candidates SET ` + p.clause() + ` WHERE id = ?`
	result, err := q.q.ExecContext(ctx, query, append(p.args, id)...)
	if err != nil {
		return wrapError(fmt.Errorf("failed to update candidate %d: %w", id, err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("candidate %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpsertRating records a candidate's rating of one skill, replacing any earlier value
func (q *Queries) UpsertRating(ctx context.Context, candidateID, skillID int64, rating int) error {
	query := `INSERT INTO candidate_ratings (candidate_id, skill_id, rating) VALUES (?, ?, ?)
			  ON CONFLICT(candidate_id, skill_id) DO UPDATE SET rating = excluded.rating`
	if _, err := q.q.ExecContext(ctx, query, candidateID, skillID, rating); err != nil {
		return wrapError(fmt.Errorf("failed to save rating for candidate %d: %w", candidateID, err))
	}
	return nil
}

// ListRatings returns a candidate's skill ratings
func (q *Queries) ListRatings(ctx context.Context, candidateID int64) ([]models.SkillRating, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT skill_id, rating FROM candidate_ratings WHERE candidate_id = ? ORDER BY skill_id`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer rows.Close()

	ratings := []models.SkillRating{}
	for rows.Next() {
		var r models.SkillRating
		if err := rows.Scan(&r.SkillID, &r.Rating); err != nil {
			return nil, err
		}
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}

// CountCandidatesByStatus returns the number of candidates per status
func (q *Queries) CountCandidatesByStatus(ctx context.Context, recruiterID int64) (map[models.CandidateStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM candidates`
	var args []any
	if recruiterID != 0 {
		query += ` WHERE recruiter_id = ?`
		args = append(args, recruiterID)
	}
	query += ` GROUP BY status`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count candidates: %w", err)
	}
	defer rows.Close()

	counts := map[models.CandidateStatus]int{}
	for rows.Next() {
		var status models.CandidateStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (q *Queries) queryCandidates(ctx context.Context, query string, args ...any) ([]*models.Candidate, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	candidates := []*models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	c := &models.Candidate{}
	var currentCTC, expectedCTC sql.NullFloat64
	var jobID sql.NullInt64
	var lastContact sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.About, &c.Experience, &currentCTC, &expectedCTC,
		&c.NoticePeriod, &c.LocationPreference, &c.Status, &c.Score, &c.Source, &jobID, &lastContact,
		&c.RecruiterID, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.CurrentCTC = floatPtr(currentCTC)
	c.ExpectedCTC = floatPtr(expectedCTC)
	c.JobID = intPtr(jobID)
	c.LastContact = timePtr(lastContact)
	return c, nil
}
