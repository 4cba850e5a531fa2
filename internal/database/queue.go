package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/khrees2412/callscreen/pkg/models"
)

// QueueFilter narrows ListQueueEntries. Zero values match everything.
type QueueFilter struct {
	RecruiterID int64
	CandidateID int64
	Status      models.CallStatus
	Limit       int
}

// QueueUpdate is a partial update of a queue entry; nil fields are left untouched
type QueueUpdate struct {
	Status        *models.CallStatus
	ScheduledTime *time.Time
	SessionID     *string
	CallSid       *string
	ErrorMessage  *string
}

const queueColumns = `id, candidate_id, job_id, recruiter_id, status, priority, attempts, max_attempts,
	scheduled_time, last_attempt, session_id, call_sid, error_message, created_at`

// InsertQueueEntry stores a new queue entry and sets its ID
func (q *Queries) InsertQueueEntry(ctx context.Context, e *models.CallQueueEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.ScheduledTime.IsZero() {
		e.ScheduledTime = e.CreatedAt
	}
	if e.Status == "" {
		e.Status = models.CallPending
	}
	query := `INSERT INTO call_queue (candidate_id, job_id, recruiter_id, status, priority, attempts, max_attempts,
			  scheduled_time, last_attempt, session_id, call_sid, error_message, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := q.q.ExecContext(ctx, query, e.CandidateID, nullableInt(e.JobID), e.RecruiterID, e.Status,
		e.Priority, e.Attempts, e.MaxAttempts, instant(e.ScheduledTime), nullableTime(e.LastAttempt),
		e.SessionID, e.CallSid, e.ErrorMessage, instant(e.CreatedAt))
	if err != nil {
		return wrapError(fmt.Errorf("failed to insert queue entry: %w", err))
	}
	id, _ := result.LastInsertId()
	e.ID = id
	return nil
}

// OpenQueueEntryExists reports whether a pending or in-progress entry exists
// for the candidate, recruiter and job (a nil job matches entries without one)
func (q *Queries) OpenQueueEntryExists(ctx context.Context, candidateID, recruiterID int64, jobID *int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM call_queue WHERE candidate_id = ? AND recruiter_id = ?
			  AND job_id IS ? AND status IN ('pending', 'in_progress'))`
	var exists bool
	if err := q.q.QueryRowContext(ctx, query, candidateID, recruiterID, nullableInt(jobID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check queue for candidate %d: %w", candidateID, err)
	}
	return exists, nil
}

// ClaimQueueEntry atomically moves the next due entry to in_progress,
// counting the attempt. It returns nil when nothing is due or another
// claimer won the entry.
func (q *Queries) ClaimQueueEntry(ctx context.Context, now time.Time) (*models.CallQueueEntry, error) {
	now = instant(now)
	query := `UPDATE call_queue SET status = 'in_progress', attempts = attempts + 1, last_attempt = ?
			  WHERE id = (
				SELECT id FROM call_queue
				WHERE status = 'pending' AND scheduled_time <= ? AND attempts < max_attempts
				ORDER BY priority DESC, scheduled_time ASC, id ASC
				LIMIT 1
			  ) AND status = 'pending'
			  RETURNING id`
	var id int64
	err := q.q.QueryRowContext(ctx, query, now, now).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue entry: %w", err)
	}
	return q.GetQueueEntry(ctx, id)
}

// GetQueueEntry returns a queue entry by ID
func (q *Queries) GetQueueEntry(ctx context.Context, id int64) (*models.CallQueueEntry, error) {
	e, err := scanQueueEntry(q.q.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM call_queue WHERE id = ?`, id))
	if err != nil {
		return nil, wrapError(fmt.Errorf("queue entry %d: %w", id, err))
	}
	return e, nil
}

// FindQueueEntryByCallSid returns the entry a provider call belongs to
func (q *Queries) FindQueueEntryByCallSid(ctx context.Context, callSid string) (*models.CallQueueEntry, error) {
	if callSid == "" {
		return nil, fmt.Errorf("%w: call sid is required", ErrValidation)
	}
	row := q.q.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM call_queue WHERE call_sid = ?
		ORDER BY id DESC LIMIT 1`, callSid)
	e, err := scanQueueEntry(row)
	if err != nil {
		return nil, wrapError(fmt.Errorf("queue entry for call %s: %w", callSid, err))
	}
	return e, nil
}

// UpdateQueueEntry applies a partial update
func (q *Queries) UpdateQueueEntry(ctx context.Context, id int64, u QueueUpdate) error {
	var p patch
	if u.Status != nil {
		p.set("status", *u.Status)
	}
	if u.ScheduledTime != nil {
		p.set("scheduled_time", instant(*u.ScheduledTime))
	}
	if u.SessionID != nil {
		p.set("session_id", *u.SessionID)
	}
	if u.CallSid != nil {
		p.set("call_sid", *u.CallSid)
	}
	if u.ErrorMessage != nil {
		p.set("error_message", *u.ErrorMessage)
	}
	if p.empty() {
		return nil
	}

	result, err := q.q.ExecContext(ctx, `UPDATE call_queue SET `+p.clause()+` WHERE id = ?`, append(p.args, id)...)
	if err != nil {
		return wrapError(fmt.Errorf("failed to update queue entry %d: %w", id, err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("queue entry %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListQueueEntries returns entries in claim order: highest priority, then
// earliest scheduled
func (q *Queries) ListQueueEntries(ctx context.Context, f QueueFilter) ([]*models.CallQueueEntry, error) {
	var where []string
	var args []any
	if f.RecruiterID != 0 {
		where = append(where, "recruiter_id = ?")
		args = append(args, f.RecruiterID)
	}
	if f.CandidateID != 0 {
		where = append(where, "candidate_id = ?")
		args = append(args, f.CandidateID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	query := `SELECT ` + queueColumns + ` FROM call_queue`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY priority DESC, scheduled_time ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.CallQueueEntry{}
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountQueueByStatus returns the number of entries per status (0 counts every recruiter)
func (q *Queries) CountQueueByStatus(ctx context.Context, recruiterID int64) (map[models.CallStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM call_queue`
	var args []any
	if recruiterID != 0 {
		query += ` WHERE recruiter_id = ?`
		args = append(args, recruiterID)
	}
	query += ` GROUP BY status`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue entries: %w", err)
	}
	defer rows.Close()

	counts := map[models.CallStatus]int{}
	for rows.Next() {
		var status models.CallStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// NextQueueDue returns when the earliest claimable pending entry becomes
// due, or nil when no pending entry has attempts left
func (q *Queries) NextQueueDue(ctx context.Context) (*time.Time, error) {
	query := `SELECT scheduled_time FROM call_queue
			  WHERE status = 'pending' AND attempts < max_attempts
			  ORDER BY scheduled_time ASC LIMIT 1`
	var due time.Time
	err := q.q.QueryRowContext(ctx, query).Scan(&due)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find next due queue entry: %w", err)
	}
	return &due, nil
}

func scanQueueEntry(row rowScanner) (*models.CallQueueEntry, error) {
	e := &models.CallQueueEntry{}
	var jobID sql.NullInt64
	var lastAttempt sql.NullTime
	if err := row.Scan(&e.ID, &e.CandidateID, &jobID, &e.RecruiterID, &e.Status, &e.Priority, &e.Attempts,
		&e.MaxAttempts, &e.ScheduledTime, &lastAttempt, &e.SessionID, &e.CallSid, &e.ErrorMessage,
		&e.CreatedAt); err != nil {
		return nil, err
	}
	e.JobID = intPtr(jobID)
	e.LastAttempt = timePtr(lastAttempt)
	return e, nil
}
