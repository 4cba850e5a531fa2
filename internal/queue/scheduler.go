package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/pkg/models"
)

// Options configures retry behaviour
type Options struct {
	MaxAttempts  int           // attempts before an entry fails for good
	RetryBackoff time.Duration // delay before the first retry, doubled per attempt
}

// EnqueueRequest describes a new call to make
type EnqueueRequest struct {
	CandidateID   int64
	RecruiterID   int64
	JobID         *int64
	Priority      int
	ScheduledTime time.Time // zero means now
	MaxAttempts   int       // zero uses the scheduler default
}

// Scheduler is a priority and time ordered queue of outbound calls.
// Entries are never removed; completed and failed entries stay as history.
type Scheduler struct {
	store  *database.Store
	opts   Options
	logger *slog.Logger

	// Now is the scheduler clock
	Now func() time.Time
}

// NewScheduler creates a call queue scheduler
func NewScheduler(store *database.Store, opts Options, logger *slog.Logger) *Scheduler {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = 0
	}
	return &Scheduler{store: store, opts: opts, logger: logger, Now: time.Now}
}

// Enqueue inserts a pending entry. Callers check Exists first to avoid
// duplicate open entries.
func (s *Scheduler) Enqueue(ctx context.Context, req EnqueueRequest) (*models.CallQueueEntry, error) {
	if req.CandidateID <= 0 {
		return nil, fmt.Errorf("%w: candidate is required", database.ErrValidation)
	}
	now := s.Now()
	e := &models.CallQueueEntry{
		CandidateID:   req.CandidateID,
		JobID:         req.JobID,
		RecruiterID:   req.RecruiterID,
		Status:        models.CallPending,
		Priority:      req.Priority,
		MaxAttempts:   req.MaxAttempts,
		ScheduledTime: req.ScheduledTime,
		CreatedAt:     now,
	}
	if e.MaxAttempts < 1 {
		e.MaxAttempts = s.opts.MaxAttempts
	}
	if e.ScheduledTime.IsZero() {
		e.ScheduledTime = now
	}

	if err := s.store.InsertQueueEntry(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info("call enqueued", "entry_id", e.ID, "candidate_id", e.CandidateID, "priority", e.Priority)
	return e, nil
}

// Exists reports whether the candidate already has a pending or in-progress entry
func (s *Scheduler) Exists(ctx context.Context, candidateID, recruiterID int64, jobID *int64) (bool, error) {
	return s.store.OpenQueueEntryExists(ctx, candidateID, recruiterID, jobID)
}

// Claim takes the next due entry across all recruiters and marks it in
// progress. It returns nil when there is no work, including when a
// concurrent claimer won the race.
func (s *Scheduler) Claim(ctx context.Context) (*models.CallQueueEntry, error) {
	e, err := s.store.ClaimQueueEntry(ctx, s.Now())
	if err != nil {
		return nil, err
	}
	if e != nil {
		s.logger.Debug("call claimed", "entry_id", e.ID, "attempt", e.Attempts, "max_attempts", e.MaxAttempts)
	}
	return e, nil
}

// MarkCompleted closes an entry after a finished call
func (s *Scheduler) MarkCompleted(ctx context.Context, id int64, sessionID string) error {
	status := models.CallCompleted
	update := database.QueueUpdate{Status: &status}
	if sessionID != "" {
		update.SessionID = &sessionID
	}
	if err := s.store.UpdateQueueEntry(ctx, id, update); err != nil {
		return err
	}
	s.logger.Info("call completed", "entry_id", id)
	return nil
}

// MarkFailed records a failed attempt. The entry goes back to pending,
// delayed by an exponential backoff, while attempts remain; otherwise it
// fails for good.
func (s *Scheduler) MarkFailed(ctx context.Context, id int64, reason string) (*models.CallQueueEntry, error) {
	var entry *models.CallQueueEntry
	err := s.store.WithTx(ctx, func(q *database.Queries) error {
		e, err := q.GetQueueEntry(ctx, id)
		if err != nil {
			return err
		}

		update := database.QueueUpdate{ErrorMessage: &reason}
		if e.Attempts < e.MaxAttempts {
			status := models.CallPending
			next := s.Now().Add(s.backoff(e.Attempts))
			update.Status = &status
			update.ScheduledTime = &next
			e.Status = status
			e.ScheduledTime = next
		} else {
			status := models.CallFailed
			update.Status = &status
			e.Status = status
		}
		e.ErrorMessage = reason
		entry = e
		return q.UpdateQueueEntry(ctx, id, update)
	})
	if err != nil {
		return nil, err
	}

	if entry.Status == models.CallFailed {
		s.logger.Warn("call failed permanently", "entry_id", id, "attempts", entry.Attempts, "reason", reason)
	} else {
		s.logger.Info("call scheduled for retry", "entry_id", id, "attempts", entry.Attempts,
			"retry_at", entry.ScheduledTime, "reason", reason)
	}
	return entry, nil
}

// AttachCall records the provider call and the session on an entry
func (s *Scheduler) AttachCall(ctx context.Context, id int64, callSid, sessionID string) error {
	return s.store.UpdateQueueEntry(ctx, id, database.QueueUpdate{CallSid: &callSid, SessionID: &sessionID})
}

// FindByCallSid returns the entry a provider call belongs to
func (s *Scheduler) FindByCallSid(ctx context.Context, callSid string) (*models.CallQueueEntry, error) {
	return s.store.FindQueueEntryByCallSid(ctx, callSid)
}

// NextDue returns when the next pending entry can be claimed, or nil when
// nothing is left to retry
func (s *Scheduler) NextDue(ctx context.Context) (*time.Time, error) {
	return s.store.NextQueueDue(ctx)
}

// Get returns one entry
func (s *Scheduler) Get(ctx context.Context, id int64) (*models.CallQueueEntry, error) {
	return s.store.GetQueueEntry(ctx, id)
}

// Pending returns a recruiter's pending entries in claim order (0 for all recruiters)
func (s *Scheduler) Pending(ctx context.Context, recruiterID int64) ([]*models.CallQueueEntry, error) {
	return s.store.ListQueueEntries(ctx, database.QueueFilter{RecruiterID: recruiterID, Status: models.CallPending})
}

// ForCandidate returns every entry of a candidate
func (s *Scheduler) ForCandidate(ctx context.Context, candidateID int64) ([]*models.CallQueueEntry, error) {
	return s.store.ListQueueEntries(ctx, database.QueueFilter{CandidateID: candidateID})
}

// Counts returns the number of entries per status
func (s *Scheduler) Counts(ctx context.Context, recruiterID int64) (map[models.CallStatus]int, error) {
	return s.store.CountQueueByStatus(ctx, recruiterID)
}

// QueuePendingCandidates enqueues every pending candidate of the recruiter
// that has no appointment and no open entry. It returns how many were queued.
func (s *Scheduler) QueuePendingCandidates(ctx context.Context, recruiterID int64) (int, error) {
	candidates, err := s.store.CandidatesToCall(ctx, recruiterID)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, c := range candidates {
		exists, err := s.Exists(ctx, c.ID, recruiterID, c.JobID)
		if err != nil {
			return queued, err
		}
		if exists {
			continue
		}
		if _, err := s.Enqueue(ctx, EnqueueRequest{CandidateID: c.ID, RecruiterID: recruiterID, JobID: c.JobID}); err != nil {
			return queued, err
		}
		queued++
	}

	s.logger.Info("pending candidates queued", "recruiter_id", recruiterID, "count", queued)
	return queued, nil
}

// backoff returns the retry delay after the given number of attempts
func (s *Scheduler) backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return s.opts.RetryBackoff * time.Duration(1<<(attempts-1))
}
