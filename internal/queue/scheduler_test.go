package queue

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)

func setupTest(t *testing.T) (*Scheduler, *database.Store) {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "test.db"), time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewScheduler(store, Options{MaxAttempts: 3, RetryBackoff: 10 * time.Minute}, logger)
	s.Now = func() time.Time { return baseTime }
	return s, store
}

func seedCandidate(t *testing.T, store *database.Store, email string) *models.Candidate {
	t.Helper()
	c := &models.Candidate{Name: "Candidate", Email: email, Phone: "+" + email, RecruiterID: 1}
	require.NoError(t, store.InsertCandidate(context.Background(), c))
	return c
}

func TestEnqueueDefaults(t *testing.T) {
	s, store := setupTest(t)
	ctx := context.Background()
	c := seedCandidate(t, store, "a@example.com")

	e, err := s.Enqueue(ctx, EnqueueRequest{CandidateID: c.ID, RecruiterID: 1})
	require.NoError(t, err)
	assert.Equal(t, models.CallPending, e.Status)
	assert.Equal(t, 3, e.MaxAttempts)
	assert.Zero(t, e.Attempts)
	assert.True(t, e.ScheduledTime.Equal(baseTime))

	exists, err := s.Exists(ctx, c.ID, 1, nil)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = s.Enqueue(ctx, EnqueueRequest{RecruiterID: 1})
	assert.ErrorIs(t, err, database.ErrValidation)
}

func TestClaimOrdersByPriorityThenTime(t *testing.T) {
	s, store := setupTest(t)
	ctx := context.Background()
	c := seedCandidate(t, store, "a@example.com")

	early, err := s.Enqueue(ctx, EnqueueRequest{CandidateID: c.ID, RecruiterID: 1, ScheduledTime: baseTime.Add(-time.Hour)})
	require.NoError(t, err)
	urgent, err := s.Enqueue(ctx, EnqueueRequest{CandidateID: c.ID, RecruiterID: 2, Priority: 10, ScheduledTime: baseTime.Add(-time.Minute)})
	require.NoError(t, err)
	_, err = s.Enqueue(ctx, EnqueueRequest{CandidateID: c.ID, RecruiterID: 3, Priority: 99, ScheduledTime: baseTime.Add(time.Hour)})
	require.NoError(t, err)

	first, err := s.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, urgent.ID, first.ID)
	assert.Equal(t, models.CallInProgress, first.Status)
	assert.Equal(t, 1, first.Attempts)

	second, err := s.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, early.ID, second.ID)

	// The remaining entry is not due yet
	none, err := s.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestClaimIsExclusive(t *testing.T) {
	s, store := setupTest(t)
	ctx := context.Background()
	c := seedCandidate(t, store, "a@example.com")

	_, err := s.Enqueue(ctx, EnqueueRequest{CandidateID: c.ID, RecruiterID: 1})
	require.NoError(t, err)

	const claimers = 8
	var wg sync.WaitGroup
	results := make(chan *models.CallQueueEntry, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := s.Claim(ctx)
			assert.NoError(t, err)
			results <- e
		}()
	}
	wg.Wait()
	close(results)

	claimed := 0
	for e := range results {
		if e != nil {
			claimed++
		}
	}
	assert.Equal(t, 1, claimed)
}

func TestMarkFailedRetriesWithBackoff(t *testing.T) {
	s, store := setupTest(t)
	ctx := context.Background()
	c := seedCandidate(t, store, "a@example.com")

	e, err := s.Enqueue(ctx, EnqueueRequest{CandidateID: c.ID, RecruiterID: 1})
	require.NoError(t, err)

	// First attempt fails, retried after the base backoff
	claimed, err := s.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	failed, err := s.MarkFailed(ctx, e.ID, "busy")
	require.NoError(t, err)
	assert.Equal(t, models.CallPending, failed.Status)
	assert.True(t, failed.ScheduledTime.Equal(baseTime.Add(10*time.Minute)))

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "busy", got.ErrorMessage)

	// Not due until the backoff elapses
	none, err := s.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
	due, err := s.NextDue(ctx)
	require.NoError(t, err)
	require.NotNil(t, due)
	assert.True(t, due.Equal(baseTime.Add(10*time.Minute)))

	// Second attempt doubles the delay
	s.Now = func() time.Time { return baseTime.Add(10 * time.Minute) }
	claimed, err = s.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, 2, claimed.Attempts)
	failed, err = s.MarkFailed(ctx, e.ID, "no-answer")
	require.NoError(t, err)
	assert.True(t, failed.ScheduledTime.Equal(baseTime.Add(30*time.Minute)))

	// Third attempt exhausts the budget
	s.Now = func() time.Time { return baseTime.Add(30 * time.Minute) }
	claimed, err = s.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, 3, claimed.Attempts)
	failed, err = s.MarkFailed(ctx, e.ID, "failed")
	require.NoError(t, err)
	assert.Equal(t, models.CallFailed, failed.Status)

	s.Now = func() time.Time { return baseTime.Add(24 * time.Hour) }
	none, err = s.Claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
	due, err = s.NextDue(ctx)
	require.NoError(t, err)
	assert.Nil(t, due)

	_, err = s.MarkFailed(ctx, 999, "x")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestMarkCompletedAndAttachCall(t *testing.T) {
	s, store := setupTest(t)
	ctx := context.Background()
	c := seedCandidate(t, store, "a@example.com")

	e, err := s.Enqueue(ctx, EnqueueRequest{CandidateID: c.ID, RecruiterID: 1})
	require.NoError(t, err)
	require.NoError(t, s.AttachCall(ctx, e.ID, "CA1", "session-1"))

	found, err := s.FindByCallSid(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, e.ID, found.ID)

	require.NoError(t, s.MarkCompleted(ctx, e.ID, ""))
	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallCompleted, got.Status)
	assert.Equal(t, "session-1", got.SessionID)

	history, err := s.ForCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	counts, err := s.Counts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.CallCompleted])

	assert.ErrorIs(t, s.MarkCompleted(ctx, 999, ""), database.ErrNotFound)
}

func TestQueuePendingCandidates(t *testing.T) {
	s, store := setupTest(t)
	ctx := context.Background()

	a := seedCandidate(t, store, "a@example.com")
	b := seedCandidate(t, store, "b@example.com")
	_, err := s.Enqueue(ctx, EnqueueRequest{CandidateID: b.ID, RecruiterID: 1})
	require.NoError(t, err)

	n, err := s.QueuePendingCandidates(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := s.Pending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	ids := []int64{pending[0].CandidateID, pending[1].CandidateID}
	assert.ElementsMatch(t, []int64{a.ID, b.ID}, ids)

	// Running again finds nobody new
	n, err = s.QueuePendingCandidates(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}
