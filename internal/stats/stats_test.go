package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	ctx := context.Background()
	store, err := database.Open(filepath.Join(t.TempDir(), "test.db"), time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	statuses := []models.CandidateStatus{
		models.CandidateShortlisted, models.CandidateShortlisted, models.CandidateRejected, models.CandidatePending,
	}
	for i, status := range statuses {
		c := &models.Candidate{
			Name: "C", Email: string(rune('a'+i)) + "@example.com", Phone: string(rune('a' + i)),
			Status: status, RecruiterID: 1,
		}
		require.NoError(t, store.InsertCandidate(ctx, c))
	}
	other := &models.Candidate{Name: "O", Email: "o@example.com", Phone: "o", RecruiterID: 2}
	require.NoError(t, store.InsertCandidate(ctx, other))

	require.NoError(t, store.InsertJob(ctx, &models.Job{Title: "Dev", RecruiterID: 1}))

	now := time.Date(2030, 1, 7, 12, 0, 0, 0, time.UTC)
	for _, start := range []string{"11:00", "13:00"} {
		end := start[:2] + ":30"
		slot := &models.Slot{Date: time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC), StartTime: start, EndTime: end,
			InterviewerID: 1, IsAvailable: true}
		require.NoError(t, store.InsertSlot(ctx, slot))
	}

	d, err := Collect(ctx, store, 1, now)
	require.NoError(t, err)
	assert.Equal(t, 4, d.TotalCandidates)
	assert.Equal(t, 2, d.Candidates[models.CandidateShortlisted])
	assert.Equal(t, 1, d.Jobs)
	assert.Equal(t, 1, d.OpenSlots)
	assert.InDelta(t, 66.67, d.ShortlistRate, 0.01)
	assert.InDelta(t, 33.33, d.RejectionRate, 0.01)
	assert.Zero(t, d.Appointments.Total)
	assert.Empty(t, d.Queue)
}
