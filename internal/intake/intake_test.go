package intake

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/scheduling"
	"github.com/khrees2412/callscreen/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)

type fixedScorer int

func (f fixedScorer) SemanticScore(context.Context, *models.Job, string) int { return int(f) }

type fixture struct {
	store   *database.Store
	ledger  *scheduling.Ledger
	service *Service
	job     *models.Job
}

func setupTest(t *testing.T, semantic int) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := database.Open(filepath.Join(t.TempDir(), "test.db"), time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := scheduling.NewLedger(store, logger)
	service := NewService(store, ledger, fixedScorer(semantic), logger)
	service.Now = func() time.Time { return baseTime }

	skill, err := store.EnsureSkill(ctx, "go")
	require.NoError(t, err)
	job := &models.Job{Title: "Backend Engineer", MinExperience: 3, JobType: models.JobRemote, RecruiterID: 1,
		Skills: []models.Skill{*skill}}
	require.NoError(t, store.InsertJob(ctx, job))

	return &fixture{store: store, ledger: ledger, service: service, job: job}
}

func (f *fixture) addSlot(t *testing.T, day int) {
	t.Helper()
	slot := &models.Slot{Date: time.Date(2030, 1, day, 0, 0, 0, 0, time.UTC), StartTime: "10:00", EndTime: "10:30", InterviewerID: 1}
	require.NoError(t, f.ledger.Create(context.Background(), slot))
}

func (f *fixture) strongCandidate() *models.Candidate {
	return &models.Candidate{
		Name:        "Ada",
		Email:       "Ada@Example.com ",
		Phone:       "+15550001",
		About:       "Go developer",
		Experience:  5,
		JobID:       &f.job.ID,
		RecruiterID: 1,
		Ratings:     []models.SkillRating{{SkillID: f.job.Skills[0].ID, Rating: 5}},
	}
}

func TestSubmitShortlistsQualifiedCandidate(t *testing.T) {
	f := setupTest(t, 35)
	f.addSlot(t, 10)

	result, err := f.service.Submit(context.Background(), f.strongCandidate())
	require.NoError(t, err)
	require.NotNil(t, result.Match)
	assert.Equal(t, 95, result.Match.Total)
	assert.True(t, result.SlotsAvailable)
	assert.True(t, result.Shortlisted)

	c, err := f.store.GetCandidate(context.Background(), result.Candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CandidateShortlisted, c.Status)
	assert.Equal(t, 95.0, c.Score)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, SourceForm, c.Source)
	assert.Len(t, c.Ratings, 1)
}

func TestSubmitKeepsPendingWithoutNearSlots(t *testing.T) {
	f := setupTest(t, 35)
	// Outside the two week window
	f.addSlot(t, 25)

	result, err := f.service.Submit(context.Background(), f.strongCandidate())
	require.NoError(t, err)
	assert.True(t, result.Match.Qualifies())
	assert.False(t, result.SlotsAvailable)
	assert.False(t, result.Shortlisted)
	assert.Equal(t, models.CandidatePending, result.Candidate.Status)
}

func TestSubmitLowScoreStaysPending(t *testing.T) {
	f := setupTest(t, 5)
	f.addSlot(t, 10)

	c := f.strongCandidate()
	c.Experience = 1
	c.Ratings[0].Rating = 2

	result, err := f.service.Submit(context.Background(), c)
	require.NoError(t, err)
	// 0 experience + 10 location + 12 ratings + 5 semantic
	assert.Equal(t, 27, result.Match.Total)
	assert.False(t, result.Shortlisted)
	assert.Equal(t, models.CandidatePending, result.Candidate.Status)
}

func TestSubmitWithoutJob(t *testing.T) {
	f := setupTest(t, 35)

	c := f.strongCandidate()
	c.JobID = nil
	c.Source = SourceManual
	result, err := f.service.Submit(context.Background(), c)
	require.NoError(t, err)
	assert.Nil(t, result.Match)
	assert.Equal(t, models.CandidatePending, result.Candidate.Status)
	assert.Equal(t, SourceManual, result.Candidate.Source)
}

func TestSubmitRejectsDuplicateContact(t *testing.T) {
	f := setupTest(t, 35)
	ctx := context.Background()

	_, err := f.service.Submit(ctx, f.strongCandidate())
	require.NoError(t, err)

	sameEmail := f.strongCandidate()
	sameEmail.Phone = "+15559999"
	_, err = f.service.Submit(ctx, sameEmail)
	assert.ErrorIs(t, err, database.ErrConflict)
	assert.Contains(t, err.Error(), "email")

	samePhone := f.strongCandidate()
	samePhone.Email = "other@example.com"
	_, err = f.service.Submit(ctx, samePhone)
	assert.ErrorIs(t, err, database.ErrConflict)
	assert.Contains(t, err.Error(), "phone")

	// Another recruiter may register the same person
	otherRecruiter := f.strongCandidate()
	otherRecruiter.RecruiterID = 2
	otherRecruiter.JobID = nil
	_, err = f.service.Submit(ctx, otherRecruiter)
	assert.NoError(t, err)
}

func TestSubmitValidation(t *testing.T) {
	f := setupTest(t, 35)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(c *models.Candidate)
	}{
		{"missing name", func(c *models.Candidate) { c.Name = " " }},
		{"missing phone", func(c *models.Candidate) { c.Phone = "" }},
		{"bad email", func(c *models.Candidate) { c.Email = "ada" }},
		{"no recruiter", func(c *models.Candidate) { c.RecruiterID = 0 }},
		{"rating out of range", func(c *models.Candidate) { c.Ratings[0].Rating = 7 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := f.strongCandidate()
			tt.mutate(c)
			_, err := f.service.Submit(ctx, c)
			assert.ErrorIs(t, err, database.ErrValidation)
		})
	}

	missingJob := f.strongCandidate()
	id := int64(999)
	missingJob.JobID = &id
	_, err := f.service.Submit(ctx, missingJob)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
