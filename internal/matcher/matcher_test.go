package matcher

import (
	"context"
	"testing"

	"github.com/khrees2412/callscreen/pkg/models"
	"github.com/stretchr/testify/assert"
)

type fixedScorer struct {
	score int
	calls int
}

func (f *fixedScorer) SemanticScore(context.Context, *models.Job, string) int {
	f.calls++
	return f.score
}

func testJob() *models.Job {
	return &models.Job{
		Title:         "Backend Engineer",
		MinExperience: 5,
		JobType:       models.JobHybrid,
		Skills:        []models.Skill{{ID: 1, Name: "go"}, {ID: 2, Name: "sql"}},
	}
}

func TestCalculateMatchScore(t *testing.T) {
	ctx := context.Background()
	scorer := &fixedScorer{score: 30}

	c := &models.Candidate{
		About:              "Built payment APIs in Go",
		Experience:         6,
		LocationPreference: models.PreferHybrid,
		Ratings:            []models.SkillRating{{SkillID: 1, Rating: 5}, {SkillID: 2, Rating: 4}},
	}

	b := CalculateMatchScore(ctx, c, testJob(), scorer)
	assert.Equal(t, 20, b.Experience)
	assert.Equal(t, 10, b.Location)
	assert.InDelta(t, 27.0, b.Skills, 0.001)
	assert.Equal(t, 30, b.Semantic)
	assert.Equal(t, 87, b.Total)
	assert.True(t, b.Qualifies())
	assert.Equal(t, 1, scorer.calls)
}

func TestExperienceFactor(t *testing.T) {
	assert.Equal(t, 20, matchExperience(5, 5))
	assert.Equal(t, 10, matchExperience(4, 5))
	assert.Equal(t, 0, matchExperience(3.9, 5))
	assert.Equal(t, 20, matchExperience(0, 0))
}

func TestLocationFactor(t *testing.T) {
	cases := []struct {
		pref    models.LocationPreference
		jobType models.JobType
		want    int
	}{
		{models.PreferRemote, models.JobRemote, 10},
		{models.PreferFlexible, models.JobOnsite, 10},
		{models.PreferOnsite, models.JobHybrid, 5},
		{models.PreferHybrid, models.JobOnsite, 5},
		{models.PreferRemote, models.JobOnsite, 0},
		{models.PreferOnsite, models.JobRemote, 0},
		{"", models.JobRemote, 10},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, matchLocation(tc.pref, tc.jobType), "%s vs %s", tc.pref, tc.jobType)
	}
}

func TestSemanticDefaults(t *testing.T) {
	ctx := context.Background()
	job := testJob()

	// Empty summary never reaches the scorer
	scorer := &fixedScorer{score: 40}
	b := CalculateMatchScore(ctx, &models.Candidate{Experience: 5}, job, scorer)
	assert.Equal(t, DefaultSemanticScore, b.Semantic)
	assert.Zero(t, scorer.calls)

	// Out of range responses fall back
	b = CalculateMatchScore(ctx, &models.Candidate{About: "x"}, job, &fixedScorer{score: 41})
	assert.Equal(t, DefaultSemanticScore, b.Semantic)
	b = CalculateMatchScore(ctx, &models.Candidate{About: "x"}, job, &fixedScorer{score: -1})
	assert.Equal(t, DefaultSemanticScore, b.Semantic)

	// No scorer configured
	b = CalculateMatchScore(ctx, &models.Candidate{About: "x"}, job, nil)
	assert.Equal(t, DefaultSemanticScore, b.Semantic)
}

func TestScoreMonotonicInRatings(t *testing.T) {
	ctx := context.Background()
	job := testJob()
	scorer := &fixedScorer{score: 25}

	prev := -1
	for rating := 1; rating <= 5; rating++ {
		c := &models.Candidate{
			About:      "summary",
			Experience: 1,
			Ratings:    []models.SkillRating{{SkillID: 1, Rating: rating}, {SkillID: 2, Rating: rating}},
		}
		total := CalculateMatchScore(ctx, c, job, scorer).Total
		assert.GreaterOrEqual(t, total, prev)
		prev = total
	}
}

func TestScoreClampedTo100(t *testing.T) {
	c := &models.Candidate{
		About:      "summary",
		Experience: 10,
		Ratings:    []models.SkillRating{{SkillID: 1, Rating: 5}},
	}
	b := CalculateMatchScore(context.Background(), c, testJob(), &fixedScorer{score: 40})
	assert.Equal(t, 100, b.Total)
}

func TestSkillMatchPercentage(t *testing.T) {
	skills := testJob().Skills

	assert.InDelta(t, 90.0, SkillMatchPercentage(skills, map[int64]int{1: 4, 2: 5}), 0.001)
	// Missing rating counts as zero
	assert.InDelta(t, 50.0, SkillMatchPercentage(skills, map[int64]int{1: 5}), 0.001)
	assert.Zero(t, SkillMatchPercentage(nil, map[int64]int{1: 5}))
}

func TestExperienceSufficient(t *testing.T) {
	assert.True(t, ExperienceSufficient(3, 2))
	assert.True(t, ExperienceSufficient(2, 2))
	assert.False(t, ExperienceSufficient(1.5, 2))
}
