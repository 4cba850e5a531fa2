package matcher

import (
	"context"
	"math"

	"github.com/khrees2412/callscreen/pkg/models"
)

const (
	// QualifyingScore is the lowest score that qualifies a candidate for an interview
	QualifyingScore = 70

	// MaxSemanticScore bounds the text similarity factor
	MaxSemanticScore = 40

	// DefaultSemanticScore is used when the summary is empty or scoring fails
	DefaultSemanticScore = 20
)

// SemanticScorer rates how well a candidate summary fits a job, 0..MaxSemanticScore
type SemanticScorer interface {
	SemanticScore(ctx context.Context, job *models.Job, summary string) int
}

// Breakdown is a match score with the contribution of each factor
type Breakdown struct {
	Experience int     `json:"experience"`
	Location   int     `json:"location"`
	Skills     float64 `json:"skills"`
	Semantic   int     `json:"semantic"`
	Total      int     `json:"total"`
}

// Qualifies reports whether the total reaches the qualifying score
func (b Breakdown) Qualifies() bool {
	return b.Total >= QualifyingScore
}

// CalculateMatchScore scores a candidate against a job on 0..100.
// Ratings are taken from the candidate record.
func CalculateMatchScore(ctx context.Context, candidate *models.Candidate, job *models.Job, scorer SemanticScorer) Breakdown {
	b := Breakdown{}

	// Factor 1: Experience (up to 20)
	b.Experience = matchExperience(candidate.Experience, job.MinExperience)

	// Factor 2: Location preference (up to 10)
	b.Location = matchLocation(candidate.LocationPreference, job.JobType)

	// Factor 3: Self-rated skills (up to 30)
	b.Skills = matchRatings(candidate.Ratings)

	// Factor 4: Summary against the job text (up to 40)
	b.Semantic = DefaultSemanticScore
	if scorer != nil && candidate.About != "" {
		b.Semantic = clampSemantic(scorer.SemanticScore(ctx, job, candidate.About))
	}

	total := int(math.Round(float64(b.Experience+b.Location+b.Semantic) + b.Skills))
	b.Total = min(total, 100)
	return b
}

// ExperienceSufficient reports whether the candidate meets the job minimum
func ExperienceSufficient(experience, minExperience float64) bool {
	return experience >= minExperience
}

// SkillMatchPercentage averages the candidate's ratings over the job's
// required skills on 0..100. A required skill without a rating counts as 0.
func SkillMatchPercentage(jobSkills []models.Skill, ratings map[int64]int) float64 {
	if len(jobSkills) == 0 {
		return 0
	}
	total := 0
	for _, s := range jobSkills {
		total += ratings[s.ID]
	}
	avg := float64(total) / float64(len(jobSkills))
	return avg / 5 * 100
}

// matchExperience gives full credit at the minimum and half credit within 80% of it
func matchExperience(experience, minExperience float64) int {
	if experience >= minExperience {
		return 20
	}
	if experience >= minExperience*0.8 {
		return 10
	}
	return 0
}

// matchLocation compares the candidate preference with the job's work setup
func matchLocation(pref models.LocationPreference, jobType models.JobType) int {
	if pref == "" {
		pref = models.PreferFlexible
	}
	if jobType == "" {
		jobType = models.JobOnsite
	}

	if pref == models.PreferFlexible || string(pref) == string(jobType) {
		return 10
	}

	// Onsite and hybrid candidates can usually meet each other halfway
	if (jobType == models.JobHybrid && pref == models.PreferOnsite) ||
		(jobType == models.JobOnsite && pref == models.PreferHybrid) {
		return 5
	}
	return 0
}

// matchRatings scales the average 1-5 self rating to 0..30
func matchRatings(ratings []models.SkillRating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	total := 0
	for _, r := range ratings {
		total += r.Rating
	}
	avg := float64(total) / float64(len(ratings))
	return avg / 5 * 30
}

func clampSemantic(score int) int {
	if score < 0 || score > MaxSemanticScore {
		return DefaultSemanticScore
	}
	return score
}
