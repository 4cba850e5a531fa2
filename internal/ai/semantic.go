package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/khrees2412/callscreen/internal/matcher"
	"github.com/khrees2412/callscreen/pkg/models"
)

const semanticPrompt = `As an AI recruitment assistant, analyze how well this candidate matches the job requirements.

JOB INFORMATION:
Title: %s
Description: %s
Requirements: %s
Key Skills: %s

CANDIDATE INFORMATION:
About: %s

Based on the semantic analysis of the candidate's background and the job requirements,
provide a match score from 0 to 40, where:
0-10: Poor match
11-20: Below average match
21-30: Good match
31-40: Excellent match

Return only the numeric score.`

type semanticKey struct {
	jobID   int64
	summary string
}

// SemanticScorer rates a candidate summary against a job with a language
// model. Successful scores are cached per job and summary.
type SemanticScorer struct {
	completer Completer
	cache     *lru.Cache[semanticKey, int]
	logger    *slog.Logger
}

// NewSemanticScorer creates a scorer holding up to cacheSize results
func NewSemanticScorer(completer Completer, cacheSize int, logger *slog.Logger) (*SemanticScorer, error) {
	if cacheSize < 1 {
		cacheSize = 256
	}
	cache, err := lru.New[semanticKey, int](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create semantic cache: %w", err)
	}
	return &SemanticScorer{completer: completer, cache: cache, logger: logger}, nil
}

// SemanticScore returns 0..40, or the default middle score when the model
// is unavailable or answers with anything but an in-range number
func (s *SemanticScorer) SemanticScore(ctx context.Context, job *models.Job, summary string) int {
	summary = strings.TrimSpace(summary)
	if summary == "" || s.completer == nil {
		return matcher.DefaultSemanticScore
	}

	key := semanticKey{jobID: job.ID, summary: summary}
	if score, ok := s.cache.Get(key); ok {
		return score
	}

	prompt := fmt.Sprintf(semanticPrompt, job.Title, job.Description, job.Requirements,
		strings.Join(job.SkillNames(), ", "), summary)

	response, err := s.completer.Complete(ctx, "You score candidate and job fit.", prompt)
	if err != nil {
		s.logger.Warn("semantic scoring failed", "job_id", job.ID, "error", err)
		return matcher.DefaultSemanticScore
	}

	score, ok := parseScore(response)
	if !ok {
		s.logger.Warn("semantic score out of range", "job_id", job.ID, "response", response)
		return matcher.DefaultSemanticScore
	}

	s.cache.Add(key, score)
	return score
}

// parseScore reads the leading integer of a response
func parseScore(response string) (int, bool) {
	s := strings.TrimSpace(response)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	score, err := strconv.Atoi(s[:end])
	if err != nil || score < 0 || score > matcher.MaxSemanticScore {
		return 0, false
	}
	return score, true
}
