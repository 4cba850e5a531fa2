package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/matcher"
	"github.com/khrees2412/callscreen/internal/scheduling"
	"github.com/khrees2412/callscreen/pkg/models"
)

// ShortlistWindow is how far ahead a free slot must exist to shortlist on intake
const ShortlistWindow = 14 * 24 * time.Hour

// Candidate sources
const (
	SourceForm   = "form"
	SourceManual = "manual"
)

// Result is the outcome of registering a candidate
type Result struct {
	Candidate      *models.Candidate  `json:"candidate"`
	Match          *matcher.Breakdown `json:"match,omitempty"`
	Shortlisted    bool               `json:"shortlisted"`
	SlotsAvailable bool               `json:"slots_available"`
}

// Service registers candidates and pre-scores them against their job
type Service struct {
	store  *database.Store
	ledger *scheduling.Ledger
	scorer matcher.SemanticScorer
	logger *slog.Logger

	// Now is the intake clock
	Now func() time.Time
}

// NewService creates an intake service. scorer may be nil, in which case
// the default semantic score is used.
func NewService(store *database.Store, ledger *scheduling.Ledger, scorer matcher.SemanticScorer, logger *slog.Logger) *Service {
	return &Service{store: store, ledger: ledger, scorer: scorer, logger: logger, Now: time.Now}
}

// Submit validates and stores a candidate. A duplicate email or phone for
// the same recruiter is a conflict. When a job is assigned the candidate is
// scored and shortlisted if qualified and an interview slot is free soon.
func (s *Service) Submit(ctx context.Context, c *models.Candidate) (*Result, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	if err := validate(c); err != nil {
		return nil, err
	}
	if c.Source == "" {
		c.Source = SourceForm
	}

	existing, err := s.store.FindCandidateByContact(ctx, c.RecruiterID, c.Email, c.Phone)
	switch {
	case err == nil:
		field := "phone"
		if existing.Email == c.Email {
			field = "email"
		}
		return nil, fmt.Errorf("%w: a candidate with this %s already exists", database.ErrConflict, field)
	case !errors.Is(err, database.ErrNotFound):
		return nil, err
	}

	result := &Result{Candidate: c}
	c.Status = models.CandidatePending

	if c.JobID != nil {
		job, err := s.store.GetJob(ctx, *c.JobID)
		if err != nil {
			return nil, err
		}
		match := matcher.CalculateMatchScore(ctx, c, job, s.scorer)
		result.Match = &match
		c.Score = float64(match.Total)

		if match.Qualifies() {
			now := s.Now()
			slots, err := s.ledger.AvailableInWindow(ctx, now, now.Add(ShortlistWindow), nil, 1)
			if err != nil {
				return nil, err
			}
			result.SlotsAvailable = len(slots) > 0
		}
		if match.Qualifies() && result.SlotsAvailable {
			c.Status = models.CandidateShortlisted
			result.Shortlisted = true
		}
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.Now()
	}
	err = s.store.WithTx(ctx, func(q *database.Queries) error {
		return q.InsertCandidate(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("candidate registered", "candidate_id", c.ID, "recruiter_id", c.RecruiterID,
		"source", c.Source, "score", c.Score, "status", c.Status)
	return result, nil
}

func validate(c *models.Candidate) error {
	var missing []string
	if c.Name == "" {
		missing = append(missing, "name")
	}
	if c.Email == "" {
		missing = append(missing, "email")
	}
	if c.Phone == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", database.ErrValidation, strings.Join(missing, ", "))
	}
	if !strings.Contains(c.Email, "@") {
		return fmt.Errorf("%w: invalid email %q", database.ErrValidation, c.Email)
	}
	if c.RecruiterID <= 0 {
		return fmt.Errorf("%w: recruiter is required", database.ErrValidation)
	}
	if c.Experience < 0 {
		return fmt.Errorf("%w: experience cannot be negative", database.ErrValidation)
	}
	for _, r := range c.Ratings {
		if r.Rating < 1 || r.Rating > 5 {
			return fmt.Errorf("%w: rating for skill %d must be 1-5", database.ErrValidation, r.SkillID)
		}
	}
	return nil
}
