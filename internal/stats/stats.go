package stats

import (
	"context"
	"time"

	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/pkg/models"
)

// Dashboard summarises a recruiter's pipeline
type Dashboard struct {
	Candidates      map[models.CandidateStatus]int `json:"candidates"`
	TotalCandidates int                            `json:"total_candidates"`
	Appointments    database.AppointmentCounts     `json:"appointments"`
	Queue           map[models.CallStatus]int      `json:"queue"`
	Jobs            int                            `json:"jobs"`
	OpenSlots       int                            `json:"open_slots"` // available and not yet started
	ShortlistRate   float64                        `json:"shortlist_rate"`
	RejectionRate   float64                        `json:"rejection_rate"`
}

// Collect gathers the dashboard for a recruiter as of now
func Collect(ctx context.Context, store *database.Store, recruiterID int64, now time.Time) (*Dashboard, error) {
	d := &Dashboard{}
	var err error

	if d.Candidates, err = store.CountCandidatesByStatus(ctx, recruiterID); err != nil {
		return nil, err
	}
	if d.Appointments, err = store.CountAppointments(ctx, recruiterID, now); err != nil {
		return nil, err
	}
	if d.Queue, err = store.CountQueueByStatus(ctx, recruiterID); err != nil {
		return nil, err
	}

	jobs, err := store.ListJobs(ctx, recruiterID)
	if err != nil {
		return nil, err
	}
	d.Jobs = len(jobs)

	slots, err := store.ListSlots(ctx, database.SlotFilter{StartFrom: now, AvailableOnly: true})
	if err != nil {
		return nil, err
	}
	d.OpenSlots = len(slots)

	for _, n := range d.Candidates {
		d.TotalCandidates += n
	}
	// Rates are over screened candidates only
	screened := d.Candidates[models.CandidateShortlisted] + d.Candidates[models.CandidateRejected] +
		d.Candidates[models.CandidateHired]
	if screened > 0 {
		d.ShortlistRate = float64(d.Candidates[models.CandidateShortlisted]+d.Candidates[models.CandidateHired]) /
			float64(screened) * 100
		d.RejectionRate = float64(d.Candidates[models.CandidateRejected]) / float64(screened) * 100
	}
	return d, nil
}
