package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/events"
	"github.com/khrees2412/callscreen/pkg/models"
)

// BookRequest carries everything needed to book a slot
type BookRequest struct {
	JobID       int64
	CandidateID int64
	SlotID      int64
	RecruiterID int64
	MeetingLink string
	Notes       string
}

// Page is one page of a recruiter's appointments with overall counts
type Page struct {
	Appointments []*models.Appointment      `json:"appointments"`
	Counts       database.AppointmentCounts `json:"counts"`
	Page         int                        `json:"page"`
	Limit        int                        `json:"limit"`
}

// Registry owns the appointment lifecycle and keeps slot availability in
// step with it
type Registry struct {
	store     *database.Store
	publisher events.Publisher
	logger    *slog.Logger

	// Now is the registry clock
	Now func() time.Time
}

// NewRegistry creates an appointment registry
func NewRegistry(store *database.Store, publisher events.Publisher, logger *slog.Logger) *Registry {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Registry{store: store, publisher: publisher, logger: logger, Now: time.Now}
}

// Book reserves the slot and creates the appointment in one transaction
func (r *Registry) Book(ctx context.Context, req BookRequest) (*models.Appointment, error) {
	if req.JobID <= 0 || req.CandidateID <= 0 || req.SlotID <= 0 {
		return nil, fmt.Errorf("%w: job, candidate and slot are required", database.ErrValidation)
	}

	appt := &models.Appointment{
		JobID:       req.JobID,
		CandidateID: req.CandidateID,
		SlotID:      req.SlotID,
		RecruiterID: req.RecruiterID,
		MeetingLink: req.MeetingLink,
		Status:      models.AppointmentBooked,
		Notes:       req.Notes,
		CreatedAt:   r.Now(),
	}

	err := r.store.WithTx(ctx, func(q *database.Queries) error {
		if err := reserve(ctx, q, req.SlotID); err != nil {
			return err
		}
		if err := q.InsertAppointment(ctx, appt); err != nil {
			return err
		}
		slot, err := q.GetSlot(ctx, req.SlotID)
		if err != nil {
			return err
		}
		appt.Slot = slot
		return nil
	})
	if err != nil {
		r.logger.Warn("booking failed", "slot_id", req.SlotID, "candidate_id", req.CandidateID, "error", err)
		return nil, fmt.Errorf("failed to book slot %d: %w", req.SlotID, err)
	}

	r.logger.Info("appointment booked", "appointment_id", appt.ID, "slot_id", appt.SlotID,
		"candidate_id", appt.CandidateID, "job_id", appt.JobID)
	r.publish(ctx, events.AppointmentBooked, appt)
	return appt, nil
}

// Cancel marks the appointment canceled and releases its slot. Canceling an
// already canceled appointment is a no-op.
func (r *Registry) Cancel(ctx context.Context, id int64) (*models.Appointment, error) {
	return r.UpdateStatus(ctx, id, models.AppointmentCanceled)
}

// Delete removes the appointment, releasing its slot unless it was already canceled
func (r *Registry) Delete(ctx context.Context, id int64) error {
	var appt *models.Appointment
	err := r.store.WithTx(ctx, func(q *database.Queries) error {
		var err error
		if appt, err = q.GetAppointment(ctx, id); err != nil {
			return err
		}
		if err := q.DeleteAppointment(ctx, id); err != nil {
			return err
		}
		if appt.Status != models.AppointmentCanceled {
			return release(ctx, q, appt.SlotID, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("appointment deleted", "appointment_id", id, "slot_id", appt.SlotID)
	r.publish(ctx, events.AppointmentDeleted, appt)
	return nil
}

// UpdateStatus moves a booked appointment to completed or canceled.
// Canceling releases the slot. Writing the current status again changes nothing.
func (r *Registry) UpdateStatus(ctx context.Context, id int64, status models.AppointmentStatus) (*models.Appointment, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown appointment status %q", database.ErrValidation, status)
	}

	var appt *models.Appointment
	changed := false
	err := r.store.WithTx(ctx, func(q *database.Queries) error {
		var err error
		if appt, err = q.GetAppointment(ctx, id); err != nil {
			return err
		}
		if appt.Status == status {
			return nil
		}
		if appt.Status != models.AppointmentBooked {
			return fmt.Errorf("%w: appointment %d is %s and cannot become %s",
				database.ErrConflict, id, appt.Status, status)
		}
		if err := q.SetAppointmentStatus(ctx, id, status); err != nil {
			return err
		}
		if status == models.AppointmentCanceled {
			if err := release(ctx, q, appt.SlotID, id); err != nil {
				return err
			}
			appt.Slot.IsAvailable = true
		}
		appt.Status = status
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		r.logger.Info("appointment status updated", "appointment_id", id, "status", status)
		eventType := events.AppointmentCompleted
		if status == models.AppointmentCanceled {
			eventType = events.AppointmentCanceled
		}
		r.publish(ctx, eventType, appt)
	}
	return appt, nil
}

// ReconcileLapsed finds the newest appointment matching the filter and
// completes it if it is still booked and its slot has ended. It reports
// whether a transition happened.
func (r *Registry) ReconcileLapsed(ctx context.Context, f database.AppointmentFilter) (*models.Appointment, bool, error) {
	appt, err := r.store.FindAppointment(ctx, f)
	if err != nil {
		return nil, false, err
	}
	if appt.Status != models.AppointmentBooked || appt.Slot.EndsAt().After(r.Now()) {
		return appt, false, nil
	}

	appt, err = r.UpdateStatus(ctx, appt.ID, models.AppointmentCompleted)
	if err != nil {
		return nil, false, err
	}
	return appt, true, nil
}

// SweepLapsed completes every booked appointment whose slot ended at or before now
func (r *Registry) SweepLapsed(ctx context.Context, now time.Time) (int, error) {
	ids, err := r.store.LapsedAppointmentIDs(ctx, now)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, id := range ids {
		_, err := r.UpdateStatus(ctx, id, models.AppointmentCompleted)
		switch {
		case err == nil:
			completed++
		case errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrConflict):
			// Changed underneath the sweep
			r.logger.Debug("lapsed appointment skipped", "appointment_id", id, "error", err)
		default:
			return completed, err
		}
	}

	if completed > 0 {
		r.logger.Info("lapsed appointments completed", "count", completed)
	}
	return completed, nil
}

// Get returns one appointment with its slot
func (r *Registry) Get(ctx context.Context, id int64) (*models.Appointment, error) {
	return r.store.GetAppointment(ctx, id)
}

// List returns one page of a recruiter's appointments. Pages start at 1.
func (r *Registry) List(ctx context.Context, recruiterID int64, kind database.AppointmentKind, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if kind == "" {
		kind = database.AppointmentsAll
	}
	switch kind {
	case database.AppointmentsAll, database.AppointmentsUpcoming, database.AppointmentsPast:
	default:
		return nil, fmt.Errorf("%w: unknown appointment kind %q", database.ErrValidation, kind)
	}

	now := r.Now()
	appts, err := r.store.ListAppointments(ctx, database.AppointmentFilter{
		RecruiterID: recruiterID,
		Kind:        kind,
		Now:         now,
		Offset:      (page - 1) * limit,
		Limit:       limit,
	})
	if err != nil {
		return nil, err
	}
	counts, err := r.store.CountAppointments(ctx, recruiterID, now)
	if err != nil {
		return nil, err
	}
	return &Page{Appointments: appts, Counts: counts, Page: page, Limit: limit}, nil
}

// ForCandidate returns a candidate's appointments newest first
func (r *Registry) ForCandidate(ctx context.Context, candidateID int64) ([]*models.Appointment, error) {
	return r.store.ListAppointments(ctx, database.AppointmentFilter{CandidateID: candidateID})
}

// ForJob returns a job's appointments newest first
func (r *Registry) ForJob(ctx context.Context, jobID int64) ([]*models.Appointment, error) {
	return r.store.ListAppointments(ctx, database.AppointmentFilter{JobID: jobID})
}

func (r *Registry) publish(ctx context.Context, eventType string, appt *models.Appointment) {
	err := r.publisher.Publish(ctx, events.Event{
		Type:          eventType,
		AppointmentID: appt.ID,
		SlotID:        appt.SlotID,
		CandidateID:   appt.CandidateID,
		JobID:         appt.JobID,
		RecruiterID:   appt.RecruiterID,
		Status:        string(appt.Status),
		OccurredAt:    r.Now(),
	})
	if err != nil {
		r.logger.Warn("failed to publish appointment event", "type", eventType, "appointment_id", appt.ID, "error", err)
	}
}
