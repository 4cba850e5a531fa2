package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/pkg/models"
)

// Working day tiled by GenerateRange
const (
	DayStartMinute     = 9 * 60
	DayEndMinute       = 17 * 60
	MaxIntervalMinutes = DayEndMinute - DayStartMinute
)

// activeStatuses are the appointment statuses that hold a slot
var activeStatuses = []models.AppointmentStatus{models.AppointmentBooked, models.AppointmentCompleted}

// Ledger owns slot availability. It is the only writer of is_available
// outside the registry, and every write happens inside a transaction that
// also checks the appointments referencing the slot.
type Ledger struct {
	store  *database.Store
	logger *slog.Logger
}

// NewLedger creates a slot ledger over the store
func NewLedger(store *database.Store, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// Create validates and stores a single available slot
func (l *Ledger) Create(ctx context.Context, slot *models.Slot) error {
	if err := validateSlot(slot); err != nil {
		return err
	}
	slot.IsAvailable = true
	if err := l.store.InsertSlot(ctx, slot); err != nil {
		return err
	}
	l.logger.Debug("slot created", "slot_id", slot.ID, "date", slot.Date.Format(models.DateLayout),
		"start", slot.StartTime, "interviewer_id", slot.InterviewerID)
	return nil
}

// Reserve marks a free slot unavailable
func (l *Ledger) Reserve(ctx context.Context, slotID int64) error {
	return l.store.WithTx(ctx, func(q *database.Queries) error {
		return reserve(ctx, q, slotID)
	})
}

// Release makes a slot available again. Slots holding an appointment stay booked.
func (l *Ledger) Release(ctx context.Context, slotID int64) error {
	return l.store.WithTx(ctx, func(q *database.Queries) error {
		return release(ctx, q, slotID, 0)
	})
}

// GenerateRange creates interval-sized slots across 09:00-17:00 on every
// weekday from start to end inclusive. A trailing interval that would run
// past 17:00 is dropped, and slots that already exist are skipped.
func (l *Ledger) GenerateRange(ctx context.Context, start, end time.Time, interviewerID int64, intervalMinutes int) ([]*models.Slot, error) {
	if intervalMinutes < 1 || intervalMinutes > MaxIntervalMinutes {
		return nil, fmt.Errorf("%w: interval must be between 1 and %d minutes", database.ErrValidation, MaxIntervalMinutes)
	}
	if interviewerID <= 0 {
		return nil, fmt.Errorf("%w: interviewer is required", database.ErrValidation)
	}
	start = calendarDay(start)
	end = calendarDay(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date is before start date", database.ErrValidation)
	}

	created := []*models.Slot{}
	skipped := 0
	err := l.store.WithTx(ctx, func(q *database.Queries) error {
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
				continue
			}
			for m := DayStartMinute; m+intervalMinutes <= DayEndMinute; m += intervalMinutes {
				slot := &models.Slot{
					Date:          d,
					StartTime:     clock(m),
					EndTime:       clock(m + intervalMinutes),
					InterviewerID: interviewerID,
					IsAvailable:   true,
				}
				ok, err := q.InsertSlotIfAbsent(ctx, slot)
				if err != nil {
					return err
				}
				if !ok {
					skipped++
					continue
				}
				created = append(created, slot)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate slots: %w", err)
	}

	l.logger.Info("slots generated", "interviewer_id", interviewerID, "created", len(created),
		"skipped", skipped, "interval_minutes", intervalMinutes)
	return created, nil
}

// Query returns slots matching the filter ordered by date and start time
func (l *Ledger) Query(ctx context.Context, f database.SlotFilter) ([]*models.Slot, error) {
	return l.store.ListSlots(ctx, f)
}

// AvailableInWindow returns free slots starting between from and to
func (l *Ledger) AvailableInWindow(ctx context.Context, from, to time.Time, exclude []int64, limit int) ([]*models.Slot, error) {
	return l.store.ListSlots(ctx, database.SlotFilter{
		StartFrom:     from,
		StartTo:       to,
		AvailableOnly: true,
		Exclude:       exclude,
		Limit:         limit,
	})
}

// ForDate returns the free slots of one interviewer on one day (0 for any interviewer)
func (l *Ledger) ForDate(ctx context.Context, date time.Time, interviewerID int64) ([]*models.Slot, error) {
	d := calendarDay(date)
	return l.store.ListSlots(ctx, database.SlotFilter{
		InterviewerID: interviewerID,
		DateFrom:      d,
		DateTo:        d,
		AvailableOnly: true,
	})
}

// reserve flips a slot to unavailable after checking no active appointment holds it
func reserve(ctx context.Context, q *database.Queries, slotID int64) error {
	slot, err := q.GetSlot(ctx, slotID)
	if err != nil {
		return err
	}
	if !slot.IsAvailable {
		return fmt.Errorf("%w: slot %d is already booked", database.ErrConflict, slotID)
	}
	// The flag alone is not trusted
	taken, err := q.SlotHasAppointment(ctx, slotID, 0, activeStatuses...)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: slot %d has an appointment associated with it", database.ErrConflict, slotID)
	}
	return q.SetSlotAvailable(ctx, slotID, false)
}

// release flips a slot to available unless an appointment other than
// excludeID still holds it
func release(ctx context.Context, q *database.Queries, slotID, excludeID int64) error {
	if _, err := q.GetSlot(ctx, slotID); err != nil {
		return err
	}
	completed, err := q.SlotHasAppointment(ctx, slotID, excludeID, models.AppointmentCompleted)
	if err != nil {
		return err
	}
	if completed {
		return fmt.Errorf("%w: slot %d has a completed appointment", database.ErrConflict, slotID)
	}
	booked, err := q.SlotHasAppointment(ctx, slotID, excludeID, models.AppointmentBooked)
	if err != nil {
		return err
	}
	if booked {
		return fmt.Errorf("%w: slot %d has an active appointment", database.ErrConflict, slotID)
	}
	return q.SetSlotAvailable(ctx, slotID, true)
}

func validateSlot(slot *models.Slot) error {
	if slot.Date.IsZero() {
		return fmt.Errorf("%w: slot date is required", database.ErrValidation)
	}
	if !models.ValidClock(slot.StartTime) || !models.ValidClock(slot.EndTime) {
		return fmt.Errorf("%w: times must be HH:MM", database.ErrValidation)
	}
	if slot.EndTime <= slot.StartTime {
		return fmt.Errorf("%w: end time must be after start time", database.ErrValidation)
	}
	if slot.InterviewerID <= 0 {
		return fmt.Errorf("%w: interviewer is required", database.ErrValidation)
	}
	slot.Date = calendarDay(slot.Date)
	return nil
}

// calendarDay truncates t to midnight keeping its location
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func clock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
