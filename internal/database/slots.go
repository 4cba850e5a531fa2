package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/khrees2412/callscreen/pkg/models"
)

// SlotFilter narrows ListSlots. Zero values leave a dimension unbounded.
type SlotFilter struct {
	InterviewerID int64
	DateFrom      time.Time // calendar day, inclusive
	DateTo        time.Time // calendar day, inclusive
	StartFrom     time.Time // slot start instant, inclusive
	StartTo       time.Time // slot start instant, inclusive
	AvailableOnly bool
	Exclude       []int64
	Limit         int
}

const slotColumns = `id, date, start_time, end_time, interviewer_id, is_available, created_at`

// InsertSlot stores a new slot and sets its ID
func (q *Queries) InsertSlot(ctx context.Context, slot *models.Slot) error {
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now()
	}
	query := `INSERT INTO slots (date, start_time, end_time, interviewer_id, is_available, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`
	result, err := q.q.ExecContext(ctx, query, q.day(slot.Date), slot.StartTime, slot.EndTime,
		slot.InterviewerID, slot.IsAvailable, instant(slot.CreatedAt))
	if err != nil {
		return wrapError(fmt.Errorf("failed to insert slot: %w", err))
	}
	id, _ := result.LastInsertId()
	slot.ID = id
	return nil
}

// InsertSlotIfAbsent stores the slot unless one with the same date,
// interviewer and start time exists. It reports whether a row was written.
func (q *Queries) InsertSlotIfAbsent(ctx context.Context, slot *models.Slot) (bool, error) {
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now()
	}
	query := `INSERT INTO slots (date, start_time, end_time, interviewer_id, is_available, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)
			  ON CONFLICT(date, interviewer_id, start_time) DO NOTHING`
	result, err := q.q.ExecContext(ctx, query, q.day(slot.Date), slot.StartTime, slot.EndTime,
		slot.InterviewerID, slot.IsAvailable, instant(slot.CreatedAt))
	if err != nil {
		return false, wrapError(fmt.Errorf("failed to insert slot: %w", err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return false, nil
	}
	id, _ := result.LastInsertId()
	slot.ID = id
	return true, nil
}

// GetSlot returns a slot by ID
func (q *Queries) GetSlot(ctx context.Context, id int64) (*models.Slot, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id)
	slot, err := q.scanSlot(row)
	if err != nil {
		return nil, wrapError(fmt.Errorf("slot %d: %w", id, err))
	}
	return slot, nil
}

// SetSlotAvailable flips the availability flag of a slot
func (q *Queries) SetSlotAvailable(ctx context.Context, id int64, available bool) error {
	result, err := q.q.ExecContext(ctx, `UPDATE slots SET is_available = ? WHERE id = ?`, available, id)
	if err != nil {
		return fmt.Errorf("failed to update slot %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("slot %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListSlots returns slots matching the filter ordered by date and start time
func (q *Queries) ListSlots(ctx context.Context, f SlotFilter) ([]*models.Slot, error) {
	var where []string
	var args []any

	if f.InterviewerID != 0 {
		where = append(where, "interviewer_id = ?")
		args = append(args, f.InterviewerID)
	}
	if !f.DateFrom.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, q.day(f.DateFrom))
	}
	if !f.DateTo.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, q.day(f.DateTo))
	}
	if !f.StartFrom.IsZero() {
		d, c := q.wallClock(f.StartFrom)
		where = append(where, "(date > ? OR (date = ? AND start_time >= ?))")
		args = append(args, d, d, c)
	}
	if !f.StartTo.IsZero() {
		d, c := q.wallClock(f.StartTo)
		where = append(where, "(date < ? OR (date = ? AND start_time <= ?))")
		args = append(args, d, d, c)
	}
	if f.AvailableOnly {
		where = append(where, "is_available = 1")
	}
	if len(f.Exclude) > 0 {
		where = append(where, "id NOT IN ("+placeholders(len(f.Exclude))+")")
		for _, id := range f.Exclude {
			args = append(args, id)
		}
	}

	query := `SELECT ` + slotColumns + ` FROM slots`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, start_time ASC, interviewer_id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	slots := []*models.Slot{}
	for rows.Next() {
		slot, err := q.scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (q *Queries) scanSlot(row rowScanner) (*models.Slot, error) {
	slot := &models.Slot{}
	var date string
	if err := row.Scan(&slot.ID, &date, &slot.StartTime, &slot.EndTime,
		&slot.InterviewerID, &slot.IsAvailable, &slot.CreatedAt); err != nil {
		return nil, err
	}
	d, err := time.ParseInLocation(models.DateLayout, date, q.loc)
	if err != nil {
		return nil, fmt.Errorf("slot %d has malformed date %q: %w", slot.ID, date, err)
	}
	slot.Date = d
	return slot, nil
}

// day formats a calendar day as stored; the value's own date fields are used
func (q *Queries) day(t time.Time) string {
	return t.Format(models.DateLayout)
}

// wallClock splits an instant into the stored date and HH:MM forms
func (q *Queries) wallClock(t time.Time) (string, string) {
	local := t.In(q.loc)
	return local.Format(models.DateLayout), local.Format(models.ClockLayout)
}
