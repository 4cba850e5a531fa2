package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/khrees2412/callscreen/pkg/models"
)

// AppointmentKind selects appointments relative to the current time
type AppointmentKind string

const (
	AppointmentsAll      AppointmentKind = "all"
	AppointmentsUpcoming AppointmentKind = "upcoming" // slot has not ended
	AppointmentsPast     AppointmentKind = "past"     // slot has ended
)

// AppointmentFilter narrows appointment reads. Zero values match everything.
type AppointmentFilter struct {
	RecruiterID int64
	CandidateID int64
	JobID       int64
	Status      models.AppointmentStatus
	Kind        AppointmentKind
	Now         time.Time // reference instant for Kind
	Offset      int
	Limit       int
}

// AppointmentCounts summarises a recruiter's appointments
type AppointmentCounts struct {
	Total    int `json:"total"`
	Upcoming int `json:"upcoming"`
	Past     int `json:"past"`
}

const appointmentSelect = `SELECT a.id, a.job_id, a.candidate_id, a.slot_id, a.recruiter_id, a.meeting_link,
	a.status, a.notes, a.created_at,
	s.id, s.date, s.start_time, s.end_time, s.interviewer_id, s.is_available, s.created_at
	FROM appointments a JOIN slots s ON s.id = a.slot_id`

// InsertAppointment stores a new appointment and sets its ID
func (q *Queries) InsertAppointment(ctx context.Context, appt *models.Appointment) error {
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now()
	}
	if appt.Status == "" {
		appt.Status = models.AppointmentBooked
	}
	query := `INSERT INTO appointments (job_id, candidate_id, slot_id, recruiter_id, meeting_link, status, notes, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := q.q.ExecContext(ctx, query, appt.JobID, appt.CandidateID, appt.SlotID, appt.RecruiterID,
		appt.MeetingLink, appt.Status, appt.Notes, instant(appt.CreatedAt))
	if err != nil {
		return wrapError(fmt.Errorf("failed to insert appointment: %w", err))
	}
	id, _ := result.LastInsertId()
	appt.ID = id
	return nil
}

// GetAppointment returns an appointment with its slot
func (q *Queries) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	row := q.q.QueryRowContext(ctx, appointmentSelect+` WHERE a.id = ?`, id)
	appt, err := q.scanAppointment(row)
	if err != nil {
		return nil, wrapError(fmt.Errorf("appointment %d: %w", id, err))
	}
	return appt, nil
}

// SetAppointmentStatus writes a new status
func (q *Queries) SetAppointmentStatus(ctx context.Context, id int64, status models.AppointmentStatus) error {
	result, err := q.q.ExecContext(ctx, `UPDATE appointments SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return wrapError(fmt.Errorf("failed to update appointment %d: %w", id, err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("appointment %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteAppointment removes an appointment row
func (q *Queries) DeleteAppointment(ctx context.Context, id int64) error {
	result, err := q.q.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("appointment %d: %w", id, ErrNotFound)
	}
	return nil
}

// SlotHasAppointment reports whether an appointment other than excludeID
// with one of the given statuses references the slot. Pass 0 to exclude nothing.
func (q *Queries) SlotHasAppointment(ctx context.Context, slotID, excludeID int64, statuses ...models.AppointmentStatus) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM appointments WHERE slot_id = ? AND id != ?`
	args := []any{slotID, excludeID}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += `)`

	var exists bool
	if err := q.q.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check appointments for slot %d: %w", slotID, err)
	}
	return exists, nil
}

// FindAppointment returns the most recently created appointment matching the filter
func (q *Queries) FindAppointment(ctx context.Context, f AppointmentFilter) (*models.Appointment, error) {
	f.Limit = 1
	f.Offset = 0
	appts, err := q.ListAppointments(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return nil, fmt.Errorf("appointment: %w", ErrNotFound)
	}
	return appts[0], nil
}

// ListAppointments returns appointments matching the filter. Upcoming reads
// order by slot start ascending, everything else by creation descending.
func (q *Queries) ListAppointments(ctx context.Context, f AppointmentFilter) ([]*models.Appointment, error) {
	where, args := q.appointmentWhere(f)

	query := appointmentSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Kind == AppointmentsUpcoming {
		query += " ORDER BY s.date ASC, s.start_time ASC"
	} else {
		query += " ORDER BY a.created_at DESC, a.id DESC"
	}
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	appts := []*models.Appointment{}
	for rows.Next() {
		appt, err := q.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

// CountAppointments returns total, upcoming and past counts for a recruiter
// (0 counts every recruiter)
func (q *Queries) CountAppointments(ctx context.Context, recruiterID int64, now time.Time) (AppointmentCounts, error) {
	var counts AppointmentCounts
	d, c := q.wallClock(now)

	query := `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN s.date > ? OR (s.date = ? AND s.end_time > ?) THEN 1 ELSE 0 END), 0)
		FROM appointments a JOIN slots s ON s.id = a.slot_id`
	args := []any{d, d, c}
	if recruiterID != 0 {
		query += ` WHERE a.recruiter_id = ?`
		args = append(args, recruiterID)
	}

	if err := q.q.QueryRowContext(ctx, query, args...).Scan(&counts.Total, &counts.Upcoming); err != nil {
		return counts, fmt.Errorf("failed to count appointments: %w", err)
	}
	counts.Past = counts.Total - counts.Upcoming
	return counts, nil
}

// LapsedAppointmentIDs returns booked appointments whose slot ended at or before now
func (q *Queries) LapsedAppointmentIDs(ctx context.Context, now time.Time) ([]int64, error) {
	d, c := q.wallClock(now)
	query := `SELECT a.id FROM appointments a JOIN slots s ON s.id = a.slot_id
			  WHERE a.status = ? AND (s.date < ? OR (s.date = ? AND s.end_time <= ?))
			  ORDER BY a.id`
	rows, err := q.q.QueryContext(ctx, query, models.AppointmentBooked, d, d, c)
	if err != nil {
		return nil, fmt.Errorf("failed to list lapsed appointments: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *Queries) appointmentWhere(f AppointmentFilter) ([]string, []any) {
	var where []string
	var args []any

	if f.RecruiterID != 0 {
		where = append(where, "a.recruiter_id = ?")
		args = append(args, f.RecruiterID)
	}
	if f.CandidateID != 0 {
		where = append(where, "a.candidate_id = ?")
		args = append(args, f.CandidateID)
	}
	if f.JobID != 0 {
		where = append(where, "a.job_id = ?")
		args = append(args, f.JobID)
	}
	if f.Status != "" {
		where = append(where, "a.status = ?")
		args = append(args, f.Status)
	}

	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	d, c := q.wallClock(now)
	switch f.Kind {
	case AppointmentsUpcoming:
		where = append(where, "(s.date > ? OR (s.date = ? AND s.end_time > ?))")
		args = append(args, d, d, c)
	case AppointmentsPast:
		where = append(where, "(s.date < ? OR (s.date = ? AND s.end_time <= ?))")
		args = append(args, d, d, c)
	}
	return where, args
}

func (q *Queries) scanAppointment(row rowScanner) (*models.Appointment, error) {
	appt := &models.Appointment{Slot: &models.Slot{}}
	var date string
	if err := row.Scan(&appt.ID, &appt.JobID, &appt.CandidateID, &appt.SlotID, &appt.RecruiterID,
		&appt.MeetingLink, &appt.Status, &appt.Notes, &appt.CreatedAt,
		&appt.Slot.ID, &date, &appt.Slot.StartTime, &appt.Slot.EndTime, &appt.Slot.InterviewerID,
		&appt.Slot.IsAvailable, &appt.Slot.CreatedAt); err != nil {
		return nil, err
	}
	d, err := time.ParseInLocation(models.DateLayout, date, q.loc)
	if err != nil {
		return nil, fmt.Errorf("slot %d has malformed date %q: %w", appt.SlotID, date, err)
	}
	appt.Slot.Date = d
	return appt, nil
}
