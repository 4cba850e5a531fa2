package scheduling

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/events"
	"github.com/khrees2412/callscreen/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *database.Store
	ledger    *Ledger
	registry  *Registry
	recorder  *events.Recorder
	job       *models.Job
	candidate *models.Candidate
}

func setupTest(t *testing.T) *fixture {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "test.db"), time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := &events.Recorder{}
	f := &fixture{
		store:    store,
		ledger:   NewLedger(store, logger),
		registry: NewRegistry(store, recorder, logger),
		recorder: recorder,
	}

	ctx := context.Background()
	skill, err := store.EnsureSkill(ctx, "go")
	require.NoError(t, err)
	f.job = &models.Job{Title: "Backend Engineer", Description: "APIs", RecruiterID: 1, Skills: []models.Skill{*skill}}
	require.NoError(t, store.InsertJob(ctx, f.job))
	f.candidate = &models.Candidate{Name: "Ada", Email: "ada@example.com", Phone: "+100", RecruiterID: 1}
	require.NoError(t, store.InsertCandidate(ctx, f.candidate))
	return f
}

func (f *fixture) slot(t *testing.T, date time.Time, start, end string) *models.Slot {
	t.Helper()
	s := &models.Slot{Date: date, StartTime: start, EndTime: end, InterviewerID: 3}
	require.NoError(t, f.ledger.Create(context.Background(), s))
	return s
}

func (f *fixture) book(t *testing.T, slotID int64) *models.Appointment {
	t.Helper()
	appt, err := f.registry.Book(context.Background(), BookRequest{
		JobID: f.job.ID, CandidateID: f.candidate.ID, SlotID: slotID, RecruiterID: 1,
		MeetingLink: "https://meet.example/abc",
	})
	require.NoError(t, err)
	return appt
}

// assertSlotConsistent checks the slot flag against the appointments holding it
func (f *fixture) assertSlotConsistent(t *testing.T, slotID int64) {
	t.Helper()
	ctx := context.Background()
	slot, err := f.store.GetSlot(ctx, slotID)
	require.NoError(t, err)
	held, err := f.store.SlotHasAppointment(ctx, slotID, 0, models.AppointmentBooked, models.AppointmentCompleted)
	require.NoError(t, err)
	assert.Equal(t, !held, slot.IsAvailable, "slot %d availability drifted from its appointments", slotID)
}

func monday() time.Time {
	return time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)
}

func TestCreateValidatesSlot(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()

	cases := []struct {
		name string
		slot models.Slot
	}{
		{"bad start", models.Slot{Date: monday(), StartTime: "9:00", EndTime: "10:00", InterviewerID: 1}},
		{"bad end", models.Slot{Date: monday(), StartTime: "09:00", EndTime: "24:00", InterviewerID: 1}},
		{"end before start", models.Slot{Date: monday(), StartTime: "10:00", EndTime: "09:30", InterviewerID: 1}},
		{"no interviewer", models.Slot{Date: monday(), StartTime: "09:00", EndTime: "09:30"}},
		{"no date", models.Slot{StartTime: "09:00", EndTime: "09:30", InterviewerID: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slot := tc.slot
			assert.ErrorIs(t, f.ledger.Create(ctx, &slot), database.ErrValidation)
		})
	}

	f.slot(t, monday(), "09:00", "09:30")
	dup := &models.Slot{Date: monday(), StartTime: "09:00", EndTime: "10:00", InterviewerID: 3}
	assert.ErrorIs(t, f.ledger.Create(ctx, dup), database.ErrConflict)
}

func TestGenerateRangeSkipsWeekends(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()

	// Monday through Sunday
	slots, err := f.ledger.GenerateRange(ctx, monday(), monday().AddDate(0, 0, 6), 3, 30)
	require.NoError(t, err)
	assert.Len(t, slots, 5*16)

	perDay := map[string]int{}
	for _, s := range slots {
		wd := s.Date.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
		assert.LessOrEqual(t, s.EndTime, "17:00")
		assert.True(t, s.IsAvailable)
		perDay[s.Date.Format(models.DateLayout)]++
	}
	assert.Len(t, perDay, 5)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, "09:30", slots[0].EndTime)
	assert.Equal(t, "16:30", slots[15].StartTime)

	// Regenerating skips the existing identities
	again, err := f.ledger.GenerateRange(ctx, monday(), monday().AddDate(0, 0, 6), 3, 30)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestGenerateRangeDropsTrailingInterval(t *testing.T) {
	f := setupTest(t)

	slots, err := f.ledger.GenerateRange(context.Background(), monday(), monday(), 3, 90)
	require.NoError(t, err)
	// 09:00 .. 16:30 fits five 90 minute slots, the sixth would end at 18:00
	require.Len(t, slots, 5)
	assert.Equal(t, "15:00", slots[4].StartTime)
	assert.Equal(t, "16:30", slots[4].EndTime)
}

func TestGenerateRangeValidatesInterval(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()

	for _, interval := range []int{0, -5, MaxIntervalMinutes + 1} {
		_, err := f.ledger.GenerateRange(ctx, monday(), monday(), 3, interval)
		assert.ErrorIs(t, err, database.ErrValidation, "interval %d", interval)
	}

	slots, err := f.ledger.GenerateRange(ctx, monday(), monday(), 3, MaxIntervalMinutes)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "17:00", slots[0].EndTime)
}

func TestReserveAndRelease(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	slot := f.slot(t, monday(), "10:00", "10:30")

	require.NoError(t, f.ledger.Reserve(ctx, slot.ID))
	assert.ErrorIs(t, f.ledger.Reserve(ctx, slot.ID), database.ErrConflict)
	assert.ErrorIs(t, f.ledger.Reserve(ctx, 999), database.ErrNotFound)

	require.NoError(t, f.ledger.Release(ctx, slot.ID))
	got, err := f.store.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)

	assert.ErrorIs(t, f.ledger.Release(ctx, 999), database.ErrNotFound)
}

func TestReserveDistrustsStaleFlag(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	slot := f.slot(t, monday(), "10:00", "10:30")
	f.book(t, slot.ID)

	// Simulate drift: flag says free while an appointment holds the slot
	require.NoError(t, f.store.SetSlotAvailable(ctx, slot.ID, true))
	assert.ErrorIs(t, f.ledger.Reserve(ctx, slot.ID), database.ErrConflict)
}

func TestReleaseRefusesCompletedAppointment(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	slot := f.slot(t, monday(), "10:00", "10:30")
	appt := f.book(t, slot.ID)

	_, err := f.registry.UpdateStatus(ctx, appt.ID, models.AppointmentCompleted)
	require.NoError(t, err)

	assert.ErrorIs(t, f.ledger.Release(ctx, slot.ID), database.ErrConflict)
	f.assertSlotConsistent(t, slot.ID)
}

func TestBookReservesSlot(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	slot := f.slot(t, monday(), "10:00", "10:30")

	appt := f.book(t, slot.ID)
	assert.Equal(t, models.AppointmentBooked, appt.Status)
	require.NotNil(t, appt.Slot)
	assert.False(t, appt.Slot.IsAvailable)
	f.assertSlotConsistent(t, slot.ID)

	_, err := f.registry.Book(ctx, BookRequest{JobID: f.job.ID, CandidateID: f.candidate.ID, SlotID: slot.ID, RecruiterID: 1})
	assert.ErrorIs(t, err, database.ErrConflict)

	_, err = f.registry.Book(ctx, BookRequest{JobID: f.job.ID, CandidateID: f.candidate.ID, SlotID: 999, RecruiterID: 1})
	assert.ErrorIs(t, err, database.ErrNotFound)

	assert.Equal(t, []string{events.AppointmentBooked}, f.recorder.Types())
}

func TestBookRollsBackWhenAppointmentFails(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	slot := f.slot(t, monday(), "10:00", "10:30")

	// The slot is reserved first, then the insert fails on the missing job
	_, err := f.registry.Book(ctx, BookRequest{JobID: 424242, CandidateID: f.candidate.ID, SlotID: slot.ID, RecruiterID: 1})
	require.Error(t, err)

	got, err := f.store.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)
	f.assertSlotConsistent(t, slot.ID)
	assert.Empty(t, f.recorder.Types())
}

func TestCancelReleasesSlot(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	slot := f.slot(t, monday(), "10:00", "10:30")
	appt := f.book(t, slot.ID)

	canceled, err := f.registry.Cancel(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCanceled, canceled.Status)
	f.assertSlotConsistent(t, slot.ID)

	// Idempotent
	_, err = f.registry.Cancel(ctx, appt.ID)
	require.NoError(t, err)

	// The slot can be booked again
	rebooked := f.book(t, slot.ID)
	f.assertSlotConsistent(t, slot.ID)

	_, err = f.registry.Cancel(ctx, 999)
	assert.ErrorIs(t, err, database.ErrNotFound)

	assert.Equal(t, []string{events.AppointmentBooked, events.AppointmentCanceled, events.AppointmentBooked},
		f.recorder.Types())
	assert.NotEqual(t, appt.ID, rebooked.ID)
}

func TestStatusTransitions(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	slot := f.slot(t, monday(), "10:00", "10:30")
	appt := f.book(t, slot.ID)

	completed, err := f.registry.UpdateStatus(ctx, appt.ID, models.AppointmentCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCompleted, completed.Status)
	f.assertSlotConsistent(t, slot.ID)

	// Same status is a no-op
	_, err = f.registry.UpdateStatus(ctx, appt.ID, models.AppointmentCompleted)
	require.NoError(t, err)

	_, err = f.registry.UpdateStatus(ctx, appt.ID, models.AppointmentCanceled)
	assert.ErrorIs(t, err, database.ErrConflict)
	_, err = f.registry.UpdateStatus(ctx, appt.ID, models.AppointmentBooked)
	assert.ErrorIs(t, err, database.ErrConflict)
	_, err = f.registry.UpdateStatus(ctx, appt.ID, "archived")
	assert.ErrorIs(t, err, database.ErrValidation)
	_, err = f.registry.UpdateStatus(ctx, 999, models.AppointmentCompleted)
	assert.ErrorIs(t, err, database.ErrNotFound)

	f.assertSlotConsistent(t, slot.ID)
}

func TestDeleteReleasesSlot(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()

	booked := f.slot(t, monday(), "10:00", "10:30")
	appt := f.book(t, booked.ID)
	require.NoError(t, f.registry.Delete(ctx, appt.ID))
	f.assertSlotConsistent(t, booked.ID)
	_, err := f.registry.Get(ctx, appt.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)

	// Deleting a canceled appointment leaves the slot alone
	other := f.slot(t, monday(), "11:00", "11:30")
	canceled := f.book(t, other.ID)
	_, err = f.registry.Cancel(ctx, canceled.ID)
	require.NoError(t, err)
	f.book(t, other.ID)
	require.NoError(t, f.registry.Delete(ctx, canceled.ID))
	f.assertSlotConsistent(t, other.ID)
	got, err := f.store.GetSlot(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)

	assert.ErrorIs(t, f.registry.Delete(ctx, 999), database.ErrNotFound)
}

func TestSlotInvariantAcrossSequence(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	slot := f.slot(t, monday(), "10:00", "10:30")

	var appt *models.Appointment
	steps := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{"release free slot", func() error { return f.ledger.Release(ctx, slot.ID) }, nil},
		{"book", func() error { appt = f.book(t, slot.ID); return nil }, nil},
		{"release booked slot", func() error { return f.ledger.Release(ctx, slot.ID) }, database.ErrConflict},
		{"reserve booked slot", func() error { return f.ledger.Reserve(ctx, slot.ID) }, database.ErrConflict},
		{"cancel", func() error { _, err := f.registry.Cancel(ctx, appt.ID); return err }, nil},
		{"rebook", func() error { appt = f.book(t, slot.ID); return nil }, nil},
		{"complete", func() error {
			_, err := f.registry.UpdateStatus(ctx, appt.ID, models.AppointmentCompleted)
			return err
		}, nil},
		{"release completed slot", func() error { return f.ledger.Release(ctx, slot.ID) }, database.ErrConflict},
		{"reserve missing slot", func() error { return f.ledger.Reserve(ctx, 999) }, database.ErrNotFound},
	}
	for _, step := range steps {
		err := step.run()
		if step.wantErr != nil {
			require.ErrorIs(t, err, step.wantErr, step.name)
		} else {
			require.NoError(t, err, step.name)
		}
		f.assertSlotConsistent(t, slot.ID)
	}
}

func TestReconcileLapsed(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	slot := f.slot(t, monday(), "10:00", "10:30")
	appt := f.book(t, slot.ID)

	filter := database.AppointmentFilter{CandidateID: f.candidate.ID, Status: models.AppointmentBooked}

	f.registry.Now = func() time.Time { return time.Date(2030, 1, 7, 10, 15, 0, 0, time.UTC) }
	got, changed, err := f.registry.ReconcileLapsed(ctx, filter)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.AppointmentBooked, got.Status)

	f.registry.Now = func() time.Time { return time.Date(2030, 1, 7, 10, 31, 0, 0, time.UTC) }
	got, changed, err = f.registry.ReconcileLapsed(ctx, filter)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, appt.ID, got.ID)
	assert.Equal(t, models.AppointmentCompleted, got.Status)
	f.assertSlotConsistent(t, slot.ID)

	_, _, err = f.registry.ReconcileLapsed(ctx, filter)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestSweepLapsed(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()

	early := f.book(t, f.slot(t, monday(), "09:00", "09:30").ID)
	late := f.book(t, f.slot(t, monday(), "15:00", "15:30").ID)
	canceledSlot := f.slot(t, monday(), "08:00", "08:30")
	canceled := f.book(t, canceledSlot.ID)
	_, err := f.registry.Cancel(ctx, canceled.ID)
	require.NoError(t, err)

	n, err := f.registry.SweepLapsed(ctx, time.Date(2030, 1, 7, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.registry.Get(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCompleted, got.Status)
	got, err = f.registry.Get(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentBooked, got.Status)
	got, err = f.registry.Get(ctx, canceled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCanceled, got.Status)
}

func TestListPagesAndCounts(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()
	f.registry.Now = func() time.Time { return time.Date(2030, 1, 8, 12, 0, 0, 0, time.UTC) }

	f.book(t, f.slot(t, monday(), "09:00", "09:30").ID)
	for _, start := range []string{"09:00", "10:00", "11:00"} {
		end := start[:2] + ":30"
		f.book(t, f.slot(t, monday().AddDate(0, 0, 2), start, end).ID)
	}

	page, err := f.registry.List(ctx, 1, database.AppointmentsUpcoming, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Appointments, 2)
	assert.Equal(t, "09:00", page.Appointments[0].Slot.StartTime)
	assert.Equal(t, database.AppointmentCounts{Total: 4, Upcoming: 3, Past: 1}, page.Counts)

	page, err = f.registry.List(ctx, 1, database.AppointmentsUpcoming, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Appointments, 1)
	assert.Equal(t, "11:00", page.Appointments[0].Slot.StartTime)

	page, err = f.registry.List(ctx, 1, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, page.Appointments, 4)
	assert.Equal(t, 1, page.Page)

	_, err = f.registry.List(ctx, 1, "someday", 1, 10)
	assert.ErrorIs(t, err, database.ErrValidation)

	forCandidate, err := f.registry.ForCandidate(ctx, f.candidate.ID)
	require.NoError(t, err)
	assert.Len(t, forCandidate, 4)
	forJob, err := f.registry.ForJob(ctx, f.job.ID)
	require.NoError(t, err)
	assert.Len(t, forJob, 4)
}

func TestAvailableInWindowAndForDate(t *testing.T) {
	f := setupTest(t)
	ctx := context.Background()

	a := f.slot(t, monday(), "09:00", "09:30")
	b := f.slot(t, monday(), "13:00", "13:30")
	c := f.slot(t, monday().AddDate(0, 0, 1), "09:00", "09:30")
	f.book(t, b.ID)

	from := time.Date(2030, 1, 7, 8, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)
	slots, err := f.ledger.AvailableInWindow(ctx, from, to, nil, 3)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, a.ID, slots[0].ID)
	assert.Equal(t, c.ID, slots[1].ID)

	slots, err = f.ledger.AvailableInWindow(ctx, from, to, []int64{a.ID}, 3)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, c.ID, slots[0].ID)

	slots, err = f.ledger.ForDate(ctx, time.Date(2030, 1, 7, 15, 0, 0, 0, time.UTC), 3)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, a.ID, slots[0].ID)
}
