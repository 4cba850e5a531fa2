package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khrees2412/callscreen/internal/ai"
	"github.com/khrees2412/callscreen/internal/catalog"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/dialogue"
	"github.com/khrees2412/callscreen/internal/events"
	"github.com/khrees2412/callscreen/internal/intake"
	"github.com/khrees2412/callscreen/internal/meeting"
	"github.com/khrees2412/callscreen/internal/queue"
	"github.com/khrees2412/callscreen/internal/scheduling"
	"github.com/khrees2412/callscreen/internal/telephony"
	"github.com/khrees2412/callscreen/internal/worker"
	"github.com/khrees2412/callscreen/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2030, 1, 7, 8, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type scriptedExtractor map[string]ai.Entities

func (s scriptedExtractor) Extract(_ context.Context, _, text string) ai.Entities {
	out := ai.Entities{}
	out.Merge(s[text])
	return out
}

type fakeDialer struct {
	mu    sync.Mutex
	calls int
}

func (d *fakeDialer) Dial(context.Context, string, string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return fmt.Sprintf("CA%d", d.calls), nil
}

type fixture struct {
	store    *database.Store
	ledger   *scheduling.Ledger
	recorder *events.Recorder
	worker   *worker.Worker
	server   *Server
}

func setupTest(t *testing.T) *fixture {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "test.db"), time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return baseTime }
	recorder := &events.Recorder{}

	ledger := scheduling.NewLedger(store, logger)
	registry := scheduling.NewRegistry(store, recorder, logger)
	registry.Now = clock
	linker := meeting.NewGenerator("")

	extractor := scriptedExtractor{"I am not interested": {"interested_in_role": false}}
	machine := dialogue.NewMachine(store, ledger, registry, extractor, linker, logger)
	machine.Now = clock

	scheduler := queue.NewScheduler(store, queue.Options{MaxAttempts: 3, RetryBackoff: time.Minute}, logger)
	scheduler.Now = clock
	w := worker.New(store, scheduler, ledger, machine, &fakeDialer{}, worker.Options{Interval: time.Hour, MaxConcurrent: 2}, logger)
	w.Now = clock

	in := intake.NewService(store, ledger, nil, logger)
	in.Now = clock

	s := New(Deps{
		Store:     store,
		Catalog:   catalog.New(store, logger),
		Ledger:    ledger,
		Registry:  registry,
		Scheduler: scheduler,
		Machine:   machine,
		Worker:    w,
		Intake:    in,
		Linker:    linker,
		Responder: telephony.NewResponder(3),
		Logger:    logger,
	})
	return &fixture{store: store, ledger: ledger, recorder: recorder, worker: w, server: s}
}

func (f *fixture) do(t *testing.T, method, path string, body any, recruiter int64) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if recruiter != 0 {
		req.Header.Set(RecruiterHeader, strconv.FormatInt(recruiter, 10))
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) form(t *testing.T, path string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) seed(t *testing.T) (*models.Job, *models.Candidate, *models.Slot) {
	t.Helper()
	ctx := context.Background()
	job := &models.Job{Title: "Backend Engineer", MinExperience: 1, RecruiterID: 1}
	require.NoError(t, catalog.New(f.store, slog.New(slog.NewTextHandler(io.Discard, nil))).AddJob(ctx, job, []string{"go"}))

	c := &models.Candidate{Name: "Ada", Email: "ada@example.com", Phone: "+15550001", RecruiterID: 1}
	require.NoError(t, f.store.InsertCandidate(ctx, c))

	slot := &models.Slot{Date: time.Date(2030, 1, 8, 0, 0, 0, 0, time.UTC), StartTime: "10:00", EndTime: "10:30", InterviewerID: 1}
	require.NoError(t, f.ledger.Create(ctx, slot))
	return job, c, slot
}

func TestRecruiterHeaderRequired(t *testing.T) {
	f := setupTest(t)

	rec := f.do(t, http.MethodGet, "/api/jobs", nil, 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/health", nil, 0)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJobsAndSkills(t *testing.T) {
	f := setupTest(t)

	rec := f.do(t, http.MethodPost, "/api/jobs", map[string]any{
		"title": "Data Engineer", "min_experience": 2, "job_type": "remote", "skills": []string{"Python", "SQL"},
	}, 1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	job := decode[models.Job](t, rec)
	assert.Equal(t, []string{"python", "sql"}, job.SkillNames())

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/jobs/%d", job.ID), nil, 1)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/jobs/%d", job.ID), nil, 2)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/jobs", map[string]any{"title": "Bad", "job_type": "moon"}, 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/skills", nil, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	skills := decode[map[string][]models.Skill](t, rec)
	assert.Len(t, skills["skills"], 2)
}

func TestSlotEndpoints(t *testing.T) {
	f := setupTest(t)

	rec := f.do(t, http.MethodPost, "/api/slots", map[string]any{
		"date": "2030-01-08", "start_time": "10:00", "end_time": "10:30", "interviewer_id": 4,
	}, 1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/slots", map[string]any{
		"date": "2030-01-08", "start_time": "10:00", "end_time": "10:30", "interviewer_id": 4,
	}, 1)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/slots", map[string]any{
		"date": "08/01/2030", "start_time": "10:00", "end_time": "10:30", "interviewer_id": 4,
	}, 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/slots/generate", map[string]any{
		"start_date": "2030-01-11", "end_date": "2030-01-14", "interviewer_id": 4, "interval_minutes": 60,
	}, 1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	generated := decode[map[string]any](t, rec)
	// Friday and Monday, eight hourly slots each
	assert.EqualValues(t, 16, generated["created"])

	rec = f.do(t, http.MethodGet, "/api/slots/available?date=2030-01-08&interviewer_id=4", nil, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	available := decode[struct {
		Date  string        `json:"date"`
		Slots []models.Slot `json:"slots"`
	}](t, rec)
	assert.Equal(t, "2030-01-08", available.Date)
	require.Len(t, available.Slots, 1)
	assert.Equal(t, "10:00", available.Slots[0].StartTime)
	assert.Equal(t, "10:30", available.Slots[0].EndTime)
	assert.EqualValues(t, 4, available.Slots[0].InterviewerID)
	assert.True(t, available.Slots[0].IsAvailable)

	rec = f.do(t, http.MethodGet, "/api/slots?date_from=2030-01-14&date_to=2030-01-14", nil, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[map[string][]models.Slot](t, rec)
	assert.Len(t, listed["slots"], 8)
}

func TestFormSubmission(t *testing.T) {
	f := setupTest(t)
	job, _, _ := f.seed(t)

	body := map[string]any{
		"name": "Grace", "email": "grace@example.com", "phone": "+15550002",
		"experience": 4, "job_id": job.ID,
		"ratings": []map[string]any{{"skill_id": job.Skills[0].ID, "rating": 5}},
	}
	rec := f.do(t, http.MethodPost, "/api/form/1", body, 0)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode[intake.Result](t, rec)
	assert.Equal(t, intake.SourceForm, result.Candidate.Source)
	require.NotNil(t, result.Match)
	// 20 experience + 10 location + 30 ratings + 20 default semantic
	assert.Equal(t, 80, result.Match.Total)
	assert.True(t, result.Shortlisted)

	rec = f.do(t, http.MethodPost, "/api/form/1", body, 0)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/form/1", map[string]any{"name": "NoContact"}, 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/candidates?status=shortlisted", nil, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[map[string][]models.Candidate](t, rec)
	assert.Len(t, listed["candidates"], 1)
}

func TestAppointmentLifecycle(t *testing.T) {
	f := setupTest(t)
	job, c, slot := f.seed(t)

	book := map[string]any{"job_id": job.ID, "candidate_id": c.ID, "slot_id": slot.ID}

	// Another recruiter cannot book this job and candidate
	rec := f.do(t, http.MethodPost, "/api/appointments", book, 2)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	free, err := f.store.GetSlot(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.True(t, free.IsAvailable)

	rec = f.do(t, http.MethodPost, "/api/appointments", book, 1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[models.Appointment](t, rec)
	assert.Contains(t, appt.MeetingLink, "https://meet.google.com/tech-recruit-")
	assert.Equal(t, models.AppointmentBooked, appt.Status)

	rec = f.do(t, http.MethodPost, "/api/appointments", book, 1)
	assert.Equal(t, http.StatusConflict, rec.Code)

	path := fmt.Sprintf("/api/appointments/%d", appt.ID)
	rec = f.do(t, http.MethodGet, path, nil, 2)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPatch, path+"/status", map[string]any{"status": "lost"}, 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/appointments?type=upcoming", nil, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[scheduling.Page](t, rec)
	assert.Len(t, page.Appointments, 1)
	assert.Equal(t, 1, page.Counts.Upcoming)

	rec = f.do(t, http.MethodPost, path+"/cancel", nil, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	canceled := decode[models.Appointment](t, rec)
	assert.Equal(t, models.AppointmentCanceled, canceled.Status)

	got, err := f.store.GetSlot(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)
	assert.Equal(t, []string{events.AppointmentBooked, events.AppointmentCanceled}, f.recorder.Types())

	rec = f.do(t, http.MethodDelete, path, nil, 1)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, path, nil, 1)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIVRWebhook(t *testing.T) {
	f := setupTest(t)
	_, c, _ := f.seed(t)

	session, err := f.server.Machine.StartSession(context.Background(), c.ID, 1, nil)
	require.NoError(t, err)
	ivr := "/api/voice/ivr?sessionId=" + session.ID

	rec := f.do(t, http.MethodGet, "/api/voice/ivr?sessionId=missing", nil, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), telephony.SessionNotFoundMessage)
	assert.Contains(t, rec.Body.String(), "<Hangup")

	// Opening turn greets and listens
	rec = f.do(t, http.MethodGet, ivr, nil, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml; charset=utf-8", rec.Header().Get("Content-Type"))
	greeting := rec.Body.String()
	assert.Contains(t, greeting, "Ada")
	assert.Contains(t, greeting, "<Gather")
	assert.Contains(t, greeting, "retryCount=1")

	// A silent redirect repeats the prompt without advancing
	rec = f.do(t, http.MethodGet, ivr+"&retryCount=2", nil, 0)
	assert.Contains(t, rec.Body.String(), "Ada")
	assert.Contains(t, rec.Body.String(), "retryCount=3")

	rec = f.do(t, http.MethodGet, ivr+"&retryCount=3", nil, 0)
	assert.Contains(t, rec.Body.String(), "after several attempts")

	s, err := f.store.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Step)

	// Speech advances the conversation
	rec = f.form(t, ivr, url.Values{"SpeechResult": {"I build things"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Gather")
	assert.Contains(t, rec.Body.String(), "retryCount=1")
	prompt := rec.Body.String()
	s, err = f.store.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	step := s.Step

	// Reopening the webhook mid-call re-prompts instead of restarting
	rec = f.do(t, http.MethodGet, ivr, nil, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, prompt, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "Ada")
	s, err = f.store.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, step, s.Step)

	rec = f.form(t, ivr, url.Values{"SpeechResult": {"I am not interested"}})
	assert.NotContains(t, rec.Body.String(), "<Gather")
	assert.Contains(t, rec.Body.String(), "<Hangup")
}

func TestCallFlowAndStatusCallback(t *testing.T) {
	f := setupTest(t)
	_, c, _ := f.seed(t)
	ctx := context.Background()

	rec := f.do(t, http.MethodPost, "/api/queue", map[string]any{"candidate_id": c.ID, "priority": 2}, 1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[models.CallQueueEntry](t, rec)

	rec = f.do(t, http.MethodPost, "/api/queue", map[string]any{"candidate_id": c.ID}, 1)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/queue", map[string]any{"candidate_id": c.ID}, 2)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := f.worker.Tick(ctx)
	require.NoError(t, err)
	f.worker.Wait()

	placed, err := f.server.Scheduler.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.NotEmpty(t, placed.CallSid)

	rec = f.form(t, "/api/voice/call-status", url.Values{"CallSid": {placed.CallSid}, "CallStatus": {"completed"}})
	require.Equal(t, http.StatusOK, rec.Code)
	done, err := f.server.Scheduler.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallCompleted, done.Status)

	rec = f.form(t, "/api/voice/call-status", url.Values{"CallSid": {"CA-unknown"}, "CallStatus": {"completed"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.form(t, "/api/voice/call-status", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/voice/worker", nil, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[map[string]any](t, rec)
	assert.Contains(t, status, "worker")
	assert.Contains(t, status, "queue")
}

func TestConversationEndpoints(t *testing.T) {
	f := setupTest(t)
	_, c, _ := f.seed(t)

	rec := f.do(t, http.MethodPost, "/api/conversations", map[string]any{"candidate_id": c.ID}, 1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := decode[models.Session](t, rec)

	path := "/api/conversations/" + session.ID
	rec = f.do(t, http.MethodPost, path+"/turn", map[string]any{"utterance": "hello"}, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	reply := decode[dialogue.Reply](t, rec)
	assert.Equal(t, 1, reply.NextStep)
	assert.Contains(t, reply.Message, "Ada")

	rec = f.do(t, http.MethodGet, path, nil, 2)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/candidates/%d/conversations", c.ID), nil, 1)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[map[string][]models.ConversationLog](t, rec)
	assert.Len(t, logs["conversations"], 1)

	rec = f.do(t, http.MethodGet, "/api/stats", nil, 1)
	require.Equal(t, http.StatusOK, rec.Code)
}
