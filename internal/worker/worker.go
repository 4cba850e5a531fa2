package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/dialogue"
	"github.com/khrees2412/callscreen/internal/queue"
	"github.com/khrees2412/callscreen/internal/scheduling"
	"github.com/khrees2412/callscreen/internal/telephony"
	"github.com/khrees2412/callscreen/pkg/models"
)

// callTimeout bounds placing one call, independent of the worker lifetime
const callTimeout = 30 * time.Second

// Options configures the worker loop
type Options struct {
	Interval      time.Duration
	MaxConcurrent int
}

// Status is a snapshot of the worker
type Status struct {
	Running       bool       `json:"running"`
	InFlight      int64      `json:"in_flight"`
	MaxConcurrent int        `json:"max_concurrent"`
	Interval      string     `json:"interval"`
	LastTick      *time.Time `json:"last_tick,omitempty"`
	Placed        int64      `json:"placed"`
	Failed        int64      `json:"failed"`
}

// TickResult describes what a single tick did
type TickResult struct {
	Started int
	Idle    bool       // nothing in flight and nothing left to retry
	NoSlots bool       // no interview capacity, nothing claimed
	NextDue *time.Time // earliest pending entry still waiting to be due
}

// Worker claims queued calls and places them, keeping at most
// MaxConcurrent calls starting at once.
type Worker struct {
	store     *database.Store
	scheduler *queue.Scheduler
	ledger    *scheduling.Ledger
	machine   *dialogue.Machine
	dialer    telephony.Dialer
	opts      Options
	logger    *slog.Logger

	// Now is the worker clock
	Now func() time.Time

	mu       sync.Mutex
	running  bool
	parent   context.Context // context of the last Start, nil once stopped
	cancel   context.CancelFunc
	done     chan struct{}
	lastTick time.Time

	tickMu   sync.Mutex
	calls    sync.WaitGroup
	inFlight atomic.Int64
	placed   atomic.Int64
	failed   atomic.Int64
}

// New creates a stopped worker
func New(store *database.Store, scheduler *queue.Scheduler, ledger *scheduling.Ledger, machine *dialogue.Machine,
	dialer telephony.Dialer, opts Options, logger *slog.Logger) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Worker{
		store:     store,
		scheduler: scheduler,
		ledger:    ledger,
		machine:   machine,
		dialer:    dialer,
		opts:      opts,
		logger:    logger,
		Now:       time.Now,
	}
}

// Start runs the tick loop until Stop is called, ctx is canceled or the
// queue drains. Starting a running worker is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.running = true
	w.parent = ctx
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(loopCtx, w.done)

	w.logger.Info("call worker started", "interval", w.opts.Interval, "max_concurrent", w.opts.MaxConcurrent)
}

// Stop ends the tick loop and waits for it to exit. Calls already being
// placed are left to finish; use Wait to block on them.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.parent = nil
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.parent = nil
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("call worker stopped")
}

// resume restarts a worker that went idle on its own, since a retry was
// queued after the queue drained. A stopped or never started worker stays down.
func (w *Worker) resume() {
	w.mu.Lock()
	parent := w.parent
	w.mu.Unlock()
	if parent == nil || parent.Err() != nil {
		return
	}
	w.Start(parent)
}

// Wait blocks until every call in flight has been placed or failed
func (w *Worker) Wait() {
	w.calls.Wait()
}

// Status returns a snapshot of the worker state
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Status{
		Running:       w.running,
		InFlight:      w.inFlight.Load(),
		MaxConcurrent: w.opts.MaxConcurrent,
		Interval:      w.opts.Interval.String(),
		Placed:        w.placed.Load(),
		Failed:        w.failed.Load(),
	}
	if !w.lastTick.IsZero() {
		t := w.lastTick
		s.LastTick = &t
	}
	return s
}

func (w *Worker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		w.mu.Lock()
		w.running = false
		w.cancel = nil
		w.mu.Unlock()
	}()

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		result, err := w.Tick(ctx)
		if err != nil {
			w.logger.Error("worker tick failed", "error", err)
		} else if result.Idle {
			w.logger.Info("call queue drained, worker going idle")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick claims and starts calls while capacity remains. Calls are placed on
// their own goroutines; Tick does not wait for them.
func (w *Worker) Tick(ctx context.Context) (TickResult, error) {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()

	now := w.Now()
	w.mu.Lock()
	w.lastTick = now
	w.mu.Unlock()

	result := TickResult{}
	if w.inFlight.Load() >= int64(w.opts.MaxConcurrent) {
		return result, nil
	}

	// Don't call anyone we could not offer an interview to
	slots, err := w.ledger.AvailableInWindow(ctx, now.Add(dialogue.SlotLead), now.Add(dialogue.SlotHorizon), nil, 1)
	if err != nil {
		return result, fmt.Errorf("failed to check slot capacity: %w", err)
	}
	if len(slots) == 0 {
		w.logger.Debug("no interview slots available, skipping tick")
		result.NoSlots = true
		return result, nil
	}

	for w.inFlight.Load() < int64(w.opts.MaxConcurrent) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		entry, err := w.scheduler.Claim(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to claim call: %w", err)
		}
		if entry == nil {
			return w.settle(ctx, result)
		}

		w.inFlight.Add(1)
		w.calls.Add(1)
		result.Started++
		go w.run(ctx, entry)
	}
	return result, nil
}

// settle decides whether an empty claim means the queue has drained. Entries
// waiting out a retry backoff, and calls still being placed that may fail
// back into the queue, keep the worker running.
func (w *Worker) settle(ctx context.Context, result TickResult) (TickResult, error) {
	next, err := w.scheduler.NextDue(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to check pending calls: %w", err)
	}
	result.NextDue = next
	result.Idle = next == nil && w.inFlight.Load() == 0
	return result, nil
}

func (w *Worker) run(parent context.Context, entry *models.CallQueueEntry) {
	defer w.calls.Done()
	defer w.inFlight.Add(-1)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), callTimeout)
	defer cancel()

	if err := w.place(ctx, entry); err != nil {
		w.failed.Add(1)
		w.logger.Warn("failed to place call", "entry_id", entry.ID, "candidate_id", entry.CandidateID, "error", err)
		if _, err := w.scheduler.MarkFailed(ctx, entry.ID, err.Error()); err != nil {
			w.logger.Error("failed to record call failure", "entry_id", entry.ID, "error", err)
		}
		return
	}
	w.placed.Add(1)
}

func (w *Worker) place(ctx context.Context, entry *models.CallQueueEntry) error {
	candidate, err := w.store.GetCandidate(ctx, entry.CandidateID)
	if err != nil {
		return fmt.Errorf("failed to load candidate: %w", err)
	}

	session, err := w.machine.StartSession(ctx, candidate.ID, entry.RecruiterID, &entry.ID)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	callSid, err := w.dialer.Dial(ctx, candidate.Phone, session.ID)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", candidate.Phone, err)
	}

	if err := w.scheduler.AttachCall(ctx, entry.ID, callSid, session.ID); err != nil {
		return err
	}

	status := models.CandidateScreening
	now := w.Now()
	if err := w.store.UpdateCandidate(ctx, candidate.ID, database.CandidateUpdate{Status: &status, LastContact: &now}); err != nil {
		return err
	}

	w.logger.Info("call placed", "entry_id", entry.ID, "candidate_id", candidate.ID,
		"call_sid", callSid, "session_id", session.ID, "attempt", entry.Attempts)
	return nil
}

// HandleCallStatus applies a provider call-status callback. Statuses other
// than completed, failed, busy and no-answer are ignored.
func (w *Worker) HandleCallStatus(ctx context.Context, callSid, status string) error {
	entry, err := w.scheduler.FindByCallSid(ctx, callSid)
	if err != nil {
		return err
	}

	switch status {
	case "completed":
		return w.scheduler.MarkCompleted(ctx, entry.ID, entry.SessionID)
	case "failed", "busy", "no-answer":
		pending := models.CandidatePending
		if err := w.store.UpdateCandidate(ctx, entry.CandidateID, database.CandidateUpdate{Status: &pending}); err != nil {
			return err
		}
		retry, err := w.scheduler.MarkFailed(ctx, entry.ID, fmt.Sprintf("Call %s: candidate did not answer", status))
		if err != nil {
			return err
		}
		if retry.Status == models.CallPending {
			w.resume()
		}
		return nil
	default:
		w.logger.Debug("ignoring call status", "call_sid", callSid, "status", status)
		return nil
	}
}
