package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khrees2412/callscreen/internal/catalog"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/dialogue"
	"github.com/khrees2412/callscreen/internal/intake"
	"github.com/khrees2412/callscreen/internal/meeting"
	"github.com/khrees2412/callscreen/internal/queue"
	"github.com/khrees2412/callscreen/internal/scheduling"
	"github.com/khrees2412/callscreen/internal/telephony"
	"github.com/khrees2412/callscreen/internal/worker"
)

// DefaultSlowRequest is the duration above which requests are logged at WARN
const DefaultSlowRequest = time.Second

// Deps are the services the HTTP API exposes
type Deps struct {
	Store     *database.Store
	Catalog   *catalog.Catalog
	Ledger    *scheduling.Ledger
	Registry  *scheduling.Registry
	Scheduler *queue.Scheduler
	Machine   *dialogue.Machine
	Worker    *worker.Worker
	Intake    *intake.Service
	Linker    meeting.Linker
	Responder *telephony.Responder
	Logger    *slog.Logger

	SlowRequest time.Duration
}

// Server is the HTTP API and Twilio webhook endpoint
type Server struct {
	Deps
	router *gin.Engine

	// baseCtx outlives requests; the call worker runs under it
	baseCtx context.Context
}

// New builds the router with every route registered
func New(deps Deps) *Server {
	if deps.SlowRequest <= 0 {
		deps.SlowRequest = DefaultSlowRequest
	}
	if deps.Responder == nil {
		deps.Responder = telephony.NewResponder(0)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Logger, deps.SlowRequest))

	s := &Server{Deps: deps, router: router, baseCtx: context.Background()}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	voice := s.router.Group("/api/voice")
	{
		voice.GET("/ivr", s.ivr)
		voice.POST("/ivr", s.ivr)
		voice.POST("/call-status", s.callStatus)
	}

	// Public candidate form, scoped by the recruiter in the path
	s.router.POST("/api/form/:recruiterId", s.submitForm)

	api := s.router.Group("/api")
	api.Use(recruiter())
	{
		api.POST("/voice/start-calls", s.startCalls)
		api.POST("/voice/stop-calls", s.stopCalls)
		api.GET("/voice/worker", s.workerStatus)

		api.POST("/slots", s.createSlot)
		api.POST("/slots/generate", s.generateSlots)
		api.GET("/slots", s.listSlots)
		api.GET("/slots/available", s.availableSlots)
		api.POST("/slots/:id/release", s.releaseSlot)

		api.POST("/appointments", s.bookAppointment)
		api.GET("/appointments", s.listAppointments)
		api.GET("/appointments/:id", s.getAppointment)
		api.PATCH("/appointments/:id/status", s.updateAppointmentStatus)
		api.POST("/appointments/sweep", s.sweepAppointments)
		api.POST("/appointments/:id/cancel", s.cancelAppointment)
		api.DELETE("/appointments/:id", s.deleteAppointment)
		api.GET("/appointments/candidate/:id", s.candidateAppointments)
		api.GET("/appointments/job/:id", s.jobAppointments)

		api.POST("/candidates", s.createCandidate)
		api.GET("/candidates", s.listCandidates)
		api.GET("/candidates/:id", s.getCandidate)
		api.GET("/candidates/:id/conversations", s.candidateConversations)
		api.GET("/candidates/:id/queue", s.candidateQueue)

		api.POST("/queue", s.enqueueCall)
		api.POST("/queue/fill", s.fillQueue)
		api.GET("/queue/pending", s.pendingCalls)

		api.POST("/conversations", s.startConversation)
		api.GET("/conversations/:sessionId", s.getConversation)
		api.POST("/conversations/:sessionId/turn", s.conversationTurn)

		api.POST("/jobs", s.createJob)
		api.GET("/jobs", s.listJobs)
		api.GET("/jobs/:id", s.getJob)
		api.POST("/skills", s.createSkill)
		api.GET("/skills", s.listSkills)

		api.GET("/stats", s.dashboard)
	}
}

// Run serves on addr until ctx is canceled, then shuts down gracefully
// and stops the call worker
func (s *Server) Run(ctx context.Context, addr string) error {
	s.baseCtx = ctx
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	if s.Worker != nil {
		s.Worker.Stop()
		s.Worker.Wait()
	}
	s.Logger.Info("http server stopped")
	return nil
}
