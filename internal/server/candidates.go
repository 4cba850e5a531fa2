package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/intake"
	"github.com/khrees2412/callscreen/internal/queue"
	"github.com/khrees2412/callscreen/pkg/models"
)

type candidateRequest struct {
	Name               string                    `json:"name" binding:"required"`
	Email              string                    `json:"email" binding:"required"`
	Phone              string                    `json:"phone" binding:"required"`
	About              string                    `json:"about"`
	Experience         float64                   `json:"experience"`
	CurrentCTC         *float64                  `json:"current_ctc"`
	ExpectedCTC        *float64                  `json:"expected_ctc"`
	NoticePeriod       string                    `json:"notice_period"`
	LocationPreference models.LocationPreference `json:"location_preference"`
	JobID              *int64                    `json:"job_id"`
	Ratings            []models.SkillRating      `json:"ratings"`
}

func (r candidateRequest) candidate(recruiterID int64, source string) *models.Candidate {
	return &models.Candidate{
		Name:               r.Name,
		Email:              r.Email,
		Phone:              r.Phone,
		About:              r.About,
		Experience:         r.Experience,
		CurrentCTC:         r.CurrentCTC,
		ExpectedCTC:        r.ExpectedCTC,
		NoticePeriod:       r.NoticePeriod,
		LocationPreference: r.LocationPreference,
		JobID:              r.JobID,
		Ratings:            r.Ratings,
		Source:             source,
		RecruiterID:        recruiterID,
	}
}

type enqueueRequest struct {
	CandidateID   int64      `json:"candidate_id" binding:"required"`
	JobID         *int64     `json:"job_id"`
	Priority      int        `json:"priority"`
	ScheduledTime *time.Time `json:"scheduled_time"`
}

type conversationRequest struct {
	CandidateID int64 `json:"candidate_id" binding:"required"`
}

type turnRequest struct {
	Utterance string `json:"utterance" binding:"required"`
}

// submitForm registers a candidate from the public application form
func (s *Server) submitForm(c *gin.Context) {
	recruiter, ok := idParam(c, "recruiterId")
	if !ok {
		return
	}
	s.register(c, recruiter, intake.SourceForm)
}

func (s *Server) createCandidate(c *gin.Context) {
	s.register(c, recruiterID(c), intake.SourceManual)
}

func (s *Server) register(c *gin.Context, recruiter int64, source string) {
	var req candidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := s.Intake.Submit(c.Request.Context(), req.candidate(recruiter, source))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) listCandidates(c *gin.Context) {
	f := database.CandidateFilter{
		RecruiterID: recruiterID(c),
		Status:      models.CandidateStatus(c.Query("status")),
	}
	if v := c.Query("job_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid job_id")
			return
		}
		f.JobID = id
	}
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}
	f.Limit = limit

	candidates, err := s.Store.ListCandidates(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates})
}

// ownCandidate loads a candidate of the requesting recruiter
func (s *Server) ownCandidate(c *gin.Context, id int64) (*models.Candidate, bool) {
	candidate, err := s.Store.GetCandidate(c.Request.Context(), id)
	if err == nil && candidate.RecruiterID != recruiterID(c) {
		err = fmt.Errorf("candidate %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return candidate, true
}

func (s *Server) getCandidate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	candidate, ok := s.ownCandidate(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, candidate)
}

func (s *Server) candidateConversations(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, ok := s.ownCandidate(c, id); !ok {
		return
	}
	logs, err := s.Store.ListConversationLogs(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": logs})
}

func (s *Server) candidateQueue(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, ok := s.ownCandidate(c, id); !ok {
		return
	}
	entries, err := s.Scheduler.ForCandidate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) enqueueCall(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	candidate, ok := s.ownCandidate(c, req.CandidateID)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	exists, err := s.Scheduler.Exists(ctx, candidate.ID, candidate.RecruiterID, req.JobID)
	if err != nil {
		respondError(c, err)
		return
	}
	if exists {
		respondError(c, fmt.Errorf("%w: candidate %d already has an open call", database.ErrConflict, candidate.ID))
		return
	}

	er := queue.EnqueueRequest{
		CandidateID: candidate.ID,
		RecruiterID: candidate.RecruiterID,
		JobID:       req.JobID,
		Priority:    req.Priority,
	}
	if req.ScheduledTime != nil {
		er.ScheduledTime = *req.ScheduledTime
	}
	entry, err := s.Scheduler.Enqueue(ctx, er)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) fillQueue(c *gin.Context) {
	queued, err := s.Scheduler.QueuePendingCandidates(c.Request.Context(), recruiterID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued": queued})
}

func (s *Server) pendingCalls(c *gin.Context) {
	entries, err := s.Scheduler.Pending(c.Request.Context(), recruiterID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// startConversation opens a text-only screening session, useful without telephony
func (s *Server) startConversation(c *gin.Context) {
	var req conversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	candidate, ok := s.ownCandidate(c, req.CandidateID)
	if !ok {
		return
	}
	session, err := s.Machine.StartSession(c.Request.Context(), candidate.ID, candidate.RecruiterID, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) ownSession(c *gin.Context) (*models.Session, bool) {
	id := c.Param("sessionId")
	session, err := s.Machine.Session(c.Request.Context(), id)
	if err == nil && session.RecruiterID != recruiterID(c) {
		err = fmt.Errorf("session %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return session, true
}

func (s *Server) getConversation(c *gin.Context) {
	session, ok := s.ownSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) conversationTurn(c *gin.Context) {
	session, ok := s.ownSession(c)
	if !ok {
		return
	}
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	reply, err := s.Machine.Process(c.Request.Context(), session.ID, req.Utterance)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}
