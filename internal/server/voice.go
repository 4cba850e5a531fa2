package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/dialogue"
	"github.com/khrees2412/callscreen/internal/telephony"
)

// ivr is the Twilio voice webhook. The first GET opens the call; later
// requests without speech, such as a no-input redirect, repeat the current
// prompt. POST carries the caller's speech.
func (s *Server) ivr(c *gin.Context) {
	doc, err := s.ivrResponse(c)
	if err != nil {
		s.Logger.Error("failed to render twiml", "error", err)
		c.String(http.StatusInternalServerError, "")
		return
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(doc))
}

func (s *Server) ivrResponse(c *gin.Context) (string, error) {
	ctx := c.Request.Context()
	sessionID := c.Query("sessionId")
	retry, _ := strconv.Atoi(c.Query("retryCount"))
	if retry < 0 {
		retry = 0
	}

	if sessionID == "" {
		return s.Responder.Hangup(telephony.SessionNotFoundMessage)
	}
	if _, err := s.Machine.Session(ctx, sessionID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return s.Responder.Hangup(telephony.SessionNotFoundMessage)
		}
		s.Logger.Error("failed to load call session", "session_id", sessionID, "error", err)
		return s.Responder.Hangup(telephony.ErrorMessage)
	}

	var (
		reply *dialogue.Reply
		err   error
	)
	speech := c.PostForm("SpeechResult")
	if c.Request.Method == http.MethodPost && speech != "" {
		retry = 0
		reply, err = s.Machine.Process(ctx, sessionID, speech)
	} else {
		// Only a session that has not spoken yet is opened; any other
		// request without speech hears the current prompt again
		reply, err = s.Machine.Repeat(ctx, sessionID)
		if err == nil && reply == nil {
			reply, err = s.Machine.Process(ctx, sessionID, telephony.OpeningUtterance)
		}
	}
	if err != nil {
		s.Logger.Error("dialogue turn failed", "session_id", sessionID, "error", err)
		return s.Responder.Hangup(telephony.ErrorMessage)
	}

	if reply.EndCall {
		return s.Responder.Hangup(reply.Message)
	}
	return s.Responder.Gather(sessionID, reply.Message, retry)
}

// callStatus receives Twilio status callbacks for placed calls
func (s *Server) callStatus(c *gin.Context) {
	callSid := c.PostForm("CallSid")
	status := c.PostForm("CallStatus")
	if callSid == "" || status == "" {
		badRequest(c, "CallSid and CallStatus are required")
		return
	}

	err := s.Worker.HandleCallStatus(c.Request.Context(), callSid, status)
	switch {
	case errors.Is(err, database.ErrNotFound):
		s.Logger.Warn("status callback for unknown call", "call_sid", callSid, "status", status)
	case err != nil:
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// startCalls queues the recruiter's pending candidates and starts the worker
func (s *Server) startCalls(c *gin.Context) {
	queued, err := s.Scheduler.QueuePendingCandidates(c.Request.Context(), recruiterID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	s.Worker.Start(s.baseCtx)
	c.JSON(http.StatusOK, gin.H{"queued": queued, "worker": s.Worker.Status()})
}

func (s *Server) stopCalls(c *gin.Context) {
	s.Worker.Stop()
	c.JSON(http.StatusOK, gin.H{"worker": s.Worker.Status()})
}

func (s *Server) workerStatus(c *gin.Context) {
	counts, err := s.Scheduler.Counts(c.Request.Context(), recruiterID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worker": s.Worker.Status(), "queue": counts})
}
