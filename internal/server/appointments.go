package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/internal/scheduling"
	"github.com/khrees2412/callscreen/pkg/models"
)

type bookRequest struct {
	JobID       int64  `json:"job_id" binding:"required"`
	CandidateID int64  `json:"candidate_id" binding:"required"`
	SlotID      int64  `json:"slot_id" binding:"required"`
	MeetingLink string `json:"meeting_link"`
	Notes       string `json:"notes"`
}

type statusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required"`
}

func (s *Server) bookAppointment(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	// Booking for another recruiter's job or candidate reads as missing
	if _, ok := s.ownJob(c, req.JobID); !ok {
		return
	}
	if _, ok := s.ownCandidate(c, req.CandidateID); !ok {
		return
	}

	if req.MeetingLink == "" && s.Linker != nil {
		slot, err := s.Store.GetSlot(ctx, req.SlotID)
		if err != nil {
			respondError(c, err)
			return
		}
		link, err := s.Linker.CreateLink(ctx, req.CandidateID, req.JobID, slot)
		if err != nil {
			s.Logger.Warn("meeting link unavailable", "slot_id", req.SlotID, "error", err)
		}
		req.MeetingLink = link
	}

	appt, err := s.Registry.Book(ctx, scheduling.BookRequest{
		JobID:       req.JobID,
		CandidateID: req.CandidateID,
		SlotID:      req.SlotID,
		RecruiterID: recruiterID(c),
		MeetingLink: req.MeetingLink,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appt)
}

func (s *Server) listAppointments(c *gin.Context) {
	page, ok := intQuery(c, "page", 1)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", 20)
	if !ok {
		return
	}

	result, err := s.Registry.List(c.Request.Context(), recruiterID(c), database.AppointmentKind(c.Query("type")), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ownAppointment loads an appointment of the requesting recruiter.
// Other recruiters' appointments are reported as missing.
func (s *Server) ownAppointment(c *gin.Context) (*models.Appointment, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	appt, err := s.Registry.Get(c.Request.Context(), id)
	if err == nil && appt.RecruiterID != recruiterID(c) {
		err = fmt.Errorf("appointment %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return appt, true
}

func (s *Server) getAppointment(c *gin.Context) {
	appt, ok := s.ownAppointment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (s *Server) updateAppointmentStatus(c *gin.Context) {
	appt, ok := s.ownAppointment(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	updated, err := s.Registry.UpdateStatus(c.Request.Context(), appt.ID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) cancelAppointment(c *gin.Context) {
	appt, ok := s.ownAppointment(c)
	if !ok {
		return
	}
	canceled, err := s.Registry.Cancel(c.Request.Context(), appt.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, canceled)
}

func (s *Server) deleteAppointment(c *gin.Context) {
	appt, ok := s.ownAppointment(c)
	if !ok {
		return
	}
	if err := s.Registry.Delete(c.Request.Context(), appt.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) candidateAppointments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	appts, err := s.Registry.ForCandidate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": ownedBy(appts, recruiterID(c))})
}

func (s *Server) jobAppointments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	appts, err := s.Registry.ForJob(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": ownedBy(appts, recruiterID(c))})
}

func (s *Server) sweepAppointments(c *gin.Context) {
	completed, err := s.Registry.SweepLapsed(c.Request.Context(), s.Registry.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": completed})
}

func ownedBy(appts []*models.Appointment, recruiterID int64) []*models.Appointment {
	out := make([]*models.Appointment, 0, len(appts))
	for _, a := range appts {
		if a.RecruiterID == recruiterID {
			out = append(out, a)
		}
	}
	return out
}
