package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/pkg/models"
)

type createSlotRequest struct {
	Date          string `json:"date" binding:"required"`
	StartTime     string `json:"start_time" binding:"required"`
	EndTime       string `json:"end_time" binding:"required"`
	InterviewerID int64  `json:"interviewer_id" binding:"required"`
}

type generateSlotsRequest struct {
	StartDate       string `json:"start_date" binding:"required"`
	EndDate         string `json:"end_date" binding:"required"`
	InterviewerID   int64  `json:"interviewer_id" binding:"required"`
	IntervalMinutes int    `json:"interval_minutes"`
}

// parseDay reads a YYYY-MM-DD calendar day in the store's location
func (s *Server) parseDay(value string) (time.Time, error) {
	return time.ParseInLocation(models.DateLayout, value, s.Store.Location())
}

func (s *Server) createSlot(c *gin.Context) {
	var req createSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	date, err := s.parseDay(req.Date)
	if err != nil {
		badRequest(c, "invalid date format, expected YYYY-MM-DD")
		return
	}

	slot := &models.Slot{Date: date, StartTime: req.StartTime, EndTime: req.EndTime, InterviewerID: req.InterviewerID}
	if err := s.Ledger.Create(c.Request.Context(), slot); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

func (s *Server) generateSlots(c *gin.Context) {
	var req generateSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	start, err := s.parseDay(req.StartDate)
	if err != nil {
		badRequest(c, "invalid start_date format, expected YYYY-MM-DD")
		return
	}
	end, err := s.parseDay(req.EndDate)
	if err != nil {
		badRequest(c, "invalid end_date format, expected YYYY-MM-DD")
		return
	}
	if req.IntervalMinutes == 0 {
		req.IntervalMinutes = 30
	}

	slots, err := s.Ledger.GenerateRange(c.Request.Context(), start, end, req.InterviewerID, req.IntervalMinutes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": len(slots), "slots": slots})
}

func (s *Server) listSlots(c *gin.Context) {
	f := database.SlotFilter{AvailableOnly: c.Query("available") == "true"}
	if v := c.Query("date_from"); v != "" {
		d, err := s.parseDay(v)
		if err != nil {
			badRequest(c, "invalid date_from")
			return
		}
		f.DateFrom = d
	}
	if v := c.Query("date_to"); v != "" {
		d, err := s.parseDay(v)
		if err != nil {
			badRequest(c, "invalid date_to")
			return
		}
		f.DateTo = d
	}
	if v := c.Query("interviewer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid interviewer_id")
			return
		}
		f.InterviewerID = id
	}
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}
	f.Limit = limit

	slots, err := s.Ledger.Query(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// availableSlots returns the free slots of one day, today by default
func (s *Server) availableSlots(c *gin.Context) {
	day := time.Now().In(s.Store.Location())
	if v := c.Query("date"); v != "" {
		d, err := s.parseDay(v)
		if err != nil {
			badRequest(c, "invalid date format, expected YYYY-MM-DD")
			return
		}
		day = d
	}
	var interviewerID int64
	if v := c.Query("interviewer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid interviewer_id")
			return
		}
		interviewerID = id
	}

	slots, err := s.Ledger.ForDate(c.Request.Context(), day, interviewerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": day.Format(models.DateLayout), "slots": slots})
}

func (s *Server) releaseSlot(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.Ledger.Release(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": id})
}
