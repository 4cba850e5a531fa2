package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/khrees2412/callscreen/internal/database"
	"github.com/khrees2412/callscreen/pkg/models"
)

type jobRequest struct {
	Title         string         `json:"title" binding:"required"`
	Description   string         `json:"description"`
	Requirements  string         `json:"requirements"`
	MinExperience float64        `json:"min_experience"`
	CTCMin        *float64       `json:"ctc_min"`
	CTCMax        *float64       `json:"ctc_max"`
	Location      string         `json:"location"`
	JobType       models.JobType `json:"job_type"`
	Skills        []string       `json:"skills"`
}

type skillRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) createJob(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	job := &models.Job{
		Title:         req.Title,
		Description:   req.Description,
		Requirements:  req.Requirements,
		MinExperience: req.MinExperience,
		CTCMin:        req.CTCMin,
		CTCMax:        req.CTCMax,
		Location:      req.Location,
		JobType:       req.JobType,
		RecruiterID:   recruiterID(c),
	}
	if err := s.Catalog.AddJob(c.Request.Context(), job, req.Skills); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (s *Server) listJobs(c *gin.Context) {
	jobs, err := s.Catalog.Jobs(c.Request.Context(), recruiterID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) getJob(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	job, ok := s.ownJob(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job)
}

// ownJob loads a job of the requesting recruiter
func (s *Server) ownJob(c *gin.Context, id int64) (*models.Job, bool) {
	job, err := s.Catalog.Job(c.Request.Context(), id)
	if err == nil && job.RecruiterID != recruiterID(c) {
		err = fmt.Errorf("job %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return job, true
}

func (s *Server) createSkill(c *gin.Context) {
	var req skillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	skill, err := s.Catalog.AddSkill(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, skill)
}

func (s *Server) listSkills(c *gin.Context) {
	skills, err := s.Catalog.Skills(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"skills": skills})
}
