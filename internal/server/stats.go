package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/khrees2412/callscreen/internal/stats"
)

func (s *Server) dashboard(c *gin.Context) {
	d, err := stats.Collect(c.Request.Context(), s.Store, recruiterID(c), s.Registry.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
