package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) listSessions(c *gin.Context) {
	if s.opts.Sessions == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "sessions unavailable"})
		return
	}
	sessions := s.opts.Sessions.Sessions()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

func (s *Server) getSession(c *gin.Context) {
	if s.opts.Sessions == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "sessions unavailable"})
		return
	}
	info, ok := s.opts.Sessions.Session(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}
