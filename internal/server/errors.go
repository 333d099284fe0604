package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"polyfit/pkg/polyfit"
)

var errRunNotFound = errors.New("run not found")

func statusOf(err error) int {
	switch {
	case errors.Is(err, errRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, polyfit.ErrConfiguration), errors.Is(err, polyfit.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, polyfit.ErrRunInFlight), errors.Is(err, polyfit.ErrRunExists):
		return http.StatusConflict
	case errors.Is(err, polyfit.ErrEmptyPopulation),
		errors.Is(err, polyfit.ErrDivisionByZero),
		errors.Is(err, polyfit.ErrNoTarget):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
