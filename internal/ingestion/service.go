// Package ingestion exposes the event submission endpoint. Submission is
// fire-and-forget: an accepted event is durably appended to the log and
// the restriction pipeline applies it asynchronously.
package ingestion

import (
	"github.com/fenceline-lab/fenceline/internal/core/storage"
	"github.com/gin-gonic/gin"
)

type Service struct {
	log              storage.EventLog
	maxBodySizeBytes int
}

func NewService(log storage.EventLog, maxBodySizeMB int) *Service {
	if log == nil {
		panic("ingestion: event log must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		log:              log,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/events", s.SubmitHandler)
}
