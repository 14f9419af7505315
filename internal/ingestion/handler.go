package ingestion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	httperr "github.com/fenceline-lab/fenceline/internal/core/errors"
	"github.com/fenceline-lab/fenceline/internal/core/storage"

	v1 "github.com/fenceline-lab/fenceline/internal/api/v1"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgAppendFailed   = "Failed to append event to log"
	msgLogUnavailable = "Event log temporarily unavailable"
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// SubmitHandler handles HTTP POST requests for event submission.
func (s *Service) SubmitHandler(c *gin.Context) {
	evt, payloadSize, err := s.parseEvent(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := validateEvent(evt); err != nil {
		writeError(c, err)
		return
	}

	slog.Info("Received Event",
		"event_id", evt.ID,
		"name", evt.Name,
		"payload_size", payloadSize)

	position, err := s.appendEvent(c.Request.Context(), evt)
	if err != nil {
		writeError(c, err)
		return
	}

	// Event is durable in the log. The consumer applies it asynchronously;
	// the caller must not assume restrictions are in effect yet.
	c.JSON(http.StatusAccepted, gin.H{
		"status":       "accepted",
		"event_id":     evt.ID,
		"log_position": position,
	})
}

// parseEvent reads the raw request body and binds it into an Event struct.
// Returns the parsed event and the raw payload size (used for structured logging upstream).
func (s *Service) parseEvent(c *gin.Context) (*v1.Event, int, *ingestionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var evt v1.Event
	if err := c.ShouldBindJSON(&evt); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	// Identity and receipt time are server-assigned; client values are
	// overwritten.
	evt.ID = uuid.New().String()
	evt.SubmittedAt = time.Now().UTC()
	return &evt, len(bodyBytes), nil
}

// validateEvent rejects events the pipeline could never attribute:
// missing name, missing properties, or a missing/non-string user_id.
func validateEvent(evt *v1.Event) *ingestionError {
	if err := evt.Validate(); err != nil {
		slog.Warn("Event validation failed", "error", err, "name", evt.Name)
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    err.Error(),
		}
	}
	return nil
}

// appendEvent writes the event to the durable log and returns its
// assigned position.
func (s *Service) appendEvent(ctx context.Context, evt *v1.Event) (int64, *ingestionError) {
	position, err := s.log.Append(ctx, evt)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			slog.Error("Event log unavailable", "error", err, "event_id", evt.ID)
			return 0, &ingestionError{
				statusCode: http.StatusServiceUnavailable,
				errorType:  httperr.HttpStoreUnavailable,
				message:    msgLogUnavailable,
			}
		}

		slog.Error("Failed to append event", "error", err, "event_id", evt.ID)
		return 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpLogAppendError,
			message:    msgAppendFailed,
		}
	}

	return position, nil
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
