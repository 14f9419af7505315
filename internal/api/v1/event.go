package v1

import (
	"fmt"
	"time"
)

// Event is the atomic unit of the system: a named behavioral occurrence
// attributed to one user, appended to the durable event log and replayed
// through the restriction pipeline in log order.
type Event struct {
	// ID is a unique identifier stamped at submission time.
	// It exists for traceability across publisher, log and consumer;
	// ordering is carried by LogPosition, not ID.
	ID string `json:"id"`

	// Name is the behavioral event name (e.g., "scam_message_flagged",
	// "credit_card_added"). It keys the handler registry lookup.
	Name string `json:"name"`

	// Properties is the event payload. Every event MUST carry a
	// non-empty string "user_id"; everything else is handler-specific.
	Properties map[string]interface{} `json:"properties"`

	// LogPosition is a monotonic sequence number assigned by the event
	// log on append (BIGSERIAL). It is the consumer's cursor unit and
	// provides strict total ordering for replay after restart.
	// Zero until the event has been appended.
	LogPosition int64 `json:"-"`

	// SubmittedAt is when the ingestion layer accepted the event
	// (server-side clock).
	SubmittedAt time.Time `json:"submitted_at"`
}

const PropertyUserID = "user_id"

// Validate ensures the event carries everything the pipeline depends on.
// Events failing validation are rejected at submission and never enter
// the log.
func (e *Event) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("name is required")
	}

	if e.Properties == nil {
		return fmt.Errorf("properties is required")
	}

	if _, err := e.UserID(); err != nil {
		return err
	}

	return nil
}

// UserID extracts the user attribution from the event properties.
func (e *Event) UserID() (string, error) {
	raw, ok := e.Properties[PropertyUserID]
	if !ok {
		return "", fmt.Errorf("properties.user_id is required")
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("properties.user_id must be a non-empty string")
	}
	return id, nil
}
