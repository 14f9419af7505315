// Package handlers maps event names to the logic that mutates user
// state, and associates each event with the rules evaluated afterward.
package handlers

import (
	v1 "github.com/fenceline-lab/fenceline/internal/api/v1"
	"github.com/fenceline-lab/fenceline/internal/userstate"
)

// Handler mutates one user's counters in response to one event type.
// Handle operates on the in-memory record; persistence is the
// dispatcher's job, so an event's handler and rule mutations land in the
// store as a single write.
type Handler interface {
	EventName() string
	Handle(event *v1.Event, state *userstate.UserState) error
}
