package handlers

import (
	"fmt"
)

// Registration pairs a handler with the ordered rule names evaluated
// after it runs.
type Registration struct {
	Handler   Handler
	RuleNames []string
}

// Registry is the static event-name → handler dispatch table. It is
// built once at process start and never mutated afterward, keeping
// lookups race-free for the consumer.
type Registry struct {
	handlers map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Registration),
	}
}

// Register adds a handler keyed by its event name. At most one handler
// per event name: a duplicate registration is an error, so a
// misconfigured process fails at startup deterministically rather than
// silently shadowing a handler.
func (r *Registry) Register(handler Handler, ruleNames ...string) error {
	name := handler.EventName()
	if name == "" {
		return fmt.Errorf("handler must have an event name")
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("a handler for event %q is already registered", name)
	}

	r.handlers[name] = Registration{
		Handler:   handler,
		RuleNames: append([]string(nil), ruleNames...),
	}
	return nil
}

// Lookup returns the registration for an event name. A miss is not an
// error: events with no handler are committed and ignored.
func (r *Registry) Lookup(eventName string) (Registration, bool) {
	reg, ok := r.handlers[eventName]
	return reg, ok
}
