// Package tripwire implements the per-rule circuit breaker that guards
// the rule engine against pathological misfires. A rule that records too
// many violations inside one window is disabled for ALL users until it
// is reset, trading the rule's protection for a capped blast radius.
package tripwire

import "time"

// Settings configures one rule's breaker.
type Settings struct {
	// Threshold is the violation count that trips the breaker. The flip
	// happens the instant the post-increment count reaches Threshold
	// within an active window.
	Threshold int

	// Window is the rolling violation-counting window. When the current
	// time exceeds window_start + Window, the count resets and the
	// window rolls forward.
	Window time.Duration

	// ResetCooldown re-enables a tripped rule this long after the trip.
	// Zero disables automatic reset: only an administrative reset
	// re-enables the rule.
	ResetCooldown time.Duration
}

// State is the persisted breaker record for one rule.
type State struct {
	RuleName       string    `json:"rule_name"`
	ViolationCount int       `json:"violation_count"`
	WindowStart    time.Time `json:"window_start"`
	Enabled        bool      `json:"enabled"`

	// TrippedAt is the moment the breaker last flipped to disabled.
	// Zero while the rule has never tripped.
	TrippedAt time.Time `json:"tripped_at,omitempty"`
}
