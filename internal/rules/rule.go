// Package rules holds the evaluable restriction rules and the engine
// that runs them against per-user state under tripwire gating.
package rules

import (
	"github.com/fenceline-lab/fenceline/internal/userstate"
)

// Rule is a predicate/action pair over one user's state. Evaluate is a
// pure check of the current state; Apply restricts a feature, typically
// clearing one access flag. Rules are stateless aside from the UserState
// they read and write, which is what lets the tripwire disable them
// globally without coordination.
type Rule interface {
	Name() string
	Evaluate(state *userstate.UserState) (bool, error)
	Apply(state *userstate.UserState) error
}
