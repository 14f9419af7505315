package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fenceline-lab/fenceline/internal/core/storage"
	"github.com/fenceline-lab/fenceline/internal/tripwire"
	"github.com/fenceline-lab/fenceline/internal/userstate"
)

// Engine evaluates and applies rules against a user's state, subject to
// tripwire gating. Registration happens once at process start; the rule
// table is never mutated at runtime, keeping dispatch race-free.
type Engine struct {
	rules     map[string]Rule
	tripwires *tripwire.Manager
}

func NewEngine(tripwires *tripwire.Manager) *Engine {
	return &Engine{
		rules:     make(map[string]Rule),
		tripwires: tripwires,
	}
}

// Register adds a rule to the dispatch table. Duplicate names fail so a
// misconfigured process dies at startup instead of shadowing a rule.
func (e *Engine) Register(rule Rule) error {
	name := rule.Name()
	if name == "" {
		return fmt.Errorf("rule must have a name")
	}
	if _, exists := e.rules[name]; exists {
		return fmt.Errorf("a rule named %q is already registered", name)
	}
	e.rules[name] = rule
	return nil
}

// Run processes the named rules in order against the shared state.
//
// Per rule: a tripwire-disabled rule is skipped entirely (no evaluate,
// no apply, no violation recorded). An enabled rule that evaluates true
// has Apply called, then the violation recorded. One rule's Apply is
// visible to later rules in the same run via the shared state.
//
// Evaluate/Apply errors are rule failures: logged, treated as "rule did
// not fire", remaining rules continue. Store outages from the tripwire
// abort the run so the consumer can retry without committing.
//
// Returns the names of rules that fired.
func (e *Engine) Run(ctx context.Context, ruleNames []string, state *userstate.UserState) ([]string, error) {
	var fired []string

	for _, name := range ruleNames {
		rule, ok := e.rules[name]
		if !ok {
			slog.Warn("Rule referenced by handler is not registered", "rule", name)
			continue
		}

		enabled, err := e.tripwires.IsEnabled(ctx, name)
		if err != nil {
			return fired, fmt.Errorf("tripwire check for %s: %w", name, err)
		}
		if !enabled {
			slog.Debug("Rule skipped: disabled via tripwire", "rule", name, "user_id", state.UserID)
			continue
		}

		matched, err := rule.Evaluate(state)
		if err != nil {
			slog.Error("Rule evaluation failed", "rule", name, "user_id", state.UserID, "error", err)
			continue
		}
		if !matched {
			continue
		}

		if err := rule.Apply(state); err != nil {
			if errors.Is(err, storage.ErrUnavailable) {
				return fired, fmt.Errorf("apply %s: %w", name, err)
			}
			slog.Error("Rule apply failed", "rule", name, "user_id", state.UserID, "error", err)
			continue
		}

		if err := e.tripwires.RecordViolation(ctx, name); err != nil {
			return fired, fmt.Errorf("record violation for %s: %w", name, err)
		}

		slog.Info("Rule applied", "rule", name, "user_id", state.UserID)
		fired = append(fired, name)
	}

	return fired, nil
}
