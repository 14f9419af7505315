package tripwire

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Manager owns the breaker state machine. States per rule: Enabled
// (initial) and Disabled. Enabled→Disabled happens atomically inside
// RecordViolation when the windowed count reaches the rule's threshold.
// Disabled→Enabled happens only through Reset: either the automatic
// cooldown (checked lazily on IsEnabled) or an administrative call.
//
// Tripping protects the user population at the cost of temporarily
// losing the protective rule itself. That trade-off is deliberate: a
// rule misfiring pathologically (say, a bad heuristic restricting a
// burst of legitimate users) does bounded damage before the breaker
// takes it out of the dispatch path.
type Manager struct {
	store    Store
	settings map[string]Settings
	defaults Settings
	nowFn    func() time.Time
}

// NewManager builds a Manager. settings carries each configured rule's
// Threshold/Window/ResetCooldown; rules not present fall back to
// defaults (fail-open: unknown rules start enabled).
func NewManager(store Store, settings map[string]Settings, defaults Settings) *Manager {
	cp := make(map[string]Settings, len(settings))
	for name, s := range settings {
		cp[name] = s
	}
	return &Manager{
		store:    store,
		settings: cp,
		defaults: defaults,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// Known reports whether the rule was configured at startup. The admin
// reset endpoint uses it to reject typo'd rule names.
func (m *Manager) Known(rule string) bool {
	_, ok := m.settings[rule]
	return ok
}

// SettingsFor returns the rule's breaker settings, falling back to the
// manager defaults for unconfigured rules.
func (m *Manager) SettingsFor(rule string) Settings {
	if s, ok := m.settings[rule]; ok {
		return s
	}
	return m.defaults
}

// IsEnabled reports whether the rule may evaluate and apply. A rule
// never previously seen returns true and lazily materializes its state.
// A tripped rule whose reset cooldown has elapsed is re-enabled here.
func (m *Manager) IsEnabled(ctx context.Context, rule string) (bool, error) {
	now := m.nowFn()

	st, err := m.store.GetOrInit(ctx, rule, now)
	if err != nil {
		return false, err
	}

	if st.Enabled {
		return true, nil
	}

	cooldown := m.SettingsFor(rule).ResetCooldown
	if cooldown > 0 && !st.TrippedAt.IsZero() && now.Sub(st.TrippedAt) >= cooldown {
		if err := m.store.Reset(ctx, rule, now); err != nil {
			return false, err
		}
		slog.Info("Tripwire reset: cooldown elapsed, rule re-enabled",
			"rule", rule,
			"tripped_at", st.TrippedAt,
			"cooldown", cooldown,
		)
		return true, nil
	}

	return false, nil
}

// RecordViolation counts one violation against the rule's window and
// trips the breaker when the count reaches the threshold. The trip is a
// deliberate, observable state transition, logged distinctly from rule
// failures.
func (m *Manager) RecordViolation(ctx context.Context, rule string) error {
	settings := m.SettingsFor(rule)

	st, tripped, err := m.store.RecordViolation(ctx, rule, m.nowFn(), settings)
	if err != nil {
		return err
	}

	if tripped {
		slog.Warn("Tripwire thrown: rule disabled",
			"rule", rule,
			"violation_count", st.ViolationCount,
			"threshold", settings.Threshold,
			"window", settings.Window,
		)
		return nil
	}

	slog.Debug("Tripwire violation recorded",
		"rule", rule,
		"violation_count", st.ViolationCount,
		"threshold", settings.Threshold,
	)
	return nil
}

// Reset administratively re-enables the rule with a fresh window.
func (m *Manager) Reset(ctx context.Context, rule string) error {
	if err := m.store.Reset(ctx, rule, m.nowFn()); err != nil {
		return err
	}
	slog.Info("Tripwire reset: administrative", "rule", rule)
	return nil
}

// Snapshot returns the breaker state of every configured rule, sorted by
// name. Serves the tripwire status endpoint.
func (m *Manager) Snapshot(ctx context.Context) ([]State, error) {
	names := make([]string, 0, len(m.settings))
	for name := range m.settings {
		names = append(names, name)
	}
	sort.Strings(names)

	now := m.nowFn()
	out := make([]State, 0, len(names))
	for _, name := range names {
		st, err := m.store.GetOrInit(ctx, name, now)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, nil
}
