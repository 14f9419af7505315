package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fenceline-lab/fenceline/internal/tripwire"
	"gopkg.in/yaml.v3"
)

// RuleSettings carries one rule's operating parameters: the breaker
// configuration plus the rule-specific knobs.
type RuleSettings struct {
	Name     string
	Tripwire tripwire.Settings

	// FlagThreshold is the scam flag count that fires scam_flag_rule.
	FlagThreshold int

	// MaxRatio is the firing threshold for the ratio rules
	// (unique zips per card, chargebacks per spend).
	MaxRatio float64
}

// rawSettings is the on-disk YAML shape, one rule per file.
type rawSettings struct {
	Name     string `yaml:"name"`
	Tripwire struct {
		Threshold     int    `yaml:"threshold"`
		Window        string `yaml:"window"`
		ResetCooldown string `yaml:"reset_cooldown"`
	} `yaml:"tripwire"`
	FlagThreshold int     `yaml:"flag_threshold"`
	MaxRatio      float64 `yaml:"max_ratio"`
}

// DefaultSettings is the builtin configuration, used as-is when no rule
// directory is configured and as the base that rule files override.
func DefaultSettings() map[string]RuleSettings {
	return map[string]RuleSettings{
		ScamFlagRuleName: {
			Name:          ScamFlagRuleName,
			Tripwire:      tripwire.Settings{Threshold: 10, Window: time.Minute, ResetCooldown: 5 * time.Minute},
			FlagThreshold: 3,
		},
		UniqueZipCodeRuleName: {
			Name:     UniqueZipCodeRuleName,
			Tripwire: tripwire.Settings{Threshold: 10, Window: time.Minute, ResetCooldown: 5 * time.Minute},
			MaxRatio: 0.75,
		},
		ChargebackRatioRuleName: {
			Name:     ChargebackRatioRuleName,
			Tripwire: tripwire.Settings{Threshold: 10, Window: time.Minute, ResetCooldown: 5 * time.Minute},
			MaxRatio: 0.10,
		},
	}
}

// LoadSettings reads per-rule *.yaml files from dir and merges them over
// the defaults. Settings are loaded once at startup and never mutated at
// runtime; there is no hot reload. A missing directory is valid
// (defaults only).
func LoadSettings(dir string) (map[string]RuleSettings, error) {
	settings := DefaultSettings()
	if dir == "" {
		return settings, nil
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rule settings dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("rule settings path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading rule settings dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading rule settings file %s: %w", path, err)
		}

		var raw rawSettings
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing rule settings file %s: %w", path, err)
		}
		if raw.Name == "" {
			continue // skip empty / comment-only files
		}

		base, ok := settings[raw.Name]
		if !ok {
			return nil, fmt.Errorf("rule settings file %s: unknown rule %q", path, raw.Name)
		}

		merged, err := mergeSettings(base, raw)
		if err != nil {
			return nil, fmt.Errorf("rule settings file %s: %w", path, err)
		}
		settings[raw.Name] = merged
	}

	return settings, nil
}

func mergeSettings(base RuleSettings, raw rawSettings) (RuleSettings, error) {
	base.Name = raw.Name

	if raw.Tripwire.Threshold != 0 {
		if raw.Tripwire.Threshold < 0 {
			return base, fmt.Errorf("rule %q: tripwire threshold must be > 0", raw.Name)
		}
		base.Tripwire.Threshold = raw.Tripwire.Threshold
	}

	if raw.Tripwire.Window != "" {
		window, err := time.ParseDuration(raw.Tripwire.Window)
		if err != nil || window <= 0 {
			return base, fmt.Errorf("rule %q: invalid tripwire window %q", raw.Name, raw.Tripwire.Window)
		}
		base.Tripwire.Window = window
	}

	if raw.Tripwire.ResetCooldown != "" {
		cooldown, err := time.ParseDuration(raw.Tripwire.ResetCooldown)
		if err != nil || cooldown < 0 {
			return base, fmt.Errorf("rule %q: invalid tripwire reset_cooldown %q", raw.Name, raw.Tripwire.ResetCooldown)
		}
		base.Tripwire.ResetCooldown = cooldown
	}

	if raw.FlagThreshold != 0 {
		if raw.FlagThreshold < 0 {
			return base, fmt.Errorf("rule %q: flag_threshold must be > 0", raw.Name)
		}
		base.FlagThreshold = raw.FlagThreshold
	}

	if raw.MaxRatio != 0 {
		if raw.MaxRatio < 0 {
			return base, fmt.Errorf("rule %q: max_ratio must be > 0", raw.Name)
		}
		base.MaxRatio = raw.MaxRatio
	}

	return base, nil
}

// TripwireSettings projects the per-rule breaker configuration in the
// shape the tripwire manager consumes.
func TripwireSettings(settings map[string]RuleSettings) map[string]tripwire.Settings {
	out := make(map[string]tripwire.Settings, len(settings))
	for name, s := range settings {
		out[name] = s.Tripwire
	}
	return out
}
