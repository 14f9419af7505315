package rules

import (
	"fmt"

	"github.com/fenceline-lab/fenceline/internal/userstate"
	"github.com/shopspring/decimal"
)

// Builtin rule names. These are the keys handler registrations refer to
// and the keys the tripwire tracks.
const (
	ScamFlagRuleName        = "scam_flag_rule"
	UniqueZipCodeRuleName   = "unique_zip_code_rule"
	ChargebackRatioRuleName = "chargeback_ratio_rule"
)

// ScamFlagRule clears can_message once a user accumulates FlagThreshold
// scam message flags.
type ScamFlagRule struct {
	FlagThreshold int
}

func (r *ScamFlagRule) Name() string { return ScamFlagRuleName }

func (r *ScamFlagRule) Evaluate(state *userstate.UserState) (bool, error) {
	return state.ScamMessageFlags >= r.FlagThreshold, nil
}

func (r *ScamFlagRule) Apply(state *userstate.UserState) error {
	state.ClearFlag(userstate.FlagCanMessage)
	return nil
}

// UniqueZipCodeRule clears can_purchase when the ratio of unique zip
// codes to credit cards on file exceeds MaxRatio. A user with no cards
// never matches.
type UniqueZipCodeRule struct {
	MaxRatio float64
}

func (r *UniqueZipCodeRule) Name() string { return UniqueZipCodeRuleName }

func (r *UniqueZipCodeRule) Evaluate(state *userstate.UserState) (bool, error) {
	total := state.TotalCreditCards()
	if total == 0 {
		return false, nil
	}
	ratio := float64(state.UniqueZipCodeCount()) / float64(total)
	return ratio > r.MaxRatio, nil
}

func (r *UniqueZipCodeRule) Apply(state *userstate.UserState) error {
	state.ClearFlag(userstate.FlagCanPurchase)
	return nil
}

// ChargebackRatioRule clears can_purchase when total chargebacks exceed
// MaxRatio of total spend. A user with zero spend never matches.
type ChargebackRatioRule struct {
	MaxRatio decimal.Decimal
}

func (r *ChargebackRatioRule) Name() string { return ChargebackRatioRuleName }

func (r *ChargebackRatioRule) Evaluate(state *userstate.UserState) (bool, error) {
	if !state.TotalSpend.IsPositive() {
		return false, nil
	}
	ratio := state.TotalChargebacks.Div(state.TotalSpend)
	return ratio.GreaterThan(r.MaxRatio), nil
}

func (r *ChargebackRatioRule) Apply(state *userstate.UserState) error {
	state.ClearFlag(userstate.FlagCanPurchase)
	return nil
}

// BuildBuiltinRules constructs the builtin rule set from loaded
// settings. Settings for unknown rule names are rejected so a typo in a
// rule file fails at startup rather than silently configuring nothing.
func BuildBuiltinRules(settings map[string]RuleSettings) ([]Rule, error) {
	for name := range settings {
		switch name {
		case ScamFlagRuleName, UniqueZipCodeRuleName, ChargebackRatioRuleName:
		default:
			return nil, fmt.Errorf("settings reference unknown rule %q", name)
		}
	}

	scam := settings[ScamFlagRuleName]
	zip := settings[UniqueZipCodeRuleName]
	chargeback := settings[ChargebackRatioRuleName]

	return []Rule{
		&ScamFlagRule{FlagThreshold: scam.FlagThreshold},
		&UniqueZipCodeRule{MaxRatio: zip.MaxRatio},
		&ChargebackRatioRule{MaxRatio: decimal.NewFromFloat(chargeback.MaxRatio)},
	}, nil
}
