package rules

import (
	"testing"

	"github.com/fenceline-lab/fenceline/internal/userstate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestScamFlagRule(t *testing.T) {
	rule := &ScamFlagRule{FlagThreshold: 3}

	tests := []struct {
		name  string
		flags int
		want  bool
	}{
		{name: "below threshold", flags: 2, want: false},
		{name: "at threshold", flags: 3, want: true},
		{name: "above threshold", flags: 5, want: true},
		{name: "zero", flags: 0, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			state := userstate.New("u-1")
			state.ScamMessageFlags = tc.flags

			matched, err := rule.Evaluate(state)
			require.NoError(t, err)
			require.Equal(t, tc.want, matched)
		})
	}
}

func TestScamFlagRuleApplyClearsCanMessage(t *testing.T) {
	rule := &ScamFlagRule{FlagThreshold: 3}
	state := userstate.New("u-1")

	require.NoError(t, rule.Apply(state))
	require.False(t, state.FlagAllowed(userstate.FlagCanMessage))
	require.True(t, state.FlagAllowed(userstate.FlagCanPurchase))
}

func TestUniqueZipCodeRule(t *testing.T) {
	rule := &UniqueZipCodeRule{MaxRatio: 0.75}

	t.Run("no cards never matches", func(t *testing.T) {
		state := userstate.New("u-1")
		matched, err := rule.Evaluate(state)
		require.NoError(t, err)
		require.False(t, matched)
	})

	t.Run("all unique zips matches", func(t *testing.T) {
		state := userstate.New("u-1")
		state.AddCreditCard("c-1", "10001")
		state.AddCreditCard("c-2", "10002")

		matched, err := rule.Evaluate(state)
		require.NoError(t, err)
		require.True(t, matched)
	})

	t.Run("repeated zips below ratio", func(t *testing.T) {
		state := userstate.New("u-1")
		state.AddCreditCard("c-1", "10001")
		state.AddCreditCard("c-2", "10001")
		state.AddCreditCard("c-3", "10001")
		state.AddCreditCard("c-4", "10002")

		// 2 unique zips over 4 cards: ratio 0.5.
		matched, err := rule.Evaluate(state)
		require.NoError(t, err)
		require.False(t, matched)
	})
}

func TestChargebackRatioRule(t *testing.T) {
	rule := &ChargebackRatioRule{MaxRatio: decimal.NewFromFloat(0.10)}

	t.Run("zero spend never matches", func(t *testing.T) {
		state := userstate.New("u-1")
		state.TotalChargebacks = decimal.NewFromInt(50)

		matched, err := rule.Evaluate(state)
		require.NoError(t, err)
		require.False(t, matched)
	})

	t.Run("ratio below threshold", func(t *testing.T) {
		state := userstate.New("u-1")
		state.TotalSpend = decimal.NewFromInt(300)
		state.TotalChargebacks = decimal.NewFromInt(25)

		matched, err := rule.Evaluate(state)
		require.NoError(t, err)
		require.False(t, matched)
	})

	t.Run("ratio above threshold", func(t *testing.T) {
		state := userstate.New("u-1")
		state.TotalSpend = decimal.NewFromInt(300)
		state.TotalChargebacks = decimal.NewFromInt(35)

		matched, err := rule.Evaluate(state)
		require.NoError(t, err)
		require.True(t, matched)
	})

	t.Run("exact threshold does not match", func(t *testing.T) {
		state := userstate.New("u-1")
		state.TotalSpend = decimal.NewFromInt(100)
		state.TotalChargebacks = decimal.NewFromInt(10)

		matched, err := rule.Evaluate(state)
		require.NoError(t, err)
		require.False(t, matched)
	})
}

func TestBuildBuiltinRulesRejectsUnknownName(t *testing.T) {
	settings := DefaultSettings()
	settings["no_such_rule"] = RuleSettings{Name: "no_such_rule"}

	_, err := BuildBuiltinRules(settings)
	require.ErrorContains(t, err, "unknown rule")
}
