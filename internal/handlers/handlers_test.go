package handlers

import (
	"testing"

	v1 "github.com/fenceline-lab/fenceline/internal/api/v1"
	"github.com/fenceline-lab/fenceline/internal/userstate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newEvent(name string, props map[string]interface{}) *v1.Event {
	props["user_id"] = "u-1"
	return &v1.Event{ID: "evt-1", Name: name, Properties: props}
}

func TestCreditCardAddedHandler(t *testing.T) {
	h := &CreditCardAddedHandler{}
	state := userstate.New("u-1")

	err := h.Handle(newEvent(EventCreditCardAdded, map[string]interface{}{
		"card_id": "card-1", "zip_code": "10001",
	}), state)
	require.NoError(t, err)
	require.Equal(t, 1, state.TotalCreditCards())

	// Same card again: no double count.
	err = h.Handle(newEvent(EventCreditCardAdded, map[string]interface{}{
		"card_id": "card-1", "zip_code": "10002",
	}), state)
	require.NoError(t, err)
	require.Equal(t, 1, state.TotalCreditCards())
	require.Equal(t, 1, state.UniqueZipCodeCount())
}

func TestCreditCardAddedHandlerMissingFields(t *testing.T) {
	h := &CreditCardAddedHandler{}
	state := userstate.New("u-1")

	err := h.Handle(newEvent(EventCreditCardAdded, map[string]interface{}{
		"zip_code": "10001",
	}), state)
	require.ErrorContains(t, err, `"card_id" is required`)

	err = h.Handle(newEvent(EventCreditCardAdded, map[string]interface{}{
		"card_id": "card-1",
	}), state)
	require.ErrorContains(t, err, `"zip_code" is required`)

	require.Equal(t, 0, state.TotalCreditCards())
}

func TestScamMessageFlaggedHandler(t *testing.T) {
	h := &ScamMessageFlaggedHandler{}
	state := userstate.New("u-1")

	for i := 1; i <= 3; i++ {
		require.NoError(t, h.Handle(newEvent(EventScamMessageFlagged, map[string]interface{}{}), state))
		require.Equal(t, i, state.ScamMessageFlags)
	}
}

func TestAmountHandlers(t *testing.T) {
	state := userstate.New("u-1")

	purchase := &PurchaseMadeHandler{}
	require.NoError(t, purchase.Handle(newEvent(EventPurchaseMade, map[string]interface{}{
		"amount": 100.0,
	}), state))
	require.NoError(t, purchase.Handle(newEvent(EventPurchaseMade, map[string]interface{}{
		"amount": 200.0,
	}), state))
	require.True(t, state.TotalSpend.Equal(decimal.NewFromInt(300)))

	chargeback := &ChargebackOccurredHandler{}
	require.NoError(t, chargeback.Handle(newEvent(EventChargebackOccurred, map[string]interface{}{
		"amount": 25.0,
	}), state))
	require.True(t, state.TotalChargebacks.Equal(decimal.NewFromInt(25)))

	err := chargeback.Handle(newEvent(EventChargebackOccurred, map[string]interface{}{}), state)
	require.ErrorContains(t, err, `"amount" is required`)
}

func TestDecimalPropertyFromString(t *testing.T) {
	state := userstate.New("u-1")

	purchase := &PurchaseMadeHandler{}
	require.NoError(t, purchase.Handle(newEvent(EventPurchaseMade, map[string]interface{}{
		"amount": "19.99",
	}), state))
	require.True(t, state.TotalSpend.Equal(decimal.RequireFromString("19.99")))

	err := purchase.Handle(newEvent(EventPurchaseMade, map[string]interface{}{
		"amount": true,
	}), state)
	require.ErrorContains(t, err, `"amount" must be numeric`)
}

func TestRegistryDuplicateRegistrationFails(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(&ScamMessageFlaggedHandler{}))
	err := registry.Register(&ScamMessageFlaggedHandler{})
	require.ErrorContains(t, err, "already registered")
}

func TestRegisterDefaults(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, RegisterDefaults(registry))

	reg, ok := registry.Lookup(EventScamMessageFlagged)
	require.True(t, ok)
	require.Equal(t, []string{"scam_flag_rule"}, reg.RuleNames)

	reg, ok = registry.Lookup(EventPurchaseMade)
	require.True(t, ok)
	require.Empty(t, reg.RuleNames)

	_, ok = registry.Lookup("unknown_event")
	require.False(t, ok)
}
