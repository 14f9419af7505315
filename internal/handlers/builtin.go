package handlers

import (
	v1 "github.com/fenceline-lab/fenceline/internal/api/v1"
	"github.com/fenceline-lab/fenceline/internal/rules"
	"github.com/fenceline-lab/fenceline/internal/userstate"
)

// Builtin event names.
const (
	EventCreditCardAdded    = "credit_card_added"
	EventScamMessageFlagged = "scam_message_flagged"
	EventChargebackOccurred = "chargeback_occurred"
	EventPurchaseMade       = "purchase_made"
)

// CreditCardAddedHandler records a new card and its zip code.
// Re-adding a known card_id is a no-op.
type CreditCardAddedHandler struct{}

func (h *CreditCardAddedHandler) EventName() string { return EventCreditCardAdded }

func (h *CreditCardAddedHandler) Handle(event *v1.Event, state *userstate.UserState) error {
	cardID, err := stringProperty(event.Properties, "card_id")
	if err != nil {
		return err
	}
	zipCode, err := stringProperty(event.Properties, "zip_code")
	if err != nil {
		return err
	}

	state.AddCreditCard(cardID, zipCode)
	return nil
}

// ScamMessageFlaggedHandler counts flagged scam messages.
type ScamMessageFlaggedHandler struct{}

func (h *ScamMessageFlaggedHandler) EventName() string { return EventScamMessageFlagged }

func (h *ScamMessageFlaggedHandler) Handle(event *v1.Event, state *userstate.UserState) error {
	state.ScamMessageFlags++
	return nil
}

// ChargebackOccurredHandler accumulates chargeback amounts.
type ChargebackOccurredHandler struct{}

func (h *ChargebackOccurredHandler) EventName() string { return EventChargebackOccurred }

func (h *ChargebackOccurredHandler) Handle(event *v1.Event, state *userstate.UserState) error {
	amount, err := decimalProperty(event.Properties, "amount")
	if err != nil {
		return err
	}

	state.TotalChargebacks = state.TotalChargebacks.Add(amount)
	return nil
}

// PurchaseMadeHandler accumulates spend. No rules hang off purchases;
// the spend total feeds the chargeback ratio rule on later chargebacks.
type PurchaseMadeHandler struct{}

func (h *PurchaseMadeHandler) EventName() string { return EventPurchaseMade }

func (h *PurchaseMadeHandler) Handle(event *v1.Event, state *userstate.UserState) error {
	amount, err := decimalProperty(event.Properties, "amount")
	if err != nil {
		return err
	}

	state.TotalSpend = state.TotalSpend.Add(amount)
	return nil
}

// RegisterDefaults wires the builtin handlers and their rule
// associations into the registry.
func RegisterDefaults(registry *Registry) error {
	regs := []struct {
		handler   Handler
		ruleNames []string
	}{
		{&CreditCardAddedHandler{}, []string{rules.UniqueZipCodeRuleName}},
		{&ScamMessageFlaggedHandler{}, []string{rules.ScamFlagRuleName}},
		{&ChargebackOccurredHandler{}, []string{rules.ChargebackRatioRuleName}},
		{&PurchaseMadeHandler{}, nil},
	}

	for _, r := range regs {
		if err := registry.Register(r.handler, r.ruleNames...); err != nil {
			return err
		}
	}
	return nil
}
