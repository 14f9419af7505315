package userstate

import (
	"github.com/shopspring/decimal"
)

// Feature flags known to the builtin rules. The flag space is open:
// unknown flags read as allowed.
const (
	FlagCanMessage  = "can_message"
	FlagCanPurchase = "can_purchase"
)

// UserState is the per-user record: behavioral counters mutated by event
// handlers, and feature-enablement flags cleared by rule application.
// Records are created lazily on first reference and never deleted by the
// engine. Flags are only ever cleared to false by a rule's Apply;
// restoration is a deliberate administrative action, not something the
// engine does implicitly.
type UserState struct {
	UserID string `json:"user_id"`

	// ScamMessageFlags counts scam_message_flagged events for this user.
	ScamMessageFlags int `json:"scam_message_flags"`

	// CreditCards maps card_id -> zip_code. Card and zip counts are
	// derived from this map rather than kept as separate counters.
	CreditCards map[string]string `json:"credit_cards"`

	// TotalSpend and TotalChargebacks use exact decimal arithmetic;
	// the chargeback ratio rule divides one by the other.
	TotalSpend       decimal.Decimal `json:"total_spend"`
	TotalChargebacks decimal.Decimal `json:"total_chargebacks"`

	// AccessFlags holds feature enablement. Absent means allowed.
	AccessFlags map[string]bool `json:"access_flags"`
}

// New returns a fresh user record with every feature allowed.
func New(userID string) *UserState {
	return &UserState{
		UserID:      userID,
		CreditCards: make(map[string]string),
		AccessFlags: map[string]bool{
			FlagCanMessage:  true,
			FlagCanPurchase: true,
		},
	}
}

// FlagAllowed reports whether a feature is enabled for the user.
// Unknown flags default to allowed.
func (s *UserState) FlagAllowed(name string) bool {
	allowed, ok := s.AccessFlags[name]
	if !ok {
		return true
	}
	return allowed
}

// ClearFlag disables a feature. Flags are never re-enabled here.
func (s *UserState) ClearFlag(name string) {
	if s.AccessFlags == nil {
		s.AccessFlags = make(map[string]bool)
	}
	s.AccessFlags[name] = false
}

// AddCreditCard records a card. Re-adding a known card_id is a no-op;
// returns whether the card was new.
func (s *UserState) AddCreditCard(cardID, zipCode string) bool {
	if s.CreditCards == nil {
		s.CreditCards = make(map[string]string)
	}
	if _, exists := s.CreditCards[cardID]; exists {
		return false
	}
	s.CreditCards[cardID] = zipCode
	return true
}

// TotalCreditCards is the number of distinct cards on file.
func (s *UserState) TotalCreditCards() int {
	return len(s.CreditCards)
}

// UniqueZipCodeCount is the number of distinct zip codes across cards.
func (s *UserState) UniqueZipCodeCount() int {
	seen := make(map[string]struct{}, len(s.CreditCards))
	for _, zip := range s.CreditCards {
		seen[zip] = struct{}{}
	}
	return len(seen)
}

// Clone returns a deep copy. Store implementations hand out copies so a
// reader never observes a half-updated record.
func (s *UserState) Clone() *UserState {
	cp := *s
	cp.CreditCards = make(map[string]string, len(s.CreditCards))
	for k, v := range s.CreditCards {
		cp.CreditCards[k] = v
	}
	cp.AccessFlags = make(map[string]bool, len(s.AccessFlags))
	for k, v := range s.AccessFlags {
		cp.AccessFlags[k] = v
	}
	return &cp
}
