package models

import "strings"

// SubscriptionStatus models the subscription lifecycle state machine.
type SubscriptionStatus string

const (
	SubscriptionStatusActive      SubscriptionStatus = "active"
	SubscriptionStatusNonRenewing SubscriptionStatus = "non-renewing"
	SubscriptionStatusCancelled   SubscriptionStatus = "cancelled"
	SubscriptionStatusCompleted   SubscriptionStatus = "completed"
	SubscriptionStatusAttention   SubscriptionStatus = "attention"
	SubscriptionStatusExpired     SubscriptionStatus = "expired"
)

// subscriptionTransitions holds the allowed state transitions. Completed and
// expired are terminal.
var subscriptionTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusActive:      {SubscriptionStatusNonRenewing, SubscriptionStatusCancelled, SubscriptionStatusAttention},
	SubscriptionStatusNonRenewing: {SubscriptionStatusActive, SubscriptionStatusCancelled, SubscriptionStatusCompleted},
	SubscriptionStatusAttention:   {SubscriptionStatusActive, SubscriptionStatusCancelled, SubscriptionStatusExpired},
	SubscriptionStatusCancelled:   {SubscriptionStatusActive},
	SubscriptionStatusCompleted:   {},
	SubscriptionStatusExpired:     {},
}

// SubscriptionStatusFromString maps a provider status string onto a state,
// tolerating the separators and synonyms providers use.
func SubscriptionStatusFromString(raw string) (SubscriptionStatus, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", "-")

	switch s {
	case "active", "enabled":
		return SubscriptionStatusActive, true
	case "non-renewing", "will-not-renew", "nonrenewing":
		return SubscriptionStatusNonRenewing, true
	case "cancelled", "canceled":
		return SubscriptionStatusCancelled, true
	case "completed", "complete":
		return SubscriptionStatusCompleted, true
	case "attention", "past-due", "incomplete":
		return SubscriptionStatusAttention, true
	case "expired":
		return SubscriptionStatusExpired, true
	}
	return "", false
}

// CanTransitionTo reports whether moving from s to target is a legal
// lifecycle transition.
func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	for _, allowed := range subscriptionTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// CanBeCancelled reports whether a cancel request is valid in this state.
func (s SubscriptionStatus) CanBeCancelled() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusNonRenewing, SubscriptionStatusAttention:
		return true
	}
	return false
}

// CanBeResumed reports whether the subscription can be re-enabled.
func (s SubscriptionStatus) CanBeResumed() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusNonRenewing
}

// IsTerminal reports whether no further transitions are allowed.
func (s SubscriptionStatus) IsTerminal() bool {
	return len(subscriptionTransitions[s]) == 0 && (s == SubscriptionStatusCompleted || s == SubscriptionStatusExpired)
}
