package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionStatusFromString(t *testing.T) {
	tests := []struct {
		raw  string
		want SubscriptionStatus
		ok   bool
	}{
		{"active", SubscriptionStatusActive, true},
		{"enabled", SubscriptionStatusActive, true},
		{"ACTIVE", SubscriptionStatusActive, true},
		{"non-renewing", SubscriptionStatusNonRenewing, true},
		{"non_renewing", SubscriptionStatusNonRenewing, true},
		{"will-not-renew", SubscriptionStatusNonRenewing, true},
		{"cancelled", SubscriptionStatusCancelled, true},
		{"canceled", SubscriptionStatusCancelled, true},
		{"completed", SubscriptionStatusCompleted, true},
		{"complete", SubscriptionStatusCompleted, true},
		{"attention", SubscriptionStatusAttention, true},
		{"past_due", SubscriptionStatusAttention, true},
		{"incomplete", SubscriptionStatusAttention, true},
		{"expired", SubscriptionStatusExpired, true},
		{" active ", SubscriptionStatusActive, true},
		{"trialing", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := SubscriptionStatusFromString(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubscriptionTransitions(t *testing.T) {
	tests := []struct {
		from    SubscriptionStatus
		to      SubscriptionStatus
		allowed bool
	}{
		{SubscriptionStatusActive, SubscriptionStatusNonRenewing, true},
		{SubscriptionStatusActive, SubscriptionStatusCancelled, true},
		{SubscriptionStatusActive, SubscriptionStatusAttention, true},
		{SubscriptionStatusActive, SubscriptionStatusCompleted, false},
		{SubscriptionStatusNonRenewing, SubscriptionStatusActive, true},
		{SubscriptionStatusNonRenewing, SubscriptionStatusCompleted, true},
		{SubscriptionStatusNonRenewing, SubscriptionStatusExpired, false},
		{SubscriptionStatusAttention, SubscriptionStatusActive, true},
		{SubscriptionStatusAttention, SubscriptionStatusExpired, true},
		{SubscriptionStatusAttention, SubscriptionStatusCompleted, false},
		{SubscriptionStatusCancelled, SubscriptionStatusActive, true},
		{SubscriptionStatusCancelled, SubscriptionStatusAttention, false},
		{SubscriptionStatusCompleted, SubscriptionStatusActive, false},
		{SubscriptionStatusExpired, SubscriptionStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSubscriptionStatusPredicates(t *testing.T) {
	assert.True(t, SubscriptionStatusActive.CanBeCancelled())
	assert.True(t, SubscriptionStatusNonRenewing.CanBeCancelled())
	assert.True(t, SubscriptionStatusAttention.CanBeCancelled())
	assert.False(t, SubscriptionStatusCancelled.CanBeCancelled())
	assert.False(t, SubscriptionStatusCompleted.CanBeCancelled())

	assert.True(t, SubscriptionStatusCancelled.CanBeResumed())
	assert.True(t, SubscriptionStatusNonRenewing.CanBeResumed())
	assert.False(t, SubscriptionStatusActive.CanBeResumed())
	assert.False(t, SubscriptionStatusExpired.CanBeResumed())

	assert.True(t, SubscriptionStatusCompleted.IsTerminal())
	assert.True(t, SubscriptionStatusExpired.IsTerminal())
	assert.False(t, SubscriptionStatusCancelled.IsTerminal())
	assert.False(t, SubscriptionStatusActive.IsTerminal())
}

func TestPaymentStatusPredicates(t *testing.T) {
	assert.True(t, PaymentStatusSuccess.IsSuccess())
	assert.True(t, PaymentStatusSuccess.IsTerminal())
	assert.True(t, PaymentStatusFailed.IsFailed())
	assert.True(t, PaymentStatusCancelled.IsFailed())
	assert.False(t, PaymentStatusFailed.IsTerminal())
	assert.True(t, PaymentStatusPending.IsPending())
	assert.False(t, PaymentStatusPending.IsTerminal())
}
