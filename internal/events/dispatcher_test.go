package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDispatchInvokesHandlersInOrder(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var order []string
	d.Subscribe(WebhookReceivedName, func(ctx context.Context, e Event) {
		order = append(order, "first")
	})
	d.Subscribe(WebhookReceivedName, func(ctx context.Context, e Event) {
		order = append(order, "second")
	})

	d.Dispatch(context.Background(), WebhookReceived{Provider: "paystack"})

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatchOnlyMatchingEventName(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var created, cancelled int
	d.Subscribe(SubscriptionCreatedName, func(ctx context.Context, e Event) { created++ })
	d.Subscribe(SubscriptionCancelledName, func(ctx context.Context, e Event) { cancelled++ })

	d.Dispatch(context.Background(), SubscriptionCreated{SubscriptionCode: "SUB_1"})

	assert.Equal(t, 1, created)
	assert.Zero(t, cancelled)
}

func TestDispatchNoSubscribersIsNoop(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), SubscriptionRenewed{SubscriptionCode: "SUB_2"})
	})
}

func TestDispatchRecoversPanickingHandler(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var after bool
	d.Subscribe(WebhookReceivedName, func(ctx context.Context, e Event) {
		panic("handler bug")
	})
	d.Subscribe(WebhookReceivedName, func(ctx context.Context, e Event) {
		after = true
	})

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), WebhookReceived{Provider: "stripe"})
	})
	// The panic in the first handler must not starve the second.
	assert.True(t, after)
}

func TestEventNames(t *testing.T) {
	assert.Equal(t, "webhook.received", WebhookReceived{}.EventName())
	assert.Equal(t, "subscription.created", SubscriptionCreated{}.EventName())
	assert.Equal(t, "subscription.renewed", SubscriptionRenewed{}.EventName())
	assert.Equal(t, "subscription.cancelled", SubscriptionCancelled{}.EventName())
	assert.Equal(t, "subscription.payment_failed", SubscriptionPaymentFailed{}.EventName())
}
