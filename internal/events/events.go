// Package events carries the domain events the webhook processor emits for
// external subscribers.
package events

// Event names.
const (
	WebhookReceivedName           = "webhook.received"
	SubscriptionCreatedName       = "subscription.created"
	SubscriptionRenewedName       = "subscription.renewed"
	SubscriptionCancelledName     = "subscription.cancelled"
	SubscriptionPaymentFailedName = "subscription.payment_failed"
)

// Event is a dispatched domain event.
type Event interface {
	EventName() string
}

// WebhookReceived is dispatched for every accepted webhook, after any
// branch-specific handling.
type WebhookReceived struct {
	Provider  string
	Payload   map[string]any
	Reference string
}

func (WebhookReceived) EventName() string { return WebhookReceivedName }

// SubscriptionCreated signals a new subscription reported by a provider.
type SubscriptionCreated struct {
	SubscriptionCode string
	Provider         string
	Data             map[string]any
}

func (SubscriptionCreated) EventName() string { return SubscriptionCreatedName }

// SubscriptionRenewed signals a successful renewal charge.
type SubscriptionRenewed struct {
	SubscriptionCode string
	Provider         string
	Data             map[string]any
}

func (SubscriptionRenewed) EventName() string { return SubscriptionRenewedName }

// SubscriptionCancelled signals a cancellation reported by a provider.
type SubscriptionCancelled struct {
	SubscriptionCode string
	Provider         string
	Data             map[string]any
}

func (SubscriptionCancelled) EventName() string { return SubscriptionCancelledName }

// SubscriptionPaymentFailed signals a failed renewal charge.
type SubscriptionPaymentFailed struct {
	SubscriptionCode string
	Provider         string
	Data             map[string]any
}

func (SubscriptionPaymentFailed) EventName() string { return SubscriptionPaymentFailedName }
