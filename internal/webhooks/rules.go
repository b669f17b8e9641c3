package webhooks

import "strings"

// SubscriptionEventKind is the classified variant of a subscription-related
// webhook.
type SubscriptionEventKind int

const (
	SubscriptionEventUnknown SubscriptionEventKind = iota
	SubscriptionEventCreated
	SubscriptionEventRenewed
	SubscriptionEventCancelled
	SubscriptionEventPaymentFailed
)

func (k SubscriptionEventKind) String() string {
	switch k {
	case SubscriptionEventCreated:
		return "created"
	case SubscriptionEventRenewed:
		return "renewed"
	case SubscriptionEventCancelled:
		return "cancelled"
	case SubscriptionEventPaymentFailed:
		return "payment_failed"
	default:
		return "unknown"
	}
}

// invoicePaymentKeywords route invoice events into the subscription branch
// even though their event type never mentions "subscription".
var invoicePaymentKeywords = []string{
	"invoice.payment_succeeded",
	"invoice.payment_failed",
	"invoice.paid",
	"invoice.updated",
}

// subscriptionRules is the ordered classification table. Rules are evaluated
// top to bottom and the first keyword hit wins, so creation outranks renewal,
// renewal outranks cancellation, and cancellation outranks payment failure.
// Keyword overlap across categories makes this order load-bearing; the tests
// pin it per rule.
var subscriptionRules = []struct {
	kind     SubscriptionEventKind
	keywords []string
}{
	{
		kind:     SubscriptionEventCreated,
		keywords: []string{"subscription.create", "subscription.created"},
	},
	{
		kind:     SubscriptionEventRenewed,
		keywords: []string{"invoice.payment_succeeded", "invoice.paid", "subscription.renew"},
	},
	{
		kind: SubscriptionEventCancelled,
		keywords: []string{
			"subscription.disable", "subscription.cancel",
			"subscription.deleted", "subscription.not_renew",
		},
	},
	{
		kind:     SubscriptionEventPaymentFailed,
		keywords: []string{"invoice.payment_failed", "subscription.payment_failed"},
	},
}

// eventTypeFields are the payload fields an event type may arrive under.
var eventTypeFields = []string{"event", "eventType", "event_type", "type"}

// extractEventType pulls the lowercased event type out of a decoded payload.
func extractEventType(payload map[string]any) string {
	for _, field := range eventTypeFields {
		if v, ok := payload[field].(string); ok && v != "" {
			return strings.ToLower(strings.TrimSpace(v))
		}
	}
	return ""
}

// isSubscriptionEvent reports whether the event type belongs to the
// subscription branch: anything mentioning "subscription" plus the invoice
// payment events.
func isSubscriptionEvent(eventType string) bool {
	if strings.Contains(eventType, "subscription") {
		return true
	}
	for _, keyword := range invoicePaymentKeywords {
		if strings.Contains(eventType, keyword) {
			return true
		}
	}
	return false
}

// classifySubscriptionEvent resolves the event variant by scanning the rule
// table in order.
func classifySubscriptionEvent(eventType string) SubscriptionEventKind {
	for _, rule := range subscriptionRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(eventType, keyword) {
				return rule.kind
			}
		}
	}
	return SubscriptionEventUnknown
}
