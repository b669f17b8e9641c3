// Package drivers contains the provider driver contract and the concrete
// Paystack and Stripe integrations.
package drivers

import (
	"context"
	"net/http"

	"paygate/internal/models"
)

// Driver is the uniform contract every provider integration satisfies.
// Optional behavior lives on SubscriptionDriver and LifecycleHooks; callers
// discover it with a type assertion, so a new driver opts in simply by
// implementing the interface.
type Driver interface {
	// Name returns the provider name, e.g. "paystack".
	Name() string

	// Charge initiates a payment at the provider.
	Charge(ctx context.Context, req *models.ChargeRequest) (*models.ChargeResponse, error)

	// Verify looks up the current state of a transaction by reference.
	Verify(ctx context.Context, reference string) (*models.VerificationResponse, error)

	// ValidateWebhook checks the provider's webhook signature over the raw
	// body. Implementations must use a constant-time comparison.
	ValidateWebhook(headers http.Header, body []byte) bool

	// HealthCheck probes the provider API for liveness.
	HealthCheck(ctx context.Context) bool

	// ExtractWebhookReference pulls the transaction reference out of a
	// decoded webhook payload.
	ExtractWebhookReference(payload map[string]any) (string, bool)

	// ExtractWebhookStatus pulls the raw provider status out of a decoded
	// webhook payload.
	ExtractWebhookStatus(payload map[string]any) (string, bool)

	// ExtractWebhookChannel pulls the payment channel out of a decoded
	// webhook payload.
	ExtractWebhookChannel(payload map[string]any) (string, bool)
}

// SubscriptionDriver is the optional subscription capability.
type SubscriptionDriver interface {
	Driver

	CreateSubscription(ctx context.Context, req *models.SubscriptionRequest) (*models.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, code string) (*models.SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, code, emailToken string) error
	EnableSubscription(ctx context.Context, code, emailToken string) error
	ListSubscriptions(ctx context.Context) ([]models.SubscriptionResponse, error)

	CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) (*models.SubscriptionPlan, error)
	GetPlan(ctx context.Context, planCode string) (*models.SubscriptionPlan, error)
	UpdatePlan(ctx context.Context, plan *models.SubscriptionPlan) error
	ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error)
}

// LifecycleHooks is the optional hook capability around subscription
// lifecycle changes. Hooks are invoked best-effort: a hook failure is logged
// and must never abort the primary operation.
type LifecycleHooks interface {
	BeforeSubscriptionCreate(ctx context.Context, req *models.SubscriptionRequest) error
	AfterSubscriptionCreate(ctx context.Context, resp *models.SubscriptionResponse) error
	BeforeSubscriptionCancel(ctx context.Context, code string) error
	AfterSubscriptionCancel(ctx context.Context, code string) error
	OnSubscriptionRenewed(ctx context.Context, code string) error
	OnSubscriptionPaymentFailed(ctx context.Context, code string) error
}
