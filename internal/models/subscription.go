package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paygate/internal/sanitize"
)

// SubscriptionRequest is the validated input to a subscription create call.
type SubscriptionRequest struct {
	CustomerEmail  string `validate:"required,email"`
	PlanCode       string `validate:"required,max=255"`
	Quantity       int
	TrialDays      int
	Metadata       map[string]any
	IdempotencyKey string
}

// SubscriptionParams carries the raw caller input for NewSubscriptionRequest.
type SubscriptionParams struct {
	CustomerEmail  string
	PlanCode       string
	Quantity       int
	TrialDays      int
	Metadata       map[string]any
	IdempotencyKey string
}

// NewSubscriptionRequest validates params and returns a fully-formed request.
// Quantity defaults to 1.
func NewSubscriptionRequest(p SubscriptionParams) (*SubscriptionRequest, error) {
	req := &SubscriptionRequest{
		CustomerEmail:  strings.TrimSpace(p.CustomerEmail),
		PlanCode:       strings.TrimSpace(p.PlanCode),
		Quantity:       p.Quantity,
		TrialDays:      p.TrialDays,
		IdempotencyKey: strings.TrimSpace(p.IdempotencyKey),
	}

	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1")
	}
	if req.TrialDays < 0 {
		return nil, fmt.Errorf("trial days cannot be negative")
	}

	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid subscription request: %w", err)
	}
	if err := validateEmailDomain(req.CustomerEmail); err != nil {
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	} else if !referencePattern.MatchString(req.IdempotencyKey) {
		return nil, fmt.Errorf("idempotency key must be alphanumeric with dashes or underscores, at most 255 chars")
	}

	if p.Metadata != nil {
		req.Metadata = sanitize.New().Sanitize(p.Metadata)
	}

	return req, nil
}

// SubscriptionResponse is the provider's view of a subscription.
type SubscriptionResponse struct {
	SubscriptionCode string     `json:"subscription_code"`
	EmailToken       string     `json:"email_token,omitempty"`
	Status           string     `json:"status"`
	PlanCode         string     `json:"plan_code"`
	CustomerEmail    string     `json:"customer_email"`
	Quantity         int        `json:"quantity"`
	NextPaymentDate  *time.Time `json:"next_payment_date,omitempty"`
	Provider         string     `json:"provider"`
}

// State maps the raw provider status onto the subscription state machine.
func (r *SubscriptionResponse) State() (SubscriptionStatus, bool) {
	return SubscriptionStatusFromString(r.Status)
}

// SubscriptionPlan describes a billing plan at a provider.
type SubscriptionPlan struct {
	PlanCode string          `json:"plan_code"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Interval string          `json:"interval"`
	Active   bool            `json:"active"`
}
