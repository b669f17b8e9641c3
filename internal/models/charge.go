package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paygate/internal/normalize"
	"paygate/internal/sanitize"
)

var validate = validator.New()

var referencePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,255}$`)

// maxChargeAmount bounds a single charge. Providers reject larger amounts
// anyway; failing fast keeps the error local.
var maxChargeAmount = decimal.NewFromInt(100_000_000)

// ChargeRequest is the validated input to a charge operation. Construct it
// with NewChargeRequest: the value is either fully valid or never exists.
type ChargeRequest struct {
	Amount         decimal.Decimal
	Currency       string `validate:"required,len=3,alpha"`
	Email          string `validate:"required,email"`
	Reference      string
	CallbackURL    string
	Metadata       map[string]any
	Channels       []string
	IdempotencyKey string
}

// ChargeParams carries the raw caller input for NewChargeRequest.
// RequireHTTPSCallback is set by the caller from its environment config;
// production deployments reject plain-http callback URLs.
type ChargeParams struct {
	Amount               decimal.Decimal
	Currency             string
	Email                string
	Reference            string
	CallbackURL          string
	Metadata             map[string]any
	Channels             []string
	IdempotencyKey       string
	RequireHTTPSCallback bool
}

// NewChargeRequest validates params and returns a fully-formed request.
// Metadata is sanitized, and a UUID idempotency key is generated when the
// caller supplies none.
func NewChargeRequest(p ChargeParams) (*ChargeRequest, error) {
	req := &ChargeRequest{
		Amount:         p.Amount,
		Currency:       strings.ToUpper(strings.TrimSpace(p.Currency)),
		Email:          strings.TrimSpace(p.Email),
		Reference:      strings.TrimSpace(p.Reference),
		CallbackURL:    strings.TrimSpace(p.CallbackURL),
		Channels:       p.Channels,
		IdempotencyKey: strings.TrimSpace(p.IdempotencyKey),
	}

	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be greater than zero")
	}
	if req.Amount.GreaterThan(maxChargeAmount) {
		return nil, fmt.Errorf("amount exceeds maximum of %s", maxChargeAmount)
	}

	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid charge request: %w", err)
	}
	if err := validateEmailDomain(req.Email); err != nil {
		return nil, err
	}

	if req.Reference != "" && !referencePattern.MatchString(req.Reference) {
		return nil, fmt.Errorf("reference must be alphanumeric with dashes or underscores, at most 255 chars")
	}

	if req.CallbackURL != "" {
		if err := validateCallbackURL(req.CallbackURL, p.RequireHTTPSCallback); err != nil {
			return nil, err
		}
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

func validateEmailDomain(email string) error {
	at := strings.LastIndex(email, "@")
	if at < 0 || !strings.Contains(email[at+1:], ".") {
		return fmt.Errorf("email domain is not valid: %s", email)
	}
	return nil
}

func validateCallbackURL(raw string, requireHTTPS bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("callback URL is not valid: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("callback URL must be http or https")
	}
	if requireHTTPS && u.Scheme != "https" {
		return fmt.Errorf("callback URL must use https in production")
	}
	return nil
}

// ChargeResponse is the result of a successful charge attempt. Status holds
// the raw provider status string; the predicates derive the canonical view.
type ChargeResponse struct {
	Reference        string         `json:"reference"`
	AuthorizationURL string         `json:"authorization_url,omitempty"`
	AccessCode       string         `json:"access_code,omitempty"`
	Status           string         `json:"status"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Provider         string         `json:"provider"`
}

// CanonicalStatus maps the raw provider status onto the canonical vocabulary.
// Unmapped statuses are treated as pending.
func (r *ChargeResponse) CanonicalStatus() PaymentStatus {
	switch normalize.Status(r.Status, r.Provider) {
	case normalize.StatusSuccess:
		return PaymentStatusSuccess
	case normalize.StatusFailed:
		return PaymentStatusFailed
	default:
		return PaymentStatusPending
	}
}

func (r *ChargeResponse) IsSuccessful() bool {
	return r.CanonicalStatus().IsSuccess()
}

func (r *ChargeResponse) IsPending() bool {
	return r.CanonicalStatus().IsPending()
}

// AuthorizationDetail carries the card or bank instrument used for a payment.
type AuthorizationDetail struct {
	Channel  string `json:"channel,omitempty"`
	CardType string `json:"card_type,omitempty"`
	Last4    string `json:"last4,omitempty"`
	Bank     string `json:"bank,omitempty"`
}

// CustomerDetail identifies the paying customer at the provider.
type CustomerDetail struct {
	Email string `json:"email,omitempty"`
	Code  string `json:"customer_code,omitempty"`
}

// VerificationResponse is the result of a verify call.
type VerificationResponse struct {
	Reference     string              `json:"reference"`
	Status        string              `json:"status"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	Channel       string              `json:"channel,omitempty"`
	Authorization AuthorizationDetail `json:"authorization"`
	Customer      CustomerDetail      `json:"customer"`
	Provider      string              `json:"provider"`
}

// CanonicalStatus maps the raw verify status onto the canonical vocabulary.
func (r *VerificationResponse) CanonicalStatus() PaymentStatus {
	switch normalize.Status(r.Status, r.Provider) {
	case normalize.StatusSuccess:
		return PaymentStatusSuccess
	case normalize.StatusFailed:
		return PaymentStatusFailed
	default:
		return PaymentStatusPending
	}
}
