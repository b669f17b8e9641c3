package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentTransaction is the persisted record for a single payment. Rows are
// created when a charge is initiated and updated exclusively through the
// webhook path. Once Status is success the row is terminal.
type PaymentTransaction struct {
	ID        int64           `json:"id" db:"id"`
	Reference string          `json:"reference" db:"reference"`
	Provider  string          `json:"provider" db:"provider"`
	Status    PaymentStatus   `json:"status" db:"status"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Currency  string          `json:"currency" db:"currency"`
	Email     string          `json:"email" db:"email"`
	Channel   string          `json:"channel,omitempty" db:"channel"`
	Metadata  map[string]any  `json:"metadata,omitempty" db:"metadata"`
	PaidAt    *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// SubscriptionTransaction is the persisted record for a subscription,
// keyed by the provider's subscription code.
type SubscriptionTransaction struct {
	ID               int64              `json:"id" db:"id"`
	SubscriptionCode string             `json:"subscription_code" db:"subscription_code"`
	Provider         string             `json:"provider" db:"provider"`
	Status           SubscriptionStatus `json:"status" db:"status"`
	PlanCode         string             `json:"plan_code" db:"plan_code"`
	CustomerEmail    string             `json:"customer_email" db:"customer_email"`
	Amount           decimal.Decimal    `json:"amount" db:"amount"`
	Currency         string             `json:"currency" db:"currency"`
	Quantity         int                `json:"quantity" db:"quantity"`
	NextPaymentDate  *time.Time         `json:"next_payment_date,omitempty" db:"next_payment_date"`
	Metadata         map[string]any     `json:"metadata,omitempty" db:"metadata"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at" db:"updated_at"`
}
