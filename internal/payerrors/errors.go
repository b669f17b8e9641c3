// Package payerrors defines the error taxonomy shared by the gateway,
// drivers and webhook processing. All types support errors.Is/As and wrap
// their causes where one exists.
package payerrors

import (
	"fmt"
	"strings"
)

// DriverNotFoundError means the requested provider is absent from
// configuration or explicitly disabled.
type DriverNotFoundError struct {
	Provider string
}

func (e *DriverNotFoundError) Error() string {
	return fmt.Sprintf("payment driver not found: %s", e.Provider)
}

// InvalidConfigurationError means a driver is configured but unusable, e.g.
// a missing credential.
type InvalidConfigurationError struct {
	Provider string
	Field    string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: missing %s", e.Provider, e.Field)
}

// ChargeError is a single-driver charge failure.
type ChargeError struct {
	Provider string
	Err      error
}

func (e *ChargeError) Error() string {
	return fmt.Sprintf("%s charge failed: %v", e.Provider, e.Err)
}

func (e *ChargeError) Unwrap() error { return e.Err }

// VerificationError is a single-driver verify failure.
type VerificationError struct {
	Provider  string
	Reference string
	Err       error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s verification failed for %s: %v", e.Provider, e.Reference, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// ProviderError aggregates the failures of a whole fallback or verify scan.
// Providers preserves the order candidates were attempted in; Errors maps
// provider name to its failure message.
type ProviderError struct {
	Op        string
	Providers []string
	Errors    map[string]string
}

// NewProviderError builds the aggregate for an exhausted scan.
func NewProviderError(op string) *ProviderError {
	return &ProviderError{
		Op:     op,
		Errors: make(map[string]string),
	}
}

// Record captures one candidate's failure, preserving attempt order.
func (e *ProviderError) Record(provider string, err error) {
	if _, seen := e.Errors[provider]; !seen {
		e.Providers = append(e.Providers, provider)
	}
	e.Errors[provider] = err.Error()
}

func (e *ProviderError) Error() string {
	parts := make([]string, 0, len(e.Providers))
	for _, p := range e.Providers {
		parts = append(parts, fmt.Sprintf("%s: %s", p, e.Errors[p]))
	}
	return fmt.Sprintf("all providers failed for %s [%s]", e.Op, strings.Join(parts, "; "))
}

// WebhookError is a malformed or unverifiable webhook.
type WebhookError struct {
	Provider string
	Reason   string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("%s webhook rejected: %s", e.Provider, e.Reason)
}

// CurrencyError means the provider does not support the requested currency.
type CurrencyError struct {
	Provider string
	Currency string
}

func (e *CurrencyError) Error() string {
	return fmt.Sprintf("%s does not support currency %s", e.Provider, e.Currency)
}

// PlanError is a subscription-plan validation failure.
type PlanError struct {
	PlanCode string
	Reason   string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan %s: %s", e.PlanCode, e.Reason)
}

// SubscriptionError is a subscription validation or state failure, e.g.
// cancelling a subscription that is already in a terminal state.
type SubscriptionError struct {
	SubscriptionCode string
	Reason           string
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %s", e.SubscriptionCode, e.Reason)
}
