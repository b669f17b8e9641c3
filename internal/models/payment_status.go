package models

// PaymentStatus is the canonical status vocabulary every provider-specific
// status string is normalized into.
type PaymentStatus string

const (
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// IsSuccess reports whether the status is the terminal success state.
func (s PaymentStatus) IsSuccess() bool {
	return s == PaymentStatusSuccess
}

// IsFailed reports whether the status is a failure. Cancelled payments
// count as failed.
func (s PaymentStatus) IsFailed() bool {
	return s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// IsPending reports whether the payment is still in flight.
func (s PaymentStatus) IsPending() bool {
	return s == PaymentStatusPending
}

// IsTerminal reports whether no further webhook update should be applied.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess
}
