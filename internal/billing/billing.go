package billing

import (
	"context"
	"time"
)

// Provider defines the interface for payment processing.
// Implementations can use Stripe, Razorpay, etc.
type Provider interface {
	// CreateCheckoutSession creates a hosted checkout session for the
	// given line items. The caller redirects the shopper to the
	// returned URL to complete payment.
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// GetCheckoutSession retrieves an existing checkout session.
	// Used to verify payment status when the shopper returns.
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// CreateCheckoutSessionParams contains parameters for creating a checkout session.
type CreateCheckoutSessionParams struct {
	// LineItems describe what is being purchased. Must be non-empty.
	LineItems []LineItem

	// Currency code (ISO 4217 lowercase) - e.g., "inr", "usd"
	Currency string

	// SuccessURL is where the shopper lands after paying.
	// May contain the {CHECKOUT_SESSION_ID} template placeholder.
	SuccessURL string

	// CancelURL is where the shopper lands after abandoning payment.
	CancelURL string

	// CustomerEmail prefills the email field in the payment page.
	CustomerEmail string

	// Metadata for filtering and reconciliation (cart session, user ID).
	Metadata map[string]string

	// IdempotencyKey prevents duplicate sessions on retried requests.
	IdempotencyKey string
}

// LineItem is one purchasable entry in a checkout session.
type LineItem struct {
	// Name shown to the shopper on the payment page.
	Name string

	// Description is an optional secondary label.
	Description string

	// UnitAmountCents is the price per unit in smallest currency unit.
	UnitAmountCents int64

	// Quantity of this line item.
	Quantity int64
}

// Session status values as reported by the provider.
const (
	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"
)

// Payment status values as reported by the provider.
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// CheckoutSession represents a hosted checkout session.
type CheckoutSession struct {
	// ID is the provider's session ID (cs_... for Stripe)
	ID string

	// URL is the hosted payment page the shopper is redirected to.
	URL string

	// Status: open, complete, expired
	Status string

	// PaymentStatus: paid, unpaid
	PaymentStatus string

	// AmountTotalCents is the total in smallest currency unit.
	AmountTotalCents int64

	// Currency code
	Currency string

	// Metadata passed during creation
	Metadata map[string]string

	// ExpiresAt is when the session stops accepting payment.
	ExpiresAt time.Time
}

// Paid reports whether the session completed with payment collected.
func (s *CheckoutSession) Paid() bool {
	return s.Status == SessionStatusComplete && s.PaymentStatus == PaymentStatusPaid
}
