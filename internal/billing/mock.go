package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockProvider is a mock billing provider for testing.
// Simulates hosted checkout flows without calling the Stripe API.
type MockProvider struct {
	// CreateCheckoutSessionFunc allows customizing session creation behavior
	CreateCheckoutSessionFunc func(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// GetCheckoutSessionFunc allows customizing session retrieval behavior
	GetCheckoutSessionFunc func(ctx context.Context, sessionID string) (*CheckoutSession, error)

	// VerifyWebhookSignatureFunc allows customizing webhook verification behavior
	VerifyWebhookSignatureFunc func(payload []byte, signature string, secret string) error

	// Sessions stores created checkout sessions for retrieval
	Sessions map[string]*CheckoutSession

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Sessions: make(map[string]*CheckoutSession),
		CallLog:  []string{},
	}
}

// CreateCheckoutSession creates a mock checkout session.
func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateCheckoutSession(%d items, %s)", len(params.LineItems), params.Currency))

	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}

	if len(params.LineItems) == 0 {
		return nil, ErrEmptyLineItems
	}

	var total int64
	for _, item := range params.LineItems {
		total += item.UnitAmountCents * item.Quantity
	}

	// Default mock behavior: create an open session awaiting payment
	sess := &CheckoutSession{
		ID:               "cs_test_" + uuid.New().String(),
		URL:              "https://checkout.example.com/pay/" + uuid.New().String(),
		Status:           SessionStatusOpen,
		PaymentStatus:    PaymentStatusUnpaid,
		AmountTotalCents: total,
		Currency:         params.Currency,
		Metadata:         params.Metadata,
		ExpiresAt:        time.Now().Add(24 * time.Hour),
	}

	m.Sessions[sess.ID] = sess
	return sess, nil
}

// GetCheckoutSession retrieves a mock checkout session.
func (m *MockProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetCheckoutSession(%s)", sessionID))

	if m.GetCheckoutSessionFunc != nil {
		return m.GetCheckoutSessionFunc(ctx, sessionID)
	}

	sess, exists := m.Sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	return sess, nil
}

// VerifyWebhookSignature verifies a mock webhook signature.
func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	m.CallLog = append(m.CallLog, "VerifyWebhookSignature")

	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature, secret)
	}

	// Default mock behavior: always verify successfully
	return nil
}

// SimulateCompletedPayment marks a session as complete and paid.
// Used in tests to simulate the shopper finishing checkout.
func (m *MockProvider) SimulateCompletedPayment(sessionID string) error {
	sess, exists := m.Sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}

	sess.Status = SessionStatusComplete
	sess.PaymentStatus = PaymentStatusPaid
	return nil
}

// SimulateExpiredSession marks a session as expired without payment.
// Used in tests to simulate an abandoned checkout.
func (m *MockProvider) SimulateExpiredSession(sessionID string) error {
	sess, exists := m.Sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}

	sess.Status = SessionStatusExpired
	sess.PaymentStatus = PaymentStatusUnpaid
	return nil
}
