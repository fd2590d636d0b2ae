package billing

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements Provider using Stripe hosted Checkout.
type StripeProvider struct {
	config StripeConfig
}

// NewStripeProvider creates a new Stripe billing provider.
// The API key is installed globally for the stripe-go SDK.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	stripe.Key = config.APIKey

	return &StripeProvider{config: config}, nil
}

// CreateCheckoutSession creates a Stripe Checkout session in payment mode.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	if len(params.LineItems) == 0 {
		return nil, ErrEmptyLineItems
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(params.LineItems))
	for _, item := range params.LineItems {
		priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(params.Currency),
			UnitAmount: stripe.Int64(item.UnitAmountCents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(item.Name),
			},
		}
		if item.Description != "" {
			priceData.ProductData.Description = stripe.String(item.Description)
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: priceData,
			Quantity:  stripe.Int64(item.Quantity),
		})
	}

	checkoutParams := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(params.SuccessURL),
		CancelURL:          stripe.String(params.CancelURL),
	}
	checkoutParams.Context = ctx

	if params.CustomerEmail != "" {
		checkoutParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	if s.config.SessionExpiry > 0 {
		checkoutParams.ExpiresAt = stripe.Int64(time.Now().Unix() + s.config.SessionExpiry)
	}
	for k, v := range params.Metadata {
		checkoutParams.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		checkoutParams.SetIdempotencyKey(params.IdempotencyKey)
	}

	sess, err := session.New(checkoutParams)
	if err != nil {
		return nil, wrapStripeErr(err, "failed to create checkout session")
	}

	return fromStripeSession(sess), nil
}

// GetCheckoutSession retrieves an existing Stripe Checkout session.
func (s *StripeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	getParams := &stripe.CheckoutSessionParams{}
	getParams.Context = ctx

	sess, err := session.Get(sessionID, getParams)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return nil, ErrSessionNotFound
		}
		return nil, wrapStripeErr(err, "failed to get checkout session")
	}

	return fromStripeSession(sess), nil
}

// VerifyWebhookSignature verifies a Stripe webhook signature.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	if err := webhook.ValidatePayload(payload, signature, secret); err != nil {
		return ErrInvalidWebhookSignature
	}
	return nil
}

// fromStripeSession maps the SDK session type to the provider-neutral one.
func fromStripeSession(sess *stripe.CheckoutSession) *CheckoutSession {
	cs := &CheckoutSession{
		ID:               sess.ID,
		URL:              sess.URL,
		Status:           string(sess.Status),
		PaymentStatus:    string(sess.PaymentStatus),
		AmountTotalCents: sess.AmountTotal,
		Currency:         string(sess.Currency),
		Metadata:         sess.Metadata,
	}
	if sess.ExpiresAt > 0 {
		cs.ExpiresAt = time.Unix(sess.ExpiresAt, 0)
	}
	return cs
}

// wrapStripeErr converts an SDK error into a StripeError, preserving
// the Stripe error code and request ID when present.
func wrapStripeErr(err error, message string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &StripeError{
			Message:       message,
			Code:          string(stripeErr.Code),
			RequestID:     stripeErr.RequestID,
			OriginalError: err,
		}
	}
	return &StripeError{Message: message, OriginalError: err}
}
