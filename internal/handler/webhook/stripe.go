// Package webhook handles asynchronous event callbacks from the
// payment provider.
package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/restory/server/internal/billing"
	"github.com/restory/server/internal/domain"
	"github.com/restory/server/internal/handler"
	"github.com/restory/server/internal/service"
)

// maxPayloadBytes bounds webhook request bodies. Stripe events are small.
const maxPayloadBytes = 64 * 1024

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	provider      billing.Provider
	checkout      *service.CheckoutService
	webhookSecret string
	logger        *slog.Logger
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(provider billing.Provider, checkout *service.CheckoutService, webhookSecret string, logger *slog.Logger) *StripeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		provider:      provider,
		checkout:      checkout,
		webhookSecret: webhookSecret,
		logger:        logger.With("handler", "stripe_webhook"),
	}
}

// HandleWebhook processes incoming Stripe webhook events.
//
// Checkout confirmation happens on two independent paths: the shopper's
// redirect back to the success URL, and this webhook. Either can arrive
// first; order creation is idempotent on the session ID so processing
// both is harmless.
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.logger.Warn("webhook rejected: missing signature header")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Missing signature"))
		return
	}

	if err := h.provider.VerifyWebhookSignature(payload, signature, h.webhookSecret); err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "", "Invalid signature"))
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("webhook payload is not valid JSON", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Invalid JSON"))
		return
	}

	h.logger.Info("webhook event received", "type", event.Type, "event_id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		h.handleSessionCompleted(r, event)

	case "checkout.session.expired":
		h.handleSessionExpired(event)

	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	// Always acknowledge receipt. Stripe retries on non-2xx, and
	// failures here are handled by the redirect confirmation path.
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}

// handleSessionCompleted confirms the checkout attempt behind a paid session
func (h *StripeHandler) handleSessionCompleted(r *http.Request, event stripe.Event) {
	sess, ok := h.parseSession(event)
	if !ok {
		return
	}

	if !sess.Paid() {
		h.logger.Info("completed session not yet paid, waiting for async payment",
			"gateway_session_id", sess.ID, "payment_status", sess.PaymentStatus)
		return
	}

	order, err := h.checkout.ConfirmFromWebhook(r.Context(), sess)
	if err != nil {
		h.logger.Error("failed to confirm checkout from webhook",
			"gateway_session_id", sess.ID, "error", err)
		return
	}

	h.logger.Info("order confirmed from webhook",
		"order_id", order.ID,
		"gateway_session_id", sess.ID,
		"total_cents", order.TotalCents)
}

// handleSessionExpired releases the checkout attempt for an abandoned session
func (h *StripeHandler) handleSessionExpired(event stripe.Event) {
	sess, ok := h.parseSession(event)
	if !ok {
		return
	}

	h.checkout.ExpireFromWebhook(sess.ID)
	h.logger.Info("checkout session expired", "gateway_session_id", sess.ID)
}

// parseSession extracts the checkout session from the event payload
func (h *StripeHandler) parseSession(event stripe.Event) (*billing.CheckoutSession, bool) {
	var raw stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &raw); err != nil {
		h.logger.Error("failed to parse checkout session from webhook",
			"event_id", event.ID, "error", err)
		return nil, false
	}

	sess := &billing.CheckoutSession{
		ID:               raw.ID,
		URL:              raw.URL,
		Status:           string(raw.Status),
		PaymentStatus:    string(raw.PaymentStatus),
		AmountTotalCents: raw.AmountTotal,
		Currency:         string(raw.Currency),
		Metadata:         raw.Metadata,
		ExpiresAt:        time.Unix(raw.ExpiresAt, 0),
	}
	return sess, true
}
