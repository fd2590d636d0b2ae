package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/restory/server/internal/billing"
	"github.com/restory/server/internal/cart"
	"github.com/restory/server/internal/domain"
)

// AttemptState is the lifecycle state of a checkout attempt.
type AttemptState string

const (
	// AttemptRequesting means the provider call is in flight.
	AttemptRequesting AttemptState = "requesting"

	// AttemptAwaitingConfirmation means the shopper was redirected to
	// the payment page and has not come back yet.
	AttemptAwaitingConfirmation AttemptState = "awaiting_confirmation"

	// AttemptConfirmed means payment settled and an order was recorded.
	AttemptConfirmed AttemptState = "confirmed"

	// AttemptCancelled means the shopper abandoned payment or the
	// session expired.
	AttemptCancelled AttemptState = "cancelled"
)

// Attempt tracks one run through the checkout flow for a cart session.
type Attempt struct {
	// GatewaySessionID is the provider's session ID, assigned once the
	// provider call succeeds.
	GatewaySessionID string

	// CartSessionID is the cart this attempt was started from.
	CartSessionID string

	// UserID is the authenticated shopper, empty for guests.
	UserID string

	// IdempotencyKey is sent with the provider call so a retried
	// request cannot create a second gateway session.
	IdempotencyKey string

	// Lines is the cart snapshot taken when the attempt started. The
	// order is recorded from this snapshot, not from the live cart.
	Lines []cart.Line

	State      AttemptState
	TotalCents int64
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// CheckoutConfig tunes the checkout service.
type CheckoutConfig struct {
	// Currency for checkout sessions (ISO 4217 lowercase).
	Currency string

	// SuccessURL and CancelURL are where the provider sends the
	// shopper back. SuccessURL receives the session ID via the
	// {CHECKOUT_SESSION_ID} template.
	SuccessURL string
	CancelURL  string

	// RequestTimeout bounds the provider call that creates a session.
	RequestTimeout time.Duration

	// AttemptTTL is how long an unconfirmed attempt is tracked before
	// it is treated as abandoned.
	AttemptTTL time.Duration
}

// CheckoutService orchestrates the payment flow: cart snapshot, hosted
// session creation, and idempotent order recording on confirmation.
type CheckoutService struct {
	carts    *cart.Manager
	books    domain.BookService
	orders   domain.OrderService
	provider billing.Provider
	config   CheckoutConfig
	logger   *slog.Logger

	mu sync.Mutex
	// attempts is keyed by gateway session ID.
	attempts map[string]*Attempt
	// active maps a cart session to its in-flight attempt, if any.
	active map[string]*Attempt
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(
	carts *cart.Manager,
	books domain.BookService,
	orders domain.OrderService,
	provider billing.Provider,
	config CheckoutConfig,
	logger *slog.Logger,
) *CheckoutService {
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 15 * time.Second
	}
	if config.AttemptTTL == 0 {
		config.AttemptTTL = 24 * time.Hour
	}
	if config.Currency == "" {
		config.Currency = "inr"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CheckoutService{
		carts:    carts,
		books:    books,
		orders:   orders,
		provider: provider,
		config:   config,
		logger:   logger.With("service", "checkout"),
		attempts: make(map[string]*Attempt),
		active:   make(map[string]*Attempt),
	}
}

// StartResult is returned when a checkout attempt reaches the payment page.
type StartResult struct {
	// GatewaySessionID identifies the provider session for later lookup.
	GatewaySessionID string

	// URL is the hosted payment page to redirect the shopper to.
	URL string

	// TotalCents is the amount the provider will collect.
	TotalCents int64
}

// Start begins a checkout attempt for a cart session. An empty cart is
// rejected before the provider is contacted. A session with a provider
// call already in flight is rejected; an attempt still awaiting the
// shopper's return is cancelled and superseded by the new one.
func (s *CheckoutService) Start(ctx context.Context, cartSessionID, userID, userEmail string) (*StartResult, error) {
	c, err := s.carts.Get(ctx, cartSessionID)
	if err != nil {
		return nil, domain.Internal(err, "checkout.start", "failed to load cart")
	}

	lines := c.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	attempt := &Attempt{
		CartSessionID:  cartSessionID,
		UserID:         userID,
		IdempotencyKey: uuid.NewString(),
		Lines:          lines,
		State:          AttemptRequesting,
		TotalCents:     totalCents(lines),
		CreatedAt:      time.Now(),
	}

	s.mu.Lock()
	if prev := s.active[cartSessionID]; prev != nil {
		if prev.State == AttemptRequesting {
			s.mu.Unlock()
			return nil, ErrCheckoutInProgress
		}
		// The shopper came back and started over; drop the old attempt.
		prev.State = AttemptCancelled
	}
	s.active[cartSessionID] = attempt
	s.mu.Unlock()

	result, err := s.createSession(ctx, attempt, userEmail)
	if err != nil {
		s.mu.Lock()
		attempt.State = AttemptCancelled
		delete(s.active, cartSessionID)
		s.mu.Unlock()
		return nil, err
	}

	return result, nil
}

// createSession calls the provider under the configured timeout and
// registers the attempt for confirmation.
func (s *CheckoutService) createSession(ctx context.Context, attempt *Attempt, userEmail string) (*StartResult, error) {
	lineItems := make([]billing.LineItem, len(attempt.Lines))
	for i, l := range attempt.Lines {
		lineItems[i] = billing.LineItem{
			Name:            l.Title,
			Description:     l.Author,
			UnitAmountCents: l.PriceCents,
			Quantity:        int64(l.Quantity),
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	sess, err := s.provider.CreateCheckoutSession(reqCtx, billing.CreateCheckoutSessionParams{
		LineItems:      lineItems,
		Currency:       s.config.Currency,
		SuccessURL:     s.config.SuccessURL,
		CancelURL:      s.config.CancelURL,
		CustomerEmail:  userEmail,
		IdempotencyKey: attempt.IdempotencyKey,
		Metadata: map[string]string{
			"cart_session": attempt.CartSessionID,
			"user_id":      attempt.UserID,
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			s.logger.Error("payment provider timed out",
				"cart_session", attempt.CartSessionID,
				"timeout", s.config.RequestTimeout)
			return nil, ErrProviderTimeout
		}
		s.logger.Error("failed to create checkout session",
			"cart_session", attempt.CartSessionID,
			"error", err)
		return nil, domain.WrapError(err, domain.EPAYMENT, "checkout.start", "Failed to reach payment provider")
	}

	s.mu.Lock()
	attempt.GatewaySessionID = sess.ID
	attempt.State = AttemptAwaitingConfirmation
	attempt.ExpiresAt = time.Now().Add(s.config.AttemptTTL)
	s.attempts[sess.ID] = attempt
	s.mu.Unlock()

	s.logger.Info("checkout session created",
		"gateway_session", sess.ID,
		"cart_session", attempt.CartSessionID,
		"total_cents", attempt.TotalCents)

	return &StartResult{
		GatewaySessionID: sess.ID,
		URL:              sess.URL,
		TotalCents:       attempt.TotalCents,
	}, nil
}

// HandleReturn processes the shopper landing on the success URL. The
// session is re-verified with the provider before anything is recorded;
// the redirect alone proves nothing. Confirmation is idempotent: a
// refreshed success page returns the same order.
func (s *CheckoutService) HandleReturn(ctx context.Context, gatewaySessionID string) (*domain.Order, error) {
	sess, err := s.provider.GetCheckoutSession(ctx, gatewaySessionID)
	if err != nil {
		if errors.Is(err, billing.ErrSessionNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, domain.WrapError(err, domain.EPAYMENT, "checkout.return", "Failed to verify payment session")
	}

	if !sess.Paid() {
		return nil, ErrPaymentNotCompleted
	}

	return s.confirm(ctx, sess)
}

// HandleCancel processes the shopper landing on the cancel URL. The
// cart is left intact so they can try again.
func (s *CheckoutService) HandleCancel(ctx context.Context, gatewaySessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[gatewaySessionID]
	if !ok || attempt.State == AttemptConfirmed {
		return
	}
	attempt.State = AttemptCancelled
	delete(s.active, attempt.CartSessionID)
}

// ConfirmFromWebhook records an order for a completed session reported
// by the provider's webhook. Shares the idempotent confirmation path
// with HandleReturn, so whichever signal arrives first wins and the
// other becomes a no-op.
func (s *CheckoutService) ConfirmFromWebhook(ctx context.Context, sess *billing.CheckoutSession) (*domain.Order, error) {
	if !sess.Paid() {
		return nil, ErrPaymentNotCompleted
	}
	return s.confirm(ctx, sess)
}

// ExpireFromWebhook cancels the attempt for a session the provider
// reports as expired.
func (s *CheckoutService) ExpireFromWebhook(gatewaySessionID string) {
	s.HandleCancel(context.Background(), gatewaySessionID)
}

// confirm turns a paid session into an order, marks the purchased
// listings sold, and discards the cart. The orders table is unique on
// the gateway session ID, so a duplicate confirmation returns the
// already-recorded order even across restarts.
func (s *CheckoutService) confirm(ctx context.Context, sess *billing.CheckoutSession) (*domain.Order, error) {
	s.mu.Lock()
	attempt := s.attempts[sess.ID]
	s.mu.Unlock()

	cartSessionID := sess.Metadata["cart_session"]
	userID := sess.Metadata["user_id"]
	lines := []cart.Line(nil)

	if attempt != nil {
		cartSessionID = attempt.CartSessionID
		userID = attempt.UserID
		lines = attempt.Lines
	} else if cartSessionID != "" {
		// The attempt table did not survive a restart; rebuild the
		// snapshot from the still-persisted cart.
		c, err := s.carts.Get(ctx, cartSessionID)
		if err == nil {
			lines = c.Lines()
		}
	}

	if len(lines) == 0 {
		// Nothing to rebuild from. If the first confirmation already
		// recorded the order, return it.
		order, err := s.orders.GetOrderByGatewaySession(ctx, sess.ID)
		if err == nil {
			return order, nil
		}
		return nil, ErrAttemptNotFound
	}

	items := make([]domain.OrderItem, len(lines))
	bookIDs := make([]string, len(lines))
	for i, l := range lines {
		items[i] = domain.OrderItem{
			BookID:     l.ID,
			Title:      l.Title,
			Author:     l.Author,
			PriceCents: l.PriceCents,
			Quantity:   int32(l.Quantity),
		}
		bookIDs[i] = l.ID
	}

	order, err := s.orders.CreateOrder(ctx, domain.CreateOrderParams{
		UserID:           userID,
		GatewaySessionID: sess.ID,
		TotalCents:       sess.AmountTotalCents,
		Currency:         sess.Currency,
		Items:            items,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record order: %w", err)
	}

	if err := s.books.MarkSold(ctx, bookIDs); err != nil {
		// The order exists and payment settled; log and move on.
		s.logger.Error("failed to mark books sold",
			"order_id", order.ID,
			"error", err)
	}

	if cartSessionID != "" {
		c, cerr := s.carts.Get(ctx, cartSessionID)
		if cerr == nil {
			c.Clear()
		}
		s.carts.Discard(ctx, cartSessionID)
	}

	s.mu.Lock()
	if attempt != nil {
		attempt.State = AttemptConfirmed
		delete(s.active, attempt.CartSessionID)
	}
	s.mu.Unlock()

	s.logger.Info("checkout confirmed",
		"gateway_session", sess.ID,
		"order_id", order.ID)

	return order, nil
}

// GetAttempt returns the tracked attempt for a gateway session, if any.
func (s *CheckoutService) GetAttempt(gatewaySessionID string) (*Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[gatewaySessionID]
	return attempt, ok
}

// PruneExpired drops attempts past their TTL and cancels any that were
// still awaiting confirmation. Returns the number pruned.
func (s *CheckoutService) PruneExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int
	for id, attempt := range s.attempts {
		if attempt.ExpiresAt.IsZero() || now.Before(attempt.ExpiresAt) {
			continue
		}
		if attempt.State == AttemptAwaitingConfirmation {
			attempt.State = AttemptCancelled
		}
		delete(s.attempts, id)
		if s.active[attempt.CartSessionID] == attempt {
			delete(s.active, attempt.CartSessionID)
		}
		pruned++
	}
	return pruned
}

// RunExpiry prunes expired attempts periodically until ctx is done.
func (s *CheckoutService) RunExpiry(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.PruneExpired(now); n > 0 {
				s.logger.Debug("pruned expired checkout attempts", "count", n)
			}
		}
	}
}

func totalCents(lines []cart.Line) int64 {
	var total int64
	for _, l := range lines {
		total += l.PriceCents * int64(l.Quantity)
	}
	return total
}
