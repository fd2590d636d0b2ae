package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/restory/server/internal/billing"
	"github.com/restory/server/internal/cart"
	"github.com/restory/server/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockBookService implements domain.BookService. Only MarkSold matters
// for checkout; the rest are unused here.
type mockBookService struct {
	mu          sync.Mutex
	markedSold  [][]string
	markSoldErr error
}

func (m *mockBookService) ListBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	return nil, nil
}

func (m *mockBookService) ListForSale(ctx context.Context) ([]domain.Book, error) {
	return nil, nil
}

func (m *mockBookService) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	return nil, domain.ErrBookNotFound
}

func (m *mockBookService) CreateBook(ctx context.Context, params domain.CreateBookParams) (*domain.Book, error) {
	return nil, nil
}

func (m *mockBookService) UpdateBook(ctx context.Context, id string, params domain.UpdateBookParams) (*domain.Book, error) {
	return nil, nil
}

func (m *mockBookService) DeleteBook(ctx context.Context, id string) error {
	return nil
}

func (m *mockBookService) MarkSold(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedSold = append(m.markedSold, ids)
	return m.markSoldErr
}

func (m *mockBookService) markSoldCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markedSold
}

// mockOrderService implements domain.OrderService with the same
// idempotency contract as the real one: CreateOrder on a known gateway
// session returns the existing order.
type mockOrderService struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	createErr error
	creates   int
}

func newMockOrderService() *mockOrderService {
	return &mockOrderService{orders: make(map[string]*domain.Order)}
}

func (m *mockOrderService) CreateOrder(ctx context.Context, params domain.CreateOrderParams) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return nil, m.createErr
	}

	if existing, ok := m.orders[params.GatewaySessionID]; ok {
		return existing, nil
	}

	m.creates++
	order := &domain.Order{
		ID:               "order-" + params.GatewaySessionID,
		UserID:           params.UserID,
		GatewaySessionID: params.GatewaySessionID,
		Status:           domain.OrderStatusPaid,
		TotalCents:       params.TotalCents,
		Currency:         params.Currency,
		Items:            params.Items,
		CreatedAt:        time.Now(),
	}
	m.orders[params.GatewaySessionID] = order
	return order, nil
}

func (m *mockOrderService) GetOrderByGatewaySession(ctx context.Context, gatewaySessionID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[gatewaySessionID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (m *mockOrderService) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return nil, nil
}

type checkoutFixture struct {
	carts    *cart.Manager
	store    *cart.MemoryStore
	books    *mockBookService
	orders   *mockOrderService
	provider *billing.MockProvider
	service  *CheckoutService
}

func newCheckoutFixture(t *testing.T, config CheckoutConfig) *checkoutFixture {
	t.Helper()

	store := cart.NewMemoryStore()
	f := &checkoutFixture{
		carts:    cart.NewManager(store, testLogger()),
		store:    store,
		books:    &mockBookService{},
		orders:   newMockOrderService(),
		provider: billing.NewMockProvider(),
	}
	f.service = NewCheckoutService(f.carts, f.books, f.orders, f.provider, config, testLogger())
	return f
}

func (f *checkoutFixture) fillCart(t *testing.T, sessionID string, lines ...cart.Line) {
	t.Helper()

	c, err := f.carts.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("failed to get cart: %v", err)
	}
	for _, l := range lines {
		if err := c.AddItem(l); err != nil {
			t.Fatalf("failed to fill cart: %v", err)
		}
	}
}

func bookLine(id string, priceCents int64, qty int) cart.Line {
	return cart.Line{
		ID:         id,
		Title:      "Title " + id,
		Author:     "Author " + id,
		PriceCents: priceCents,
		Quantity:   qty,
	}
}

func TestCheckout_Start(t *testing.T) {
	t.Run("empty cart is rejected before the provider is called", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{})

		_, err := f.service.Start(context.Background(), "sess-1", "", "")
		if !errors.Is(err, ErrEmptyCart) {
			t.Fatalf("Start() error = %v, want ErrEmptyCart", err)
		}
		if len(f.provider.CallLog) != 0 {
			t.Errorf("provider was called %d times, want 0", len(f.provider.CallLog))
		}
	})

	t.Run("creates a session from the cart snapshot", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{Currency: "inr"})
		f.fillCart(t, "sess-1", bookLine("b1", 1500, 2), bookLine("b2", 2500, 1))

		result, err := f.service.Start(context.Background(), "sess-1", "user-1", "reader@example.com")
		if err != nil {
			t.Fatalf("Start() failed: %v", err)
		}

		if result.URL == "" {
			t.Error("result should carry the hosted payment page URL")
		}
		if result.TotalCents != 5500 {
			t.Errorf("TotalCents = %d, want 5500", result.TotalCents)
		}

		attempt, ok := f.service.GetAttempt(result.GatewaySessionID)
		if !ok {
			t.Fatal("attempt should be tracked by gateway session ID")
		}
		if attempt.State != AttemptAwaitingConfirmation {
			t.Errorf("attempt state = %q, want %q", attempt.State, AttemptAwaitingConfirmation)
		}
		if attempt.UserID != "user-1" {
			t.Errorf("attempt user = %q, want %q", attempt.UserID, "user-1")
		}
		if len(attempt.Lines) != 2 {
			t.Errorf("snapshot lines = %d, want 2", len(attempt.Lines))
		}

		sess := f.provider.Sessions[result.GatewaySessionID]
		if sess == nil {
			t.Fatal("provider session should exist")
		}
		if sess.Metadata["cart_session"] != "sess-1" {
			t.Errorf("metadata cart_session = %q, want %q", sess.Metadata["cart_session"], "sess-1")
		}
		if sess.Metadata["user_id"] != "user-1" {
			t.Errorf("metadata user_id = %q, want %q", sess.Metadata["user_id"], "user-1")
		}
	})

	t.Run("each attempt carries its own idempotency key", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{})
		f.fillCart(t, "sess-1", bookLine("b1", 1500, 1))

		var keys []string
		f.provider.CreateCheckoutSessionFunc = func(ctx context.Context, params billing.CreateCheckoutSessionParams) (*billing.CheckoutSession, error) {
			keys = append(keys, params.IdempotencyKey)
			return &billing.CheckoutSession{
				ID:     "cs_" + params.IdempotencyKey,
				URL:    "https://checkout.example.com/cs",
				Status: billing.SessionStatusOpen,
			}, nil
		}

		if _, err := f.service.Start(context.Background(), "sess-1", "", ""); err != nil {
			t.Fatalf("Start() failed: %v", err)
		}
		if _, err := f.service.Start(context.Background(), "sess-1", "", ""); err != nil {
			t.Fatalf("second Start() failed: %v", err)
		}

		if len(keys) != 2 {
			t.Fatalf("provider saw %d calls, want 2", len(keys))
		}
		if keys[0] == "" || keys[1] == "" {
			t.Error("idempotency key should be set on every provider call")
		}
		if keys[0] == keys[1] {
			t.Error("each attempt should carry a distinct idempotency key")
		}
	})

	t.Run("concurrent provider call is rejected", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{})
		f.fillCart(t, "sess-1", bookLine("b1", 1000, 1))

		entered := make(chan struct{})
		release := make(chan struct{})
		f.provider.CreateCheckoutSessionFunc = func(ctx context.Context, params billing.CreateCheckoutSessionParams) (*billing.CheckoutSession, error) {
			close(entered)
			<-release
			return &billing.CheckoutSession{ID: "cs_1", URL: "https://pay.example.com/1", Status: billing.SessionStatusOpen}, nil
		}

		done := make(chan error, 1)
		go func() {
			_, err := f.service.Start(context.Background(), "sess-1", "", "")
			done <- err
		}()

		<-entered
		_, err := f.service.Start(context.Background(), "sess-1", "", "")
		if !errors.Is(err, ErrCheckoutInProgress) {
			t.Errorf("second Start() error = %v, want ErrCheckoutInProgress", err)
		}

		close(release)
		if err := <-done; err != nil {
			t.Fatalf("first Start() failed: %v", err)
		}
	})

	t.Run("new attempt supersedes one awaiting confirmation", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{})
		f.fillCart(t, "sess-1", bookLine("b1", 1000, 1))

		first, err := f.service.Start(context.Background(), "sess-1", "", "")
		if err != nil {
			t.Fatalf("first Start() failed: %v", err)
		}

		second, err := f.service.Start(context.Background(), "sess-1", "", "")
		if err != nil {
			t.Fatalf("second Start() failed: %v", err)
		}

		old, ok := f.service.GetAttempt(first.GatewaySessionID)
		if !ok {
			t.Fatal("superseded attempt should still be tracked")
		}
		if old.State != AttemptCancelled {
			t.Errorf("old attempt state = %q, want %q", old.State, AttemptCancelled)
		}

		current, _ := f.service.GetAttempt(second.GatewaySessionID)
		if current.State != AttemptAwaitingConfirmation {
			t.Errorf("new attempt state = %q, want %q", current.State, AttemptAwaitingConfirmation)
		}
	})

	t.Run("provider failure cancels the attempt", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{})
		f.fillCart(t, "sess-1", bookLine("b1", 1000, 1))

		f.provider.CreateCheckoutSessionFunc = func(ctx context.Context, params billing.CreateCheckoutSessionParams) (*billing.CheckoutSession, error) {
			return nil, errors.New("stripe unavailable")
		}

		_, err := f.service.Start(context.Background(), "sess-1", "", "")
		if err == nil {
			t.Fatal("Start() should fail when the provider fails")
		}
		if domain.ErrorCode(err) != domain.EPAYMENT {
			t.Errorf("error code = %q, want %q", domain.ErrorCode(err), domain.EPAYMENT)
		}

		// The session is free to try again
		f.provider.CreateCheckoutSessionFunc = nil
		if _, err := f.service.Start(context.Background(), "sess-1", "", ""); err != nil {
			t.Errorf("Start() after provider failure = %v, want success", err)
		}
	})

	t.Run("provider timeout maps to a timeout error", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{RequestTimeout: 20 * time.Millisecond})
		f.fillCart(t, "sess-1", bookLine("b1", 1000, 1))

		f.provider.CreateCheckoutSessionFunc = func(ctx context.Context, params billing.CreateCheckoutSessionParams) (*billing.CheckoutSession, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}

		_, err := f.service.Start(context.Background(), "sess-1", "", "")
		if !errors.Is(err, ErrProviderTimeout) {
			t.Fatalf("Start() error = %v, want ErrProviderTimeout", err)
		}
	})
}

func TestCheckout_HandleReturn(t *testing.T) {
	t.Run("unknown session", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{})

		_, err := f.service.HandleReturn(context.Background(), "cs_missing")
		if !errors.Is(err, ErrAttemptNotFound) {
			t.Fatalf("HandleReturn() error = %v, want ErrAttemptNotFound", err)
		}
	})

	t.Run("unpaid session is not confirmed", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{})
		f.fillCart(t, "sess-1", bookLine("b1", 1000, 1))

		result, err := f.service.Start(context.Background(), "sess-1", "", "")
		if err != nil {
			t.Fatalf("Start() failed: %v", err)
		}

		_, err = f.service.HandleReturn(context.Background(), result.GatewaySessionID)
		if !errors.Is(err, ErrPaymentNotCompleted) {
			t.Fatalf("HandleReturn() error = %v, want ErrPaymentNotCompleted", err)
		}
		if f.orders.creates != 0 {
			t.Error("no order should be recorded for an unpaid session")
		}
	})

	t.Run("paid session confirms the attempt", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{})
		f.fillCart(t, "sess-1", bookLine("b1", 1500, 1), bookLine("b2", 2500, 1))

		result, err := f.service.Start(context.Background(), "sess-1", "user-1", "")
		if err != nil {
			t.Fatalf("Start() failed: %v", err)
		}
		f.provider.SimulateCompletedPayment(result.GatewaySessionID)

		order, err := f.service.HandleReturn(context.Background(), result.GatewaySessionID)
		if err != nil {
			t.Fatalf("HandleReturn() failed: %v", err)
		}

		if order.UserID != "user-1" {
			t.Errorf("order user = %q, want %q", order.UserID, "user-1")
		}
		if len(order.Items) != 2 {
			t.Errorf("order items = %d, want 2", len(order.Items))
		}

		// Books from the snapshot are flagged sold
		calls := f.books.markSoldCalls()
		if len(calls) != 1 || len(calls[0]) != 2 {
			t.Errorf("MarkSold calls = %+v, want one call with 2 IDs", calls)
		}

		// The cart is cleared and its record discarded
		c, _ := f.carts.Get(context.Background(), "sess-1")
		if !c.IsEmpty() {
			t.Error("cart should be empty after confirmation")
		}

		attempt, _ := f.service.GetAttempt(result.GatewaySessionID)
		if attempt.State != AttemptConfirmed {
			t.Errorf("attempt state = %q, want %q", attempt.State, AttemptConfirmed)
		}
	})

	t.Run("confirmation is idempotent", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{})
		f.fillCart(t, "sess-1", bookLine("b1", 1000, 1))

		result, _ := f.service.Start(context.Background(), "sess-1", "", "")
		f.provider.SimulateCompletedPayment(result.GatewaySessionID)

		first, err := f.service.HandleReturn(context.Background(), result.GatewaySessionID)
		if err != nil {
			t.Fatalf("first HandleReturn() failed: %v", err)
		}

		second, err := f.service.HandleReturn(context.Background(), result.GatewaySessionID)
		if err != nil {
			t.Fatalf("second HandleReturn() failed: %v", err)
		}

		if first.ID != second.ID {
			t.Errorf("order IDs differ: %q vs %q", first.ID, second.ID)
		}
		if f.orders.creates != 1 {
			t.Errorf("orders created = %d, want 1", f.orders.creates)
		}
	})
}

func TestCheckout_ConfirmFromWebhook(t *testing.T) {
	t.Run("webhook confirms before the shopper returns", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{})
		f.fillCart(t, "sess-1", bookLine("b1", 1000, 1))

		result, _ := f.service.Start(context.Background(), "sess-1", "", "")
		f.provider.SimulateCompletedPayment(result.GatewaySessionID)
		sess := f.provider.Sessions[result.GatewaySessionID]

		order, err := f.service.ConfirmFromWebhook(context.Background(), sess)
		if err != nil {
			t.Fatalf("ConfirmFromWebhook() failed: %v", err)
		}

		// The later redirect returns the same order
		returned, err := f.service.HandleReturn(context.Background(), result.GatewaySessionID)
		if err != nil {
			t.Fatalf("HandleReturn() after webhook failed: %v", err)
		}
		if returned.ID != order.ID {
			t.Errorf("order IDs differ: %q vs %q", returned.ID, order.ID)
		}
	})

	t.Run("rejects unpaid sessions", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{})

		sess := &billing.CheckoutSession{
			ID:            "cs_unpaid",
			Status:        billing.SessionStatusOpen,
			PaymentStatus: billing.PaymentStatusUnpaid,
		}
		_, err := f.service.ConfirmFromWebhook(context.Background(), sess)
		if !errors.Is(err, ErrPaymentNotCompleted) {
			t.Fatalf("ConfirmFromWebhook() error = %v, want ErrPaymentNotCompleted", err)
		}
	})

	t.Run("rebuilds the snapshot when the attempt did not survive", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{})
		f.fillCart(t, "sess-1", bookLine("b1", 1200, 1))

		// No Start call: simulates a restart that lost the attempt table
		// while the cart record and provider session survived.
		sess := &billing.CheckoutSession{
			ID:               "cs_after_restart",
			Status:           billing.SessionStatusComplete,
			PaymentStatus:    billing.PaymentStatusPaid,
			AmountTotalCents: 1200,
			Currency:         "inr",
			Metadata: map[string]string{
				"cart_session": "sess-1",
				"user_id":      "user-1",
			},
		}

		order, err := f.service.ConfirmFromWebhook(context.Background(), sess)
		if err != nil {
			t.Fatalf("ConfirmFromWebhook() failed: %v", err)
		}
		if order.UserID != "user-1" {
			t.Errorf("order user = %q, want %q", order.UserID, "user-1")
		}
		if len(order.Items) != 1 || order.Items[0].BookID != "b1" {
			t.Errorf("order items = %+v, want snapshot of b1", order.Items)
		}
	})

	t.Run("no snapshot and no existing order", func(t *testing.T) {
		f := newCheckoutFixture(t, CheckoutConfig{})

		sess := &billing.CheckoutSession{
			ID:            "cs_orphan",
			Status:        billing.SessionStatusComplete,
			PaymentStatus: billing.PaymentStatusPaid,
		}
		_, err := f.service.ConfirmFromWebhook(context.Background(), sess)
		if !errors.Is(err, ErrAttemptNotFound) {
			t.Fatalf("ConfirmFromWebhook() error = %v, want ErrAttemptNotFound", err)
		}
	})
}

func TestCheckout_HandleCancel(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	f.fillCart(t, "sess-1", bookLine("b1", 1000, 1))

	result, _ := f.service.Start(context.Background(), "sess-1", "", "")
	f.service.HandleCancel(context.Background(), result.GatewaySessionID)

	attempt, _ := f.service.GetAttempt(result.GatewaySessionID)
	if attempt.State != AttemptCancelled {
		t.Errorf("attempt state = %q, want %q", attempt.State, AttemptCancelled)
	}

	// The cart is untouched so the shopper can try again
	c, _ := f.carts.Get(context.Background(), "sess-1")
	if c.IsEmpty() {
		t.Error("cancel should leave the cart intact")
	}

	// A confirmed attempt cannot be cancelled afterwards
	f.provider.SimulateCompletedPayment(result.GatewaySessionID)
	if _, err := f.service.HandleReturn(context.Background(), result.GatewaySessionID); err != nil {
		t.Fatalf("HandleReturn() failed: %v", err)
	}
	f.service.HandleCancel(context.Background(), result.GatewaySessionID)
	attempt, _ = f.service.GetAttempt(result.GatewaySessionID)
	if attempt.State != AttemptConfirmed {
		t.Errorf("confirmed attempt state = %q after cancel, want %q", attempt.State, AttemptConfirmed)
	}
}

func TestCheckout_PruneExpired(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{AttemptTTL: time.Hour})
	f.fillCart(t, "sess-1", bookLine("b1", 1000, 1))

	result, _ := f.service.Start(context.Background(), "sess-1", "", "")

	if n := f.service.PruneExpired(time.Now()); n != 0 {
		t.Errorf("PruneExpired(now) = %d, want 0", n)
	}

	if n := f.service.PruneExpired(time.Now().Add(2 * time.Hour)); n != 1 {
		t.Errorf("PruneExpired(now+2h) = %d, want 1", n)
	}

	if _, ok := f.service.GetAttempt(result.GatewaySessionID); ok {
		t.Error("pruned attempt should no longer be tracked")
	}

	// The session is free to start a new attempt
	if _, err := f.service.Start(context.Background(), "sess-1", "", ""); err != nil {
		t.Errorf("Start() after prune failed: %v", err)
	}
}
