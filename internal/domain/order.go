package domain

import (
	"context"
	"time"
)

// =============================================================================
// ORDER DOMAIN TYPES
// =============================================================================

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order represents a completed purchase recorded after payment settles.
type Order struct {
	ID               string
	UserID           string
	GatewaySessionID string
	Status           OrderStatus
	TotalCents       int64
	Currency         string
	Items            []OrderItem
	CreatedAt        time.Time
}

// OrderItem is a snapshot of a purchased listing at the time of sale.
type OrderItem struct {
	ID         string
	OrderID    string
	BookID     string
	Title      string
	Author     string
	PriceCents int64
	Quantity   int32
}

// CreateOrderParams contains parameters for recording an order.
type CreateOrderParams struct {
	UserID           string
	GatewaySessionID string
	TotalCents       int64
	Currency         string
	Items            []OrderItem
}

// =============================================================================
// SERVICE INTERFACE
// =============================================================================

// OrderService provides business logic for order records.
type OrderService interface {
	// CreateOrder records a completed purchase. Creation is idempotent
	// on the gateway session ID: replaying a confirmation returns the
	// existing order instead of creating a duplicate.
	CreateOrder(ctx context.Context, params CreateOrderParams) (*Order, error)

	// GetOrderByGatewaySession retrieves an order by the payment
	// gateway session that produced it.
	GetOrderByGatewaySession(ctx context.Context, gatewaySessionID string) (*Order, error)

	// ListOrdersByUser returns a user's orders, newest first.
	ListOrdersByUser(ctx context.Context, userID string) ([]Order, error)
}

// =============================================================================
// DOMAIN ERRORS
// =============================================================================

var (
	ErrOrderNotFound = &Error{Code: ENOTFOUND, Message: "Order not found"}
)
