package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/restory/server/internal/domain"
)

// OrderService implements domain.OrderService using PostgreSQL.
type OrderService struct {
	db *pgxpool.Pool
}

// Compile-time check that OrderService implements domain.OrderService.
var _ domain.OrderService = (*OrderService)(nil)

// NewOrderService creates a new PostgreSQL-backed order service.
func NewOrderService(db *pgxpool.Pool) *OrderService {
	return &OrderService{db: db}
}

// CreateOrder records a completed purchase. The unique constraint on
// gateway_session_id makes this idempotent: a replayed confirmation
// returns the order recorded by the first one.
func (s *OrderService) CreateOrder(ctx context.Context, params domain.CreateOrderParams) (*domain.Order, error) {
	if params.GatewaySessionID == "" {
		return nil, domain.Invalid("order.create", "gateway session ID is required")
	}
	if len(params.Items) == 0 {
		return nil, domain.Invalid("order.create", "order must contain at least one item")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, domain.Internal(err, "order.create", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var userID *string
	if params.UserID != "" {
		if !validUUID(params.UserID) {
			return nil, domain.Invalid("order.create", "invalid user ID")
		}
		userID = &params.UserID
	}

	order := domain.Order{
		UserID:           params.UserID,
		GatewaySessionID: params.GatewaySessionID,
		Status:           domain.OrderStatusPaid,
		TotalCents:       params.TotalCents,
		Currency:         params.Currency,
	}

	err = tx.QueryRow(ctx, `INSERT INTO orders
		(user_id, gateway_session_id, status, total_cents, currency)
		VALUES ($1, $2, 'paid', $3, $4)
		RETURNING id::text, created_at`,
		userID, params.GatewaySessionID, params.TotalCents, params.Currency,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return s.GetOrderByGatewaySession(ctx, params.GatewaySessionID)
		}
		return nil, domain.Internal(err, "order.create", "failed to create order")
	}

	for _, item := range params.Items {
		var itemID string
		err = tx.QueryRow(ctx, `INSERT INTO order_items
			(order_id, book_id, title, author, price_cents, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id::text`,
			order.ID, item.BookID, item.Title, item.Author, item.PriceCents, item.Quantity,
		).Scan(&itemID)
		if err != nil {
			return nil, domain.Internal(err, "order.create", "failed to create order item")
		}

		item.ID = itemID
		item.OrderID = order.ID
		order.Items = append(order.Items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, "order.create", "failed to commit order")
	}

	return &order, nil
}

// GetOrderByGatewaySession retrieves an order by the payment gateway
// session that produced it.
func (s *OrderService) GetOrderByGatewaySession(ctx context.Context, gatewaySessionID string) (*domain.Order, error) {
	var order domain.Order
	var userID *string

	err := s.db.QueryRow(ctx, `SELECT id::text, user_id::text, gateway_session_id,
		status, total_cents, currency, created_at
		FROM orders WHERE gateway_session_id = $1`, gatewaySessionID,
	).Scan(&order.ID, &userID, &order.GatewaySessionID, &order.Status,
		&order.TotalCents, &order.Currency, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, "order.get_by_session", "failed to get order")
	}
	if userID != nil {
		order.UserID = *userID
	}

	items, err := s.loadItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

// ListOrdersByUser returns a user's orders, newest first.
func (s *OrderService) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if !validUUID(userID) {
		return nil, domain.ErrUserNotFound
	}

	rows, err := s.db.Query(ctx, `SELECT id::text, gateway_session_id, status,
		total_cents, currency, created_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, domain.Internal(err, "order.list_by_user", "failed to list orders")
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order := domain.Order{UserID: userID}
		if err := rows.Scan(&order.ID, &order.GatewaySessionID, &order.Status,
			&order.TotalCents, &order.Currency, &order.CreatedAt); err != nil {
			return nil, domain.Internal(err, "order.list_by_user", "failed to scan order row")
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.list_by_user", "failed to read order rows")
	}

	for i := range orders {
		items, err := s.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (s *OrderService) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := s.db.Query(ctx, `SELECT id::text, order_id::text, book_id::text,
		title, author, price_cents, quantity
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, domain.Internal(err, "order.load_items", "failed to load order items")
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.BookID,
			&item.Title, &item.Author, &item.PriceCents, &item.Quantity); err != nil {
			return nil, domain.Internal(err, "order.load_items", "failed to scan order item row")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.load_items", "failed to read order item rows")
	}

	return items, nil
}
