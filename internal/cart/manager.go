package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// saveTimeout bounds the write-through triggered by a cart mutation.
const saveTimeout = 5 * time.Second

// Manager hands out one Cart per session, hydrating from the Store on
// first access and writing every mutation back through it. Persistence
// failures are logged and swallowed: the in-memory cart stays usable
// and the next mutation retries the write.
type Manager struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	carts map[string]*Cart
}

// NewManager creates a Manager backed by the given store.
func NewManager(store Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		carts:  make(map[string]*Cart),
	}
}

// Get returns the cart for a session, loading persisted lines on first
// access. Concurrent calls for the same session return the same Cart.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Cart, error) {
	m.mu.Lock()
	if c, ok := m.carts[sessionID]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	// Load outside the lock; losers of the race below discard their copy.
	lines, err := m.store.Load(ctx, sessionID)
	if err != nil {
		m.logger.Error("failed to load cart, starting empty",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		lines = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.carts[sessionID]; ok {
		return c, nil
	}

	c := Hydrate(sessionID, lines)
	c.Subscribe(m.persist)
	m.carts[sessionID] = c
	return c, nil
}

// Release drops the in-memory cart for a session. The persisted record
// is left in place so the session can hydrate again later.
func (m *Manager) Release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
}

// Discard drops the in-memory cart and deletes its persisted record.
// Used after checkout confirms and the cart contents become an order.
func (m *Manager) Discard(ctx context.Context, sessionID string) {
	m.Release(sessionID)

	if err := m.store.Delete(ctx, sessionID); err != nil {
		m.logger.Error("failed to delete cart record",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}

// persist writes a mutation snapshot through to the store.
func (m *Manager) persist(sessionID string, lines []Line) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := m.store.Save(ctx, sessionID, lines); err != nil {
		m.logger.Error("failed to persist cart",
			slog.String("session_id", sessionID),
			slog.Int("line_count", len(lines)),
			slog.String("error", err.Error()))
	}
}
