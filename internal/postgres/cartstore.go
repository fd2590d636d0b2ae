package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/restory/server/internal/cart"
)

// CartStore implements cart.Store on a JSONB record per session.
// The record payload mirrors what mutation snapshots carry:
//
//	{"lines": [{"id": ..., "quantity": ...}, ...]}
type CartStore struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// Compile-time check that CartStore implements cart.Store.
var _ cart.Store = (*CartStore)(nil)

// NewCartStore creates a new PostgreSQL-backed cart store.
func NewCartStore(db *pgxpool.Pool, logger *slog.Logger) *CartStore {
	return &CartStore{db: db, logger: logger}
}

// cartRecord is the JSONB payload shape.
type cartRecord struct {
	Lines []cart.Line `json:"lines"`
}

// encodeCartRecord renders lines as a record payload. A nil slice is
// stored as an empty array so the record shape stays stable.
func encodeCartRecord(lines []cart.Line) ([]byte, error) {
	if lines == nil {
		lines = []cart.Line{}
	}
	return json.Marshal(cartRecord{Lines: lines})
}

// decodeCartRecord parses a record payload back into lines.
func decodeCartRecord(data []byte) ([]cart.Line, error) {
	var record cartRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return record.Lines, nil
}

// Load retrieves the persisted lines for a session. A missing record
// and a record that fails to decode both come back as an empty cart;
// the decode failure is logged because it means the row is damaged.
func (s *CartStore) Load(ctx context.Context, sessionID string) ([]cart.Line, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		"SELECT data FROM cart_records WHERE session_id = $1", sessionID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load cart record: %w", err)
	}

	lines, err := decodeCartRecord(data)
	if err != nil {
		s.logger.Error("cart record is corrupt, treating as empty",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return nil, nil
	}

	return lines, nil
}

// Save replaces the persisted lines for a session.
func (s *CartStore) Save(ctx context.Context, sessionID string, lines []cart.Line) error {
	data, err := encodeCartRecord(lines)
	if err != nil {
		return fmt.Errorf("failed to encode cart record: %w", err)
	}

	query := `INSERT INTO cart_records (session_id, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, sessionID, data); err != nil {
		return fmt.Errorf("failed to save cart record: %w", err)
	}

	return nil
}

// Delete removes the persisted record for a session.
func (s *CartStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.Exec(ctx,
		"DELETE FROM cart_records WHERE session_id = $1", sessionID,
	); err != nil {
		return fmt.Errorf("failed to delete cart record: %w", err)
	}
	return nil
}
