package shared

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxIdempotencyKeyLength bounds client supplied Idempotency-Key values.
const MaxIdempotencyKeyLength = 128

// IdempotencyStore claims client keys for replay protection on additive operations.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

var (
	// ErrIdempotencyConflict indicates the key was already claimed.
	ErrIdempotencyConflict = Conflict("idempotency_conflict", "idempotent request already processed")
	// ErrInvalidIdempotencyKey indicates an empty or oversized key.
	ErrInvalidIdempotencyKey = Validation("invalid_idempotency_key", "idempotency key must be 1-128 printable characters")
)

// ValidateIdempotencyKey checks a client key before it is claimed.
func ValidateIdempotencyKey(key string) error {
	if key == "" || len(key) > MaxIdempotencyKeyLength || strings.TrimSpace(key) != key {
		return ErrInvalidIdempotencyKey.With("length", len(key))
	}
	return nil
}

// CheckAndInsert claims key for module. A key claimed before, by any module,
// yields ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil || s.pool == nil {
		return errors.New("idempotency store not initialised")
	}
	if err := ValidateIdempotencyKey(key); err != nil {
		return err
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	tag, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, NOW())
ON CONFLICT (key) DO NOTHING`, key, module)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict.With("key", key)
	}
	return nil
}

// Delete releases a claimed key after the guarded operation failed.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key)
	return err
}

// Cleanup removes keys older than the retention window and reports how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, nil
	}
	if olderThan <= 0 {
		return 0, errors.New("idempotency retention must be positive")
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
