package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore persists state labels in a sessions table. The schema is
// applied by the migrations in migrations/.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an already-connected database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get returns the stored value, reporting absence via ok=false.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT state FROM sessions WHERE chat_id = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session: select %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the value under key.
func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (chat_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chat_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("session: upsert %q: %w", key, err)
	}
	return nil
}
