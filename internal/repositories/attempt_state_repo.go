package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/serenvoice/gateway/internal/database"
	"github.com/serenvoice/gateway/internal/models"
)

// AttemptStateRepository persists rate limiter state in PostgreSQL
type AttemptStateRepository struct {
	db *database.DB
}

// NewAttemptStateRepository creates a new AttemptStateRepository
func NewAttemptStateRepository(db *database.DB) *AttemptStateRepository {
	return &AttemptStateRepository{db: db}
}

// Load returns the unexpired state stored under key, or nil if there is none
func (r *AttemptStateRepository) Load(ctx context.Context, key string) (*models.AttemptState, error) {
	query := `
		SELECT attempts, lockout_end FROM rate_limit_state
		WHERE key = $1 AND expires_at > CURRENT_TIMESTAMP
	`

	var state models.AttemptState
	err := r.db.Pool.QueryRow(ctx, query, key).Scan(&state.Attempts, &state.LockoutEnd)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &state, nil
}

// Save upserts state under key
func (r *AttemptStateRepository) Save(ctx context.Context, key string, state *models.AttemptState, ttl time.Duration) error {
	query := `
		INSERT INTO rate_limit_state (key, attempts, lockout_end, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE
		SET attempts = EXCLUDED.attempts,
			lockout_end = EXCLUDED.lockout_end,
			expires_at = EXCLUDED.expires_at,
			updated_at = CURRENT_TIMESTAMP
	`

	attempts := state.Attempts
	if attempts == nil {
		attempts = []int64{}
	}

	_, err := r.db.Pool.Exec(ctx, query, key, attempts, state.LockoutEnd, time.Now().Add(ttl))
	return database.MapPostgresError(err)
}

// Delete removes the state stored under key
func (r *AttemptStateRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM rate_limit_state WHERE key = $1`, key)
	return database.MapPostgresError(err)
}

// DeleteExpired removes expired rows (call periodically)
func (r *AttemptStateRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM rate_limit_state WHERE expires_at <= CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
