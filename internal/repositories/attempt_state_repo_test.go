package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serenvoice/gateway/internal/database"
	"github.com/serenvoice/gateway/internal/models"
	"github.com/serenvoice/gateway/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and applies migrations
func setupPostgres(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("serenvoice"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := database.NewFromPool(pool, nil)
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestAttemptStateRepository_RoundTrip(t *testing.T) {
	db := setupPostgres(t)
	repo := repositories.NewAttemptStateRepository(db)
	ctx := context.Background()

	state, err := repo.Load(ctx, "abc:rl_login")
	require.NoError(t, err)
	assert.Nil(t, state)

	end := time.Now().Add(5 * time.Minute).UnixMilli()
	require.NoError(t, repo.Save(ctx, "abc:rl_login", &models.AttemptState{
		Attempts:   []int64{100, 200},
		LockoutEnd: &end,
	}, 5*time.Minute))

	state, err = repo.Load(ctx, "abc:rl_login")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, []int64{100, 200}, state.Attempts)
	require.NotNil(t, state.LockoutEnd)
	assert.Equal(t, end, *state.LockoutEnd)

	// upsert replaces the previous row
	require.NoError(t, repo.Save(ctx, "abc:rl_login", &models.AttemptState{}, time.Minute))
	state, err = repo.Load(ctx, "abc:rl_login")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Empty(t, state.Attempts)
	assert.Nil(t, state.LockoutEnd)

	require.NoError(t, repo.Delete(ctx, "abc:rl_login"))
	state, err = repo.Load(ctx, "abc:rl_login")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestAttemptStateRepository_DeleteExpired(t *testing.T) {
	db := setupPostgres(t)
	repo := repositories.NewAttemptStateRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "expired", &models.AttemptState{Attempts: []int64{1}}, -time.Minute))
	require.NoError(t, repo.Save(ctx, "active", &models.AttemptState{Attempts: []int64{2}}, time.Hour))

	state, err := repo.Load(ctx, "expired")
	require.NoError(t, err)
	assert.Nil(t, state, "expired rows are invisible before cleanup")

	removed, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	state, err = repo.Load(ctx, "active")
	require.NoError(t, err)
	assert.NotNil(t, state)
}
