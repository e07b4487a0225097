package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serenvoice/gateway/internal/models"
	"github.com/serenvoice/gateway/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisAttemptRepository_SaveLoadDelete(t *testing.T) {
	mr, client := setupRedis(t)
	repo := repositories.NewRedisAttemptRepository(client, "sv:")
	ctx := context.Background()

	state, err := repo.Load(ctx, "abc:rl_login")
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, repo.Save(ctx, "abc:rl_login", &models.AttemptState{Attempts: []int64{10, 20}}, time.Minute))
	assert.True(t, mr.Exists("sv:abc:rl_login"))

	raw, err := mr.Get("sv:abc:rl_login")
	require.NoError(t, err)
	assert.JSONEq(t, `{"attempts":[10,20],"lockoutEnd":null}`, raw)

	state, err = repo.Load(ctx, "abc:rl_login")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, []int64{10, 20}, state.Attempts)
	assert.Nil(t, state.LockoutEnd)

	require.NoError(t, repo.Delete(ctx, "abc:rl_login"))
	assert.False(t, mr.Exists("sv:abc:rl_login"))
}

func TestRedisAttemptRepository_TTLExpiresState(t *testing.T) {
	mr, client := setupRedis(t)
	repo := repositories.NewRedisAttemptRepository(client, "sv:")
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "k", &models.AttemptState{Attempts: []int64{1}}, 5*time.Minute))
	assert.Equal(t, 5*time.Minute, mr.TTL("sv:k"))

	mr.FastForward(5 * time.Minute)

	state, err := repo.Load(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestRedisAttemptRepository_CorruptValue(t *testing.T) {
	mr, client := setupRedis(t)
	repo := repositories.NewRedisAttemptRepository(client, "sv:")

	require.NoError(t, mr.Set("sv:bad", "not json"))

	_, err := repo.Load(context.Background(), "bad")
	assert.Error(t, err)
}

func TestRedisAttemptRepository_HealthCheck(t *testing.T) {
	mr, client := setupRedis(t)
	repo := repositories.NewRedisAttemptRepository(client, "sv:")

	require.NoError(t, repo.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, repo.HealthCheck(context.Background()))
}
