//go:build integration
// +build integration

package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/db/memory"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})

	cleanup := func() {
		_ = client.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}
	return client, cleanup
}

func TestBanCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	repos := memory.NewStore().Repositories()
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, repos.Users.Upsert(ctx, models.NewUser(id, "")))
	}
	_, err := repos.Users.SetBanned(ctx, 2, true)
	require.NoError(t, err)

	// Stale members are dropped by the load.
	require.NoError(t, client.SAdd(ctx, bannedUsersSetKey, "99").Err())

	cache := NewBanCache(client, repos.Users, zaptest.NewLogger(t))
	require.NoError(t, cache.LoadFromDB(ctx))

	n, err := cache.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	banned, err := cache.IsBanned(ctx, 2)
	require.NoError(t, err)
	assert.True(t, banned)

	t.Run("follows ledger bans", func(t *testing.T) {
		ex := New(repos, Deps{Logger: zaptest.NewLogger(t)})
		ex.Ledger.AddObserver(cache)

		for i := 0; i < ex.Rules.BanThreshold; i++ {
			_, err := ex.Ledger.Strike(ctx, 3, SourceSweeper)
			require.NoError(t, err)
		}
		banned, err := cache.IsBanned(ctx, 3)
		require.NoError(t, err)
		assert.True(t, banned)

		_, err = ex.Ledger.Unban(ctx, 2)
		require.NoError(t, err)
		banned, err = cache.IsBanned(ctx, 2)
		require.NoError(t, err)
		assert.False(t, banned)
	})
}
