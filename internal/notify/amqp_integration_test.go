//go:build integration
// +build integration

package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ad-tracker/engagement-exchange-go/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
)

func setupTestRabbitMQ(t *testing.T) (*config.RabbitMQConfig, func()) {
	ctx := context.Background()

	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.13-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	host, err := rabbitmqContainer.Host(ctx)
	require.NoError(t, err)

	port, err := rabbitmqContainer.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	cfg := &config.RabbitMQConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "guest",
		Password: "guest",
		Exchange: "test.notifications",
		Queue:    "test.notifications.outbound",
	}

	cleanup := func() {
		if err := rabbitmqContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return cfg, cleanup
}

func TestAMQPPublisher_Notify(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	p, err := NewAMQPPublisher(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer p.Close()

	assert.True(t, p.IsHealthy())

	sent := Paired(11, 22, 33)
	require.NoError(t, p.Notify(context.Background(), sent))

	conn, err := amqp.Dial(fmt.Sprintf("amqp://guest:guest@%s:%d/", cfg.Host, cfg.Port))
	require.NoError(t, err)
	defer conn.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	var msg amqp.Delivery
	require.Eventually(t, func() bool {
		var ok bool
		msg, ok, err = ch.Get(cfg.Queue, true)
		return err == nil && ok
	}, 10*time.Second, 100*time.Millisecond)

	assert.Equal(t, "notification.paired", msg.RoutingKey)
	got, err := Unmarshal(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, int64(22), got.PartnerID)
}

func TestAMQPPublisher_CloseMarksUnhealthy(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	p, err := NewAMQPPublisher(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.False(t, p.IsHealthy())
}
