package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *Service {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := NewClient(Config{Host: host, Port: port.Port()})
	service := NewService(client, Options{
		HealthTTL:    2 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Second,
	})
	t.Cleanup(func() { service.Close() })

	return service
}

func TestRedisIntegration(t *testing.T) {
	service := startRedis(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, service.Ping(ctx))
	})

	t.Run("HealthCaching", func(t *testing.T) {
		require.NoError(t, service.CacheProviderHealth(ctx, "paystack", true))

		healthy, found, err := service.IsHealthy(ctx, "paystack")
		require.NoError(t, err)
		assert.True(t, found)
		assert.True(t, healthy)

		require.NoError(t, service.CacheProviderHealth(ctx, "stripe", false))
		healthy, found, err = service.IsHealthy(ctx, "stripe")
		require.NoError(t, err)
		assert.True(t, found)
		assert.False(t, healthy)

		// Unknown provider has no cached reading.
		_, found, err = service.IsHealthy(ctx, "paypal")
		require.NoError(t, err)
		assert.False(t, found)

		// Readings expire with the TTL.
		time.Sleep(2500 * time.Millisecond)
		_, found, err = service.IsHealthy(ctx, "paystack")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("HealthInvalidation", func(t *testing.T) {
		require.NoError(t, service.CacheProviderHealth(ctx, "paystack", true))
		require.NoError(t, service.InvalidateProviderHealth(ctx, "paystack"))

		_, found, err := service.IsHealthy(ctx, "paystack")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("WebhookQueue", func(t *testing.T) {
		length, err := service.QueueLength(ctx)
		require.NoError(t, err)
		assert.Zero(t, length)

		body := []byte(`{"event":"charge.success"}`)
		require.NoError(t, service.EnqueueWebhook(ctx, "paystack", body))

		length, err = service.QueueLength(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, length)

		job, err := service.ConsumeWebhook(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, "paystack", job.Provider)
		assert.Equal(t, body, job.Body)
		assert.Zero(t, job.RetryCount)
	})

	t.Run("RetryFlow", func(t *testing.T) {
		job := &WebhookJob{Provider: "stripe", Body: []byte(`{}`)}

		require.NoError(t, service.RetryWebhook(ctx, job))
		assert.Equal(t, 1, job.RetryCount)

		length, err := service.RetrySetLength(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, length)

		// Before the backoff elapses nothing is promoted.
		require.NoError(t, service.PromoteRetryJobs(ctx))
		qlen, err := service.QueueLength(ctx)
		require.NoError(t, err)
		assert.Zero(t, qlen)

		time.Sleep(1500 * time.Millisecond)
		require.NoError(t, service.PromoteRetryJobs(ctx))

		qlen, err = service.QueueLength(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, qlen)

		promoted, err := service.ConsumeWebhook(ctx)
		require.NoError(t, err)
		require.NotNil(t, promoted)
		assert.Equal(t, 1, promoted.RetryCount)

		// Exhausting the retry budget moves the job to the dead-letter queue.
		promoted.RetryCount = 2
		require.NoError(t, service.RetryWebhook(ctx, promoted))

		dlq, err := service.DLQLength(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, dlq)
	})

	t.Run("DuplicateSuppression", func(t *testing.T) {
		first, err := service.MarkWebhookSeen(ctx, "paystack", "evt_1")
		require.NoError(t, err)
		assert.True(t, first)

		again, err := service.MarkWebhookSeen(ctx, "paystack", "evt_1")
		require.NoError(t, err)
		assert.False(t, again)

		// Same id under another provider is a distinct delivery.
		other, err := service.MarkWebhookSeen(ctx, "stripe", "evt_1")
		require.NoError(t, err)
		assert.True(t, other)

		// Releasing the marker lets a redelivery through, so a delivery
		// marked seen but never queued is not lost for good.
		require.NoError(t, service.ClearWebhookSeen(ctx, "paystack", "evt_1"))
		redelivered, err := service.MarkWebhookSeen(ctx, "paystack", "evt_1")
		require.NoError(t, err)
		assert.True(t, redelivered)
	})
}
