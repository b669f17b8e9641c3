package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	// Queue names
	WebhookQueue    = "webhooks:queue"
	WebhookDLQ      = "webhooks:dlq"
	WebhookRetrySet = "webhooks:retry"

	// Key prefixes
	HealthKeyPrefix    = "health:"
	WebhookSeenPrefix  = "webhooks:seen:"
	WebhookSeenTTL     = 24 * time.Hour
	DefaultConsumeTime = 10 * time.Second
)

// Service provides the Redis-backed concerns of the gateway: the cached
// provider health readings, the webhook job queue with its retry set and
// dead-letter queue, and duplicate-delivery suppression.
type Service struct {
	client       *Client
	healthTTL    time.Duration
	maxRetries   int
	retryBackoff time.Duration
}

// Options tunes the service. Zero values fall back to a 300s health TTL
// and 3 retries with a fixed 60s backoff.
type Options struct {
	HealthTTL    time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func NewService(client *Client, opts Options) *Service {
	if opts.HealthTTL == 0 {
		opts.HealthTTL = 300 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = 60 * time.Second
	}
	return &Service{
		client:       client,
		healthTTL:    opts.HealthTTL,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
	}
}

// WebhookJob is one webhook delivery queued for processing.
type WebhookJob struct {
	Provider    string    `json:"provider"`
	Body        []byte    `json:"body"`
	RetryCount  int       `json:"retry_count"`
	ReceivedAt  time.Time `json:"received_at"`
	LastAttempt time.Time `json:"last_attempt"`
	NextRetry   time.Time `json:"next_retry"`
}

// EnqueueWebhook publishes a webhook delivery onto the processing queue.
func (s *Service) EnqueueWebhook(ctx context.Context, provider string, body []byte) error {
	job := WebhookJob{
		Provider:   provider,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
	}
	return s.client.PushJob(ctx, WebhookQueue, job)
}

// ConsumeWebhook blocks until a webhook job is available or the blocking
// window elapses. A nil job with nil error means the queue stayed empty.
func (s *Service) ConsumeWebhook(ctx context.Context) (*WebhookJob, error) {
	data, err := s.client.PopJob(ctx, WebhookQueue, DefaultConsumeTime)
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job WebhookJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook job: %w", err)
	}
	return &job, nil
}

// RetryWebhook schedules a failed job for another attempt with the fixed
// backoff, or moves it to the dead-letter queue once retries are exhausted.
func (s *Service) RetryWebhook(ctx context.Context, job *WebhookJob) error {
	job.RetryCount++
	job.LastAttempt = time.Now().UTC()

	if job.RetryCount > s.maxRetries {
		return s.client.PushJob(ctx, WebhookDLQ, job)
	}

	job.NextRetry = time.Now().UTC().Add(s.retryBackoff)

	jsonData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal retry job: %w", err)
	}

	return s.client.rdb.ZAdd(ctx, WebhookRetrySet, goredis.Z{
		Score:  float64(job.NextRetry.Unix()),
		Member: string(jsonData),
	}).Err()
}

// PromoteRetryJobs moves due retry jobs back onto the main queue.
func (s *Service) PromoteRetryJobs(ctx context.Context) error {
	now := float64(time.Now().Unix())

	result, err := s.client.rdb.ZRangeByScore(ctx, WebhookRetrySet, &goredis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return err
	}

	for _, jobStr := range result {
		var job WebhookJob
		if err := json.Unmarshal([]byte(jobStr), &job); err != nil {
			continue
		}
		if err := s.client.PushJob(ctx, WebhookQueue, job); err != nil {
			continue
		}
		s.client.rdb.ZRem(ctx, WebhookRetrySet, jobStr)
	}
	return nil
}

// MarkWebhookSeen records a webhook event id, reporting whether this is the
// first delivery. Used to suppress duplicate deliveries when enabled.
func (s *Service) MarkWebhookSeen(ctx context.Context, provider, eventID string) (bool, error) {
	key := WebhookSeenPrefix + provider + ":" + eventID
	return s.client.SetIfAbsent(ctx, key, "1", WebhookSeenTTL)
}

// ClearWebhookSeen releases a duplicate-suppression marker so a later
// redelivery is accepted again. Called when a marked delivery could not be
// queued, otherwise the vendor's retry would be answered as a duplicate of
// a job that never existed.
func (s *Service) ClearWebhookSeen(ctx context.Context, provider, eventID string) error {
	return s.client.Delete(ctx, WebhookSeenPrefix+provider+":"+eventID)
}

// CacheProviderHealth stores a provider health reading with the TTL.
func (s *Service) CacheProviderHealth(ctx context.Context, provider string, isHealthy bool) error {
	value := "unhealthy"
	if isHealthy {
		value = "healthy"
	}
	return s.client.SetWithExpiration(ctx, HealthKeyPrefix+provider, value, s.healthTTL)
}

// IsHealthy reads a cached provider health reading. The second return is
// false when no reading is cached (or it expired).
func (s *Service) IsHealthy(ctx context.Context, provider string) (bool, bool, error) {
	value, err := s.client.Get(ctx, HealthKeyPrefix+provider)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, false, nil
		}
		return false, false, err
	}
	return value == "healthy", true, nil
}

// InvalidateProviderHealth drops a cached health reading.
func (s *Service) InvalidateProviderHealth(ctx context.Context, provider string) error {
	return s.client.Delete(ctx, HealthKeyPrefix+provider)
}

// QueueLength returns the number of pending webhook jobs.
func (s *Service) QueueLength(ctx context.Context) (int64, error) {
	return s.client.QueueLength(ctx, WebhookQueue)
}

// DLQLength returns the number of dead-lettered webhook jobs.
func (s *Service) DLQLength(ctx context.Context) (int64, error) {
	return s.client.QueueLength(ctx, WebhookDLQ)
}

// RetrySetLength returns the number of jobs waiting for a retry slot.
func (s *Service) RetrySetLength(ctx context.Context) (int64, error) {
	return s.client.rdb.ZCard(ctx, WebhookRetrySet).Result()
}

// Ping checks Redis connectivity.
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close closes the underlying connection.
func (s *Service) Close() error {
	return s.client.Close()
}
