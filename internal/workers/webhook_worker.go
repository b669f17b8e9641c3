package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"paygate/internal/redis"
	"paygate/internal/webhooks"
)

// WebhookWorkerPool drains the queued webhook bodies and runs each through
// the processor. Failed deliveries go back through the retry set with their
// attempt count bumped; the pool itself never drops a job.
type WebhookWorkerPool struct {
	workers      int
	redisService *redis.Service
	processor    *webhooks.Processor
	log          *zap.Logger
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewWebhookWorkerPool(workers int, redisService *redis.Service, processor *webhooks.Processor, log *zap.Logger) *WebhookWorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if workers <= 0 {
		workers = 4
	}

	return &WebhookWorkerPool{
		workers:      workers,
		redisService: redisService,
		processor:    processor,
		log:          log,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (wp *WebhookWorkerPool) Start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.wg.Add(1)
	go wp.promoteLoop()
	wp.log.Info("webhook workers started", zap.Int("workers", wp.workers))
}

func (wp *WebhookWorkerPool) Stop() {
	wp.cancel()
	wp.wg.Wait()
	wp.log.Info("webhook worker pool stopped")
}

func (wp *WebhookWorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		job, err := wp.redisService.ConsumeWebhook(wp.ctx)
		if err != nil {
			if wp.ctx.Err() != nil {
				return
			}
			wp.log.Error("webhook consume failed",
				zap.Int("worker", id),
				zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			// Queue was empty for the whole blocking window.
			continue
		}

		wp.processJob(id, job)
	}
}

func (wp *WebhookWorkerPool) processJob(id int, job *redis.WebhookJob) {
	ctx, cancel := context.WithTimeout(wp.ctx, 30*time.Second)
	defer cancel()

	if err := wp.processor.Process(ctx, job.Provider, job.Body); err != nil {
		wp.log.Warn("webhook processing failed, scheduling retry",
			zap.Int("worker", id),
			zap.String("provider", job.Provider),
			zap.Int("attempt", job.RetryCount),
			zap.Error(err))

		if retryErr := wp.redisService.RetryWebhook(ctx, job); retryErr != nil {
			wp.log.Error("webhook retry scheduling failed",
				zap.String("provider", job.Provider),
				zap.Error(retryErr))
		}
		return
	}

	wp.log.Debug("webhook processed",
		zap.Int("worker", id),
		zap.String("provider", job.Provider))
}

// promoteLoop moves retry jobs whose backoff has elapsed back onto the main
// queue.
func (wp *WebhookWorkerPool) promoteLoop() {
	defer wp.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(wp.ctx, 5*time.Second)
			if err := wp.redisService.PromoteRetryJobs(ctx); err != nil {
				wp.log.Error("retry promotion failed", zap.Error(err))
			}
			cancel()
		case <-wp.ctx.Done():
			return
		}
	}
}
