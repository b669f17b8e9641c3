package healthmonitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"paygate/internal/config"
	"paygate/internal/gateway"
	"paygate/internal/redis"
)

// Monitor probes every enabled provider in the background and caches the
// readings so the charge path never blocks on a live health check.
type Monitor struct {
	cfg           *config.Config
	manager       *gateway.Manager
	redisService  *redis.Service
	checkInterval time.Duration
	healthTimeout time.Duration
	log           *zap.Logger
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Options holds monitor tuning.
type Options struct {
	CheckInterval time.Duration
	HealthTimeout time.Duration
}

func NewMonitor(cfg *config.Config, manager *gateway.Manager, redisService *redis.Service, opts Options, log *zap.Logger) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.CheckInterval == 0 {
		opts.CheckInterval = 30 * time.Second
	}
	if opts.HealthTimeout == 0 {
		opts.HealthTimeout = 5 * time.Second
	}

	return &Monitor{
		cfg:           cfg,
		manager:       manager,
		redisService:  redisService,
		checkInterval: opts.CheckInterval,
		healthTimeout: opts.HealthTimeout,
		log:           log,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins the monitoring goroutine.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.run()
	m.log.Info("health monitor started",
		zap.Duration("interval", m.checkInterval))
}

// Stop cancels the loop and waits for the in-flight probe to finish.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
	m.log.Info("health monitor stopped")
}

func (m *Monitor) run() {
	defer m.wg.Done()

	// First reading up front so fallback routing has data immediately.
	m.checkAllProviders()

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkAllProviders()
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Monitor) checkAllProviders() {
	for _, name := range m.cfg.ProviderNames() {
		m.checkProvider(name)
	}
}

func (m *Monitor) checkProvider(name string) {
	driver, err := m.manager.Driver(name)
	if err != nil {
		m.log.Warn("health check skipped, driver unavailable",
			zap.String("provider", name),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.healthTimeout)
	defer cancel()

	start := time.Now()
	healthy := driver.HealthCheck(ctx)
	elapsed := time.Since(start)

	cacheCtx, cacheCancel := context.WithTimeout(context.Background(), time.Second)
	defer cacheCancel()

	if err := m.redisService.CacheProviderHealth(cacheCtx, name, healthy); err != nil {
		m.log.Error("failed to cache provider health",
			zap.String("provider", name),
			zap.Error(err))
	}

	if healthy {
		m.log.Debug("health check ok",
			zap.String("provider", name),
			zap.Duration("took", elapsed))
	} else {
		m.log.Warn("health check failed",
			zap.String("provider", name),
			zap.Duration("took", elapsed))
	}
}

// ForceCheck probes one provider immediately, off the ticker cadence.
func (m *Monitor) ForceCheck(name string) {
	go m.checkProvider(name)
}

// ProviderHealth reads the cached state for one provider.
func (m *Monitor) ProviderHealth(ctx context.Context, name string) (healthy, found bool, err error) {
	return m.redisService.IsHealthy(ctx, name)
}
