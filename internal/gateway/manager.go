// Package gateway is the payment routing core: it resolves drivers, builds
// the fallback chain and executes charge/verify with first-success
// semantics.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"paygate/internal/config"
	"paygate/internal/drivers"
	"paygate/internal/models"
	"paygate/internal/payerrors"
)

// DriverFactory resolves a provider name to a driver instance.
type DriverFactory interface {
	Create(name string) (drivers.Driver, error)
}

// HealthStore reads cached provider health. The second return is false when
// no reading is cached, in which case the provider is not skipped.
type HealthStore interface {
	IsHealthy(ctx context.Context, provider string) (healthy bool, found bool, err error)
}

// Manager routes payment operations across the configured providers. Driver
// instances are resolved lazily and memoized for the manager's lifetime; the
// memoization table is guarded so a Manager may be shared across goroutines.
type Manager struct {
	cfg     *config.Config
	factory DriverFactory
	health  HealthStore
	log     *zap.Logger

	mu      sync.RWMutex
	drivers map[string]drivers.Driver
}

func NewManager(cfg *config.Config, factory DriverFactory, health HealthStore, log *zap.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		factory: factory,
		health:  health,
		log:     log,
		drivers: make(map[string]drivers.Driver),
	}
}

// Driver resolves and memoizes the driver for a provider name. An empty name
// resolves the default provider.
func (m *Manager) Driver(name string) (drivers.Driver, error) {
	if name == "" {
		name = m.cfg.DefaultProvider
	}
	name = strings.ToLower(name)

	m.mu.RLock()
	d, ok := m.drivers[name]
	m.mu.RUnlock()
	if ok {
		return d, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drivers[name]; ok {
		return d, nil
	}

	d, err := m.factory.Create(name)
	if err != nil {
		return nil, err
	}
	m.drivers[name] = d
	return d, nil
}

// FallbackChain returns the default provider followed by the fallback
// provider, deduplicated and with empty entries removed. Ordering is
// significant: ChargeWithFallback scans it front to back.
func (m *Manager) FallbackChain() []string {
	chain := make([]string, 0, 2)
	seen := make(map[string]bool, 2)
	for _, name := range []string{m.cfg.DefaultProvider, m.cfg.FallbackProvider} {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		chain = append(chain, name)
		seen[name] = true
	}
	return chain
}

// ChargeWithFallback tries each candidate provider in order and returns the
// first successful charge. Candidates default to the fallback chain.
// Unhealthy providers and providers that do not support the request currency
// are skipped before any network call. When every candidate is exhausted the
// aggregate ProviderError carries one entry per candidate.
func (m *Manager) ChargeWithFallback(ctx context.Context, req *models.ChargeRequest, providers ...string) (*models.ChargeResponse, error) {
	candidates := providers
	if len(candidates) == 0 {
		candidates = m.FallbackChain()
	}

	scanErr := payerrors.NewProviderError("charge")

	for _, name := range candidates {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		driver, err := m.Driver(name)
		if err != nil {
			m.log.Warn("driver unavailable", zap.String("provider", name), zap.Error(err))
			scanErr.Record(name, err)
			continue
		}

		if skip, reason := m.shouldSkip(ctx, name, req.Currency); skip {
			m.log.Info("provider skipped", zap.String("provider", name), zap.Error(reason))
			scanErr.Record(name, reason)
			continue
		}

		resp, err := driver.Charge(ctx, req)
		if err != nil {
			m.log.Warn("charge attempt failed", zap.String("provider", name), zap.Error(err))
			scanErr.Record(name, &payerrors.ChargeError{Provider: name, Err: err})
			continue
		}

		m.log.Info("charge routed",
			zap.String("provider", name),
			zap.String("reference", resp.Reference))
		return resp, nil
	}

	return nil, scanErr
}

// shouldSkip applies the health and currency gates. Both are cheap local
// checks performed before any vendor call.
func (m *Manager) shouldSkip(ctx context.Context, name, currency string) (bool, error) {
	if m.cfg.HealthCheckEnabled && m.health != nil {
		healthy, found, err := m.health.IsHealthy(ctx, name)
		if err != nil {
			// A broken health cache must not take down charging.
			m.log.Warn("health cache lookup failed", zap.String("provider", name), zap.Error(err))
		} else if found && !healthy {
			return true, fmt.Errorf("health check reports unhealthy")
		}
	}

	if pc, ok := m.cfg.Provider(name); ok && !pc.SupportsCurrency(currency) {
		return true, &payerrors.CurrencyError{Provider: name, Currency: currency}
	}

	return false, nil
}

// Verify looks up a transaction. With a provider name it tries only that
// provider; otherwise it scans every configured provider in configuration
// order until one succeeds. Verify applies no health or currency gating: a
// provider able to look up a stale reference needn't pass current health
// checks.
func (m *Manager) Verify(ctx context.Context, reference, provider string) (*models.VerificationResponse, error) {
	if provider != "" {
		driver, err := m.Driver(provider)
		if err != nil {
			return nil, err
		}
		resp, err := driver.Verify(ctx, reference)
		if err != nil {
			return nil, &payerrors.VerificationError{Provider: driver.Name(), Reference: reference, Err: err}
		}
		return resp, nil
	}

	scanErr := payerrors.NewProviderError("verify")

	for _, name := range m.cfg.ProviderNames() {
		driver, err := m.Driver(name)
		if err != nil {
			scanErr.Record(name, err)
			continue
		}

		resp, err := driver.Verify(ctx, reference)
		if err != nil {
			scanErr.Record(name, &payerrors.VerificationError{Provider: name, Reference: reference, Err: err})
			continue
		}
		return resp, nil
	}

	return nil, scanErr
}
