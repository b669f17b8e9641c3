package drivers

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"paygate/internal/circuitbreaker"
	"paygate/internal/config"
	"paygate/internal/payerrors"
)

// Factory resolves provider names to driver instances. Each driver gets its
// own circuit breaker from a shared registry so one flapping vendor does not
// trip calls to the others.
type Factory struct {
	cfg      *config.Config
	breakers *circuitbreaker.Registry
	log      *zap.Logger
}

func NewFactory(cfg *config.Config, log *zap.Logger) *Factory {
	return &Factory{
		cfg: cfg,
		breakers: circuitbreaker.NewRegistry(circuitbreaker.Config{
			MaxRequests: 3,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c circuitbreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
		log: log,
	}
}

// Create builds the driver for a provider name. Unknown and disabled
// providers fail with DriverNotFoundError; a provider missing its credential
// fails with InvalidConfigurationError.
func (f *Factory) Create(name string) (Driver, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	pc, ok := f.cfg.Provider(name)
	if !ok || !pc.Enabled {
		return nil, &payerrors.DriverNotFoundError{Provider: name}
	}
	if pc.SecretKey == "" {
		return nil, &payerrors.InvalidConfigurationError{Provider: name, Field: "secret key"}
	}

	switch pc.Driver {
	case "paystack":
		return NewPaystack(pc, f.breakers.Get(name), f.log), nil
	case "stripe":
		return NewStripe(pc, f.breakers.Get(name), f.log), nil
	default:
		return nil, &payerrors.DriverNotFoundError{Provider: name}
	}
}

// BreakerStates exposes the per-provider circuit breaker states for the
// health endpoint.
func (f *Factory) BreakerStates() map[string]circuitbreaker.State {
	return f.breakers.States()
}
