package circuitbreaker

import "sync"

// Registry hands out one breaker per provider name, creating them lazily
// with a shared configuration. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*Breaker
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for a provider, creating it on first use.
func (r *Registry) Get(provider string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[provider]
	if !ok {
		b = New(provider, r.cfg)
		r.breakers[provider] = b
	}
	return b
}

// States returns a snapshot of every known breaker's state, for diagnostics.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}
