// Package detect infers which provider issued a transaction reference from
// its prefix.
package detect

import (
	"strings"
	"sync"
)

// Detector maps reference prefixes to provider names. Prefixes are matched in
// registration order, so the first registered prefix wins when two collide.
// Safe for concurrent use.
type Detector struct {
	mu       sync.RWMutex
	order    []string
	prefixes map[string]string
}

func NewDetector() *Detector {
	return &Detector{
		prefixes: make(map[string]string),
	}
}

// Register adds a prefix for a provider. Prefixes are stored uppercased. A
// re-registered prefix keeps its original position in the match order.
func (d *Detector) Register(prefix, provider string) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.prefixes[prefix]; !exists {
		d.order = append(d.order, prefix)
	}
	d.prefixes[prefix] = provider
}

// DetectFromReference returns the provider whose prefix starts the reference,
// immediately followed by an underscore. The second return is false when no
// registered prefix matches.
func (d *Detector) DetectFromReference(reference string) (string, bool) {
	ref := strings.ToUpper(strings.TrimSpace(reference))
	if ref == "" {
		return "", false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, prefix := range d.order {
		if strings.HasPrefix(ref, prefix+"_") {
			return d.prefixes[prefix], true
		}
	}
	return "", false
}
