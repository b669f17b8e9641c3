package normalize

import (
	"strings"
	"sync"
)

// Canonical status buckets. Every provider status string normalizes into one
// of these, or passes through lowercased when unmapped.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPending = "pending"
)

// statusBucket is an ordered group of known provider status tokens sharing a
// canonical bucket. Order matters: the first bucket containing the token wins.
type statusBucket struct {
	canonical string
	tokens    []string
}

var defaultStatusBuckets = []statusBucket{
	{
		canonical: StatusSuccess,
		tokens: []string{
			"SUCCESS", "SUCCESSFUL", "SUCCEEDED", "COMPLETED", "COMPLETE",
			"PAID", "CAPTURED", "APPROVED", "SETTLED", "CONFIRMED",
		},
	},
	{
		canonical: StatusFailed,
		tokens: []string{
			"FAILED", "FAILURE", "DECLINED", "REJECTED", "ERROR",
			"ABANDONED", "CANCELED", "CANCELLED", "REVERSED", "VOIDED",
			"EXPIRED", "INSUFFICIENT_FUNDS",
		},
	},
	{
		canonical: StatusPending,
		tokens: []string{
			"PENDING", "PROCESSING", "IN_PROGRESS", "ONGOING", "QUEUED",
			"REQUIRES_ACTION", "REQUIRES_CONFIRMATION", "REQUIRES_PAYMENT_METHOD",
			"REQUIRES_CAPTURE", "AWAITING_PAYMENT", "OPEN",
		},
	},
}

// Default is the process-wide normalizer. Provider overrides registered on
// it are visible to every response DTO deriving canonical statuses.
var Default = NewStatusNormalizer()

// Status normalizes raw against the Default normalizer.
func Status(raw, provider string) string {
	return Default.Normalize(raw, provider)
}

// StatusNormalizer maps arbitrary provider status strings to the canonical
// vocabulary. Provider-specific override tables registered at runtime take
// precedence over the default buckets. Safe for concurrent use.
type StatusNormalizer struct {
	mu        sync.RWMutex
	overrides map[string]map[string]string
}

func NewStatusNormalizer() *StatusNormalizer {
	return &StatusNormalizer{
		overrides: make(map[string]map[string]string),
	}
}

// RegisterOverrides installs a provider-specific status table. Tokens are
// stored uppercased; later registrations for the same provider merge over
// earlier ones.
func (n *StatusNormalizer) RegisterOverrides(provider string, table map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	provider = strings.ToLower(provider)
	existing, ok := n.overrides[provider]
	if !ok {
		existing = make(map[string]string, len(table))
		n.overrides[provider] = existing
	}
	for token, canonical := range table {
		existing[strings.ToUpper(strings.TrimSpace(token))] = canonical
	}
}

// Normalize maps raw onto the canonical vocabulary. Unmapped statuses pass
// through lowercased rather than erroring, since providers add new status
// strings over time. Provider may be empty to skip the override lookup.
func (n *StatusNormalizer) Normalize(raw, provider string) string {
	token := strings.ToUpper(strings.TrimSpace(raw))

	if provider != "" {
		n.mu.RLock()
		table, ok := n.overrides[strings.ToLower(provider)]
		if ok {
			if canonical, hit := table[token]; hit {
				n.mu.RUnlock()
				return canonical
			}
		}
		n.mu.RUnlock()
	}

	for _, bucket := range defaultStatusBuckets {
		for _, known := range bucket.tokens {
			if known == token {
				return bucket.canonical
			}
		}
	}

	return strings.ToLower(strings.TrimSpace(raw))
}
