package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// ProviderConfig is the static per-provider configuration. Immutable after
// load.
type ProviderConfig struct {
	Name            string
	Driver          string
	SecretKey       string
	PublicKey       string
	WebhookSecret   string
	BaseURL         string
	Currencies      []string
	Enabled         bool
	ReferencePrefix string
}

// SupportsCurrency reports whether the provider accepts the currency code.
// An empty currency set means the provider accepts anything.
func (p ProviderConfig) SupportsCurrency(code string) bool {
	if len(p.Currencies) == 0 {
		return true
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range p.Currencies {
		if strings.ToUpper(c) == code {
			return true
		}
	}
	return false
}

// Prefix returns the reference prefix used for provider detection: the
// configured prefix if set, else the uppercased provider name.
func (p ProviderConfig) Prefix() string {
	if p.ReferencePrefix != "" {
		return strings.ToUpper(p.ReferencePrefix)
	}
	return strings.ToUpper(p.Name)
}

// Config is the routing engine's configuration snapshot.
type Config struct {
	Env              string
	Port             int
	DefaultProvider  string
	FallbackProvider string
	Providers        map[string]ProviderConfig

	WebhookBasePath     string
	VerifySignatures    bool
	WebhookMaxRetries   int
	WebhookRetryBackoff time.Duration

	HealthCheckEnabled bool
	HealthCheckTTL     time.Duration

	TransactionLogging       bool
	SubscriptionTable        string
	PreventDuplicateWebhooks bool
}

// IsProduction reports whether the app runs with production constraints
// (HTTPS-only callback URLs, JSON logging).
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Provider returns the configuration for a provider name, case-insensitively.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	pc, ok := c.Providers[strings.ToLower(name)]
	return pc, ok
}

// ProviderNames returns the configured provider names in a fixed order:
// default first, fallback second, then the rest sorted by name.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	seen := make(map[string]bool, len(c.Providers))

	for _, name := range []string{c.DefaultProvider, c.FallbackProvider} {
		name = strings.ToLower(name)
		if name == "" || seen[name] {
			continue
		}
		if _, ok := c.Providers[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	rest := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// Load builds the configuration from environment variables with defaults
// suitable for local development.
func Load() *Config {
	port, _ := strconv.Atoi(getEnv("PORT", "8080"))

	providers := map[string]ProviderConfig{
		"paystack": {
			Name:            "paystack",
			Driver:          "paystack",
			SecretKey:       os.Getenv("PAYSTACK_SECRET_KEY"),
			PublicKey:       os.Getenv("PAYSTACK_PUBLIC_KEY"),
			WebhookSecret:   getEnv("PAYSTACK_WEBHOOK_SECRET", os.Getenv("PAYSTACK_SECRET_KEY")),
			BaseURL:         getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			Currencies:      splitList(getEnv("PAYSTACK_CURRENCIES", "NGN,GHS,ZAR,KES,USD")),
			Enabled:         getBool("PAYSTACK_ENABLED", true),
			ReferencePrefix: getEnv("PAYSTACK_REFERENCE_PREFIX", "PSK"),
		},
		"stripe": {
			Name:            "stripe",
			Driver:          "stripe",
			SecretKey:       os.Getenv("STRIPE_SECRET_KEY"),
			PublicKey:       os.Getenv("STRIPE_PUBLIC_KEY"),
			WebhookSecret:   os.Getenv("STRIPE_WEBHOOK_SECRET"),
			BaseURL:         getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),
			Currencies:      splitList(getEnv("STRIPE_CURRENCIES", "USD,EUR,GBP,CAD,AUD")),
			Enabled:         getBool("STRIPE_ENABLED", true),
			ReferencePrefix: getEnv("STRIPE_REFERENCE_PREFIX", "STR"),
		},
	}

	return &Config{
		Env:              getEnv("APP_ENV", "development"),
		Port:             port,
		DefaultProvider:  strings.ToLower(getEnv("PAYMENT_DEFAULT_PROVIDER", "paystack")),
		FallbackProvider: strings.ToLower(getEnv("PAYMENT_FALLBACK_PROVIDER", "stripe")),
		Providers:        providers,

		WebhookBasePath:     getEnv("WEBHOOK_BASE_PATH", "/webhooks"),
		VerifySignatures:    getBool("WEBHOOK_VERIFY_SIGNATURE", true),
		WebhookMaxRetries:   getInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookRetryBackoff: getDuration("WEBHOOK_RETRY_BACKOFF", 60*time.Second),

		HealthCheckEnabled: getBool("HEALTH_CHECK_ENABLED", true),
		HealthCheckTTL:     getDuration("HEALTH_CHECK_TTL", 300*time.Second),

		TransactionLogging:       getBool("TRANSACTION_LOGGING", true),
		SubscriptionTable:        getEnv("SUBSCRIPTION_TABLE", "subscription_transactions"),
		PreventDuplicateWebhooks: getBool("PREVENT_DUPLICATE_WEBHOOKS", true),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
