package drivers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paygate/internal/config"
	"paygate/internal/payerrors"
)

func factoryConfig() *config.Config {
	return &config.Config{
		DefaultProvider: "paystack",
		Providers: map[string]config.ProviderConfig{
			"paystack": {Name: "paystack", Driver: "paystack", SecretKey: "sk_p", Enabled: true},
			"stripe":   {Name: "stripe", Driver: "stripe", SecretKey: "sk_s", Enabled: true},
			"legacy":   {Name: "legacy", Driver: "paystack", SecretKey: "sk_l", Enabled: false},
			"broken":   {Name: "broken", Driver: "stripe", Enabled: true},
			"unknown":  {Name: "unknown", Driver: "square", SecretKey: "sk_u", Enabled: true},
		},
	}
}

func TestFactoryCreate(t *testing.T) {
	f := NewFactory(factoryConfig(), zap.NewNop())

	d, err := f.Create("paystack")
	require.NoError(t, err)
	assert.Equal(t, "paystack", d.Name())

	// Paystack carries the optional capabilities, Stripe does not.
	_, ok := d.(SubscriptionDriver)
	assert.True(t, ok)
	_, ok = d.(LifecycleHooks)
	assert.True(t, ok)

	d, err = f.Create("STRIPE")
	require.NoError(t, err)
	assert.Equal(t, "stripe", d.Name())
	_, ok = d.(SubscriptionDriver)
	assert.False(t, ok)
}

func TestFactoryCreateFailures(t *testing.T) {
	f := NewFactory(factoryConfig(), zap.NewNop())

	var nfErr *payerrors.DriverNotFoundError
	_, err := f.Create("paypal")
	require.ErrorAs(t, err, &nfErr)

	_, err = f.Create("legacy")
	require.ErrorAs(t, err, &nfErr, "disabled provider")

	_, err = f.Create("unknown")
	require.ErrorAs(t, err, &nfErr, "unrecognized driver type")

	var cfgErr *payerrors.InvalidConfigurationError
	_, err = f.Create("broken")
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "secret key", cfgErr.Field)
}
