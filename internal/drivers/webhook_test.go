package drivers

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paygate/internal/circuitbreaker"
	"paygate/internal/config"
	"paygate/internal/normalize"
)

func testPaystack(secret string) *Paystack {
	return NewPaystack(config.ProviderConfig{
		Name:          "paystack",
		SecretKey:     "sk_test",
		WebhookSecret: secret,
		BaseURL:       "https://api.paystack.co",
	}, circuitbreaker.New("paystack", circuitbreaker.Config{}), zap.NewNop())
}

func testStripe(secret string) *Stripe {
	return NewStripe(config.ProviderConfig{
		Name:          "stripe",
		SecretKey:     "sk_test",
		WebhookSecret: secret,
		BaseURL:       "https://api.stripe.com",
	}, circuitbreaker.New("stripe", circuitbreaker.Config{}), zap.NewNop())
}

func paystackSign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func stripeSign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", timestamp, body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackValidateWebhook(t *testing.T) {
	secret := "whsec_paystack"
	d := testPaystack(secret)
	body := []byte(`{"event":"charge.success"}`)

	headers := http.Header{}
	headers.Set("x-paystack-signature", paystackSign(secret, body))
	assert.True(t, d.ValidateWebhook(headers, body))

	// Uppercased hex digests are accepted.
	headers.Set("x-paystack-signature", strings.ToUpper(paystackSign(secret, body)))
	assert.True(t, d.ValidateWebhook(headers, body))
}

func TestPaystackValidateWebhookRejects(t *testing.T) {
	secret := "whsec_paystack"
	d := testPaystack(secret)
	body := []byte(`{"event":"charge.success"}`)

	headers := http.Header{}
	assert.False(t, d.ValidateWebhook(headers, body), "missing header")

	headers.Set("x-paystack-signature", paystackSign("wrong-secret", body))
	assert.False(t, d.ValidateWebhook(headers, body), "wrong secret")

	headers.Set("x-paystack-signature", paystackSign(secret, body))
	assert.False(t, d.ValidateWebhook(headers, []byte(`{"tampered":1}`)), "tampered body")

	assert.False(t, testPaystack("").ValidateWebhook(headers, body), "no secret configured")
}

func TestStripeValidateWebhook(t *testing.T) {
	secret := "whsec_stripe"
	d := testStripe(secret)
	body := []byte(`{"type":"payment_intent.succeeded"}`)

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=1712000000,v1=%s", stripeSign(secret, "1712000000", body)))
	assert.True(t, d.ValidateWebhook(headers, body))
}

func TestStripeValidateWebhookMultipleSignatures(t *testing.T) {
	secret := "whsec_stripe"
	d := testStripe(secret)
	body := []byte(`{}`)

	// Stripe sends extra v1 entries during secret rolls; one valid entry is
	// enough.
	good := stripeSign(secret, "200", body)
	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=200, v1=deadbeef, v1=%s", good))
	assert.True(t, d.ValidateWebhook(headers, body))
}

func TestStripeValidateWebhookRejects(t *testing.T) {
	secret := "whsec_stripe"
	d := testStripe(secret)
	body := []byte(`{}`)

	headers := http.Header{}
	assert.False(t, d.ValidateWebhook(headers, body), "missing header")

	headers.Set("Stripe-Signature", "v1="+stripeSign(secret, "100", body))
	assert.False(t, d.ValidateWebhook(headers, body), "missing timestamp")

	headers.Set("Stripe-Signature", "t=100")
	assert.False(t, d.ValidateWebhook(headers, body), "missing signature")

	// Signature computed over a different timestamp must not verify.
	headers.Set("Stripe-Signature", "t=101,v1="+stripeSign(secret, "100", body))
	assert.False(t, d.ValidateWebhook(headers, body), "timestamp mismatch")
}

func TestPaystackWebhookExtraction(t *testing.T) {
	d := testPaystack("s")

	payload := map[string]any{
		"event": "charge.success",
		"data": map[string]any{
			"reference": "PSK_1",
			"status":    "success",
			"channel":   "card",
		},
	}

	ref, ok := d.ExtractWebhookReference(payload)
	require.True(t, ok)
	assert.Equal(t, "PSK_1", ref)

	status, ok := d.ExtractWebhookStatus(payload)
	require.True(t, ok)
	assert.Equal(t, "success", status)

	channel, ok := d.ExtractWebhookChannel(payload)
	require.True(t, ok)
	assert.Equal(t, "card", channel)

	_, ok = d.ExtractWebhookReference(map[string]any{"data": map[string]any{}})
	assert.False(t, ok)
}

func TestPaystackWebhookOfflineReferenceFallback(t *testing.T) {
	d := testPaystack("s")

	ref, ok := d.ExtractWebhookReference(map[string]any{
		"data": map[string]any{"offline_reference": "PSK_off"},
	})
	require.True(t, ok)
	assert.Equal(t, "PSK_off", ref)
}

func TestStripeWebhookExtraction(t *testing.T) {
	d := testStripe("s")

	payload := map[string]any{
		"type": "payment_intent.succeeded",
		"data": map[string]any{
			"object": map[string]any{
				"id":     "pi_123",
				"status": "succeeded",
				"metadata": map[string]any{
					"reference": "STR_1",
				},
				"payment_method_types": []any{"us_bank_account"},
			},
		},
	}

	ref, ok := d.ExtractWebhookReference(payload)
	require.True(t, ok)
	assert.Equal(t, "STR_1", ref)

	status, ok := d.ExtractWebhookStatus(payload)
	require.True(t, ok)
	assert.Equal(t, "succeeded", status)

	channel, ok := d.ExtractWebhookChannel(payload)
	require.True(t, ok)
	assert.Equal(t, normalize.ChannelBankAccount, channel)
}

func TestStripeWebhookReferenceFallsBackToIntentID(t *testing.T) {
	d := testStripe("s")

	ref, ok := d.ExtractWebhookReference(map[string]any{
		"data": map[string]any{
			"object": map[string]any{"id": "pi_456"},
		},
	})
	require.True(t, ok)
	assert.Equal(t, "pi_456", ref)
}

func TestNewReferenceFormat(t *testing.T) {
	ref := newReference("PSK")
	assert.True(t, strings.HasPrefix(ref, "PSK_"))
	assert.NotContains(t, ref[4:], "-")
	assert.Len(t, ref, 4+32)

	// References are unique across calls.
	assert.NotEqual(t, ref, newReference("PSK"))
}
