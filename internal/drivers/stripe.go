package drivers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paygate/internal/circuitbreaker"
	"paygate/internal/config"
	"paygate/internal/models"
	"paygate/internal/normalize"
)

// Stripe implements the charge/verify/webhook contract. It does not
// implement the subscription capability; the gateway discovers that by type
// assertion and reports it as "provider does not support subscriptions".
type Stripe struct {
	cfg      config.ProviderConfig
	client   *apiClient
	channels *normalize.ChannelMapper
	log      *zap.Logger
}

var _ Driver = (*Stripe)(nil)

func NewStripe(cfg config.ProviderConfig, breaker *circuitbreaker.Breaker, log *zap.Logger) *Stripe {
	return &Stripe{
		cfg:      cfg,
		client:   newAPIClient(cfg.BaseURL, cfg.SecretKey, breaker),
		channels: normalize.NewChannelMapper(),
		log:      log,
	}
}

func (s *Stripe) Name() string { return s.cfg.Name }

type stripePaymentIntent struct {
	ID                 string         `json:"id"`
	Status             string         `json:"status"`
	ClientSecret       string         `json:"client_secret"`
	Amount             int64          `json:"amount"`
	Currency           string         `json:"currency"`
	Created            int64          `json:"created"`
	PaymentMethodTypes []string       `json:"payment_method_types"`
	Metadata           map[string]any `json:"metadata"`
	ReceiptEmail       string         `json:"receipt_email"`
}

func (s *Stripe) Charge(ctx context.Context, req *models.ChargeRequest) (*models.ChargeResponse, error) {
	reference := req.Reference
	if reference == "" {
		reference = newReference(s.cfg.Prefix())
	}

	form := url.Values{}
	// Stripe expects the amount in the currency's smallest unit.
	form.Set("amount", strconv.FormatInt(req.Amount.Mul(decimal.NewFromInt(100)).IntPart(), 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("receipt_email", req.Email)
	form.Set("metadata[reference]", reference)
	for key, value := range req.Metadata {
		if str, ok := value.(string); ok {
			form.Set("metadata["+key+"]", str)
		}
	}
	if len(req.Channels) > 0 && s.channels.SupportsChannels(s.cfg.Name) {
		for _, ch := range s.channels.MapChannels(req.Channels, s.cfg.Name) {
			form.Add("payment_method_types[]", ch)
		}
	} else {
		form.Set("automatic_payment_methods[enabled]", "true")
	}

	var intent stripePaymentIntent
	if err := s.client.postForm(ctx, "/v1/payment_intents", form, &intent); err != nil {
		return nil, err
	}

	return &models.ChargeResponse{
		Reference:  reference,
		AccessCode: intent.ClientSecret,
		Status:     intent.Status,
		Metadata:   req.Metadata,
		Provider:   s.cfg.Name,
	}, nil
}

type stripeSearchResponse struct {
	Data []stripePaymentIntent `json:"data"`
}

func (s *Stripe) Verify(ctx context.Context, reference string) (*models.VerificationResponse, error) {
	query := url.QueryEscape(fmt.Sprintf("metadata['reference']:'%s'", reference))

	var resp stripeSearchResponse
	if err := s.client.getJSON(ctx, "/v1/payment_intents/search?query="+query, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no payment found for reference %s", reference)
	}

	intent := resp.Data[0]
	out := &models.VerificationResponse{
		Reference: reference,
		Status:    intent.Status,
		Amount:    decimal.NewFromInt(intent.Amount).Div(decimal.NewFromInt(100)),
		Currency:  strings.ToUpper(intent.Currency),
		Customer: models.CustomerDetail{
			Email: intent.ReceiptEmail,
		},
		Provider: s.cfg.Name,
	}
	if len(intent.PaymentMethodTypes) > 0 {
		if unified, ok := s.channels.MapFromProvider(intent.PaymentMethodTypes[0], s.cfg.Name); ok {
			out.Channel = unified
		}
	}
	if intent.Status == "succeeded" && intent.Created > 0 {
		ts := time.Unix(intent.Created, 0).UTC()
		out.PaidAt = &ts
	}
	return out, nil
}

// ValidateWebhook checks the Stripe-Signature header: "t=<ts>,v1=<sig>" where
// sig is an HMAC-SHA256 of "<ts>.<body>" keyed with the webhook secret.
func (s *Stripe) ValidateWebhook(headers http.Header, body []byte) bool {
	header := headers.Get("Stripe-Signature")
	if header == "" || s.cfg.WebhookSecret == "" {
		return false
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return true
		}
	}
	return false
}

func (s *Stripe) HealthCheck(ctx context.Context) bool {
	err := s.client.getJSON(ctx, "/v1/balance", nil)
	return err == nil
}

func (s *Stripe) ExtractWebhookReference(payload map[string]any) (string, bool) {
	return payloadFirstString(payload,
		[]string{"data", "object", "metadata", "reference"},
		[]string{"data", "object", "id"},
	)
}

func (s *Stripe) ExtractWebhookStatus(payload map[string]any) (string, bool) {
	return payloadString(payload, "data", "object", "status")
}

func (s *Stripe) ExtractWebhookChannel(payload map[string]any) (string, bool) {
	token, ok := payloadFirstString(payload,
		[]string{"data", "object", "payment_method_details", "type"},
		[]string{"data", "object", "payment_method_types"},
	)
	if !ok {
		// payment_method_types is a list; take its first element.
		raw, found := payloadList(payload, "data", "object", "payment_method_types")
		if !found || len(raw) == 0 {
			return "", false
		}
		str, isStr := raw[0].(string)
		if !isStr {
			return "", false
		}
		token = str
	}
	if unified, mapped := s.channels.MapFromProvider(token, s.cfg.Name); mapped {
		return unified, true
	}
	return token, true
}
