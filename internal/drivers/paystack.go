package drivers

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paygate/internal/circuitbreaker"
	"paygate/internal/config"
	"paygate/internal/models"
	"paygate/internal/normalize"
)

// Paystack implements the full driver contract including subscriptions and
// lifecycle hooks.
type Paystack struct {
	cfg      config.ProviderConfig
	client   *apiClient
	channels *normalize.ChannelMapper
	log      *zap.Logger
}

var _ SubscriptionDriver = (*Paystack)(nil)
var _ LifecycleHooks = (*Paystack)(nil)

func NewPaystack(cfg config.ProviderConfig, breaker *circuitbreaker.Breaker, log *zap.Logger) *Paystack {
	return &Paystack{
		cfg:      cfg,
		client:   newAPIClient(cfg.BaseURL, cfg.SecretKey, breaker),
		channels: normalize.NewChannelMapper(),
		log:      log,
	}
}

func (p *Paystack) Name() string { return p.cfg.Name }

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackInitResponse struct {
	Status  bool             `json:"status"`
	Message string           `json:"message"`
	Data    paystackInitData `json:"data"`
}

func (p *Paystack) Charge(ctx context.Context, req *models.ChargeRequest) (*models.ChargeResponse, error) {
	reference := req.Reference
	if reference == "" {
		reference = newReference(p.cfg.Prefix())
	}

	body := map[string]any{
		"email": req.Email,
		// Paystack expects the amount in subunits.
		"amount":    req.Amount.Mul(decimal.NewFromInt(100)).IntPart(),
		"currency":  req.Currency,
		"reference": reference,
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	if len(req.Channels) > 0 && p.channels.SupportsChannels(p.cfg.Name) {
		if mapped := p.channels.MapChannels(req.Channels, p.cfg.Name); len(mapped) > 0 {
			body["channels"] = mapped
		}
	}

	var resp paystackInitResponse
	if err := p.client.postJSON(ctx, "/transaction/initialize", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack rejected charge: %s", resp.Message)
	}

	return &models.ChargeResponse{
		Reference:        resp.Data.Reference,
		AuthorizationURL: resp.Data.AuthorizationURL,
		AccessCode:       resp.Data.AccessCode,
		Status:           "pending",
		Metadata:         req.Metadata,
		Provider:         p.cfg.Name,
	}, nil
}

type paystackVerifyData struct {
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaidAt        string `json:"paid_at"`
	Channel       string `json:"channel"`
	Authorization struct {
		Channel  string `json:"channel"`
		CardType string `json:"card_type"`
		Last4    string `json:"last4"`
		Bank     string `json:"bank"`
	} `json:"authorization"`
	Customer struct {
		Email        string `json:"email"`
		CustomerCode string `json:"customer_code"`
	} `json:"customer"`
}

type paystackVerifyResponse struct {
	Status  bool               `json:"status"`
	Message string             `json:"message"`
	Data    paystackVerifyData `json:"data"`
}

func (p *Paystack) Verify(ctx context.Context, reference string) (*models.VerificationResponse, error) {
	var resp paystackVerifyResponse
	if err := p.client.getJSON(ctx, "/transaction/verify/"+reference, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack could not verify %s: %s", reference, resp.Message)
	}

	out := &models.VerificationResponse{
		Reference: resp.Data.Reference,
		Status:    resp.Data.Status,
		Amount:    decimal.NewFromInt(resp.Data.Amount).Div(decimal.NewFromInt(100)),
		Currency:  resp.Data.Currency,
		Channel:   resp.Data.Channel,
		Authorization: models.AuthorizationDetail{
			Channel:  resp.Data.Authorization.Channel,
			CardType: resp.Data.Authorization.CardType,
			Last4:    resp.Data.Authorization.Last4,
			Bank:     resp.Data.Authorization.Bank,
		},
		Customer: models.CustomerDetail{
			Email: resp.Data.Customer.Email,
			Code:  resp.Data.Customer.CustomerCode,
		},
		Provider: p.cfg.Name,
	}
	if ts, err := time.Parse(time.RFC3339, resp.Data.PaidAt); err == nil {
		out.PaidAt = &ts
	}
	return out, nil
}

// ValidateWebhook checks the x-paystack-signature header: an HMAC-SHA512 of
// the raw body keyed with the webhook secret.
func (p *Paystack) ValidateWebhook(headers http.Header, body []byte) bool {
	signature := headers.Get("x-paystack-signature")
	if signature == "" || p.cfg.WebhookSecret == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(p.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}

func (p *Paystack) HealthCheck(ctx context.Context) bool {
	err := p.client.getJSON(ctx, "/bank?perPage=1", nil)
	return err == nil
}

func (p *Paystack) ExtractWebhookReference(payload map[string]any) (string, bool) {
	return payloadFirstString(payload,
		[]string{"data", "reference"},
		[]string{"data", "offline_reference"},
	)
}

func (p *Paystack) ExtractWebhookStatus(payload map[string]any) (string, bool) {
	return payloadString(payload, "data", "status")
}

func (p *Paystack) ExtractWebhookChannel(payload map[string]any) (string, bool) {
	return payloadString(payload, "data", "channel")
}

type paystackSubscriptionData struct {
	SubscriptionCode string `json:"subscription_code"`
	EmailToken       string `json:"email_token"`
	Status           string `json:"status"`
	Quantity         int    `json:"quantity"`
	NextPaymentDate  string `json:"next_payment_date"`
	Plan             struct {
		PlanCode string `json:"plan_code"`
	} `json:"plan"`
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
}

type paystackSubscriptionResponse struct {
	Status  bool                     `json:"status"`
	Message string                   `json:"message"`
	Data    paystackSubscriptionData `json:"data"`
}

func (p *Paystack) CreateSubscription(ctx context.Context, req *models.SubscriptionRequest) (*models.SubscriptionResponse, error) {
	body := map[string]any{
		"customer": req.CustomerEmail,
		"plan":     req.PlanCode,
		"quantity": req.Quantity,
	}
	if req.TrialDays > 0 {
		body["start_date"] = time.Now().UTC().AddDate(0, 0, req.TrialDays).Format(time.RFC3339)
	}

	var resp paystackSubscriptionResponse
	if err := p.client.postJSON(ctx, "/subscription", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack rejected subscription: %s", resp.Message)
	}
	return p.subscriptionFromData(resp.Data), nil
}

func (p *Paystack) GetSubscription(ctx context.Context, code string) (*models.SubscriptionResponse, error) {
	var resp paystackSubscriptionResponse
	if err := p.client.getJSON(ctx, "/subscription/"+code, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack could not fetch subscription %s: %s", code, resp.Message)
	}
	return p.subscriptionFromData(resp.Data), nil
}

func (p *Paystack) CancelSubscription(ctx context.Context, code, emailToken string) error {
	body := map[string]string{"code": code, "token": emailToken}
	var resp paystackSubscriptionResponse
	if err := p.client.postJSON(ctx, "/subscription/disable", body, &resp); err != nil {
		return err
	}
	if !resp.Status {
		return fmt.Errorf("paystack could not disable subscription %s: %s", code, resp.Message)
	}
	return nil
}

func (p *Paystack) EnableSubscription(ctx context.Context, code, emailToken string) error {
	body := map[string]string{"code": code, "token": emailToken}
	var resp paystackSubscriptionResponse
	if err := p.client.postJSON(ctx, "/subscription/enable", body, &resp); err != nil {
		return err
	}
	if !resp.Status {
		return fmt.Errorf("paystack could not enable subscription %s: %s", code, resp.Message)
	}
	return nil
}

type paystackSubscriptionListResponse struct {
	Status  bool                       `json:"status"`
	Message string                     `json:"message"`
	Data    []paystackSubscriptionData `json:"data"`
}

func (p *Paystack) ListSubscriptions(ctx context.Context) ([]models.SubscriptionResponse, error) {
	var resp paystackSubscriptionListResponse
	if err := p.client.getJSON(ctx, "/subscription", &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack could not list subscriptions: %s", resp.Message)
	}

	out := make([]models.SubscriptionResponse, 0, len(resp.Data))
	for _, data := range resp.Data {
		out = append(out, *p.subscriptionFromData(data))
	}
	return out, nil
}

func (p *Paystack) subscriptionFromData(data paystackSubscriptionData) *models.SubscriptionResponse {
	out := &models.SubscriptionResponse{
		SubscriptionCode: data.SubscriptionCode,
		EmailToken:       data.EmailToken,
		Status:           data.Status,
		PlanCode:         data.Plan.PlanCode,
		CustomerEmail:    data.Customer.Email,
		Quantity:         data.Quantity,
		Provider:         p.cfg.Name,
	}
	if ts, err := time.Parse(time.RFC3339, data.NextPaymentDate); err == nil {
		out.NextPaymentDate = &ts
	}
	return out
}

type paystackPlanData struct {
	PlanCode string `json:"plan_code"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Interval string `json:"interval"`
	IsActive bool   `json:"is_active"`
}

type paystackPlanResponse struct {
	Status  bool             `json:"status"`
	Message string           `json:"message"`
	Data    paystackPlanData `json:"data"`
}

func (p *Paystack) CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) (*models.SubscriptionPlan, error) {
	body := map[string]any{
		"name":     plan.Name,
		"amount":   plan.Amount.Mul(decimal.NewFromInt(100)).IntPart(),
		"interval": plan.Interval,
		"currency": plan.Currency,
	}

	var resp paystackPlanResponse
	if err := p.client.postJSON(ctx, "/plan", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack rejected plan: %s", resp.Message)
	}
	return p.planFromData(resp.Data), nil
}

func (p *Paystack) GetPlan(ctx context.Context, planCode string) (*models.SubscriptionPlan, error) {
	var resp paystackPlanResponse
	if err := p.client.getJSON(ctx, "/plan/"+planCode, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack could not fetch plan %s: %s", planCode, resp.Message)
	}
	return p.planFromData(resp.Data), nil
}

func (p *Paystack) UpdatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	body := map[string]any{
		"name":     plan.Name,
		"amount":   plan.Amount.Mul(decimal.NewFromInt(100)).IntPart(),
		"interval": plan.Interval,
	}

	var resp paystackPlanResponse
	if err := p.client.putJSON(ctx, "/plan/"+plan.PlanCode, body, &resp); err != nil {
		return err
	}
	if !resp.Status {
		return fmt.Errorf("paystack could not update plan %s: %s", plan.PlanCode, resp.Message)
	}
	return nil
}

type paystackPlanListResponse struct {
	Status  bool               `json:"status"`
	Message string             `json:"message"`
	Data    []paystackPlanData `json:"data"`
}

func (p *Paystack) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	var resp paystackPlanListResponse
	if err := p.client.getJSON(ctx, "/plan", &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack could not list plans: %s", resp.Message)
	}

	out := make([]models.SubscriptionPlan, 0, len(resp.Data))
	for _, data := range resp.Data {
		out = append(out, *p.planFromData(data))
	}
	return out, nil
}

func (p *Paystack) planFromData(data paystackPlanData) *models.SubscriptionPlan {
	return &models.SubscriptionPlan{
		PlanCode: data.PlanCode,
		Name:     data.Name,
		Amount:   decimal.NewFromInt(data.Amount).Div(decimal.NewFromInt(100)),
		Currency: data.Currency,
		Interval: data.Interval,
		Active:   data.IsActive,
	}
}

// Lifecycle hooks. These are observational: they record the transition so
// operators can trace subscription churn per provider.

func (p *Paystack) BeforeSubscriptionCreate(ctx context.Context, req *models.SubscriptionRequest) error {
	p.log.Info("subscription create starting",
		zap.String("provider", p.cfg.Name),
		zap.String("plan", req.PlanCode))
	return nil
}

func (p *Paystack) AfterSubscriptionCreate(ctx context.Context, resp *models.SubscriptionResponse) error {
	p.log.Info("subscription created",
		zap.String("provider", p.cfg.Name),
		zap.String("subscription_code", resp.SubscriptionCode))
	return nil
}

func (p *Paystack) BeforeSubscriptionCancel(ctx context.Context, code string) error {
	p.log.Info("subscription cancel starting",
		zap.String("provider", p.cfg.Name),
		zap.String("subscription_code", code))
	return nil
}

func (p *Paystack) AfterSubscriptionCancel(ctx context.Context, code string) error {
	p.log.Info("subscription cancelled",
		zap.String("provider", p.cfg.Name),
		zap.String("subscription_code", code))
	return nil
}

func (p *Paystack) OnSubscriptionRenewed(ctx context.Context, code string) error {
	p.log.Info("subscription renewed",
		zap.String("provider", p.cfg.Name),
		zap.String("subscription_code", code))
	return nil
}

func (p *Paystack) OnSubscriptionPaymentFailed(ctx context.Context, code string) error {
	p.log.Warn("subscription payment failed",
		zap.String("provider", p.cfg.Name),
		zap.String("subscription_code", code))
	return nil
}

// newReference builds a provider-prefixed transaction reference so the
// issuing provider can later be detected from the reference alone.
func newReference(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", ""))
}
