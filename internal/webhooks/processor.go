package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"paygate/internal/config"
	"paygate/internal/database"
	"paygate/internal/drivers"
	"paygate/internal/events"
	"paygate/internal/gateway"
	"paygate/internal/models"
	"paygate/internal/normalize"
	"paygate/internal/payerrors"
)

// nextPaymentDateFields are the payload keys a renewal may carry its next
// billing date under.
var nextPaymentDateFields = []string{"next_payment_date", "nextPaymentDate", "current_period_end"}

// Processor turns verified webhook bodies into transaction updates and
// dispatched events. It never verifies signatures; that happens at the HTTP
// edge before a body is queued.
type Processor struct {
	cfg        *config.Config
	manager    *gateway.Manager
	db         database.Service
	dispatcher *events.Dispatcher
	channels   *normalize.ChannelMapper
	log        *zap.Logger
}

func NewProcessor(cfg *config.Config, manager *gateway.Manager, db database.Service, dispatcher *events.Dispatcher, log *zap.Logger) *Processor {
	return &Processor{
		cfg:        cfg,
		manager:    manager,
		db:         db,
		dispatcher: dispatcher,
		channels:   normalize.NewChannelMapper(),
		log:        log,
	}
}

// Process classifies and applies a single webhook delivery. A returned error
// means the delivery should be retried; classification dead ends (missing
// reference, unknown transaction, absent subscription code) are logged and
// swallowed because redelivery cannot fix them.
func (p *Processor) Process(ctx context.Context, provider string, body []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return &payerrors.WebhookError{Provider: provider, Reason: "malformed JSON body"}
	}

	driver, err := p.manager.Driver(provider)
	if err != nil {
		return err
	}

	eventType := extractEventType(payload)

	var reference string
	if isSubscriptionEvent(eventType) {
		err = p.processSubscription(ctx, driver, provider, eventType, payload)
	} else {
		reference, err = p.processPayment(ctx, driver, provider, payload)
	}

	// Observers hear about every delivery, including ones whose update
	// failed, so auditing sees the raw traffic.
	p.dispatcher.Dispatch(ctx, events.WebhookReceived{
		Provider:  provider,
		Payload:   payload,
		Reference: reference,
	})

	return err
}

// processPayment resolves the transaction reference and applies the status
// update under the store's row lock. The reference is returned for the
// trailing WebhookReceived dispatch.
func (p *Processor) processPayment(ctx context.Context, driver drivers.Driver, provider string, payload map[string]any) (string, error) {
	reference, ok := driver.ExtractWebhookReference(payload)
	if !ok || reference == "" {
		p.log.Warn("webhook carries no transaction reference", zap.String("provider", provider))
		return "", nil
	}

	if !p.cfg.TransactionLogging {
		return reference, nil
	}

	status := models.PaymentStatusPending
	if raw, ok := driver.ExtractWebhookStatus(payload); ok {
		switch normalize.Status(raw, provider) {
		case normalize.StatusSuccess:
			status = models.PaymentStatusSuccess
		case normalize.StatusFailed:
			status = models.PaymentStatusFailed
		}
	}

	channel := ""
	if token, ok := driver.ExtractWebhookChannel(payload); ok {
		if unified, ok := p.channels.MapFromProvider(token, provider); ok {
			channel = unified
		} else {
			channel = token
		}
	}

	updated, err := p.db.ApplyWebhookUpdate(ctx, reference, status, channel)
	if errors.Is(err, database.ErrNotFound) {
		p.log.Warn("webhook references unknown transaction",
			zap.String("provider", provider),
			zap.String("reference", reference))
		return reference, nil
	}
	if err != nil {
		return reference, err
	}
	if !updated {
		p.log.Debug("webhook ignored, transaction already settled",
			zap.String("provider", provider),
			zap.String("reference", reference))
	}
	return reference, nil
}

func (p *Processor) processSubscription(ctx context.Context, driver drivers.Driver, provider, eventType string, payload map[string]any) error {
	code, ok := extractSubscriptionCode(payload)
	if !ok {
		p.log.Warn("subscription webhook carries no subscription code",
			zap.String("provider", provider),
			zap.String("event", eventType))
		return nil
	}

	kind := classifySubscriptionEvent(eventType)
	p.log.Info("subscription webhook classified",
		zap.String("provider", provider),
		zap.String("event", eventType),
		zap.String("kind", kind.String()),
		zap.String("subscription", code))

	data, _ := payload["data"].(map[string]any)

	switch kind {
	case SubscriptionEventCreated:
		p.dispatcher.Dispatch(ctx, events.SubscriptionCreated{
			SubscriptionCode: code, Provider: provider, Data: data,
		})
		p.recordSubscriptionStatus(ctx, code, models.SubscriptionStatusActive, nil)

	case SubscriptionEventRenewed:
		p.dispatcher.Dispatch(ctx, events.SubscriptionRenewed{
			SubscriptionCode: code, Provider: provider, Data: data,
		})
		p.recordSubscriptionStatus(ctx, code, models.SubscriptionStatusActive, extractNextPaymentDate(data))
		p.runRenewalHook(ctx, driver, provider, code)

	case SubscriptionEventCancelled:
		p.dispatcher.Dispatch(ctx, events.SubscriptionCancelled{
			SubscriptionCode: code, Provider: provider, Data: data,
		})
		p.recordSubscriptionStatus(ctx, code, models.SubscriptionStatusCancelled, nil)

	case SubscriptionEventPaymentFailed:
		p.dispatcher.Dispatch(ctx, events.SubscriptionPaymentFailed{
			SubscriptionCode: code, Provider: provider, Data: data,
		})
		p.recordSubscriptionStatus(ctx, code, models.SubscriptionStatusAttention, nil)
		p.runPaymentFailedHook(ctx, driver, provider, code)

	default:
		p.log.Debug("unclassified subscription webhook",
			zap.String("provider", provider),
			zap.String("event", eventType))
	}
	return nil
}

// recordSubscriptionStatus is best effort. Webhooks can arrive for
// subscriptions created outside this system, so a missing row is not a
// failure.
func (p *Processor) recordSubscriptionStatus(ctx context.Context, code string, status models.SubscriptionStatus, nextPaymentDate *time.Time) {
	if !p.cfg.TransactionLogging {
		return
	}
	if _, err := p.db.UpdateSubscriptionStatus(ctx, code, status, nextPaymentDate); err != nil && !errors.Is(err, database.ErrNotFound) {
		p.log.Error("subscription status update failed",
			zap.String("subscription", code),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

func (p *Processor) runRenewalHook(ctx context.Context, driver drivers.Driver, provider, code string) {
	hooks, ok := driver.(drivers.LifecycleHooks)
	if !ok {
		return
	}
	if err := hooks.OnSubscriptionRenewed(ctx, code); err != nil {
		p.log.Warn("renewal hook failed",
			zap.String("provider", provider),
			zap.String("subscription", code),
			zap.Error(err))
	}
}

func (p *Processor) runPaymentFailedHook(ctx context.Context, driver drivers.Driver, provider, code string) {
	hooks, ok := driver.(drivers.LifecycleHooks)
	if !ok {
		return
	}
	if err := hooks.OnSubscriptionPaymentFailed(ctx, code); err != nil {
		p.log.Warn("payment failure hook failed",
			zap.String("provider", provider),
			zap.String("subscription", code),
			zap.Error(err))
	}
}

// extractSubscriptionCode digs the subscription identifier out of the data
// section, falling back to nested object ids for providers that wrap the
// subscription in an envelope.
func extractSubscriptionCode(payload map[string]any) (string, bool) {
	data, ok := payload["data"].(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range []string{"subscription_code", "subscriptionCode", "code"} {
		if v, ok := data[key].(string); ok && v != "" {
			return v, true
		}
	}
	if sub, ok := data["subscription"].(map[string]any); ok {
		for _, key := range []string{"subscription_code", "code", "id"} {
			if v, ok := sub[key].(string); ok && v != "" {
				return v, true
			}
		}
	}
	if obj, ok := data["object"].(map[string]any); ok {
		if v, ok := obj["subscription"].(string); ok && v != "" {
			return v, true
		}
		if v, ok := obj["id"].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func extractNextPaymentDate(data map[string]any) *time.Time {
	if data == nil {
		return nil
	}
	for _, key := range nextPaymentDateFields {
		switch v := data[key].(type) {
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return &t
			}
		case float64:
			t := time.Unix(int64(v), 0).UTC()
			return &t
		}
	}
	return nil
}
