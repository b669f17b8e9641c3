package gateway

import (
	"context"

	"go.uber.org/zap"

	"paygate/internal/drivers"
	"paygate/internal/models"
	"paygate/internal/payerrors"
)

// subscriptionDriver resolves the provider and asserts the subscription
// capability. A driver without the capability is a normal, non-exceptional
// condition, reported as a SubscriptionError rather than a driver failure.
func (m *Manager) subscriptionDriver(provider string) (drivers.SubscriptionDriver, error) {
	driver, err := m.Driver(provider)
	if err != nil {
		return nil, err
	}
	sub, ok := driver.(drivers.SubscriptionDriver)
	if !ok {
		return nil, &payerrors.SubscriptionError{
			SubscriptionCode: "",
			Reason:           "provider " + driver.Name() + " does not support subscriptions",
		}
	}
	return sub, nil
}

// runHook invokes an optional lifecycle hook best-effort. Hook failures are
// logged and never abort the primary operation.
func (m *Manager) runHook(name, provider string, fn func() error) {
	if err := fn(); err != nil {
		m.log.Warn("lifecycle hook failed",
			zap.String("hook", name),
			zap.String("provider", provider),
			zap.Error(err))
	}
}

// CreateSubscription creates a subscription at the provider. The plan must
// exist and be active. Lifecycle hooks run best-effort around the call.
func (m *Manager) CreateSubscription(ctx context.Context, provider string, req *models.SubscriptionRequest) (*models.SubscriptionResponse, error) {
	sub, err := m.subscriptionDriver(provider)
	if err != nil {
		return nil, err
	}

	plan, err := sub.GetPlan(ctx, req.PlanCode)
	if err != nil {
		return nil, &payerrors.PlanError{PlanCode: req.PlanCode, Reason: "plan lookup failed: " + err.Error()}
	}
	if !plan.Active {
		return nil, &payerrors.PlanError{PlanCode: req.PlanCode, Reason: "plan is not active"}
	}

	hooks, hasHooks := sub.(drivers.LifecycleHooks)
	if hasHooks {
		m.runHook("before_subscription_create", sub.Name(), func() error {
			return hooks.BeforeSubscriptionCreate(ctx, req)
		})
	}

	resp, err := sub.CreateSubscription(ctx, req)
	if err != nil {
		return nil, err
	}

	if hasHooks {
		m.runHook("after_subscription_create", sub.Name(), func() error {
			return hooks.AfterSubscriptionCreate(ctx, resp)
		})
	}
	return resp, nil
}

// GetSubscription fetches the provider's view of a subscription.
func (m *Manager) GetSubscription(ctx context.Context, provider, code string) (*models.SubscriptionResponse, error) {
	sub, err := m.subscriptionDriver(provider)
	if err != nil {
		return nil, err
	}
	return sub.GetSubscription(ctx, code)
}

// CancelSubscription cancels a subscription after checking that its current
// state allows cancellation.
func (m *Manager) CancelSubscription(ctx context.Context, provider, code, emailToken string) error {
	sub, err := m.subscriptionDriver(provider)
	if err != nil {
		return err
	}

	current, err := sub.GetSubscription(ctx, code)
	if err != nil {
		return err
	}
	if state, ok := current.State(); ok && !state.CanBeCancelled() {
		return &payerrors.SubscriptionError{
			SubscriptionCode: code,
			Reason:           "cannot cancel a subscription in state " + string(state),
		}
	}
	if emailToken == "" {
		emailToken = current.EmailToken
	}

	hooks, hasHooks := sub.(drivers.LifecycleHooks)
	if hasHooks {
		m.runHook("before_subscription_cancel", sub.Name(), func() error {
			return hooks.BeforeSubscriptionCancel(ctx, code)
		})
	}

	if err := sub.CancelSubscription(ctx, code, emailToken); err != nil {
		return err
	}

	if hasHooks {
		m.runHook("after_subscription_cancel", sub.Name(), func() error {
			return hooks.AfterSubscriptionCancel(ctx, code)
		})
	}
	return nil
}

// EnableSubscription resumes a subscription after checking that its current
// state allows it.
func (m *Manager) EnableSubscription(ctx context.Context, provider, code, emailToken string) error {
	sub, err := m.subscriptionDriver(provider)
	if err != nil {
		return err
	}

	current, err := sub.GetSubscription(ctx, code)
	if err != nil {
		return err
	}
	if state, ok := current.State(); ok && !state.CanBeResumed() {
		return &payerrors.SubscriptionError{
			SubscriptionCode: code,
			Reason:           "cannot resume a subscription in state " + string(state),
		}
	}
	if emailToken == "" {
		emailToken = current.EmailToken
	}

	return sub.EnableSubscription(ctx, code, emailToken)
}

// ListSubscriptions lists subscriptions at the provider.
func (m *Manager) ListSubscriptions(ctx context.Context, provider string) ([]models.SubscriptionResponse, error) {
	sub, err := m.subscriptionDriver(provider)
	if err != nil {
		return nil, err
	}
	return sub.ListSubscriptions(ctx)
}

// CreatePlan creates a billing plan at the provider.
func (m *Manager) CreatePlan(ctx context.Context, provider string, plan *models.SubscriptionPlan) (*models.SubscriptionPlan, error) {
	sub, err := m.subscriptionDriver(provider)
	if err != nil {
		return nil, err
	}
	return sub.CreatePlan(ctx, plan)
}

// GetPlan fetches a billing plan from the provider.
func (m *Manager) GetPlan(ctx context.Context, provider, planCode string) (*models.SubscriptionPlan, error) {
	sub, err := m.subscriptionDriver(provider)
	if err != nil {
		return nil, err
	}
	return sub.GetPlan(ctx, planCode)
}
