package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paygate/internal/drivers"
	"paygate/internal/models"
	"paygate/internal/payerrors"
)

// fakeSubscriptionDriver layers the subscription capability over fakeDriver.
type fakeSubscriptionDriver struct {
	fakeDriver
	plan       *models.SubscriptionPlan
	planErr    error
	sub        *models.SubscriptionResponse
	subErr     error
	current    *models.SubscriptionResponse
	cancelled  []string
	enabled    []string
	lastCancel string
	lastToken  string
}

func (f *fakeSubscriptionDriver) CreateSubscription(ctx context.Context, req *models.SubscriptionRequest) (*models.SubscriptionResponse, error) {
	return f.sub, f.subErr
}

func (f *fakeSubscriptionDriver) GetSubscription(ctx context.Context, code string) (*models.SubscriptionResponse, error) {
	if f.current == nil {
		return nil, errors.New("subscription not found")
	}
	return f.current, nil
}

func (f *fakeSubscriptionDriver) CancelSubscription(ctx context.Context, code, emailToken string) error {
	f.cancelled = append(f.cancelled, code)
	f.lastCancel = code
	f.lastToken = emailToken
	return nil
}

func (f *fakeSubscriptionDriver) EnableSubscription(ctx context.Context, code, emailToken string) error {
	f.enabled = append(f.enabled, code)
	f.lastToken = emailToken
	return nil
}

func (f *fakeSubscriptionDriver) ListSubscriptions(ctx context.Context) ([]models.SubscriptionResponse, error) {
	if f.current == nil {
		return nil, nil
	}
	return []models.SubscriptionResponse{*f.current}, nil
}

func (f *fakeSubscriptionDriver) CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) (*models.SubscriptionPlan, error) {
	return plan, nil
}

func (f *fakeSubscriptionDriver) GetPlan(ctx context.Context, planCode string) (*models.SubscriptionPlan, error) {
	return f.plan, f.planErr
}

func (f *fakeSubscriptionDriver) UpdatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	return nil
}

func (f *fakeSubscriptionDriver) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	return nil, nil
}

func subscriptionRequest(t *testing.T) *models.SubscriptionRequest {
	t.Helper()
	req, err := models.NewSubscriptionRequest(models.SubscriptionParams{
		CustomerEmail: "sub@example.com",
		PlanCode:      "PLN_basic",
	})
	require.NoError(t, err)
	return req
}

func TestCreateSubscriptionProviderWithoutCapability(t *testing.T) {
	// Plain Driver, no subscription methods.
	m := NewManager(routingConfig(), &fakeFactory{drivers: map[string]drivers.Driver{
		"stripe": &fakeDriver{name: "stripe"},
	}}, nil, zap.NewNop())

	_, err := m.CreateSubscription(context.Background(), "stripe", subscriptionRequest(t))

	var sErr *payerrors.SubscriptionError
	require.ErrorAs(t, err, &sErr)
	assert.Contains(t, sErr.Reason, "does not support subscriptions")
}

func TestCreateSubscription(t *testing.T) {
	d := &fakeSubscriptionDriver{
		fakeDriver: fakeDriver{name: "paystack"},
		plan:       &models.SubscriptionPlan{PlanCode: "PLN_basic", Active: true},
		sub: &models.SubscriptionResponse{
			SubscriptionCode: "SUB_1",
			Status:           "active",
			Provider:         "paystack",
		},
	}
	m := NewManager(routingConfig(), &fakeFactory{drivers: map[string]drivers.Driver{
		"paystack": d,
	}}, nil, zap.NewNop())

	resp, err := m.CreateSubscription(context.Background(), "paystack", subscriptionRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "SUB_1", resp.SubscriptionCode)
}

func TestCreateSubscriptionInactivePlan(t *testing.T) {
	d := &fakeSubscriptionDriver{
		fakeDriver: fakeDriver{name: "paystack"},
		plan:       &models.SubscriptionPlan{PlanCode: "PLN_basic", Active: false},
	}
	m := NewManager(routingConfig(), &fakeFactory{drivers: map[string]drivers.Driver{
		"paystack": d,
	}}, nil, zap.NewNop())

	_, err := m.CreateSubscription(context.Background(), "paystack", subscriptionRequest(t))

	var pErr *payerrors.PlanError
	require.ErrorAs(t, err, &pErr)
	assert.Contains(t, pErr.Reason, "not active")
}

func TestCreateSubscriptionPlanLookupFails(t *testing.T) {
	d := &fakeSubscriptionDriver{
		fakeDriver: fakeDriver{name: "paystack"},
		planErr:    errors.New("404"),
	}
	m := NewManager(routingConfig(), &fakeFactory{drivers: map[string]drivers.Driver{
		"paystack": d,
	}}, nil, zap.NewNop())

	_, err := m.CreateSubscription(context.Background(), "paystack", subscriptionRequest(t))

	var pErr *payerrors.PlanError
	require.ErrorAs(t, err, &pErr)
	assert.Contains(t, pErr.Reason, "lookup failed")
}

func TestCancelSubscription(t *testing.T) {
	d := &fakeSubscriptionDriver{
		fakeDriver: fakeDriver{name: "paystack"},
		current: &models.SubscriptionResponse{
			SubscriptionCode: "SUB_2",
			Status:           "active",
			EmailToken:       "tok_abc",
		},
	}
	m := NewManager(routingConfig(), &fakeFactory{drivers: map[string]drivers.Driver{
		"paystack": d,
	}}, nil, zap.NewNop())

	err := m.CancelSubscription(context.Background(), "paystack", "SUB_2", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"SUB_2"}, d.cancelled)
	// The token missing from the request is filled from the current state.
	assert.Equal(t, "tok_abc", d.lastToken)
}

func TestCancelSubscriptionIllegalState(t *testing.T) {
	d := &fakeSubscriptionDriver{
		fakeDriver: fakeDriver{name: "paystack"},
		current: &models.SubscriptionResponse{
			SubscriptionCode: "SUB_3",
			Status:           "completed",
		},
	}
	m := NewManager(routingConfig(), &fakeFactory{drivers: map[string]drivers.Driver{
		"paystack": d,
	}}, nil, zap.NewNop())

	err := m.CancelSubscription(context.Background(), "paystack", "SUB_3", "")

	var sErr *payerrors.SubscriptionError
	require.ErrorAs(t, err, &sErr)
	assert.Empty(t, d.cancelled)
}

func TestEnableSubscription(t *testing.T) {
	d := &fakeSubscriptionDriver{
		fakeDriver: fakeDriver{name: "paystack"},
		current: &models.SubscriptionResponse{
			SubscriptionCode: "SUB_4",
			Status:           "cancelled",
			EmailToken:       "tok_xyz",
		},
	}
	m := NewManager(routingConfig(), &fakeFactory{drivers: map[string]drivers.Driver{
		"paystack": d,
	}}, nil, zap.NewNop())

	err := m.EnableSubscription(context.Background(), "paystack", "SUB_4", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"SUB_4"}, d.enabled)
}

func TestEnableSubscriptionIllegalState(t *testing.T) {
	d := &fakeSubscriptionDriver{
		fakeDriver: fakeDriver{name: "paystack"},
		current: &models.SubscriptionResponse{
			SubscriptionCode: "SUB_5",
			Status:           "active",
		},
	}
	m := NewManager(routingConfig(), &fakeFactory{drivers: map[string]drivers.Driver{
		"paystack": d,
	}}, nil, zap.NewNop())

	err := m.EnableSubscription(context.Background(), "paystack", "SUB_5", "")

	var sErr *payerrors.SubscriptionError
	require.ErrorAs(t, err, &sErr)
	assert.Empty(t, d.enabled)
}
