package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paygate/internal/database"
	"paygate/internal/models"
	"paygate/internal/payerrors"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.GET("/health", s.healthHandler)

	e.POST("/payments/charge", s.chargeHandler)
	e.GET("/payments/verify/:reference", s.verifyHandler)
	e.GET("/payments/summary", s.summaryHandler)

	e.POST("/subscriptions", s.createSubscriptionHandler)
	e.GET("/subscriptions", s.listSubscriptionsHandler)
	e.GET("/subscriptions/:code", s.getSubscriptionHandler)
	e.DELETE("/subscriptions/:code", s.cancelSubscriptionHandler)
	e.POST("/subscriptions/:code/enable", s.enableSubscriptionHandler)

	e.POST("/plans", s.createPlanHandler)
	e.GET("/plans/:code", s.getPlanHandler)

	e.POST(s.cfg.WebhookBasePath+"/:provider", s.webhookHandler)

	return e
}

type chargeBody struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Email          string          `json:"email"`
	Reference      string          `json:"reference"`
	CallbackURL    string          `json:"callback_url"`
	Metadata       map[string]any  `json:"metadata"`
	Channels       []string        `json:"channels"`
	IdempotencyKey string          `json:"idempotency_key"`
	Provider       string          `json:"provider"`
}

func (s *Server) chargeHandler(c echo.Context) error {
	var body chargeBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request format"})
	}

	req, err := models.NewChargeRequest(models.ChargeParams{
		Amount:               body.Amount,
		Currency:             body.Currency,
		Email:                body.Email,
		Reference:            body.Reference,
		CallbackURL:          body.CallbackURL,
		Metadata:             body.Metadata,
		Channels:             body.Channels,
		IdempotencyKey:       body.IdempotencyKey,
		RequireHTTPSCallback: s.cfg.IsProduction(),
	})
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	ctx := c.Request().Context()

	var providers []string
	if body.Provider != "" {
		providers = []string{body.Provider}
	}

	resp, err := s.manager.ChargeWithFallback(ctx, req, providers...)
	if err != nil {
		var pErr *payerrors.ProviderError
		if errors.As(err, &pErr) {
			return c.JSON(http.StatusBadGateway, map[string]any{
				"error":     "all providers failed",
				"providers": pErr.Providers,
				"failures":  pErr.Errors,
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	if s.cfg.TransactionLogging {
		record := &models.PaymentTransaction{
			Reference: resp.Reference,
			Provider:  resp.Provider,
			Status:    resp.CanonicalStatus(),
			Amount:    req.Amount,
			Currency:  req.Currency,
			Email:     req.Email,
			Metadata:  req.Metadata,
		}
		if err := s.db.CreatePaymentTransaction(ctx, record); err != nil {
			s.log.Error("failed to record payment transaction",
				zap.String("reference", resp.Reference),
				zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) verifyHandler(c echo.Context) error {
	reference := c.Param("reference")
	provider := c.QueryParam("provider")

	if provider == "" {
		if detected, ok := s.detector.DetectFromReference(reference); ok {
			provider = detected
		}
	}

	resp, err := s.manager.Verify(c.Request().Context(), reference, provider)
	if err != nil {
		var pErr *payerrors.ProviderError
		if errors.As(err, &pErr) {
			return c.JSON(http.StatusNotFound, map[string]any{
				"error":    "transaction not found at any provider",
				"failures": pErr.Errors,
			})
		}
		var vErr *payerrors.VerificationError
		if errors.As(err, &vErr) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": vErr.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) summaryHandler(c echo.Context) error {
	var startDate, endDate *time.Time

	if fromStr := c.QueryParam("from"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid from format, use RFC 3339"})
		}
		startDate = &parsed
	}
	if toStr := c.QueryParam("to"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid to format, use RFC 3339"})
		}
		endDate = &parsed
	}

	summary, err := s.db.ProviderSummary(c.Request().Context(), startDate, endDate)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to build summary"})
	}

	return c.JSON(http.StatusOK, summary)
}

type subscriptionBody struct {
	Provider       string         `json:"provider"`
	CustomerEmail  string         `json:"customer_email"`
	PlanCode       string         `json:"plan_code"`
	Quantity       int            `json:"quantity"`
	TrialDays      int            `json:"trial_days"`
	Metadata       map[string]any `json:"metadata"`
	IdempotencyKey string         `json:"idempotency_key"`
}

func (s *Server) createSubscriptionHandler(c echo.Context) error {
	var body subscriptionBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request format"})
	}

	req, err := models.NewSubscriptionRequest(models.SubscriptionParams{
		CustomerEmail:  body.CustomerEmail,
		PlanCode:       body.PlanCode,
		Quantity:       body.Quantity,
		TrialDays:      body.TrialDays,
		Metadata:       body.Metadata,
		IdempotencyKey: body.IdempotencyKey,
	})
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	provider := s.resolveProvider(body.Provider)
	ctx := c.Request().Context()

	resp, err := s.manager.CreateSubscription(ctx, provider, req)
	if err != nil {
		return s.subscriptionError(c, err)
	}

	if s.cfg.TransactionLogging {
		status := models.SubscriptionStatusActive
		if parsed, ok := resp.State(); ok {
			status = parsed
		}
		record := &models.SubscriptionTransaction{
			SubscriptionCode: resp.SubscriptionCode,
			Provider:         resp.Provider,
			Status:           status,
			PlanCode:         resp.PlanCode,
			CustomerEmail:    resp.CustomerEmail,
			Quantity:         resp.Quantity,
			NextPaymentDate:  resp.NextPaymentDate,
			Metadata:         req.Metadata,
		}
		if err := s.db.CreateSubscriptionTransaction(ctx, record); err != nil {
			s.log.Error("failed to record subscription transaction",
				zap.String("subscription", resp.SubscriptionCode),
				zap.Error(err))
		}
	}

	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) getSubscriptionHandler(c echo.Context) error {
	provider := s.resolveProvider(c.QueryParam("provider"))

	resp, err := s.manager.GetSubscription(c.Request().Context(), provider, c.Param("code"))
	if err != nil {
		return s.subscriptionError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

type cancelBody struct {
	EmailToken string `json:"email_token"`
}

func (s *Server) cancelSubscriptionHandler(c echo.Context) error {
	provider := s.resolveProvider(c.QueryParam("provider"))

	var body cancelBody
	// Body is optional; the token can be resolved from the provider.
	_ = c.Bind(&body)

	code := c.Param("code")
	if err := s.manager.CancelSubscription(c.Request().Context(), provider, code, body.EmailToken); err != nil {
		return s.subscriptionError(c, err)
	}

	if s.cfg.TransactionLogging {
		if _, err := s.db.UpdateSubscriptionStatus(c.Request().Context(), code, models.SubscriptionStatusCancelled, nil); err != nil && !errors.Is(err, database.ErrNotFound) {
			s.log.Error("failed to record subscription cancellation",
				zap.String("subscription", code),
				zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) enableSubscriptionHandler(c echo.Context) error {
	provider := s.resolveProvider(c.QueryParam("provider"))

	var body cancelBody
	_ = c.Bind(&body)

	code := c.Param("code")
	if err := s.manager.EnableSubscription(c.Request().Context(), provider, code, body.EmailToken); err != nil {
		return s.subscriptionError(c, err)
	}

	if s.cfg.TransactionLogging {
		if _, err := s.db.UpdateSubscriptionStatus(c.Request().Context(), code, models.SubscriptionStatusActive, nil); err != nil && !errors.Is(err, database.ErrNotFound) {
			s.log.Error("failed to record subscription reactivation",
				zap.String("subscription", code),
				zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "active"})
}

func (s *Server) listSubscriptionsHandler(c echo.Context) error {
	provider := s.resolveProvider(c.QueryParam("provider"))

	subs, err := s.manager.ListSubscriptions(c.Request().Context(), provider)
	if err != nil {
		return s.subscriptionError(c, err)
	}
	return c.JSON(http.StatusOK, subs)
}

type planBody struct {
	Provider string          `json:"provider"`
	PlanCode string          `json:"plan_code"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Interval string          `json:"interval"`
}

func (s *Server) createPlanHandler(c echo.Context) error {
	var body planBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request format"})
	}
	if body.Name == "" || !body.Amount.IsPositive() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "plan name and a positive amount are required"})
	}

	provider := s.resolveProvider(body.Provider)
	plan, err := s.manager.CreatePlan(c.Request().Context(), provider, &models.SubscriptionPlan{
		PlanCode: body.PlanCode,
		Name:     body.Name,
		Amount:   body.Amount,
		Currency: body.Currency,
		Interval: body.Interval,
	})
	if err != nil {
		return s.subscriptionError(c, err)
	}
	return c.JSON(http.StatusCreated, plan)
}

func (s *Server) getPlanHandler(c echo.Context) error {
	provider := s.resolveProvider(c.QueryParam("provider"))

	plan, err := s.manager.GetPlan(c.Request().Context(), provider, c.Param("code"))
	if err != nil {
		return s.subscriptionError(c, err)
	}
	return c.JSON(http.StatusOK, plan)
}

func (s *Server) webhookHandler(c echo.Context) error {
	provider := c.Param("provider")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	driver, err := s.manager.Driver(provider)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown provider"})
	}

	if s.cfg.VerifySignatures && !driver.ValidateWebhook(c.Request().Header, body) {
		s.log.Warn("webhook signature rejected", zap.String("provider", provider))
		return c.JSON(http.StatusForbidden, map[string]string{"error": "invalid signature"})
	}

	ctx := c.Request().Context()

	var seenID string
	if s.cfg.PreventDuplicateWebhooks {
		digest := sha256.Sum256(body)
		eventID := hex.EncodeToString(digest[:])
		first, err := s.redisService.MarkWebhookSeen(ctx, provider, eventID)
		if err != nil {
			s.log.Error("duplicate check failed", zap.String("provider", provider), zap.Error(err))
		} else if !first {
			return c.JSON(http.StatusOK, map[string]string{"status": "duplicate"})
		} else {
			seenID = eventID
		}
	}

	if err := s.redisService.EnqueueWebhook(ctx, provider, body); err != nil {
		s.log.Error("webhook enqueue failed", zap.String("provider", provider), zap.Error(err))
		// Release the marker or the vendor's retry of this body would be
		// swallowed as a duplicate of a job that was never queued.
		if seenID != "" {
			if clearErr := s.redisService.ClearWebhookSeen(ctx, provider, seenID); clearErr != nil {
				s.log.Error("failed to release duplicate marker",
					zap.String("provider", provider),
					zap.Error(clearErr))
			}
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to queue webhook"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "queued"})
}

func (s *Server) healthHandler(c echo.Context) error {
	ctx := c.Request().Context()

	redisStatus := "up"
	if err := s.redisService.Ping(ctx); err != nil {
		redisStatus = "down"
	}

	providerHealth := map[string]any{}
	for _, name := range s.cfg.ProviderNames() {
		healthy, found, err := s.redisService.IsHealthy(ctx, name)
		switch {
		case err != nil:
			providerHealth[name] = "error"
		case !found:
			providerHealth[name] = "unknown"
		case healthy:
			providerHealth[name] = "healthy"
		default:
			providerHealth[name] = "unhealthy"
		}
	}

	breakers := map[string]string{}
	for name, state := range s.factory.BreakerStates() {
		breakers[name] = state.String()
	}

	return c.JSON(http.StatusOK, map[string]any{
		"database":  s.db.Health(),
		"redis":     redisStatus,
		"providers": providerHealth,
		"breakers":  breakers,
	})
}

// resolveProvider falls back to the configured default when the caller names
// no provider.
func (s *Server) resolveProvider(provider string) string {
	if provider != "" {
		return provider
	}
	return s.cfg.DefaultProvider
}

func (s *Server) subscriptionError(c echo.Context, err error) error {
	var dErr *payerrors.DriverNotFoundError
	if errors.As(err, &dErr) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	var sErr *payerrors.SubscriptionError
	if errors.As(err, &sErr) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}
	var pErr *payerrors.PlanError
	if errors.As(err, &pErr) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
}
