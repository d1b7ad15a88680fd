package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	v1 "github.com/recruitlink/billing/internal/api/v1"
	"github.com/recruitlink/billing/internal/auth"
	"github.com/recruitlink/billing/internal/cache"
	"github.com/recruitlink/billing/internal/config"
	"github.com/recruitlink/billing/internal/domain/plan"
	"github.com/recruitlink/billing/internal/domain/subscription"
	ierr "github.com/recruitlink/billing/internal/errors"
	"github.com/recruitlink/billing/internal/integration/stripe"
	"github.com/recruitlink/billing/internal/pyroscope"
	"github.com/recruitlink/billing/internal/sentry"
	"github.com/recruitlink/billing/internal/service"
	"github.com/recruitlink/billing/internal/testutil"
	"github.com/recruitlink/billing/internal/types"
	"github.com/recruitlink/billing/internal/webhook/payload"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

const testAdminKey = "admin-test-key"

type RouterTestSuite struct {
	testutil.BaseServiceTestSuite
	router *gin.Engine
	sub    *subscription.Subscription
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	cfg := s.GetConfig()
	cfg.Auth.APIKey.Keys = map[string]config.APIKeyDetails{
		auth.HashAPIKey(testAdminKey): {Name: "tests", IsActive: true},
	}

	params := service.ServiceParams{
		Logger:                s.GetLogger(),
		Config:                cfg,
		DB:                    s.GetDB(),
		Gateway:               s.GetGateway(),
		PlanRepo:              s.GetStores().PlanRepo,
		SubRepo:               s.GetStores().SubscriptionRepo,
		LedgerRepo:            s.GetStores().LedgerRepo,
		CustomerRepo:          s.GetStores().CustomerRepo,
		ProcessedEventRepo:    s.GetStores().ProcessedEventRepo,
		NotificationPublisher: s.GetPublisher(),
	}

	p := plan.New("Athlete Monthly", "", 2999, "usd", types.BillingIntervalMonth, []string{"profile_visibility"}, 1)
	p.ExternalProductID = lo.ToPtr("prod_monthly")
	p.ExternalPriceID = lo.ToPtr("price_monthly")
	s.PlanStore().Put(p)
	s.sub = s.SubscriptionStore().Seed(&subscription.Subscription{UserID: "user_1", PlanID: p.ID})

	handlers := Handlers{
		Health:  v1.NewHealthHandler(service.NewHealthService(params, cache.NewInMemoryCache(time.Minute))),
		Webhook: v1.NewWebhookHandler(cfg, s.GetGateway(), service.NewEventDispatcher(params), sentry.NewSentryService(cfg, s.GetLogger()), s.GetLogger()),
		Admin:   v1.NewAdminHandler(service.NewBillingReadService(params), service.NewCustomerService(params), s.GetLogger()),
	}
	s.router = NewRouter(handlers, cfg, s.GetLogger(), pyroscope.NewPyroscopeService(cfg, s.GetLogger()))
}

func (s *RouterTestSuite) eventBody(id string, amount int64) []byte {
	body, err := json.Marshal(map[string]any{
		"id":       id,
		"type":     payload.EventPaymentIntentSucceeded,
		"created":  s.GetNow().Unix(),
		"livemode": false,
		"data": map[string]any{
			"object": map[string]any{
				"id":              "pi_" + id,
				"amount":          amount,
				"amount_received": amount,
				"currency":        "usd",
				"latest_charge":   "ch_" + id,
				"metadata": map[string]string{
					"subscription_id": s.sub.ID,
					"user_id":         "user_1",
				},
			},
		},
	})
	s.Require().NoError(err)
	return body
}

func (s *RouterTestSuite) postWebhook(body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/processor", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(stripe.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterTestSuite) signed(body []byte) string {
	return testutil.SignPayload(testutil.TestWebhookSecret, body, time.Now())
}

func (s *RouterTestSuite) get(path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterTestSuite) decode(w *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v))
}

func (s *RouterTestSuite) TestWebhookAppliesSignedEvent() {
	body := s.eventBody("evt_1", 2999)

	w := s.postWebhook(body, s.signed(body))

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"received":true}`, w.Body.String())
	s.Len(s.LedgerStore().All(), 1)
	s.NotEmpty(w.Header().Get(types.HeaderRequestID))
}

func (s *RouterTestSuite) TestWebhookDuplicateIsAcknowledged() {
	body := s.eventBody("evt_1", 2999)
	s.Require().Equal(http.StatusOK, s.postWebhook(body, s.signed(body)).Code)

	w := s.postWebhook(body, s.signed(body))

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"received":true,"duplicate":true}`, w.Body.String())
	s.Len(s.LedgerStore().All(), 1)
}

func (s *RouterTestSuite) TestWebhookRejectsBadSignature() {
	body := s.eventBody("evt_1", 2999)

	w := s.postWebhook(body, testutil.SignPayload("whsec_other", body, time.Now()))

	s.Equal(http.StatusUnauthorized, w.Code)
	var resp ierr.ErrorResponse
	s.decode(w, &resp)
	s.Equal("Invalid webhook signature", resp.Error.Display)
	s.Empty(s.LedgerStore().All())
}

func (s *RouterTestSuite) TestWebhookRejectsStaleSignature() {
	body := s.eventBody("evt_1", 2999)

	w := s.postWebhook(body, testutil.SignPayload(testutil.TestWebhookSecret, body, time.Now().Add(-time.Hour)))

	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterTestSuite) TestWebhookRequiresSignatureHeader() {
	w := s.postWebhook(s.eventBody("evt_1", 2999), "")

	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestWebhookRejectsOversizedBody() {
	s.GetConfig().Webhook.MaxBodyBytes = 16
	body := s.eventBody("evt_1", 2999)

	w := s.postWebhook(body, s.signed(body))

	s.Equal(http.StatusBadRequest, w.Code)
	var resp ierr.ErrorResponse
	s.decode(w, &resp)
	s.Equal("Webhook payload is too large", resp.Error.Display)
}

func (s *RouterTestSuite) TestWebhookForUnknownSubscriptionIsNotFound() {
	s.SubscriptionStore().Clear()
	body := s.eventBody("evt_1", 2999)

	w := s.postWebhook(body, s.signed(body))

	s.Equal(http.StatusNotFound, w.Code)
	exists, err := s.ProcessedEventStore().Exists(s.GetContext(), "evt_1")
	s.NoError(err)
	s.False(exists)
}

func (s *RouterTestSuite) TestWebhookRefundOfFailedPaymentIsServerError() {
	failed, err := json.Marshal(map[string]any{
		"id":      "evt_failed",
		"type":    payload.EventPaymentIntentPaymentFailed,
		"created": s.GetNow().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":       "pi_failed",
				"amount":   2999,
				"currency": "usd",
				"metadata": map[string]string{"subscription_id": s.sub.ID},
				"last_payment_error": map[string]any{
					"code":    "card_declined",
					"message": "Your card was declined.",
					"charge":  "ch_failed",
				},
			},
		},
	})
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, s.postWebhook(failed, s.signed(failed)).Code)

	refund, err := json.Marshal(map[string]any{
		"id":      "evt_refund",
		"type":    payload.EventChargeRefunded,
		"created": s.GetNow().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":              "ch_failed",
				"payment_intent":  "pi_failed",
				"amount":          2999,
				"amount_refunded": 2999,
				"currency":        "usd",
			},
		},
	})
	s.Require().NoError(err)

	w := s.postWebhook(refund, s.signed(refund))

	s.Equal(http.StatusInternalServerError, w.Code)
	var resp ierr.ErrorResponse
	s.decode(w, &resp)
	s.Equal("An unexpected error occurred", resp.Error.Display)
	exists, err := s.ProcessedEventStore().Exists(s.GetContext(), "evt_refund")
	s.NoError(err)
	s.False(exists)
}

func (s *RouterTestSuite) TestHealth() {
	w := s.get("/health", "")
	s.Equal(http.StatusOK, w.Code)

	s.GetDB().PingErr = ierr.NewError("connection refused").Mark(ierr.ErrDatabase)
	w = s.get("/health", "")
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Contains(w.Body.String(), `"database_reachable":false`)
}

func (s *RouterTestSuite) TestAdminRequiresAPIKey() {
	s.Equal(http.StatusUnauthorized, s.get("/v1/admin/users/user_1/subscription", "").Code)
	s.Equal(http.StatusUnauthorized, s.get("/v1/admin/users/user_1/subscription", "wrong").Code)
}

func (s *RouterTestSuite) TestAdminReadsSubscriptionAndLedger() {
	body := s.eventBody("evt_1", 2999)
	s.Require().Equal(http.StatusOK, s.postWebhook(body, s.signed(body)).Code)

	w := s.get("/v1/admin/users/user_1/subscription", testAdminKey)
	s.Require().Equal(http.StatusOK, w.Code)
	s.NotContains(w.Body.String(), "ch_evt_1")
	var sub map[string]any
	s.decode(w, &sub)
	s.Equal(s.sub.ID, sub["id"])
	s.Equal(string(types.SubscriptionStatusActive), sub["status"])

	w = s.get("/v1/admin/subscriptions/"+s.sub.ID+"/ledger", testAdminKey)
	s.Require().Equal(http.StatusOK, w.Code)
	s.NotContains(w.Body.String(), "ch_evt_1")
	var ledger map[string]any
	s.decode(w, &ledger)
	s.EqualValues(1, ledger["total"])
}

func (s *RouterTestSuite) TestAdminUnknownUserIsNotFound() {
	w := s.get("/v1/admin/users/nobody/subscription", testAdminKey)

	s.Equal(http.StatusNotFound, w.Code)
	var resp ierr.ErrorResponse
	s.decode(w, &resp)
	s.False(resp.Success)
	s.NotEmpty(resp.Error.Display)
}

func (s *RouterTestSuite) TestAdminServerErrorsAreGeneric() {
	s.GetGateway().FailOn(testutil.OpCreateCustomer, ierr.NewError("stripe: connection reset by peer sk_test_unit").
		WithHint("Payment processor is unavailable").
		Mark(ierr.ErrHTTPClient))

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/customers", strings.NewReader(`{"user_id":"user_2","email":"coach@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", testAdminKey)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusInternalServerError, w.Code)
	s.NotContains(w.Body.String(), "sk_test_unit")
	var resp ierr.ErrorResponse
	s.decode(w, &resp)
	s.Equal("An unexpected error occurred", resp.Error.Display)
}

func (s *RouterTestSuite) TestAdminEnsureCustomer() {
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/customers", strings.NewReader(`{"user_id":"user_2","email":"coach@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", testAdminKey)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"user_id":"user_2"`)
	s.NotContains(w.Body.String(), "cus_")
}
