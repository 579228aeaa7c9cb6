package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chatgateway-backend/internal/domain/billing"
	"github.com/yungbote/chatgateway-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatgateway-backend/internal/platform/stripe"
	"github.com/yungbote/chatgateway-backend/internal/services/payments"
)

type fakeReconciler struct {
	verifyErr error
	lastInput payments.VerifyInput
}

func (f *fakeReconciler) CreateOrder(_ context.Context, _ uuid.UUID, planID string) (payments.CheckoutOrder, error) {
	if planID != payments.PlanSmall {
		return payments.CheckoutOrder{}, payments.ErrUnknownPlan
	}
	return payments.CheckoutOrder{OrderID: "cs_1", CheckoutURL: "https://checkout.example/cs_1", Amount: 9900, Currency: "inr"}, nil
}

func (f *fakeReconciler) VerifyAndCredit(_ context.Context, in payments.VerifyInput) (payments.Credit, error) {
	f.lastInput = in
	if f.verifyErr != nil {
		return payments.Credit{}, f.verifyErr
	}
	return payments.Credit{NewBalance: 70, Granted: 50, Plan: payments.PlanSmall}, nil
}

func (f *fakeReconciler) ListPayments(context.Context, uuid.UUID) ([]*billing.PaymentRecord, error) {
	return nil, nil
}

func (f *fakeReconciler) FetchPayment(_ context.Context, _ uuid.UUID, paymentID string) (stripe.Payment, error) {
	if paymentID != "pi_1" {
		return stripe.Payment{}, payments.ErrNotFound
	}
	return stripe.Payment{ID: "pi_1", Amount: 9900, Currency: "inr", Status: "succeeded"}, nil
}

func paymentRouter(rec payments.Reconciler, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPaymentHandler(rec)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: userID}))
	})
	r.POST("/create_order", h.CreateOrder)
	r.POST("/verify_payment", h.VerifyPayment)
	r.GET("/fetch_payments", h.ListPayments)
	r.GET("/fetch_payment/:payment_id", h.FetchPayment)
	return r
}

func serve(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrderHandler(t *testing.T) {
	r := paymentRouter(&fakeReconciler{}, uuid.New())

	rec := serve(r, http.MethodPost, "/create_order", map[string]string{"plan": "gen_small"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"order_id":"cs_1","checkout_url":"https://checkout.example/cs_1","amount":9900,"currency":"inr"}`, rec.Body.String())

	rec = serve(r, http.MethodPost, "/create_order", map[string]string{"plan": "gen_huge"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"unknown_plan"`)

	rec = serve(r, http.MethodPost, "/create_order", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"invalid_request"`)
}

func TestVerifyPaymentHandler(t *testing.T) {
	user := uuid.New()
	fake := &fakeReconciler{}
	r := paymentRouter(fake, user)
	body := map[string]string{"order_id": "cs_1", "payment_id": "pi_1", "signature": "abc"}

	rec := serve(r, http.MethodPost, "/verify_payment", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user, fake.lastInput.UserID)
	assert.Contains(t, rec.Body.String(), `"new_balance":70`)

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{payments.ErrAlreadyProcessed, http.StatusConflict, "payment_already_processed"},
		{payments.ErrPaymentInProgress, http.StatusConflict, "payment_in_progress"},
		{payments.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
		{payments.ErrPaymentNotConfirmed, http.StatusPaymentRequired, "payment_not_confirmed"},
		{payments.ErrForbidden, http.StatusForbidden, "forbidden"},
	}
	for _, tc := range cases {
		fake.verifyErr = tc.err
		rec := serve(r, http.MethodPost, "/verify_payment", body)
		assert.Equal(t, tc.status, rec.Code, tc.code)
		assert.Contains(t, rec.Body.String(), `"code":"`+tc.code+`"`)
	}

	rec = serve(r, http.MethodPost, "/verify_payment", map[string]string{"order_id": "cs_1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFetchPaymentsHandlers(t *testing.T) {
	r := paymentRouter(&fakeReconciler{}, uuid.New())

	rec := serve(r, http.MethodGet, "/fetch_payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = serve(r, http.MethodGet, "/fetch_payment/pi_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"succeeded"`)

	rec = serve(r, http.MethodGet, "/fetch_payment/pi_other", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownErrorsAreInternal(t *testing.T) {
	fake := &fakeReconciler{verifyErr: assert.AnError}
	r := paymentRouter(fake, uuid.New())
	rec := serve(r, http.MethodPost, "/verify_payment", map[string]string{"order_id": "o", "payment_id": "p", "signature": "s"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"internal"`)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}
