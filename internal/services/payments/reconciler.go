// Package payments creates checkout orders and credits verified payments to
// the quota ledger exactly once per external payment id.
package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/yungbote/chatgateway-backend/internal/data/aggregates"
	billingrepo "github.com/yungbote/chatgateway-backend/internal/data/repos/billing"
	domainagg "github.com/yungbote/chatgateway-backend/internal/domain/aggregates"
	"github.com/yungbote/chatgateway-backend/internal/domain/billing"
	"github.com/yungbote/chatgateway-backend/internal/observability"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
	"github.com/yungbote/chatgateway-backend/internal/platform/stripe"
)

var (
	ErrAlreadyProcessed    = errors.New("payment already processed")
	ErrPaymentInProgress   = errors.New("payment verification in progress")
	ErrInvalidSignature    = errors.New("payment signature mismatch")
	ErrPaymentNotConfirmed = errors.New("payment not confirmed by gateway")
	ErrUnknownPlan         = errors.New("unknown plan")
	ErrForbidden           = errors.New("order belongs to another user")
	ErrNotFound            = errors.New("payment not found")
)

// Gateway is the subset of the payment provider the reconciler calls.
type Gateway interface {
	CreateOrder(ctx context.Context, req stripe.OrderRequest) (stripe.Order, error)
	FetchOrder(ctx context.Context, orderID string) (stripe.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (stripe.Payment, error)
}

type VerifyInput struct {
	OrderID   string
	PaymentID string
	Signature string
	UserID    uuid.UUID
}

type Credit struct {
	NewBalance     int    `json:"new_balance"`
	Granted        int    `json:"granted"`
	Plan           string `json:"plan"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

type CheckoutOrder struct {
	OrderID     string `json:"order_id"`
	CheckoutURL string `json:"checkout_url"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

type Reconciler interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, planID string) (CheckoutOrder, error)
	// VerifyAndCredit runs every check before any write, then records the
	// payment and credits the ledger in one transaction.
	VerifyAndCredit(ctx context.Context, in VerifyInput) (Credit, error)
	ListPayments(ctx context.Context, userID uuid.UUID) ([]*billing.PaymentRecord, error)
	// FetchPayment returns gateway details for a payment the caller owns.
	FetchPayment(ctx context.Context, userID uuid.UUID, paymentID string) (stripe.Payment, error)
}

type Deps struct {
	Log           *logger.Logger
	Tx            aggregates.TxRunner
	Gateway       Gateway
	Payments      billingrepo.PaymentRepo
	Orders        billingrepo.OrderRepo
	Subscriptions billingrepo.SubscriptionRepo
	Ledger        billingrepo.LedgerRepo
	// Secret keys the callback signature.
	Secret    string
	Currency  string
	Allotment int
	// Locker is optional.
	Locker  Locker
	Metrics *observability.Metrics
}

type reconciler struct {
	log           *logger.Logger
	tx            aggregates.TxRunner
	gateway       Gateway
	payments      billingrepo.PaymentRepo
	orders        billingrepo.OrderRepo
	subscriptions billingrepo.SubscriptionRepo
	ledger        billingrepo.LedgerRepo
	secret        []byte
	currency      string
	allotment     int
	locker        Locker
	metrics       *observability.Metrics
	tracer        trace.Tracer
}

func NewReconciler(d Deps) Reconciler {
	currency := strings.ToLower(strings.TrimSpace(d.Currency))
	if currency == "" {
		currency = "inr"
	}
	return &reconciler{
		log:           d.Log.With("service", "PaymentReconciler"),
		tx:            d.Tx,
		gateway:       d.Gateway,
		payments:      d.Payments,
		orders:        d.Orders,
		subscriptions: d.Subscriptions,
		ledger:        d.Ledger,
		secret:        []byte(d.Secret),
		currency:      currency,
		allotment:     d.Allotment,
		locker:        d.Locker,
		metrics:       d.Metrics,
		tracer:        otel.Tracer("chatgateway/payments"),
	}
}

// Sign returns the hex HMAC-SHA256 of "order_id|payment_id".
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (r *reconciler) validSignature(orderID, paymentID, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, r.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hmac.Equal(got, mac.Sum(nil))
}

func (r *reconciler) CreateOrder(ctx context.Context, userID uuid.UUID, planID string) (CheckoutOrder, error) {
	plan, ok := LookupPlan(planID)
	if !ok {
		return CheckoutOrder{}, fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}
	order, err := r.gateway.CreateOrder(ctx, stripe.OrderRequest{
		UserID:       userID.String(),
		Plan:         plan.ID,
		PlanName:     plan.Name,
		Amount:       plan.Amount,
		Currency:     r.currency,
		Subscription: plan.Subscription,
	})
	if err != nil {
		return CheckoutOrder{}, err
	}

	raw, _ := json.Marshal(order)
	row := &billing.Order{
		OrderID:  order.ID,
		UserID:   userID,
		Plan:     plan.ID,
		Amount:   plan.Amount,
		Currency: r.currency,
		Raw:      datatypes.JSON(raw),
	}
	if err := r.orders.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		return CheckoutOrder{}, fmt.Errorf("store order: %w", err)
	}
	r.log.Info("order created", "user_id", userID, "order_id", order.ID, "plan", plan.ID)
	return CheckoutOrder{
		OrderID:     order.ID,
		CheckoutURL: order.URL,
		Amount:      plan.Amount,
		Currency:    r.currency,
	}, nil
}

func (r *reconciler) VerifyAndCredit(ctx context.Context, in VerifyInput) (Credit, error) {
	ctx, span := r.tracer.Start(ctx, "payments.verify_and_credit", trace.WithAttributes(
		attribute.String("payment.order_id", in.OrderID),
		attribute.String("payment.payment_id", in.PaymentID),
	))
	defer span.End()

	credit, err := r.verifyAndCredit(ctx, in)
	log := r.log.With("user_id", in.UserID, "order_id", in.OrderID, "payment_id", in.PaymentID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Warn("payment rejected", "error", err)
		r.metrics.IncPayment(outcome(err))
		return Credit{}, err
	}
	span.SetAttributes(attribute.String("payment.plan", credit.Plan), attribute.Int("payment.granted", credit.Granted))
	log.Info("payment credited", "plan", credit.Plan, "granted", credit.Granted, "balance", credit.NewBalance)
	r.metrics.IncPayment("credited")
	return credit, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, ErrPaymentInProgress):
		return "in_progress"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrPaymentNotConfirmed):
		return "not_confirmed"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnknownPlan):
		return "unknown_plan"
	default:
		return "error"
	}
}

func (r *reconciler) verifyAndCredit(ctx context.Context, in VerifyInput) (Credit, error) {
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	if in.OrderID == "" || in.PaymentID == "" {
		return Credit{}, ErrInvalidSignature
	}

	dbc := dbctx.Context{Ctx: ctx}
	exists, err := r.payments.Exists(dbc, in.PaymentID)
	if err != nil {
		return Credit{}, fmt.Errorf("check payment: %w", err)
	}
	if exists {
		return Credit{}, ErrAlreadyProcessed
	}

	if !r.validSignature(in.OrderID, in.PaymentID, in.Signature) {
		return Credit{}, ErrInvalidSignature
	}

	// Only signed deliveries may hold the lock. A held lock is not proof of
	// a credit: the holder can still fail, so the caller must retry.
	if r.locker != nil {
		unlock, ok, err := r.locker.TryLock(ctx, in.PaymentID)
		switch {
		case err != nil:
			r.log.Warn("payment lock unavailable", "payment_id", in.PaymentID, "error", err)
		case !ok:
			exists, err := r.payments.Exists(dbc, in.PaymentID)
			if err != nil {
				return Credit{}, fmt.Errorf("check payment: %w", err)
			}
			if exists {
				return Credit{}, ErrAlreadyProcessed
			}
			return Credit{}, ErrPaymentInProgress
		default:
			defer unlock()
		}
	}

	order, err := r.gateway.FetchOrder(ctx, in.OrderID)
	if err != nil {
		return Credit{}, fmt.Errorf("%w: %v", ErrPaymentNotConfirmed, err)
	}
	if !order.Paid || (order.PaymentID != "" && order.PaymentID != in.PaymentID) {
		return Credit{}, ErrPaymentNotConfirmed
	}

	planID := order.Plan
	local, err := r.orders.GetByID(dbc, in.OrderID)
	if err != nil {
		return Credit{}, fmt.Errorf("load order: %w", err)
	}
	switch {
	case local != nil:
		if local.UserID != in.UserID {
			return Credit{}, ErrForbidden
		}
		planID = local.Plan
	case order.UserID != "" && order.UserID != in.UserID.String():
		return Credit{}, ErrForbidden
	}

	plan, ok := LookupPlan(planID)
	if !ok {
		return Credit{}, fmt.Errorf("%w: %q", ErrUnknownPlan, planID)
	}

	credit := Credit{Granted: plan.Grants, Plan: plan.ID}
	err = aggregates.ExecuteWrite(ctx, r.tx, "payments.credit", func(dbc dbctx.Context) error {
		if err := r.payments.Create(dbc, &billing.PaymentRecord{
			OrderID:   in.OrderID,
			PaymentID: in.PaymentID,
			UserID:    in.UserID,
			Plan:      plan.ID,
			Granted:   plan.Grants,
		}); err != nil {
			return err
		}
		if plan.Subscription {
			subID := order.SubscriptionID
			if subID == "" {
				subID = in.PaymentID
			}
			if err := r.subscriptions.Upsert(dbc, &billing.SubscriptionRecord{
				UserID:                 in.UserID,
				ExternalSubscriptionID: subID,
			}); err != nil {
				return err
			}
			credit.SubscriptionID = subID
		}
		balance, err := r.ledger.Increment(dbc, in.UserID, plan.Grants, r.allotment)
		if err != nil {
			return err
		}
		credit.NewBalance = balance
		return nil
	})
	if domainagg.IsCode(err, domainagg.CodeConflict) {
		return Credit{}, ErrAlreadyProcessed
	}
	if err != nil {
		return Credit{}, fmt.Errorf("credit payment: %w", err)
	}
	return credit, nil
}

func (r *reconciler) ListPayments(ctx context.Context, userID uuid.UUID) ([]*billing.PaymentRecord, error) {
	return r.payments.ListByUser(dbctx.Context{Ctx: ctx}, userID)
}

func (r *reconciler) FetchPayment(ctx context.Context, userID uuid.UUID, paymentID string) (stripe.Payment, error) {
	rec, err := r.payments.GetForUser(dbctx.Context{Ctx: ctx}, userID, paymentID)
	if err != nil {
		return stripe.Payment{}, err
	}
	if rec == nil {
		return stripe.Payment{}, ErrNotFound
	}
	return r.gateway.FetchPayment(ctx, paymentID)
}
