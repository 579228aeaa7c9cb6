// Package stripe adapts the Stripe API to the gateway operations the payment
// reconciler and quota gate need.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	stripego "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"

	"github.com/yungbote/chatgateway-backend/internal/config"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

var ErrNotConfigured = errors.New("stripe secret key is not configured")

// OrderRequest describes a checkout for one plan. Amount is in the smallest
// currency unit.
type OrderRequest struct {
	UserID       string
	Plan         string
	PlanName     string
	Amount       int64
	Currency     string
	Subscription bool
}

// Order is the gateway view of a checkout session. PaymentID is the payment
// intent for one-off plans and the subscription id for recurring plans.
type Order struct {
	ID             string
	URL            string
	Plan           string
	UserID         string
	Amount         int64
	Currency       string
	Paid           bool
	PaymentID      string
	SubscriptionID string
}

type Payment struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	Method      string    `json:"method"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Gateway struct {
	log        *logger.Logger
	api        *client.API
	successURL string
	cancelURL  string
}

func New(cfg config.PaymentsConfig, baseLog *logger.Logger) (*Gateway, error) {
	key := strings.TrimSpace(cfg.StripeSecretKey)
	if key == "" {
		return nil, ErrNotConfigured
	}
	api := &client.API{}
	api.Init(key, nil)
	return &Gateway{
		log:        baseLog.With("client", "StripeGateway"),
		api:        api,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}, nil
}

func (g *Gateway) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	mode := stripego.CheckoutSessionModePayment
	price := &stripego.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripego.String(req.Currency),
		UnitAmount: stripego.Int64(req.Amount),
		ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripego.String(req.PlanName),
		},
	}
	if req.Subscription {
		mode = stripego.CheckoutSessionModeSubscription
		price.Recurring = &stripego.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripego.String("month"),
		}
	}

	params := &stripego.CheckoutSessionParams{
		Mode:              stripego.String(string(mode)),
		SuccessURL:        stripego.String(g.successURL),
		CancelURL:         stripego.String(g.cancelURL),
		ClientReferenceID: stripego.String(req.UserID),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{PriceData: price, Quantity: stripego.Int64(1)},
		},
	}
	params.Context = ctx
	params.AddMetadata("plan", req.Plan)
	params.AddMetadata("user_id", req.UserID)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return Order{}, fmt.Errorf("stripe create checkout session: %w", err)
	}
	g.log.Debug("checkout session created", "order_id", s.ID, "plan", req.Plan)
	return toOrder(s), nil
}

func (g *Gateway) FetchOrder(ctx context.Context, orderID string) (Order, error) {
	params := &stripego.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	params.AddExpand("subscription")
	s, err := g.api.CheckoutSessions.Get(orderID, params)
	if err != nil {
		return Order{}, fmt.Errorf("stripe fetch checkout session %s: %w", orderID, err)
	}
	return toOrder(s), nil
}

func (g *Gateway) FetchPayment(ctx context.Context, paymentID string) (Payment, error) {
	params := &stripego.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return Payment{}, fmt.Errorf("stripe fetch payment intent %s: %w", paymentID, err)
	}
	out := Payment{
		ID:          pi.ID,
		Amount:      pi.Amount,
		Currency:    string(pi.Currency),
		Status:      string(pi.Status),
		Description: pi.Description,
		CreatedAt:   time.Unix(pi.Created, 0).UTC(),
	}
	if len(pi.PaymentMethodTypes) > 0 {
		out.Method = pi.PaymentMethodTypes[0]
	}
	return out, nil
}

// SubscriptionActive treats trialing subscriptions as active.
func (g *Gateway) SubscriptionActive(ctx context.Context, subscriptionID string) (bool, error) {
	params := &stripego.SubscriptionParams{}
	params.Context = ctx
	sub, err := g.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return false, fmt.Errorf("stripe fetch subscription %s: %w", subscriptionID, err)
	}
	switch sub.Status {
	case stripego.SubscriptionStatusActive, stripego.SubscriptionStatusTrialing:
		return true, nil
	default:
		return false, nil
	}
}

func toOrder(s *stripego.CheckoutSession) Order {
	o := Order{
		ID:       s.ID,
		URL:      s.URL,
		UserID:   s.ClientReferenceID,
		Amount:   s.AmountTotal,
		Currency: string(s.Currency),
		Paid:     s.PaymentStatus == stripego.CheckoutSessionPaymentStatusPaid,
	}
	if s.Metadata != nil {
		o.Plan = s.Metadata["plan"]
		if o.UserID == "" {
			o.UserID = s.Metadata["user_id"]
		}
	}
	if s.PaymentIntent != nil {
		o.PaymentID = s.PaymentIntent.ID
	}
	if s.Subscription != nil {
		o.SubscriptionID = s.Subscription.ID
		if o.PaymentID == "" {
			o.PaymentID = s.Subscription.ID
		}
	}
	return o
}
