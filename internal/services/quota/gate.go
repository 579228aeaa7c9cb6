// Package quota decides whether a user may generate with a model and
// consumes free generations once a stream has produced output.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	billingrepo "github.com/yungbote/chatgateway-backend/internal/data/repos/billing"
	"github.com/yungbote/chatgateway-backend/internal/inference/registry"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

var (
	ErrQuotaExhausted       = errors.New("free generation quota exhausted")
	ErrSubscriptionRequired = errors.New("an active subscription is required for this model")
	ErrGatewayUnavailable   = errors.New("subscription status unavailable")
)

// SubscriptionChecker asks the payment gateway for live subscription status.
type SubscriptionChecker interface {
	SubscriptionActive(ctx context.Context, externalSubscriptionID string) (bool, error)
}

type ModelResolver interface {
	Resolve(modelID string) (registry.ModelDescriptor, error)
}

// Admission is the outcome of a successful entitlement check. Remaining is
// the free balance at check time and is -1 for subscription admissions.
type Admission struct {
	Model           registry.ModelDescriptor
	Remaining       int
	ViaSubscription bool
}

// ConsumesQuota reports whether Commit should be called for this admission.
func (a Admission) ConsumesQuota() bool { return !a.ViaSubscription }

type Gate interface {
	// CheckAndAdmit is advisory: two concurrent requests may both be admitted
	// on the last free generation. Each Commit is still atomic, so the ledger
	// never goes negative.
	CheckAndAdmit(ctx context.Context, userID uuid.UUID, modelID string) (Admission, error)
	// Commit consumes one free generation. It is a no-op when the balance is
	// already zero.
	Commit(ctx context.Context, userID uuid.UUID) error
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
}

type gate struct {
	log           *logger.Logger
	models        ModelResolver
	ledger        billingrepo.LedgerRepo
	subscriptions billingrepo.SubscriptionRepo
	checker       SubscriptionChecker
	allotment     int
}

func NewGate(
	baseLog *logger.Logger,
	models ModelResolver,
	ledger billingrepo.LedgerRepo,
	subscriptions billingrepo.SubscriptionRepo,
	checker SubscriptionChecker,
	allotment int,
) Gate {
	return &gate{
		log:           baseLog.With("service", "QuotaGate"),
		models:        models,
		ledger:        ledger,
		subscriptions: subscriptions,
		checker:       checker,
		allotment:     allotment,
	}
}

func (g *gate) CheckAndAdmit(ctx context.Context, userID uuid.UUID, modelID string) (Admission, error) {
	d, err := g.models.Resolve(modelID)
	if err != nil {
		return Admission{}, err
	}
	if d.IsFree() {
		l, err := g.ledger.GetOrCreate(dbctx.Of(ctx), userID, g.allotment)
		if err != nil {
			return Admission{}, fmt.Errorf("read ledger: %w", err)
		}
		if l.Remaining <= 0 {
			return Admission{}, ErrQuotaExhausted
		}
		return Admission{Model: d, Remaining: l.Remaining}, nil
	}

	ok, err := g.hasActiveSubscription(ctx, userID)
	if err != nil {
		return Admission{}, err
	}
	if !ok {
		return Admission{}, ErrSubscriptionRequired
	}
	return Admission{Model: d, Remaining: -1, ViaSubscription: true}, nil
}

// hasActiveSubscription checks the user's subscriptions newest first. Status
// lives only at the gateway, so every check is a live lookup.
func (g *gate) hasActiveSubscription(ctx context.Context, userID uuid.UUID) (bool, error) {
	subs, err := g.subscriptions.ListByUser(dbctx.Of(ctx), userID)
	if err != nil {
		return false, fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 || g.checker == nil {
		return false, nil
	}
	var failures int
	for _, s := range subs {
		active, err := g.checker.SubscriptionActive(ctx, s.ExternalSubscriptionID)
		if err != nil {
			failures++
			g.log.Warn("subscription status lookup failed", "user_id", userID, "subscription_id", s.ExternalSubscriptionID, "error", err)
			continue
		}
		if active {
			return true, nil
		}
	}
	if failures == len(subs) {
		return false, ErrGatewayUnavailable
	}
	return false, nil
}

func (g *gate) Commit(ctx context.Context, userID uuid.UUID) error {
	ok, err := g.ledger.Decrement(dbctx.Of(ctx), userID)
	if err != nil {
		return fmt.Errorf("decrement ledger: %w", err)
	}
	if !ok {
		g.log.Warn("commit on empty ledger ignored", "user_id", userID)
	}
	return nil
}

func (g *gate) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	l, err := g.ledger.GetOrCreate(dbctx.Of(ctx), userID, g.allotment)
	if err != nil {
		return 0, err
	}
	return l.Remaining, nil
}
