package scan

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"loyaltyhub/pkg/auth"
	"loyaltyhub/pkg/errutil"
	"loyaltyhub/services/business"
	"loyaltyhub/services/notification"
	"loyaltyhub/services/points"
	"loyaltyhub/services/promo"
)

// The dispatcher's collaborators are the domain services behind small
// interfaces so the routing logic tests without a database.

type PointsAwarder interface {
	AwardPoints(ctx context.Context, businessID, cardID string, points int64, referenceID string) (*points.AwardResult, error)
}

type PromoRedeemer interface {
	Redeem(ctx context.Context, customerID, code string) (*promo.Redemption, error)
}

type BusinessDirectory interface {
	GetBusiness(ctx context.Context, businessID string) (*business.Business, error)
	GetCustomer(ctx context.Context, customerID string) (*business.Customer, error)
	PointsToAward(b *business.Business) int64
}

type Notifier interface {
	Notify(ctx context.Context, recipientID, kind string, payload map[string]any)
}

// DispatchContext is the verified caller context a dispatch runs under.
type DispatchContext struct {
	Actor   auth.Identity
	TokenID string
	// ReferenceID correlates the resulting ledger entry with the attempt.
	ReferenceID string
}

// Dispatcher routes a decoded payload to the matching domain action. Every
// dispatch is audited before the result is returned, whatever the outcome.
type Dispatcher struct {
	awarder   PointsAwarder
	redeemer  PromoRedeemer
	directory BusinessDirectory
	notifier  Notifier
	auditor   *Auditor
}

func NewDispatcher(awarder PointsAwarder, redeemer PromoRedeemer, directory BusinessDirectory, notifier Notifier, auditor *Auditor) *Dispatcher {
	return &Dispatcher{
		awarder:   awarder,
		redeemer:  redeemer,
		directory: directory,
		notifier:  notifier,
		auditor:   auditor,
	}
}

// Dispatch routes by payload kind. A returned error carries the caller-facing
// classification; the ScanResult is always populated for the result surface.
func (d *Dispatcher) Dispatch(ctx context.Context, dctx DispatchContext, raw string, payload *Payload) (*ScanResult, error) {
	result, err := d.route(ctx, dctx, payload)
	result.Timestamp = time.Now()
	result.Payload = payload

	d.auditor.Record(ctx, AttemptRecord{
		RawText:    raw,
		Payload:    payload,
		ActorID:    dctx.Actor.ActorID,
		BusinessID: dctx.Actor.BusinessID,
		TokenID:    dctx.TokenID,
		Outcome:    outcomeFor(payload, err),
		Message:    result.Message,
	})

	if err != nil {
		return result, err
	}
	return result, nil
}

func (d *Dispatcher) route(ctx context.Context, dctx DispatchContext, payload *Payload) (*ScanResult, error) {
	switch payload.Kind {
	case KindLoyaltyCard:
		return d.awardPoints(ctx, dctx, payload)
	case KindPromoCode:
		return d.redeemPromo(ctx, dctx, payload)
	case KindCustomer:
		return d.customerInfo(ctx, dctx, payload)
	default:
		zap.L().Info("unknown scan payload", zap.String("actor_id", dctx.Actor.ActorID))
		result := &ScanResult{Success: false, Message: "unrecognized code"}
		return result, errutil.BadRequest("unrecognized payload type", nil)
	}
}

func (d *Dispatcher) awardPoints(ctx context.Context, dctx DispatchContext, payload *Payload) (*ScanResult, error) {
	if dctx.Actor.Role != auth.RoleBusiness || dctx.Actor.BusinessID == "" {
		result := &ScanResult{Success: false, Message: "only businesses award points"}
		return result, errutil.Forbidden("only businesses award points", nil)
	}

	biz, err := d.directory.GetBusiness(ctx, dctx.Actor.BusinessID)
	if err != nil {
		return &ScanResult{Success: false, Message: "business not found"}, err
	}

	award, err := d.awarder.AwardPoints(ctx, biz.ID, payload.CardID, d.directory.PointsToAward(biz), dctx.ReferenceID)
	if err != nil {
		return &ScanResult{Success: false, Message: messageFor(err)}, err
	}

	d.notifier.Notify(ctx, payload.CustomerID, notification.KindPointsAwarded, map[string]any{
		"business_id": biz.ID,
		"card_id":     award.CardID,
		"points":      award.Points,
		"balance":     award.NewBalance,
	})

	return &ScanResult{Success: true, Message: "points awarded", Award: award}, nil
}

func (d *Dispatcher) redeemPromo(ctx context.Context, dctx DispatchContext, payload *Payload) (*ScanResult, error) {
	if dctx.Actor.Role != auth.RoleCustomer {
		result := &ScanResult{Success: false, Message: "only customers redeem promo codes"}
		return result, errutil.Forbidden("only customers redeem promo codes", nil)
	}

	redemption, err := d.redeemer.Redeem(ctx, dctx.Actor.ActorID, payload.Code)
	if err != nil {
		return &ScanResult{Success: false, Message: messageFor(err)}, err
	}

	return &ScanResult{Success: true, Message: "promo redeemed", Redemption: redemption}, nil
}

// customerInfo is informational: a business scanning a customer code gets
// the customer context back, the customer learns they were scanned, and no
// monetary state changes.
func (d *Dispatcher) customerInfo(ctx context.Context, dctx DispatchContext, payload *Payload) (*ScanResult, error) {
	if dctx.Actor.Role != auth.RoleBusiness || dctx.Actor.BusinessID == "" {
		result := &ScanResult{Success: false, Message: "only businesses scan customer codes"}
		return result, errutil.Forbidden("only businesses scan customer codes", nil)
	}

	customer, err := d.directory.GetCustomer(ctx, payload.CustomerID)
	if err != nil {
		return &ScanResult{Success: false, Message: messageFor(err)}, err
	}

	d.notifier.Notify(ctx, customer.ID, notification.KindCustomerScanned, map[string]any{
		"business_id": dctx.Actor.BusinessID,
	})

	return &ScanResult{Success: true, Message: "customer " + customer.Name}, nil
}

func outcomeFor(payload *Payload, err error) Outcome {
	if payload != nil && payload.Kind == KindUnknown {
		return OutcomeUnknownType
	}
	if err != nil {
		return OutcomeProcessingError
	}
	return OutcomeSuccess
}

func messageFor(err error) string {
	var be errutil.BaseError
	if errors.As(err, &be) {
		return be.Message
	}
	return "processing failed"
}
