package promo

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/repository"
	"loyaltyhub/pkg/sequence"
	"loyaltyhub/services/notification"
)

type Notifier interface {
	Notify(ctx context.Context, recipientID, kind string, payload map[string]any)
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	seq      sequence.Generator
	notifier Notifier

	promos      repository.Repository[PromoCode]
	redemptions repository.Repository[Redemption]
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Sequence sequence.Generator `optional:"true"`
	Notifier Notifier           `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		seq:      p.Sequence,
		notifier: p.Notifier,

		promos:      repository.ProvideStore[PromoCode](p.DB),
		redemptions: repository.ProvideStore[Redemption](p.DB),
	}
}

type CreateParams struct {
	BusinessID string
	Kind       RewardKind
	Value      int64
	MaxUses    int64
	ExpiresAt  *time.Time
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*PromoCode, error) {
	if params.Value <= 0 {
		return nil, errutil.UnprocessableEntity("promo value must be positive", nil)
	}
	if params.MaxUses <= 0 {
		return nil, errutil.UnprocessableEntity("promo max uses must be positive", nil)
	}
	if params.ExpiresAt != nil && params.ExpiresAt.Before(time.Now()) {
		return nil, errutil.UnprocessableEntity("promo expiry must be in the future", nil)
	}

	code, err := s.nextCode(ctx, params.BusinessID)
	if err != nil {
		return nil, errutil.Internal("failed to mint promo code", err)
	}

	promo := &PromoCode{
		ID:         s.node.Generate().String(),
		Code:       code,
		BusinessID: params.BusinessID,
		Kind:       params.Kind,
		Value:      params.Value,
		MaxUses:    params.MaxUses,
		ExpiresAt:  params.ExpiresAt,
	}
	if err := s.promos.Create(ctx, promo); err != nil {
		return nil, errutil.Internal("failed to create promo code", err)
	}

	return promo, nil
}

// Redeem consumes one use of a promo code. Fail closed: anything other than
// a verified active code with remaining uses is rejected. The guarded UPDATE
// is what makes the use count safe under concurrency; the WHERE clause
// re-checks remaining uses so two racing redeemers of a one-use code cannot
// both succeed.
func (s *Service) Redeem(ctx context.Context, customerID, code string) (*Redemption, error) {
	promo, err := s.promos.FindOne(ctx, &PromoCode{Code: code})
	if err != nil {
		return nil, errutil.Internal("failed to query promo code", err)
	}
	if promo == nil {
		return nil, errutil.NotFound("promo code not found", nil)
	}

	now := time.Now()
	switch promo.Status(now) {
	case StatusCancelled:
		return nil, errutil.UnprocessableEntity("promo code cancelled", nil)
	case StatusExpired:
		return nil, errutil.UnprocessableEntity("promo code expired", nil)
	case StatusDepleted:
		return nil, errutil.UnprocessableEntity("promo code exhausted", nil)
	}

	trackingCode, err := s.nextTrackingCode(ctx, promo.BusinessID)
	if err != nil {
		return nil, errutil.Internal("failed to mint tracking code", err)
	}

	redemption := &Redemption{
		ID:           s.node.Generate().String(),
		PromoCodeID:  promo.ID,
		Code:         promo.Code,
		CustomerID:   customerID,
		BusinessID:   promo.BusinessID,
		Kind:         promo.Kind,
		Value:        promo.Value,
		TrackingCode: trackingCode,
		Status:       RedemptionPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consumed, err := s.consumeUse(tx, promo.ID, now)
		if err != nil {
			return err
		}
		if !consumed {
			return errutil.UnprocessableEntity("promo code exhausted", nil)
		}

		return s.redemptions.WithTrx(tx).Create(ctx, redemption)
	})
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, errutil.Internal("failed to redeem promo code", err)
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, customerID, notification.KindPromoRedeemed, map[string]any{
			"code":          promo.Code,
			"tracking_code": redemption.TrackingCode,
			"kind":          string(promo.Kind),
			"value":         promo.Value,
		})
	}

	return redemption, nil
}

// consumeUse burns one use of a promo code. The WHERE clause re-checks every
// disqualifier, so a code cancelled, expired, or depleted after the caller's
// status check still fails closed under the atomic UPDATE.
func (s *Service) consumeUse(tx *gorm.DB, promoID string, now time.Time) (bool, error) {
	res := tx.Model(&PromoCode{}).
		Where("id = ? AND cancelled = ? AND used_count < max_uses AND (expires_at IS NULL OR expires_at > ?)",
			promoID, false, now).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Deliver transitions a redemption pending -> delivered exactly once.
func (s *Service) Deliver(ctx context.Context, businessID, redemptionID string) error {
	redemption, err := s.redemptions.FindOne(ctx, &Redemption{ID: redemptionID})
	if err != nil {
		return errutil.Internal("failed to query redemption", err)
	}
	if redemption == nil {
		return errutil.NotFound("redemption not found", nil)
	}
	if redemption.BusinessID != businessID {
		return errutil.Forbidden("redemption belongs to another business", nil)
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&Redemption{}).
		Where("id = ? AND status = ?", redemptionID, RedemptionPending).
		Updates(map[string]any{
			"status":       RedemptionDelivered,
			"delivered_at": &now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return errutil.Internal("failed to deliver redemption", res.Error)
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("redemption already delivered", nil)
	}
	return nil
}

// Cancel deactivates a promo code. Already-cancelled codes are a no-op.
func (s *Service) Cancel(ctx context.Context, businessID, code string) error {
	promo, err := s.promos.FindOne(ctx, &PromoCode{Code: code})
	if err != nil {
		return errutil.Internal("failed to query promo code", err)
	}
	if promo == nil {
		return errutil.NotFound("promo code not found", nil)
	}
	if promo.BusinessID != businessID {
		return errutil.Forbidden("promo code belongs to another business", nil)
	}
	if promo.Cancelled {
		return nil
	}

	return s.promos.Update(ctx, promo.ID, map[string]any{
		"cancelled":  true,
		"updated_at": time.Now(),
	})
}

func (s *Service) GetByCode(ctx context.Context, code string) (*PromoCode, error) {
	promo, err := s.promos.FindOne(ctx, &PromoCode{Code: code})
	if err != nil {
		return nil, errutil.Internal("failed to query promo code", err)
	}
	if promo == nil {
		return nil, errutil.NotFound("promo code not found", nil)
	}
	return promo, nil
}

func (s *Service) nextCode(ctx context.Context, businessID string) (string, error) {
	if s.seq != nil {
		return s.seq.NextPromoCode(ctx, businessID)
	}
	// redis-less fallback for tests and single-node setups
	zap.L().Debug("sequence generator unavailable, using snowflake promo code")
	return "PRM-" + s.node.Generate().Base36(), nil
}

func (s *Service) nextTrackingCode(ctx context.Context, businessID string) (string, error) {
	if s.seq != nil {
		return s.seq.NextTrackingCode(ctx, businessID)
	}
	return "TRK-" + s.node.Generate().Base36(), nil
}
