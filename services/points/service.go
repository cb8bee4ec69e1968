package points

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/repository"
)

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	config *config.Config

	cards  repository.Repository[LoyaltyCard]
	ledger repository.Repository[LedgerEntry]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		config: p.Config,

		cards:  repository.ProvideStore[LoyaltyCard](p.DB),
		ledger: repository.ProvideStore[LedgerEntry](p.DB),
	}
}

// AwardResult reports the applied award and the balance after it.
type AwardResult struct {
	CardID     string
	Points     int64
	NewBalance int64
	EntryID    string
}

// AwardPoints applies a single award as one transaction: an atomic balance
// increment plus an append-only ledger entry. The balance is never
// decremented here. There is no idempotency key on this path; a retried
// award after a timeout is the caller's call to make.
func (s *Service) AwardPoints(ctx context.Context, businessID, cardID string, points int64, referenceID string) (*AwardResult, error) {
	if points <= 0 {
		return nil, errutil.UnprocessableEntity("points must be positive", nil)
	}
	if ceiling := s.config.Points.AwardCeiling; points > ceiling {
		return nil, errutil.UnprocessableEntity("points exceed award ceiling", nil)
	}

	card, err := s.cards.FindOne(ctx, &LoyaltyCard{ID: cardID})
	if err != nil {
		zap.L().Error("failed to query card", zap.String("card_id", cardID), zap.Error(err))
		return nil, errutil.Internal("failed to query card", err)
	}
	if card == nil {
		return nil, errutil.NotFound("loyalty card not found", nil)
	}
	if card.BusinessID != businessID {
		return nil, errutil.Forbidden("card belongs to another business", nil)
	}

	entryID := s.node.Generate().String()

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&LoyaltyCard{}).
			Where("id = ?", card.ID).
			Update("points_balance", gorm.Expr("points_balance + ?", points))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return s.ledger.WithTrx(tx).Create(ctx, &LedgerEntry{
			ID:          entryID,
			CardID:      card.ID,
			BusinessID:  businessID,
			CustomerID:  card.CustomerID,
			Type:        Award,
			PointDelta:  points,
			ReferenceID: referenceID,
			Description: "points awarded on scan",
		})
	}); err != nil {
		zap.L().Error("award transaction failed", zap.String("card_id", card.ID), zap.Error(err))
		return nil, errutil.Internal("failed to award points", err)
	}

	updated, err := s.cards.FindOne(ctx, &LoyaltyCard{ID: card.ID})
	if err != nil || updated == nil {
		return nil, errutil.Internal("failed to reload card", err)
	}

	return &AwardResult{
		CardID:     updated.ID,
		Points:     points,
		NewBalance: updated.PointsBalance,
		EntryID:    entryID,
	}, nil
}

// GetCard returns nil when no card exists.
func (s *Service) GetCard(ctx context.Context, cardID string) (*LoyaltyCard, error) {
	return s.cards.FindOne(ctx, &LoyaltyCard{ID: cardID})
}

// FindCardByPair returns the card for a (customer, program) pair, nil when
// absent.
func (s *Service) FindCardByPair(ctx context.Context, customerID, programID string) (*LoyaltyCard, error) {
	return s.cards.FindOne(ctx, &LoyaltyCard{CustomerID: customerID, ProgramID: programID})
}

// History lists ledger entries for a card, newest first.
func (s *Service) History(ctx context.Context, cardID string, limit int) ([]*LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []*LedgerEntry
	if err := s.db.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, errutil.Internal("failed to list ledger entries", err)
	}
	return entries, nil
}
