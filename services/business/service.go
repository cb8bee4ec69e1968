package business

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
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

	businesses repository.Repository[Business]
	customers  repository.Repository[Customer]
	programs   repository.Repository[Program]
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

		businesses: repository.ProvideStore[Business](p.DB),
		customers:  repository.ProvideStore[Customer](p.DB),
		programs:   repository.ProvideStore[Program](p.DB),
	}
}

func (s *Service) GetBusiness(ctx context.Context, businessID string) (*Business, error) {
	b, err := s.businesses.FindOne(ctx, &Business{ID: businessID})
	if err != nil {
		zap.L().Error("failed to query business", zap.String("business_id", businessID), zap.Error(err))
		return nil, errutil.Internal("failed to query business", err)
	}
	if b == nil {
		return nil, errutil.NotFound("business not found", nil)
	}
	return b, nil
}

func (s *Service) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	c, err := s.customers.FindOne(ctx, &Customer{ID: customerID})
	if err != nil {
		zap.L().Error("failed to query customer", zap.String("customer_id", customerID), zap.Error(err))
		return nil, errutil.Internal("failed to query customer", err)
	}
	if c == nil {
		return nil, errutil.NotFound("customer not found", nil)
	}
	return c, nil
}

func (s *Service) GetProgram(ctx context.Context, programID string) (*Program, error) {
	p, err := s.programs.FindOne(ctx, &Program{ID: programID})
	if err != nil {
		return nil, errutil.Internal("failed to query program", err)
	}
	if p == nil {
		return nil, errutil.NotFound("program not found", nil)
	}
	return p, nil
}

func (s *Service) CreateProgram(ctx context.Context, businessID, name string) (*Program, error) {
	if businessID == "" || name == "" {
		return nil, errutil.BadRequest("business_id and name are required", nil)
	}

	if _, err := s.GetBusiness(ctx, businessID); err != nil {
		return nil, err
	}

	program := &Program{
		ID:         s.node.Generate().String(),
		BusinessID: businessID,
		Name:       name,
		Slug:       slug.Make(name),
		Active:     true,
	}

	if err := s.programs.Create(ctx, program); err != nil {
		return nil, errutil.Internal("failed to create program", err)
	}

	return program, nil
}

// PointsToAward resolves the per-scan award for a business, clamped to the
// platform ceiling.
func (s *Service) PointsToAward(b *Business) int64 {
	points := b.PointsToAward
	if points <= 0 {
		points = s.config.Points.DefaultAward
	}
	if ceiling := s.config.Points.AwardCeiling; points > ceiling {
		points = ceiling
	}
	return points
}
