package business

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/errutil"
	"loyaltyhub/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	cfg := &config.Config{}
	cfg.Points.DefaultAward = 10
	cfg.Points.AwardCeiling = 5000

	db := testutil.NewTestDB(t, &Business{}, &Customer{}, &Program{})
	return NewService(ServiceParams{
		DB:     db,
		Node:   testutil.NewSnowflakeNode(t),
		Config: cfg,
	})
}

func TestGetBusinessNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetBusiness(context.Background(), "missing")
	require.Error(t, err)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusNotFound, be.Status())
}

func TestGetBusinessAndCustomer(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.db.Create(&Business{ID: "biz-1", Name: "Corner Cafe", Active: true}).Error)
	require.NoError(t, svc.db.Create(&Customer{ID: "cust-1", Name: "Dana"}).Error)

	b, err := svc.GetBusiness(ctx, "biz-1")
	require.NoError(t, err)
	require.Equal(t, "Corner Cafe", b.Name)

	c, err := svc.GetCustomer(ctx, "cust-1")
	require.NoError(t, err)
	require.Equal(t, "Dana", c.Name)
}

func TestCreateProgramSlugsName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.db.Create(&Business{ID: "biz-1", Name: "Corner Cafe", Active: true}).Error)

	program, err := svc.CreateProgram(ctx, "biz-1", "Coffee Lovers Club")
	require.NoError(t, err)
	require.Equal(t, "coffee-lovers-club", program.Slug)
	require.True(t, program.Active)

	loaded, err := svc.GetProgram(ctx, program.ID)
	require.NoError(t, err)
	require.Equal(t, "biz-1", loaded.BusinessID)
}

func TestCreateProgramValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateProgram(ctx, "", "name")
	require.Error(t, err)

	_, err = svc.CreateProgram(ctx, "missing-biz", "name")
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusNotFound, be.Status())
}

func TestPointsToAward(t *testing.T) {
	svc := newTestService(t)

	require.Equal(t, int64(10), svc.PointsToAward(&Business{}), "zero falls back to the default")
	require.Equal(t, int64(25), svc.PointsToAward(&Business{PointsToAward: 25}))
	require.Equal(t, int64(5000), svc.PointsToAward(&Business{PointsToAward: 99999}), "clamped to ceiling")
}
