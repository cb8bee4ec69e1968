package points

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

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

	db := testutil.NewTestDB(t, &LoyaltyCard{}, &LedgerEntry{})
	return NewService(ServiceParams{
		DB:     db,
		Node:   testutil.NewSnowflakeNode(t),
		Config: cfg,
	})
}

func seedCard(t *testing.T, svc *Service, id, customerID, businessID string, balance int64) {
	t.Helper()
	require.NoError(t, svc.db.Create(&LoyaltyCard{
		ID:         id,
		CustomerID: customerID,
		ProgramID:  "prog-" + id,
		BusinessID: businessID,
		// seeded balance stands in for prior activity
		PointsBalance: balance,
	}).Error)
}

func requireStatus(t *testing.T, err error, want errutil.CoreStatus) {
	t.Helper()
	require.Error(t, err)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, want, be.Status())
}

func TestAwardPointsIncrementsAndLedgers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedCard(t, svc, "card-1", "cust-1", "biz-1", 50)

	result, err := svc.AwardPoints(ctx, "biz-1", "card-1", 10, "ref-1")
	require.NoError(t, err)
	require.Equal(t, int64(60), result.NewBalance)
	require.Equal(t, int64(10), result.Points)

	history, err := svc.History(ctx, "card-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, Award, history[0].Type)
	require.Equal(t, int64(10), history[0].PointDelta)
	require.Equal(t, "ref-1", history[0].ReferenceID)
}

func TestAwardPointsPolicyBounds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedCard(t, svc, "card-1", "cust-1", "biz-1", 0)

	_, err := svc.AwardPoints(ctx, "biz-1", "card-1", 0, "")
	requireStatus(t, err, errutil.StatusUnprocessableEntity)

	_, err = svc.AwardPoints(ctx, "biz-1", "card-1", -5, "")
	requireStatus(t, err, errutil.StatusUnprocessableEntity)

	_, err = svc.AwardPoints(ctx, "biz-1", "card-1", 5001, "")
	requireStatus(t, err, errutil.StatusUnprocessableEntity)

	history, err := svc.History(ctx, "card-1", 10)
	require.NoError(t, err)
	require.Empty(t, history, "rejected awards leave no ledger entries")
}

func TestAwardPointsUnknownCard(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AwardPoints(context.Background(), "biz-1", "missing", 10, "")
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestAwardPointsWrongBusiness(t *testing.T) {
	svc := newTestService(t)
	seedCard(t, svc, "card-1", "cust-1", "biz-1", 0)

	_, err := svc.AwardPoints(context.Background(), "biz-2", "card-1", 10, "")
	requireStatus(t, err, errutil.StatusForbidden)
}

func TestAwardPointsConcurrentIncrements(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedCard(t, svc, "card-1", "cust-1", "biz-1", 0)

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AwardPoints(ctx, "biz-1", "card-1", 5, "")
		}(i)
	}
	wg.Wait()
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
	}

	card, err := svc.GetCard(ctx, "card-1")
	require.NoError(t, err)
	require.Equal(t, int64(50), card.PointsBalance, "all increments applied exactly once")

	history, err := svc.History(ctx, "card-1", 20)
	require.NoError(t, err)
	require.Len(t, history, workers)
}

func TestHistoryNewestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedCard(t, svc, "card-1", "cust-1", "biz-1", 0)

	_, err := svc.AwardPoints(ctx, "biz-1", "card-1", 1, "first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = svc.AwardPoints(ctx, "biz-1", "card-1", 2, "second")
	require.NoError(t, err)

	history, err := svc.History(ctx, "card-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "second", history[0].ReferenceID)
}

func TestFindCardByPair(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedCard(t, svc, "card-1", "cust-1", "biz-1", 0)

	card, err := svc.FindCardByPair(ctx, "cust-1", "prog-card-1")
	require.NoError(t, err)
	require.NotNil(t, card)
	require.Equal(t, "card-1", card.ID)

	card, err = svc.FindCardByPair(ctx, "cust-1", "other")
	require.NoError(t, err)
	require.Nil(t, card)
}
