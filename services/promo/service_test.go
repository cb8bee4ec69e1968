package promo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltyhub/pkg/errutil"
	"loyaltyhub/services/notification"
	"loyaltyhub/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type notifierMock struct {
	mu    sync.Mutex
	kinds []string
}

func (m *notifierMock) Notify(ctx context.Context, recipientID, kind string, payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds = append(m.kinds, kind)
}

func newTestService(t *testing.T, notifier Notifier) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &PromoCode{}, &Redemption{})
	return NewService(ServiceParams{
		DB:       db,
		Node:     testutil.NewSnowflakeNode(t),
		Notifier: notifier,
	})
}

func seedPromo(t *testing.T, svc *Service, mutate func(*CreateParams)) *PromoCode {
	t.Helper()

	params := CreateParams{
		BusinessID: "biz-1",
		Kind:       RewardPoints,
		Value:      100,
		MaxUses:    5,
	}
	if mutate != nil {
		mutate(&params)
	}
	promo, err := svc.Create(context.Background(), params)
	require.NoError(t, err)
	return promo
}

func requireStatus(t *testing.T, err error, want errutil.CoreStatus) {
	t.Helper()

	require.Error(t, err)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, want, be.Status())
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{BusinessID: "biz-1", Kind: RewardPoints, Value: 0, MaxUses: 1})
	requireStatus(t, err, errutil.StatusUnprocessableEntity)

	_, err = svc.Create(ctx, CreateParams{BusinessID: "biz-1", Kind: RewardPoints, Value: 10, MaxUses: 0})
	requireStatus(t, err, errutil.StatusUnprocessableEntity)

	past := time.Now().Add(-time.Hour)
	_, err = svc.Create(ctx, CreateParams{BusinessID: "biz-1", Kind: RewardPoints, Value: 10, MaxUses: 1, ExpiresAt: &past})
	requireStatus(t, err, errutil.StatusUnprocessableEntity)
}

func TestRedeemSuccess(t *testing.T) {
	notifier := &notifierMock{}
	svc := newTestService(t, notifier)
	ctx := context.Background()
	promo := seedPromo(t, svc, nil)

	redemption, err := svc.Redeem(ctx, "cust-1", promo.Code)
	require.NoError(t, err)
	require.Equal(t, RedemptionPending, redemption.Status)
	require.NotEmpty(t, redemption.TrackingCode)
	require.Equal(t, promo.Value, redemption.Value)

	updated, err := svc.GetByCode(ctx, promo.Code)
	require.NoError(t, err)
	require.Equal(t, int64(1), updated.UsedCount)

	require.Equal(t, []string{notification.KindPromoRedeemed}, notifier.kinds)
}

func TestRedeemUnknownCode(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Redeem(context.Background(), "cust-1", "PRM-NOPE")
	requireStatus(t, err, errutil.StatusNotFound)
}

func TestRedeemExpiredAlwaysRejected(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	future := time.Now().Add(50 * time.Millisecond)
	promo := seedPromo(t, svc, func(p *CreateParams) { p.ExpiresAt = &future })

	time.Sleep(80 * time.Millisecond)

	for i := 0; i < 3; i++ {
		_, err := svc.Redeem(ctx, "cust-1", promo.Code)
		requireStatus(t, err, errutil.StatusUnprocessableEntity)
	}

	updated, err := svc.GetByCode(ctx, promo.Code)
	require.NoError(t, err)
	require.Equal(t, int64(0), updated.UsedCount)
}

// A code that expires between the status pre-check and the guarded UPDATE
// must not be consumed; the WHERE clause carries the expiry predicate.
func TestConsumeUseRejectsExpired(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	future := time.Now().Add(time.Hour)
	promo := seedPromo(t, svc, func(p *CreateParams) { p.ExpiresAt = &future })

	err := svc.db.Transaction(func(tx *gorm.DB) error {
		consumed, err := svc.consumeUse(tx, promo.ID, time.Now().Add(2*time.Hour))
		require.NoError(t, err)
		require.False(t, consumed, "expired code must not be consumable")

		consumed, err = svc.consumeUse(tx, promo.ID, time.Now())
		require.NoError(t, err)
		require.True(t, consumed, "still-valid code consumes normally")
		return nil
	})
	require.NoError(t, err)

	updated, err := svc.GetByCode(ctx, promo.Code)
	require.NoError(t, err)
	require.Equal(t, int64(1), updated.UsedCount)
}

func TestRedeemCancelled(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	promo := seedPromo(t, svc, nil)

	require.NoError(t, svc.Cancel(ctx, "biz-1", promo.Code))

	_, err := svc.Redeem(ctx, "cust-1", promo.Code)
	requireStatus(t, err, errutil.StatusUnprocessableEntity)
}

func TestRedeemDepleted(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	promo := seedPromo(t, svc, func(p *CreateParams) { p.MaxUses = 2 })

	_, err := svc.Redeem(ctx, "cust-1", promo.Code)
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, "cust-2", promo.Code)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, "cust-3", promo.Code)
	requireStatus(t, err, errutil.StatusUnprocessableEntity)
}

func TestRedeemSingleUseConcurrent(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	promo := seedPromo(t, svc, func(p *CreateParams) { p.MaxUses = 1 })

	const workers = 8
	var wg sync.WaitGroup
	var successes int64
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Redeem(ctx, "cust-1", promo.Code); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), successes)

	updated, err := svc.GetByCode(ctx, promo.Code)
	require.NoError(t, err)
	require.Equal(t, int64(1), updated.UsedCount)
}

func TestDeliverExactlyOnce(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	promo := seedPromo(t, svc, nil)

	redemption, err := svc.Redeem(ctx, "cust-1", promo.Code)
	require.NoError(t, err)

	require.NoError(t, svc.Deliver(ctx, "biz-1", redemption.ID))

	err = svc.Deliver(ctx, "biz-1", redemption.ID)
	requireStatus(t, err, errutil.StatusConflict)
}

func TestDeliverWrongBusiness(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	promo := seedPromo(t, svc, nil)

	redemption, err := svc.Redeem(ctx, "cust-1", promo.Code)
	require.NoError(t, err)

	err = svc.Deliver(ctx, "biz-2", redemption.ID)
	requireStatus(t, err, errutil.StatusForbidden)
}

func TestCancelIdempotent(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	promo := seedPromo(t, svc, nil)

	require.NoError(t, svc.Cancel(ctx, "biz-1", promo.Code))
	require.NoError(t, svc.Cancel(ctx, "biz-1", promo.Code))
}

func TestStatusDerivation(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name  string
		promo PromoCode
		want  Status
	}{
		{"active", PromoCode{MaxUses: 5, UsedCount: 2, ExpiresAt: &future}, StatusActive},
		{"no expiry", PromoCode{MaxUses: 5, UsedCount: 2}, StatusActive},
		{"expired", PromoCode{MaxUses: 5, UsedCount: 2, ExpiresAt: &past}, StatusExpired},
		{"depleted", PromoCode{MaxUses: 5, UsedCount: 5}, StatusDepleted},
		{"cancelled wins", PromoCode{MaxUses: 5, UsedCount: 5, Cancelled: true, ExpiresAt: &past}, StatusCancelled},
		{"expired wins over depleted", PromoCode{MaxUses: 5, UsedCount: 5, ExpiresAt: &past}, StatusExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.promo.Status(now))
		})
	}
}
