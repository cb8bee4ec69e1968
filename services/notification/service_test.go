package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltyhub/pkg/db/option"
	"loyaltyhub/pkg/db/pagination"
	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/repository"
	"loyaltyhub/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type repoMock[T any] struct {
	withTrxFn     func(tx *gorm.DB) repository.Repository[T]
	findFn        func(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	findOneFn     func(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	createFn      func(ctx context.Context, resource *T) error
	updateFn      func(ctx context.Context, resourceID string, resource any) error
	batchCreateFn func(ctx context.Context, resources []*T) error
	batchUpdateFn func(ctx context.Context, resources []*T) error
	countFn       func(ctx context.Context, query *T) (int64, error)
}

func (m *repoMock[T]) WithTrx(tx *gorm.DB) repository.Repository[T] {
	if m.withTrxFn != nil {
		return m.withTrxFn(tx)
	}
	return m
}

func (m *repoMock[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	if m.findFn != nil {
		return m.findFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) Create(ctx context.Context, resource *T) error {
	if m.createFn != nil {
		return m.createFn(ctx, resource)
	}
	return nil
}

func (m *repoMock[T]) Update(ctx context.Context, resourceID string, resource any) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, resourceID, resource)
	}
	return nil
}

func (m *repoMock[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if m.batchCreateFn != nil {
		return m.batchCreateFn(ctx, resources)
	}
	return nil
}

func (m *repoMock[T]) BatchUpdate(ctx context.Context, resources []*T) error {
	if m.batchUpdateFn != nil {
		return m.batchUpdateFn(ctx, resources)
	}
	return nil
}

func (m *repoMock[T]) Count(ctx context.Context, query *T) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, query)
	}
	return 0, nil
}

type enqueuerMock struct {
	tasks []*asynq.Task
	err   error
}

func (m *enqueuerMock) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tasks = append(m.tasks, task)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func newTestService(t *testing.T, enq *enqueuerMock) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Notification{})
	params := ServiceParams{
		DB:   db,
		Node: testutil.NewSnowflakeNode(t),
	}
	if enq != nil {
		params.Asynq = enq
	}
	return NewService(params)
}

func TestNotifyPersistsAndEnqueues(t *testing.T) {
	enq := &enqueuerMock{}
	svc := newTestService(t, enq)
	ctx := context.Background()

	svc.Notify(ctx, "cust-1", KindPointsAwarded, map[string]any{"points": 25})

	items, _, err := svc.List(ctx, "cust-1", pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, KindPointsAwarded, items[0].Kind)
	require.False(t, items[0].Read)

	require.Len(t, enq.tasks, 1)
	require.Equal(t, NotificationDeliver, enq.tasks[0].Type())

	var payload DeliverPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, items[0].ID, payload.NotificationID)
}

func TestNotifySwallowsEnqueueFailure(t *testing.T) {
	enq := &enqueuerMock{err: errors.New("broker down")}
	svc := newTestService(t, enq)
	ctx := context.Background()

	svc.Notify(ctx, "cust-1", KindCustomerScanned, nil)

	items, _, err := svc.List(ctx, "cust-1", pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestNotifyWithoutEnqueuer(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	svc.Notify(ctx, "cust-1", KindPromoRedeemed, map[string]any{"code": "PRM-1"})

	items, _, err := svc.List(ctx, "cust-1", pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestMarkReadIdempotent(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	svc.Notify(ctx, "cust-1", KindPointsAwarded, nil)
	items, _, err := svc.List(ctx, "cust-1", pagination.Pagination{Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, svc.MarkRead(ctx, "cust-1", items[0].ID))
	require.NoError(t, svc.MarkRead(ctx, "cust-1", items[0].ID))

	items, _, err = svc.List(ctx, "cust-1", pagination.Pagination{Limit: 1})
	require.NoError(t, err)
	require.True(t, items[0].Read)
}

func TestMarkReadForbiddenForOtherRecipient(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	svc.Notify(ctx, "cust-1", KindPointsAwarded, nil)
	items, _, err := svc.List(ctx, "cust-1", pagination.Pagination{Limit: 1})
	require.NoError(t, err)

	err = svc.MarkRead(ctx, "cust-2", items[0].ID)
	require.Error(t, err)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusForbidden, be.Status())
}

func TestMarkReadNotFound(t *testing.T) {
	svc := newTestService(t, nil)

	err := svc.MarkRead(context.Background(), "cust-1", "missing")
	require.Error(t, err)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusNotFound, be.Status())
}

func TestDeleteRemovesNotification(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	svc.Notify(ctx, "cust-1", KindEnrollmentInvite, nil)
	items, _, err := svc.List(ctx, "cust-1", pagination.Pagination{Limit: 1})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "cust-1", items[0].ID))

	items, _, err = svc.List(ctx, "cust-1", pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestHandleDeliverTaskMarksDelivered(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	svc.Notify(ctx, "cust-1", KindPointsAwarded, nil)
	items, _, err := svc.List(ctx, "cust-1", pagination.Pagination{Limit: 1})
	require.NoError(t, err)

	payload, _ := json.Marshal(DeliverPayload{NotificationID: items[0].ID})
	task := asynq.NewTask(NotificationDeliver, payload)

	require.NoError(t, svc.HandleDeliverTask(ctx, task))

	items, _, err = svc.List(ctx, "cust-1", pagination.Pagination{Limit: 1})
	require.NoError(t, err)
	require.NotNil(t, items[0].DeliveredAt)

	// delivering twice is a no-op
	require.NoError(t, svc.HandleDeliverTask(ctx, task))
}

func TestMarkReadQueryFailure(t *testing.T) {
	svc := &Service{
		notifications: &repoMock[Notification]{
			findOneFn: func(ctx context.Context, _ *Notification, opts ...option.QueryOption) (*Notification, error) {
				return nil, errors.New("db down")
			},
		},
	}

	err := svc.MarkRead(context.Background(), "cust-1", "n-1")
	require.Error(t, err)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusInternal, be.Status())
}
