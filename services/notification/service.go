package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"loyaltyhub/pkg/db/option"
	"loyaltyhub/pkg/db/pagination"
	"loyaltyhub/pkg/errutil"
	"loyaltyhub/pkg/repository"
	"loyaltyhub/pkg/task"
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	asynq task.Enqueuer

	notifications repository.Repository[Notification]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Asynq task.Enqueuer `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		asynq: p.Asynq,

		notifications: repository.ProvideStore[Notification](p.DB),
	}
}

// Notify persists a notification and hands delivery to the background
// worker. Fire-and-forget: every failure is logged and swallowed so a
// successful scan never fails because its notification could not be
// delivered.
func (s *Service) Notify(ctx context.Context, recipientID, kind string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		zap.L().Warn("failed to marshal notification payload", zap.String("kind", kind), zap.Error(err))
		body = []byte("{}")
	}

	n := &Notification{
		ID:          s.node.Generate().String(),
		RecipientID: recipientID,
		Kind:        kind,
		Payload:     datatypes.JSON(body),
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		zap.L().Warn("failed to persist notification",
			zap.String("recipient_id", recipientID),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return
	}

	if s.asynq == nil {
		return
	}

	taskPayload, _ := json.Marshal(DeliverPayload{NotificationID: n.ID})
	if _, err := s.asynq.Enqueue(
		asynq.NewTask(NotificationDeliver, taskPayload),
		asynq.Queue("notifications"),
		asynq.MaxRetry(3),
	); err != nil {
		zap.L().Warn("failed to enqueue notification delivery",
			zap.String("notification_id", n.ID),
			zap.Error(err),
		)
	}
}

// MarkRead is idempotent: marking an already-read notification succeeds.
func (s *Service) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	n, err := s.notifications.FindOne(ctx, &Notification{ID: notificationID})
	if err != nil {
		return errutil.Internal("failed to query notification", err)
	}
	if n == nil {
		return errutil.NotFound("notification not found", nil)
	}
	if n.RecipientID != recipientID {
		return errutil.Forbidden("notification belongs to another recipient", nil)
	}

	if n.Read {
		return nil
	}

	return s.notifications.Update(ctx, n.ID, map[string]any{
		"read":       true,
		"updated_at": time.Now(),
	})
}

func (s *Service) Delete(ctx context.Context, recipientID, notificationID string) error {
	n, err := s.notifications.FindOne(ctx, &Notification{ID: notificationID})
	if err != nil {
		return errutil.Internal("failed to query notification", err)
	}
	if n == nil {
		return errutil.NotFound("notification not found", nil)
	}
	if n.RecipientID != recipientID {
		return errutil.Forbidden("notification belongs to another recipient", nil)
	}

	return s.db.WithContext(ctx).Delete(&Notification{}, "id = ?", n.ID).Error
}

// List pages through a recipient's notifications newest first using cursor
// pagination; one extra row is fetched to learn whether more remain.
func (s *Service) List(ctx context.Context, recipientID string, p pagination.Pagination) ([]*Notification, *pagination.PageInfo, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	items, err := s.notifications.Find(ctx, &Notification{RecipientID: recipientID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
		option.ApplyPagination(pagination.Pagination{Cursor: p.Cursor, Limit: limit + 1}),
	)
	if err != nil {
		return nil, nil, errutil.Internal("failed to list notifications", err)
	}

	pageInfo := pagination.BuildCursorPageInfo(items, limit, func(n *Notification) string {
		cursor, err := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339Nano),
			ID:        n.ID,
		})
		if err != nil {
			return ""
		}
		return cursor
	})
	if len(items) > limit {
		items = items[:limit]
	}

	return items, pageInfo, nil
}
