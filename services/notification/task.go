package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	NotificationDeliver = "notification:deliver"
)

type DeliverPayload struct {
	NotificationID string `json:"notification_id"`
}

// HandleDeliverTask marks a notification delivered. Delivery to the actual
// push/email channel is a downstream collaborator; returning an error lets
// asynq retry up to the bounded count set at enqueue time.
func (s *Service) HandleDeliverTask(ctx context.Context, t *asynq.Task) error {
	var payload DeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	zapLog := zap.L().With(
		zap.String("task_type", t.Type()),
		zap.String("notification_id", payload.NotificationID),
	)

	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ? AND delivered_at IS NULL", payload.NotificationID).
		Update("delivered_at", &now)
	if res.Error != nil {
		zapLog.Error("failed to mark notification delivered", zap.Error(res.Error))
		return res.Error
	}
	if res.RowsAffected == 0 {
		// already delivered or deleted; nothing to retry
		return nil
	}

	zapLog.Info("notification delivered")
	return nil
}
