package scan

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"loyaltyhub/pkg/db/option"
	"loyaltyhub/pkg/repository"
)

var scanAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "scan_attempts_total"},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(scanAttempts)
}

// Auditor records every scan attempt, best-effort: a failed write is logged
// and swallowed so audit problems never fail the pipeline.
type Auditor struct {
	node     *snowflake.Node
	attempts repository.Repository[ScanAttempt]
}

func NewAuditor(node *snowflake.Node, attempts repository.Repository[ScanAttempt]) *Auditor {
	return &Auditor{node: node, attempts: attempts}
}

type AttemptRecord struct {
	RawText    string
	Payload    *Payload
	ActorID    string
	BusinessID string
	TokenID    string
	Outcome    Outcome
	Message    string
}

func (a *Auditor) Record(ctx context.Context, rec AttemptRecord) {
	scanAttempts.WithLabelValues(string(rec.Outcome)).Inc()

	attempt := &ScanAttempt{
		ID:         a.node.Generate().String(),
		RawText:    rec.RawText,
		ActorID:    rec.ActorID,
		BusinessID: rec.BusinessID,
		TokenID:    rec.TokenID,
		Outcome:    rec.Outcome,
		Message:    rec.Message,
		CreatedAt:  time.Now(),
	}
	if rec.Payload != nil {
		if body, err := json.Marshal(rec.Payload); err == nil {
			attempt.Payload = datatypes.JSON(body)
		}
	}

	if err := a.attempts.Create(ctx, attempt); err != nil {
		zap.L().Warn("failed to record scan attempt",
			zap.String("outcome", string(rec.Outcome)),
			zap.String("actor_id", rec.ActorID),
			zap.Error(err),
		)
	}
}

// Recent returns the latest attempts for a token, newest first.
func (a *Auditor) Recent(ctx context.Context, tokenID string, limit int) ([]*ScanAttempt, error) {
	if limit <= 0 {
		limit = 10
	}
	return a.attempts.Find(ctx, &ScanAttempt{TokenID: tokenID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
		option.WithLimit(limit),
	)
}
