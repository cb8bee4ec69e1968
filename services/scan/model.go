package scan

import (
	"time"

	"gorm.io/datatypes"

	"loyaltyhub/services/points"
	"loyaltyhub/services/promo"
)

type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeInvalidFormat   Outcome = "invalid_format"
	OutcomeUnknownType     Outcome = "unknown_type"
	OutcomeRateLimited     Outcome = "rate_limited"
	OutcomeProcessingError Outcome = "processing_error"
)

// ScanAttempt is the append-only audit record for every decode event,
// success or failure. Rows are never mutated.
type ScanAttempt struct {
	ID         string         `gorm:"column:id;primaryKey"`
	RawText    string         `gorm:"column:raw_text;type:text"`
	Payload    datatypes.JSON `gorm:"column:payload"`
	ActorID    string         `gorm:"column:actor_id;index"`
	BusinessID string         `gorm:"column:business_id;index"`
	TokenID    string         `gorm:"column:token_id;index"`
	Outcome    Outcome        `gorm:"column:outcome;type:varchar(20);not null"`
	Message    string         `gorm:"column:message;type:text"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime;index"`
}

// ScanToken is an issued payload: the persisted side of a QR code handed to
// a customer. Revoking flips Active; the raw text of a revoked token still
// decodes but no longer processes.
type ScanToken struct {
	ID         string    `gorm:"column:id;primaryKey"`
	BusinessID string    `gorm:"column:business_id;index;not null"`
	CustomerID string    `gorm:"column:customer_id;index"`
	Kind       Kind      `gorm:"column:kind;type:varchar(20);not null"`
	RawText    string    `gorm:"column:raw_text;type:text;not null"`
	Active     bool      `gorm:"column:active;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ScanResult is what the pipeline hands back to the caller, one per
// accepted attempt.
type ScanResult struct {
	Payload    *Payload            `json:"payload,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	Award      *points.AwardResult `json:"award,omitempty"`
	Redemption *promo.Redemption   `json:"redemption,omitempty"`
}
