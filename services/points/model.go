package points

import (
	"time"

	"gorm.io/datatypes"
)

// LoyaltyCard is the mutable running balance for one (customer, program)
// pair. The composite unique index is what the enrollment guard leans on:
// at most one card may ever exist per pair.
type LoyaltyCard struct {
	ID            string    `gorm:"column:id;primaryKey"`
	CustomerID    string    `gorm:"column:customer_id;uniqueIndex:idx_card_customer_program;not null"`
	ProgramID     string    `gorm:"column:program_id;uniqueIndex:idx_card_customer_program;not null"`
	BusinessID    string    `gorm:"column:business_id;index;not null"`
	CardNumber    string    `gorm:"column:card_number;index"`
	PointsBalance int64     `gorm:"column:points_balance;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

type EntryType string

var (
	Award      EntryType = "award"
	Redemption EntryType = "redemption"
	Adjustment EntryType = "adjustment"
)

func (t EntryType) String() string {
	switch t {
	case Award, Redemption, Adjustment:
		return string(t)
	default:
		return ""
	}
}

// LedgerEntry is the append-only record of every balance-affecting event,
// distinct from the running balance it supports. Rows are never updated.
type LedgerEntry struct {
	ID          string         `gorm:"column:id;primaryKey"`
	CardID      string         `gorm:"column:card_id;index;not null"`
	BusinessID  string         `gorm:"column:business_id;index;not null"`
	CustomerID  string         `gorm:"column:customer_id;index;not null"`
	Type        EntryType      `gorm:"column:type;type:varchar(20);not null"`
	PointDelta  int64          `gorm:"column:point_delta;not null"`
	// ReferenceID is caller-supplied correlation; a future client-side
	// idempotency token slots in here.
	ReferenceID string         `gorm:"column:reference_id;index"`
	Description string         `gorm:"column:description;type:text"`
	Metadata    datatypes.JSON `gorm:"column:metadata"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
}
