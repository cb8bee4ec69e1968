package promo

import (
	"time"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusDepleted  Status = "depleted"
	StatusCancelled Status = "cancelled"
)

type RewardKind string

const (
	RewardPoints   RewardKind = "points"
	RewardDiscount RewardKind = "discount"
	RewardItem     RewardKind = "item"
)

type PromoCode struct {
	ID         string     `gorm:"column:id;primaryKey"`
	Code       string     `gorm:"column:code;uniqueIndex;not null"`
	BusinessID string     `gorm:"column:business_id;index;not null"`
	Kind       RewardKind `gorm:"column:kind;type:varchar(20);not null"`
	Value      int64      `gorm:"column:value;not null"`
	MaxUses    int64      `gorm:"column:max_uses;not null"`
	UsedCount  int64      `gorm:"column:used_count;not null;default:0"`
	ExpiresAt  *time.Time `gorm:"column:expires_at"`
	Cancelled  bool       `gorm:"column:cancelled;default:false"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Status is derived, never stored. Cancellation wins over expiry, expiry
// over depletion.
func (p *PromoCode) Status(now time.Time) Status {
	switch {
	case p.Cancelled:
		return StatusCancelled
	case p.ExpiresAt != nil && !now.Before(*p.ExpiresAt):
		return StatusExpired
	case p.UsedCount >= p.MaxUses:
		return StatusDepleted
	default:
		return StatusActive
	}
}

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionDelivered RedemptionStatus = "delivered"
)

type Redemption struct {
	ID           string           `gorm:"column:id;primaryKey"`
	PromoCodeID  string           `gorm:"column:promo_code_id;index;not null"`
	Code         string           `gorm:"column:code;index;not null"`
	CustomerID   string           `gorm:"column:customer_id;index;not null"`
	BusinessID   string           `gorm:"column:business_id;index;not null"`
	Kind         RewardKind       `gorm:"column:kind;type:varchar(20);not null"`
	Value        int64            `gorm:"column:value;not null"`
	TrackingCode string           `gorm:"column:tracking_code;uniqueIndex"`
	Status       RedemptionStatus `gorm:"column:status;type:varchar(20);not null;default:pending"`
	DeliveredAt  *time.Time       `gorm:"column:delivered_at"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
