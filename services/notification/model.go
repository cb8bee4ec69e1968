package notification

import (
	"time"

	"gorm.io/datatypes"
)

// Kinds of notifications emitted by the scan pipeline.
const (
	KindPointsAwarded      = "points_awarded"
	KindPromoRedeemed      = "promo_redeemed"
	KindCustomerScanned    = "customer_scanned"
	KindEnrollmentInvite   = "enrollment_invite"
	KindEnrollmentAccepted = "enrollment_accepted"
	KindEnrollmentDeclined = "enrollment_declined"
)

type Notification struct {
	ID          string         `gorm:"column:id;primaryKey"`
	RecipientID string         `gorm:"column:recipient_id;index;not null"`
	Kind        string         `gorm:"column:kind;type:varchar(40);not null"`
	Payload     datatypes.JSON `gorm:"column:payload"`
	Read        bool           `gorm:"column:read;default:false"`
	DeliveredAt *time.Time     `gorm:"column:delivered_at"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
