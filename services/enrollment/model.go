package enrollment

import (
	"time"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusDeclined RequestStatus = "declined"
)

// EnrollmentRequest is a business inviting a customer into one of its
// programs. It transitions out of pending exactly once.
type EnrollmentRequest struct {
	ID          string        `gorm:"column:id;primaryKey"`
	BusinessID  string        `gorm:"column:business_id;index;not null"`
	ProgramID   string        `gorm:"column:program_id;index;not null"`
	CustomerID  string        `gorm:"column:customer_id;index;not null"`
	Status      RequestStatus `gorm:"column:status;type:varchar(20);not null;default:pending"`
	ActionTaken *time.Time    `gorm:"column:action_taken"`
	CreatedAt   time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
