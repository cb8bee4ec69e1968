package business

import (
	"time"
)

type Business struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Slug      string    `gorm:"column:slug;uniqueIndex"`
	// PointsToAward overrides the platform default for loyalty-card scans.
	// Zero means "use the default". Always clamped to the global ceiling.
	PointsToAward int64     `gorm:"column:points_to_award;default:0"`
	Active        bool      `gorm:"column:active;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

type Customer struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	Email     string    `gorm:"column:email;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Program is a loyalty program owned by a business; enrollment targets a
// program, and each (customer, program) pair backs at most one card.
type Program struct {
	ID         string    `gorm:"column:id;primaryKey"`
	BusinessID string    `gorm:"column:business_id;index;not null"`
	Name       string    `gorm:"column:name;not null"`
	Slug       string    `gorm:"column:slug;index"`
	Active     bool      `gorm:"column:active;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
