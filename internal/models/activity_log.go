package models

import "time"

// ActivityLog — журнал действий по проекту: кто, что и с какими деталями.
type ActivityLog struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	EngagementID uint `gorm:"index"`

	Actor   string `gorm:"size:50;not null"` // "partner", "client", "system"
	Action  string `gorm:"size:100;not null"`
	Details string `gorm:"type:text"` // JSON с подробностями
}
