package models

import (
	"time"

	"gorm.io/gorm"
)

type FollowUpTouchpoint string
type FollowUpStatus string

const (
	Touchpoint30Day FollowUpTouchpoint = "30_day"
	Touchpoint60Day FollowUpTouchpoint = "60_day"
	Touchpoint90Day FollowUpTouchpoint = "90_day"

	FollowUpScheduled FollowUpStatus = "scheduled"
	FollowUpSent      FollowUpStatus = "sent"
	FollowUpSkipped   FollowUpStatus = "skipped"
	FollowUpSnoozed   FollowUpStatus = "snoozed"
)

// FollowUp — пост-проектный тачпоинт. Три записи (30/60/90 дней)
// создаются ровно один раз как побочный эффект архивации.
type FollowUp struct {
	gorm.Model
	EngagementID uint `gorm:"index:idx_follow_up,unique"`
	ClientID     uint `gorm:"index"`

	Touchpoint    FollowUpTouchpoint `gorm:"type:varchar(20);not null;index:idx_follow_up,unique"`
	Status        FollowUpStatus     `gorm:"type:varchar(20);not null"`
	ScheduledDate time.Time          `gorm:"not null"`

	SubjectTemplate string `gorm:"type:text"`
	BodyTemplate    string `gorm:"type:text"`
	ActualSubject   string `gorm:"type:text"`
	ActualBody      string `gorm:"type:text"`
	Notes           string `gorm:"type:text"`

	SnoozedUntil *time.Time
	SentAt       *time.Time
	SkippedAt    *time.Time
}
