package models

import (
	"time"

	"gorm.io/gorm"
)

type PhaseOutputStatus string

const (
	OutputPending  PhaseOutputStatus = "pending"
	OutputUploaded PhaseOutputStatus = "uploaded"
	OutputAccepted PhaseOutputStatus = "accepted"
)

// PhaseOutput — один ожидаемый результат фазы по фиксированному шаблону.
type PhaseOutput struct {
	gorm.Model
	EngagementID uint `gorm:"index:idx_phase_output,unique"`

	Phase        int    `gorm:"not null;index:idx_phase_output,unique"`
	OutputNumber int    `gorm:"not null;index:idx_phase_output,unique"`
	Name         string `gorm:"size:255;not null"`
	FileType     string `gorm:"size:10"`
	Destination  string `gorm:"size:100"`

	IsReviewGate        bool
	IsClientDeliverable bool
	Wave                *int

	Status      PhaseOutputStatus `gorm:"type:varchar(20);not null"`
	StoragePath string            `gorm:"size:512"`
	FileSize    int64
	UploadedAt  *time.Time
	AcceptedAt  *time.Time
	AcceptedBy  string `gorm:"size:255"`
}

// PhaseExecution — запись о каждом подтверждённом прохождении фазы.
type PhaseExecution struct {
	gorm.Model
	EngagementID uint `gorm:"index"`

	Phase           int    `gorm:"not null"`
	Notes           string `gorm:"type:text"`
	ReviewConfirmed bool
}
