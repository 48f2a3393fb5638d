package models

import (
	"time"

	"gorm.io/gorm"
)

type DeliverableType string
type DeliverableStatus string

const (
	DeliverableExecSummary      DeliverableType = "exec_summary"
	DeliverableFullReport       DeliverableType = "full_report"
	DeliverableWorkbook         DeliverableType = "workbook"
	DeliverableRoadmap          DeliverableType = "roadmap"
	DeliverableDeck             DeliverableType = "deck"
	DeliverableRetainerProposal DeliverableType = "retainer_proposal"

	DeliverableDraft    DeliverableStatus = "draft"
	DeliverableApproved DeliverableStatus = "approved"
	DeliverableReleased DeliverableStatus = "released"
)

// Deliverable проходит строго draft → approved → released,
// выдача идёт двумя волнами с дебрифом между ними.
type Deliverable struct {
	gorm.Model
	EngagementID uint `gorm:"index:idx_deliverable,unique"`

	Type DeliverableType `gorm:"type:varchar(50);not null;index:idx_deliverable,unique"`
	Wave int             `gorm:"not null"` // 1 или 2

	Status      DeliverableStatus `gorm:"type:varchar(20);not null"`
	Filename    string            `gorm:"size:255"`
	StoragePath string            `gorm:"size:512"`
	ApprovedAt  *time.Time
	ReleasedAt  *time.Time
}
