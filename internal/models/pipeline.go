package models

import (
	"time"

	"gorm.io/gorm"
)

type OpportunityStage string

const (
	StageIdentified         OpportunityStage = "identified"
	StageContacted          OpportunityStage = "contacted"
	StageDiscoveryScheduled OpportunityStage = "discovery_scheduled"
	StageNDASent            OpportunityStage = "nda_sent"
	StageNDASigned          OpportunityStage = "nda_signed"
	StageDiscoveryComplete  OpportunityStage = "discovery_complete"
	StageNegotiation        OpportunityStage = "negotiation"
	StageAgreementSent      OpportunityStage = "agreement_sent"
	StageWon                OpportunityStage = "won"
	StageLost               OpportunityStage = "lost"
	StageDormant            OpportunityStage = "dormant"
)

// ValidStage проверяет, что строка — одна из известных стадий воронки.
func ValidStage(s OpportunityStage) bool {
	switch s {
	case StageIdentified, StageContacted, StageDiscoveryScheduled,
		StageNDASent, StageNDASigned, StageDiscoveryComplete,
		StageNegotiation, StageAgreementSent,
		StageWon, StageLost, StageDormant:
		return true
	}
	return false
}

type Company struct {
	gorm.Model
	Name          string `gorm:"size:255;not null"`
	Website       string `gorm:"size:255"`
	Industry      string `gorm:"size:100"`
	RevenueRange  string `gorm:"size:50"`
	EmployeeCount string `gorm:"size:50"`
	Location      string `gorm:"size:255"`
	Source        string `gorm:"size:255"` // откуда пришёл лид (реферал и т.п.)
	Notes         string `gorm:"type:text"`

	Contacts      []Contact
	Opportunities []Opportunity
}

type Contact struct {
	gorm.Model
	CompanyID *uint
	Company   *Company

	Name            string `gorm:"size:255;not null"`
	Title           string `gorm:"size:255"`
	Email           string `gorm:"size:255"`
	Phone           string `gorm:"size:50"`
	LinkedinURL     string `gorm:"size:255"`
	IsDecisionMaker bool
	Notes           string `gorm:"type:text"`
}

type Opportunity struct {
	gorm.Model
	CompanyID uint
	Company   Company

	PrimaryContactID *uint
	PrimaryContact   *Contact

	Title              string           `gorm:"size:255;not null"`
	Stage              OpportunityStage `gorm:"type:varchar(50);not null"`
	EstimatedValue     float64
	EstimatedCloseDate *time.Time
	LossReason         string `gorm:"type:text"`
	Notes              string `gorm:"type:text"`

	// выставляются ровно один раз при конверсии; после этого конверсия
	// не перезапускается, какие бы стадии ни выставлялись дальше
	ConvertedClientID     *uint
	ConvertedEngagementID *uint `gorm:"uniqueIndex"`

	// атрибуция реферала: какой завершённый проект привёл этот лид
	ReferredByEngagementID *uint
}
