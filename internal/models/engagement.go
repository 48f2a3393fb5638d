package models

import (
	"time"

	"gorm.io/gorm"
)

type EngagementStatus string

const (
	StatusIntake            EngagementStatus = "intake"
	StatusNDAPending        EngagementStatus = "nda_pending"
	StatusNDASignedEng      EngagementStatus = "nda_signed"
	StatusDiscoveryDone     EngagementStatus = "discovery_done"
	StatusAgreementPending  EngagementStatus = "agreement_pending"
	StatusAgreementSigned   EngagementStatus = "agreement_signed"
	StatusDocumentsPending  EngagementStatus = "documents_pending"
	StatusDocumentsReceived EngagementStatus = "documents_received"
	StatusPhase0            EngagementStatus = "phase_0"
	StatusPhase1            EngagementStatus = "phase_1"
	StatusPhase2            EngagementStatus = "phase_2"
	StatusPhase3            EngagementStatus = "phase_3"
	StatusPhase4            EngagementStatus = "phase_4"
	StatusPhase5            EngagementStatus = "phase_5"
	StatusPhase6            EngagementStatus = "phase_6"
	StatusPhase7            EngagementStatus = "phase_7"
	StatusPhasesComplete    EngagementStatus = "phases_complete"
	StatusDebrief           EngagementStatus = "debrief"
	StatusWave1Released     EngagementStatus = "wave_1_released"
	StatusWave2Released     EngagementStatus = "wave_2_released"
	StatusClosed            EngagementStatus = "closed"
)

// StatusOrder — единственное место, где задан порядок жизненного цикла.
// Движок продвигает статус только вперёд по этому списку.
var StatusOrder = []EngagementStatus{
	StatusIntake,
	StatusNDAPending,
	StatusNDASignedEng,
	StatusDiscoveryDone,
	StatusAgreementPending,
	StatusAgreementSigned,
	StatusDocumentsPending,
	StatusDocumentsReceived,
	StatusPhase0,
	StatusPhase1,
	StatusPhase2,
	StatusPhase3,
	StatusPhase4,
	StatusPhase5,
	StatusPhase6,
	StatusPhase7,
	StatusPhasesComplete,
	StatusDebrief,
	StatusWave1Released,
	StatusWave2Released,
	StatusClosed,
}

// StatusIndex возвращает позицию статуса в жизненном цикле или -1.
func StatusIndex(s EngagementStatus) int {
	for i, st := range StatusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// PhaseStatus — статус для номера фазы 0..7.
func PhaseStatus(phase int) EngagementStatus {
	switch phase {
	case 0:
		return StatusPhase0
	case 1:
		return StatusPhase1
	case 2:
		return StatusPhase2
	case 3:
		return StatusPhase3
	case 4:
		return StatusPhase4
	case 5:
		return StatusPhase5
	case 6:
		return StatusPhase6
	case 7:
		return StatusPhase7
	}
	return ""
}

// IsPhaseStatus — находится ли проект в активной фазе.
func IsPhaseStatus(s EngagementStatus) bool {
	idx := StatusIndex(s)
	return idx >= StatusIndex(StatusPhase0) && idx <= StatusIndex(StatusPhase7)
}

const MaxPhase = 7

type Engagement struct {
	gorm.Model
	ClientID uint
	Client   Client

	Status EngagementStatus `gorm:"type:varchar(50);not null"`
	Phase  int              `gorm:"not null;default:0"` // всегда в пределах [0,7]

	Fee           float64
	StartDate     *time.Time
	TargetEndDate *time.Time
	PartnerLead   string `gorm:"size:255"`

	DiscoveryNotes string `gorm:"type:text"`
	PainPoints     string `gorm:"type:text"`

	DebriefComplete bool `gorm:"not null;default:false"`
	ArchivedAt      *time.Time

	// токены для клиентских порталов (загрузка документов / выдача материалов)
	UploadToken      string `gorm:"size:64;uniqueIndex"`
	DeliverableToken string `gorm:"size:64;index"`
}

// InterviewContact — до трёх контактов для интервью, нумерация с 1.
type InterviewContact struct {
	gorm.Model
	EngagementID uint `gorm:"index"`

	ContactNumber int    `gorm:"not null"`
	Name          string `gorm:"size:255;not null"`
	Title         string `gorm:"size:255"`
	Email         string `gorm:"size:255"`
	Phone         string `gorm:"size:50"`
	LinkedinURL   string `gorm:"size:255"`
	ContextNotes  string `gorm:"type:text"`
}

type LegalDocumentType string
type LegalDocumentStatus string

const (
	LegalNDA       LegalDocumentType = "nda"
	LegalAgreement LegalDocumentType = "agreement"

	LegalPending LegalDocumentStatus = "pending"
	LegalSent    LegalDocumentStatus = "sent"
	LegalSigned  LegalDocumentStatus = "signed"
)

// LegalDocument — одна строка на проект и тип (NDA / договор).
type LegalDocument struct {
	gorm.Model
	EngagementID uint `gorm:"index:idx_legal_doc,unique"`

	Type       LegalDocumentType   `gorm:"type:varchar(20);not null;index:idx_legal_doc,unique"`
	Status     LegalDocumentStatus `gorm:"type:varchar(20);not null"`
	EnvelopeID string              `gorm:"size:255"` // идентификатор конверта у e-sign провайдера
	SentAt     *time.Time
	SignedAt   *time.Time
}
