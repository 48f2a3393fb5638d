package workflow

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"engagement-crm/internal/collab"
	"engagement-crm/internal/database"
	"engagement-crm/internal/models"

	"gorm.io/gorm"
)

// ArchiveResult — итог архивации проекта.
type ArchiveResult struct {
	FilesMoved       int    `json:"files_moved"`
	ManifestPath     string `json:"manifest_path"`
	FollowUpsCreated int    `json:"follow_ups_created"`
}

type manifestPhase struct {
	Phase           int       `json:"phase"`
	ExecutedAt      time.Time `json:"executed_at"`
	ReviewConfirmed bool      `json:"review_confirmed"`
}

type manifestDeliverable struct {
	Type       string     `json:"type"`
	Wave       int        `json:"wave"`
	Status     string     `json:"status"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

type manifestDocument struct {
	Category   string    `json:"category"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type manifestLegal struct {
	Type     string     `json:"type"`
	Status   string     `json:"status"`
	SignedAt *time.Time `json:"signed_at,omitempty"`
}

type completionManifest struct {
	EngagementID uint `json:"engagement_id"`
	Client       struct {
		CompanyName         string `json:"company_name"`
		PrimaryContactName  string `json:"primary_contact_name"`
		PrimaryContactEmail string `json:"primary_contact_email"`
	} `json:"client"`
	Engagement struct {
		StartDate     *time.Time `json:"start_date"`
		TargetEndDate *time.Time `json:"target_end_date"`
		PartnerLead   string     `json:"partner_lead"`
		Fee           float64    `json:"fee"`
		FinalStatus   string     `json:"final_status"`
	} `json:"engagement"`
	PhasesExecuted    []manifestPhase       `json:"phases_executed"`
	Deliverables      []manifestDeliverable `json:"deliverables"`
	DocumentsReceived []manifestDocument    `json:"documents_received"`
	LegalDocuments    []manifestLegal       `json:"legal_documents"`
	ArchivedAt        time.Time             `json:"archived_at"`
	ArchivedBy        string                `json:"archived_by"`
}

// Archive закрывает проект: переносит файлы в холодный архив, пишет
// манифест, переводит статус в closed и заводит фоллоу-апы. Архивировать
// можно только с вехи phases_complete и позже; повторно — нельзя.
func Archive(db *gorm.DB, clients *collab.Clients, engagementID uint, archivedBy string) (*ArchiveResult, error) {
	eng, err := getEngagement(db, engagementID)
	if err != nil {
		return nil, err
	}
	if eng.Status == models.StatusClosed {
		return nil, Conflict("Проект уже архивирован")
	}
	if models.StatusIndex(eng.Status) < models.StatusIndex(models.StatusPhasesComplete) {
		return nil, Validation("Архивация доступна только со статуса phases_complete и позже")
	}

	res := &ArchiveResult{}

	// файлы уходят в архив до смены статуса: если перенос упал,
	// проект остаётся открытым и архивацию можно повторить
	prefix := strconv.FormatUint(uint64(eng.ID), 10)
	moved, err := clients.Store.MoveToArchive(prefix)
	if err != nil {
		return nil, Internal("Ошибка переноса файлов в архив: " + err.Error())
	}
	res.FilesMoved = len(moved)

	manifest, err := buildManifest(db, eng, archivedBy)
	if err != nil {
		return nil, err
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, Internal(err.Error())
	}
	res.ManifestPath = prefix + "/completion_manifest.json"
	if err := clients.Store.WriteArchive(res.ManifestPath, manifestJSON); err != nil {
		return nil, Internal("Ошибка записи манифеста: " + err.Error())
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		eng.ArchivedAt = &now
		if err := advanceStatus(tx, eng, models.StatusClosed); err != nil {
			return Internal("Ошибка обновления статуса")
		}

		created, err := createFollowUpSequence(tx, eng)
		if err != nil {
			return err
		}
		res.FollowUpsCreated = created

		database.LogActivity(tx, eng.ID, "partner", "engagement_archived", map[string]any{
			"archived_by": archivedBy,
			"files_moved": res.FilesMoved,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if clients.PartnerEmail != "" {
		dispatchErr := collab.Dispatch(db, eng.ID, "email", "engagement_archived", nil, func() error {
			return clients.Email.Send(clients.PartnerEmail,
				fmt.Sprintf("Engagement archived: %s", eng.Client.CompanyName),
				fmt.Sprintf("Engagement for %s is closed and archived (%d files moved).\n",
					eng.Client.CompanyName, res.FilesMoved))
		})
		if dispatchErr != nil {
			log.Printf("archive notification failed for engagement %d: %v", eng.ID, dispatchErr)
		}
	}

	return res, nil
}

func buildManifest(db *gorm.DB, eng *models.Engagement, archivedBy string) (*completionManifest, error) {
	m := &completionManifest{
		EngagementID: eng.ID,
		ArchivedAt:   time.Now(),
		ArchivedBy:   archivedBy,
	}
	m.Client.CompanyName = eng.Client.CompanyName
	m.Client.PrimaryContactName = eng.Client.PrimaryContactName
	m.Client.PrimaryContactEmail = eng.Client.PrimaryContactEmail
	m.Engagement.StartDate = eng.StartDate
	m.Engagement.TargetEndDate = eng.TargetEndDate
	m.Engagement.PartnerLead = eng.PartnerLead
	m.Engagement.Fee = eng.Fee
	m.Engagement.FinalStatus = string(models.StatusClosed)

	var execs []models.PhaseExecution
	if err := db.Where("engagement_id = ?", eng.ID).Order("phase").Find(&execs).Error; err != nil {
		return nil, Internal(err.Error())
	}
	for _, pe := range execs {
		m.PhasesExecuted = append(m.PhasesExecuted, manifestPhase{
			Phase:           pe.Phase,
			ExecutedAt:      pe.CreatedAt,
			ReviewConfirmed: pe.ReviewConfirmed,
		})
	}

	var deliverables []models.Deliverable
	if err := db.Where("engagement_id = ?", eng.ID).Order("wave, type").Find(&deliverables).Error; err != nil {
		return nil, Internal(err.Error())
	}
	for _, d := range deliverables {
		m.Deliverables = append(m.Deliverables, manifestDeliverable{
			Type:       string(d.Type),
			Wave:       d.Wave,
			Status:     string(d.Status),
			ApprovedAt: d.ApprovedAt,
			ReleasedAt: d.ReleasedAt,
		})
	}

	var docs []models.Document
	if err := db.Where("engagement_id = ?", eng.ID).Find(&docs).Error; err != nil {
		return nil, Internal(err.Error())
	}
	for _, d := range docs {
		m.DocumentsReceived = append(m.DocumentsReceived, manifestDocument{
			Category:   d.Category,
			Filename:   d.Filename,
			UploadedAt: d.UploadedAt,
		})
	}

	var legal []models.LegalDocument
	if err := db.Where("engagement_id = ?", eng.ID).Find(&legal).Error; err != nil {
		return nil, Internal(err.Error())
	}
	for _, l := range legal {
		m.LegalDocuments = append(m.LegalDocuments, manifestLegal{
			Type:     string(l.Type),
			Status:   string(l.Status),
			SignedAt: l.SignedAt,
		})
	}

	return m, nil
}
