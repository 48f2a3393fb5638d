package workflow

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"engagement-crm/internal/collab"
	"engagement-crm/internal/database"
	"engagement-crm/internal/models"

	"gorm.io/gorm"
)

// шесть стандартных клиентских материалов: четыре в первой волне,
// два (дек и ретейнер) — во второй, после дебрифа
var deliverableWaves = map[int][]models.DeliverableType{
	1: {
		models.DeliverableExecSummary,
		models.DeliverableFullReport,
		models.DeliverableWorkbook,
		models.DeliverableRoadmap,
	},
	2: {
		models.DeliverableDeck,
		models.DeliverableRetainerProposal,
	},
}

var deliverableDisplayNames = map[models.DeliverableType]string{
	models.DeliverableExecSummary:      "Executive Summary",
	models.DeliverableFullReport:       "Full Diagnostic Report",
	models.DeliverableWorkbook:         "Profit Leak Workbook",
	models.DeliverableRoadmap:          "90-Day Implementation Roadmap",
	models.DeliverableDeck:             "Presentation Deck",
	models.DeliverableRetainerProposal: "Phase 2 Retainer Proposal",
}

var allowedDeliverableExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".xlsx": true, ".pptx": true, ".csv": true,
}

const deliverableTokenTTL = 30 * 24 * time.Hour

// seedDeliverables заводит шесть записей материалов в статусе draft.
// Частичный набор добивается недостающими типами, дубликаты не создаются.
func seedDeliverables(tx *gorm.DB, engagementID uint) error {
	for wave, types := range deliverableWaves {
		for _, dtype := range types {
			d := models.Deliverable{
				EngagementID: engagementID,
				Type:         dtype,
				Wave:         wave,
				Status:       models.DeliverableDraft,
			}
			if _, err := database.CreateIfAbsent(tx, map[string]any{
				"engagement_id": engagementID,
				"type":          dtype,
			}, &d); err != nil {
				return Internal("Ошибка создания материалов")
			}
		}
	}
	return nil
}

// EnsureDeliverables — идемпотентная публичная версия посева материалов.
func EnsureDeliverables(db *gorm.DB, engagementID uint) ([]models.Deliverable, error) {
	if _, err := getEngagement(db, engagementID); err != nil {
		return nil, err
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return seedDeliverables(tx, engagementID)
	}); err != nil {
		return nil, err
	}
	var all []models.Deliverable
	if err := db.Where("engagement_id = ?", engagementID).Order("wave, type").Find(&all).Error; err != nil {
		return nil, Internal(err.Error())
	}
	return all, nil
}

// UploadDeliverable сохраняет файл материала; загрузка не меняет статус.
func UploadDeliverable(db *gorm.DB, store *collab.FileStore, engagementID, deliverableID uint, filename string, content []byte) (*models.Deliverable, error) {
	var d models.Deliverable
	if err := db.Where("id = ? AND engagement_id = ?", deliverableID, engagementID).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Материал не найден в этом проекте")
		}
		return nil, Internal(err.Error())
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedDeliverableExtensions[ext] {
		return nil, Validation("Недопустимый тип файла: " + ext)
	}
	if len(content) > maxOutputFileSize {
		return nil, Validation("Файл больше 50 МБ")
	}

	storagePath := fmt.Sprintf("%d/deliverables/%s%s", engagementID, d.Type, ext)
	if d.StoragePath != "" && d.StoragePath != storagePath {
		_ = store.Remove(d.StoragePath)
	}
	if err := store.Save(storagePath, content); err != nil {
		return nil, Internal("Ошибка сохранения файла: " + err.Error())
	}

	d.StoragePath = storagePath
	d.Filename = filename
	if err := db.Save(&d).Error; err != nil {
		return nil, Internal("Ошибка обновления материала")
	}

	database.LogActivity(db, engagementID, "partner", "deliverable_uploaded", map[string]any{
		"deliverable_id":   d.ID,
		"deliverable_type": string(d.Type),
		"filename":         filename,
	})
	return &d, nil
}

// ApproveDeliverable переводит материал из черновика в approved. Без файла нельзя.
func ApproveDeliverable(db *gorm.DB, deliverableID uint) (*models.Deliverable, error) {
	var d models.Deliverable
	if err := db.First(&d, deliverableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Материал не найден")
		}
		return nil, Internal(err.Error())
	}

	eng, err := getEngagement(db, d.EngagementID)
	if err != nil {
		return nil, err
	}
	if err := guardOpen(eng); err != nil {
		return nil, err
	}

	if d.Status != models.DeliverableDraft {
		return nil, Conflict("Утвердить можно только черновик (сейчас: " + string(d.Status) + ")")
	}
	if d.StoragePath == "" {
		return nil, Validation("Нельзя утвердить материал без загруженного файла")
	}

	now := time.Now()
	d.Status = models.DeliverableApproved
	d.ApprovedAt = &now
	if err := db.Save(&d).Error; err != nil {
		return nil, Internal("Ошибка утверждения материала")
	}

	database.LogActivity(db, d.EngagementID, "partner", "deliverable_approved", map[string]any{
		"deliverable_id":   d.ID,
		"deliverable_type": string(d.Type),
	})
	return &d, nil
}

// ReleaseWave1 выдаёт первую волну клиенту. Требует, чтобы все материалы
// волны были утверждены; выдача переводит проект в wave_1_released.
func ReleaseWave1(db *gorm.DB, clients *collab.Clients, engagementID uint) (*models.Engagement, error) {
	return releaseWave(db, clients, engagementID, 1, models.StatusWave1Released, nil)
}

// MarkDebriefComplete фиксирует проведённый дебриф — ворота второй волны.
// Дебриф возможен только после завершения всех фаз; флаг пишется отдельным
// апдейтом, потому что смена статуса может оказаться no-op (дебриф после
// выдачи первой волны статус назад не двигает).
func MarkDebriefComplete(db *gorm.DB, engagementID uint) (*models.Engagement, error) {
	eng, err := getEngagement(db, engagementID)
	if err != nil {
		return nil, err
	}
	if err := guardOpen(eng); err != nil {
		return nil, err
	}
	if models.StatusIndex(eng.Status) < models.StatusIndex(models.StatusPhasesComplete) {
		return nil, Conflict("Дебриф проводится после завершения фаз (сейчас: " + string(eng.Status) + ")")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		eng.DebriefComplete = true
		if err := tx.Model(eng).Update("debrief_complete", true).Error; err != nil {
			return Internal("Ошибка обновления проекта")
		}
		if err := advanceStatus(tx, eng, models.StatusDebrief); err != nil {
			return Internal("Ошибка обновления статуса")
		}
		database.LogActivity(tx, eng.ID, "partner", "debrief_complete", nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return eng, nil
}

// ReleaseWave2 выдаёт дек и ретейнер-предложение. Только после дебрифа.
func ReleaseWave2(db *gorm.DB, clients *collab.Clients, engagementID uint) (*models.Engagement, error) {
	guard := func(eng *models.Engagement) error {
		if !eng.DebriefComplete {
			return Validation("Вторая волна выдаётся только после завершённого дебрифа")
		}
		return nil
	}
	return releaseWave(db, clients, engagementID, 2, models.StatusWave2Released, guard)
}

func releaseWave(db *gorm.DB, clients *collab.Clients, engagementID uint, wave int, target models.EngagementStatus, extraGuard func(*models.Engagement) error) (*models.Engagement, error) {
	eng, err := getEngagement(db, engagementID)
	if err != nil {
		return nil, err
	}
	if err := guardOpen(eng); err != nil {
		return nil, err
	}
	if extraGuard != nil {
		if err := extraGuard(eng); err != nil {
			return nil, err
		}
	}

	var batch []models.Deliverable
	if err := db.Where("engagement_id = ? AND wave = ?", engagementID, wave).Find(&batch).Error; err != nil {
		return nil, Internal(err.Error())
	}
	if len(batch) == 0 {
		return nil, Validation(fmt.Sprintf("Материалы волны %d не найдены", wave))
	}

	unapproved := 0
	for _, d := range batch {
		if d.Status != models.DeliverableApproved {
			unapproved++
		}
	}
	if unapproved > 0 {
		return nil, Validation(fmt.Sprintf("Не утверждено материалов волны %d: %d", wave, unapproved))
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for i := range batch {
			batch[i].Status = models.DeliverableReleased
			batch[i].ReleasedAt = &now
			if err := tx.Save(&batch[i]).Error; err != nil {
				return Internal("Ошибка выдачи материалов")
			}
		}
		if err := advanceStatus(tx, eng, target); err != nil {
			return Internal("Ошибка обновления статуса")
		}
		database.LogActivity(tx, engagementID, "partner", fmt.Sprintf("wave%d_released", wave), nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if clients != nil && eng.Client.PrimaryContactEmail != "" {
		_ = collab.Dispatch(db, engagementID, "email", fmt.Sprintf("wave%d_released", wave), map[string]any{
			"to": eng.Client.PrimaryContactEmail,
		}, func() error {
			subject := fmt.Sprintf("Your deliverables are ready — %s", eng.Client.CompanyName)
			body := fmt.Sprintf("Hi %s,\n\nA new set of deliverables has been released. Access them here: /deliverables/%s\n",
				eng.Client.PrimaryContactName, eng.DeliverableToken)
			return clients.Email.Send(eng.Client.PrimaryContactEmail, subject, body)
		})
	}

	return eng, nil
}

// PortalDeliverable — материал в клиентском портале.
type PortalDeliverable struct {
	Type        string     `json:"type"`
	DisplayName string     `json:"display_name"`
	Filename    string     `json:"filename"`
	StoragePath string     `json:"storage_path"`
	ReleasedAt  *time.Time `json:"released_at"`
}

type PortalView struct {
	CompanyName   string              `json:"company_name"`
	EngagementID  uint                `json:"engagement_id"`
	StartDate     *time.Time          `json:"start_date"`
	TargetEndDate *time.Time          `json:"target_end_date"`
	Wave1         []PortalDeliverable `json:"wave_1"`
	Wave2         []PortalDeliverable `json:"wave_2"`
}

// PortalByToken — клиентский портал материалов по токену. Показываются
// только выданные (released) материалы; токен живёт 30 дней.
func PortalByToken(db *gorm.DB, token string) (*PortalView, error) {
	if token == "" {
		return nil, Validation("Токен не задан")
	}
	var eng models.Engagement
	if err := db.Preload("Client").Where("deliverable_token = ?", token).First(&eng).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Ссылка не найдена")
		}
		return nil, Internal(err.Error())
	}
	if time.Since(eng.CreatedAt) > deliverableTokenTTL {
		return nil, Validation("Срок действия ссылки на материалы истёк")
	}

	var all []models.Deliverable
	if err := db.Where("engagement_id = ? AND status = ?", eng.ID, models.DeliverableReleased).
		Order("wave, type").Find(&all).Error; err != nil {
		return nil, Internal(err.Error())
	}

	view := &PortalView{
		CompanyName:   eng.Client.CompanyName,
		EngagementID:  eng.ID,
		StartDate:     eng.StartDate,
		TargetEndDate: eng.TargetEndDate,
	}
	for _, d := range all {
		pd := PortalDeliverable{
			Type:        string(d.Type),
			DisplayName: deliverableDisplayNames[d.Type],
			Filename:    d.Filename,
			StoragePath: d.StoragePath,
			ReleasedAt:  d.ReleasedAt,
		}
		switch d.Wave {
		case 1:
			view.Wave1 = append(view.Wave1, pd)
		case 2:
			view.Wave2 = append(view.Wave2, pd)
		}
	}
	return view, nil
}
