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

// PhaseNames — фиксированная методология из восьми фаз.
var PhaseNames = map[int]string{
	0: "Proposal & Engagement Setup",
	1: "Data Intake & Financial Baseline",
	2: "Leadership Interviews",
	3: "Profit Leak Quantification",
	4: "Optimization Analysis",
	5: "Report Assembly + Retainer",
	6: "Quality Control",
	7: "Engagement Close & Archive",
}

// фазы-ревью: переход дальше требует явного подтверждения партнёра
var reviewGatePhases = map[int]bool{1: true, 3: true, 6: true, 7: true}

func IsReviewGate(phase int) bool { return reviewGatePhases[phase] }

type phaseOutputTemplate struct {
	Phase               int
	OutputNumber        int
	Name                string
	FileType            string
	Destination         string
	IsReviewGate        bool
	IsClientDeliverable bool
	Wave                int // 0 = вне волн
}

// 23 ожидаемых результата по восьми фазам; шаблон один на все проекты.
var phaseOutputTemplates = []phaseOutputTemplate{
	{0, 1, "Engagement Proposal", "docx", "00_Engagement_Info", false, false, 0},
	{0, 2, "Engagement Agreement", "docx", "00_Engagement_Info", false, false, 0},
	{0, 3, "Data Request List", "docx", "00_Engagement_Info", false, false, 0},
	{1, 1, "Source Document Registry", "md", "03_Working_Papers", true, false, 0},
	{1, 2, "Preliminary Findings Memo", "docx", "03_Working_Papers", true, false, 0},
	{1, 3, "Data Gap Flag List", "md", "03_Working_Papers", true, false, 0},
	{2, 1, "Interview Synthesis Matrix", "md", "03_Working_Papers", false, false, 0},
	{2, 2, "Workflow Inefficiency Map", "md", "03_Working_Papers", false, false, 0},
	{2, 3, "Updated Data Gap Resolution", "md", "03_Working_Papers", false, false, 0},
	{3, 1, "Profit Leak Quantification Workbook", "xlsx", "03_Working_Papers", true, false, 0},
	{3, 2, "Assumptions & Methodology Memo", "md", "03_Working_Papers", true, false, 0},
	{3, 3, "Progress Update for Partners", "md", "03_Working_Papers", true, false, 0},
	{4, 1, "Operational Bottleneck Analysis", "docx", "03_Working_Papers", false, false, 0},
	{4, 2, "Automation & Optimization Recommendations", "md", "03_Working_Papers", false, false, 0},
	{4, 3, "Implementation Prerequisites", "md", "03_Working_Papers", false, false, 0},
	{5, 1, "Executive Summary", "docx", "04_Deliverables", false, true, 1},
	{5, 2, "Full Diagnostic Report", "docx", "04_Deliverables", false, true, 1},
	{5, 3, "Presentation Deck", "pptx", "04_Deliverables", false, true, 2},
	{5, 4, "90-Day Implementation Roadmap", "docx", "04_Deliverables", false, true, 1},
	{5, 5, "Phase 2 Retainer Proposal", "docx", "03_Working_Papers", false, false, 2},
	{6, 1, "Citation Audit Report", "docx", "05_QC", true, false, 0},
	{7, 1, "Engagement Completion Manifest", "md", "05_QC", true, false, 0},
	{7, 2, "Lessons Learned Memo", "md", "03_Working_Papers", true, false, 0},
}

// соответствие результатов фазы 5 клиентским материалам
var outputNameToDeliverable = map[string]models.DeliverableType{
	"Executive Summary":                   models.DeliverableExecSummary,
	"Full Diagnostic Report":              models.DeliverableFullReport,
	"Presentation Deck":                   models.DeliverableDeck,
	"90-Day Implementation Roadmap":       models.DeliverableRoadmap,
	"Phase 2 Retainer Proposal":           models.DeliverableRetainerProposal,
	"Profit Leak Quantification Workbook": models.DeliverableWorkbook,
}

var allowedOutputExtensions = map[string]bool{
	".docx": true, ".xlsx": true, ".pptx": true, ".pdf": true, ".md": true,
}

const maxOutputFileSize = 50 * 1024 * 1024

// seedPhaseOutputs заводит все 23 записи результатов. Идемпотентно:
// если хоть одна запись уже есть, шаблон не пересоздаётся.
func seedPhaseOutputs(tx *gorm.DB, engagementID uint) error {
	var count int64
	if err := tx.Model(&models.PhaseOutput{}).Where("engagement_id = ?", engagementID).Count(&count).Error; err != nil {
		return Internal(err.Error())
	}
	if count > 0 {
		return nil
	}
	for _, t := range phaseOutputTemplates {
		po := models.PhaseOutput{
			EngagementID:        engagementID,
			Phase:               t.Phase,
			OutputNumber:        t.OutputNumber,
			Name:                t.Name,
			FileType:            t.FileType,
			Destination:         t.Destination,
			IsReviewGate:        t.IsReviewGate,
			IsClientDeliverable: t.IsClientDeliverable,
			Status:              models.OutputPending,
		}
		if t.Wave > 0 {
			w := t.Wave
			po.Wave = &w
		}
		if err := tx.Create(&po).Error; err != nil {
			return Internal("Ошибка создания шаблона результатов")
		}
	}
	return nil
}

// SeedPhaseOutputs — публичная идемпотентная версия для ручного вызова.
func SeedPhaseOutputs(db *gorm.DB, engagementID uint) (int, error) {
	if _, err := getEngagement(db, engagementID); err != nil {
		return 0, err
	}
	var before int64
	if err := db.Model(&models.PhaseOutput{}).Where("engagement_id = ?", engagementID).Count(&before).Error; err != nil {
		return 0, Internal(err.Error())
	}
	if before > 0 {
		return 0, nil
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := seedPhaseOutputs(tx, engagementID); err != nil {
			return err
		}
		database.LogActivity(tx, engagementID, "system", "phase_outputs_seeded", map[string]any{
			"count": len(phaseOutputTemplates),
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(phaseOutputTemplates), nil
}

// ListPhaseOutputs возвращает результаты проекта по фазам. phase < 0 — все фазы.
func ListPhaseOutputs(db *gorm.DB, engagementID uint, phase int) ([]models.PhaseOutput, error) {
	if _, err := getEngagement(db, engagementID); err != nil {
		return nil, err
	}
	q := db.Where("engagement_id = ?", engagementID)
	if phase >= 0 {
		q = q.Where("phase = ?", phase)
	}
	var outputs []models.PhaseOutput
	if err := q.Order("phase, output_number").Find(&outputs).Error; err != nil {
		return nil, Internal(err.Error())
	}
	return outputs, nil
}

// UploadOutput сохраняет файл результата. Повторная загрузка заменяет файл
// и сбрасывает принятие: accepted возвращается в uploaded.
func UploadOutput(db *gorm.DB, store *collab.FileStore, outputID uint, filename string, content []byte) (*models.PhaseOutput, error) {
	var output models.PhaseOutput
	if err := db.First(&output, outputID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Результат фазы не найден")
		}
		return nil, Internal(err.Error())
	}

	eng, err := getEngagement(db, output.EngagementID)
	if err != nil {
		return nil, err
	}
	if err := guardOpen(eng); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedOutputExtensions[ext] {
		return nil, Validation("Недопустимый тип файла: " + ext)
	}
	if len(content) > maxOutputFileSize {
		return nil, Validation("Файл больше 50 МБ")
	}

	safeName := strings.NewReplacer(" ", "_", "/", "_").Replace(output.Name)
	storagePath := fmt.Sprintf("%d/%s/%s%s", output.EngagementID, output.Destination, safeName, ext)

	if output.StoragePath != "" && output.StoragePath != storagePath {
		_ = store.Remove(output.StoragePath)
	}
	if err := store.Save(storagePath, content); err != nil {
		return nil, Internal("Ошибка сохранения файла: " + err.Error())
	}

	now := time.Now()
	output.StoragePath = storagePath
	output.FileSize = int64(len(content))
	output.Status = models.OutputUploaded
	output.UploadedAt = &now
	output.AcceptedAt = nil
	output.AcceptedBy = ""
	if err := db.Save(&output).Error; err != nil {
		return nil, Internal("Ошибка обновления результата")
	}

	database.LogActivity(db, output.EngagementID, "partner", "phase_output_uploaded", map[string]any{
		"output_id": output.ID,
		"phase":     output.Phase,
		"name":      output.Name,
		"filename":  filename,
	})
	return &output, nil
}

// AcceptOutput принимает загруженный результат (только из статуса uploaded).
func AcceptOutput(db *gorm.DB, outputID uint, acceptedBy string) (*models.PhaseOutput, error) {
	var output models.PhaseOutput
	if err := db.First(&output, outputID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Результат фазы не найден")
		}
		return nil, Internal(err.Error())
	}

	eng, err := getEngagement(db, output.EngagementID)
	if err != nil {
		return nil, err
	}
	if err := guardOpen(eng); err != nil {
		return nil, err
	}

	if output.Status != models.OutputUploaded {
		return nil, Conflict("Принять можно только загруженный результат (сейчас: " + string(output.Status) + ")")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := acceptOne(tx, &output, acceptedBy); err != nil {
			return err
		}
		database.LogActivity(tx, output.EngagementID, "partner", "phase_output_accepted", map[string]any{
			"output_id": output.ID,
			"phase":     output.Phase,
			"name":      output.Name,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &output, nil
}

// AcceptAllOutputs принимает все загруженные результаты фазы разом.
func AcceptAllOutputs(db *gorm.DB, engagementID uint, phase int, acceptedBy string) ([]string, error) {
	eng, err := getEngagement(db, engagementID)
	if err != nil {
		return nil, err
	}
	if err := guardOpen(eng); err != nil {
		return nil, err
	}

	var outputs []models.PhaseOutput
	if err := db.Where("engagement_id = ? AND phase = ? AND status = ?",
		engagementID, phase, models.OutputUploaded).Find(&outputs).Error; err != nil {
		return nil, Internal(err.Error())
	}
	if len(outputs) == 0 {
		return nil, Validation("Нет загруженных результатов для принятия в этой фазе")
	}

	var accepted []string
	err = db.Transaction(func(tx *gorm.DB) error {
		for i := range outputs {
			if err := acceptOne(tx, &outputs[i], acceptedBy); err != nil {
				return err
			}
			accepted = append(accepted, outputs[i].Name)
		}
		database.LogActivity(tx, engagementID, "partner", "phase_outputs_batch_accepted", map[string]any{
			"phase":    phase,
			"accepted": accepted,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

func acceptOne(tx *gorm.DB, output *models.PhaseOutput, acceptedBy string) error {
	now := time.Now()
	output.Status = models.OutputAccepted
	output.AcceptedAt = &now
	output.AcceptedBy = acceptedBy
	if err := tx.Save(output).Error; err != nil {
		return Internal("Ошибка принятия результата")
	}
	if output.IsClientDeliverable && output.Phase == 5 {
		syncDeliverableApproval(tx, output)
	}
	return nil
}

// syncDeliverableApproval переводит соответствующий клиентский материал в
// approved, когда принят результат фазы 5. Уже выданные материалы не трогаем.
func syncDeliverableApproval(tx *gorm.DB, output *models.PhaseOutput) {
	dtype, ok := outputNameToDeliverable[output.Name]
	if !ok {
		return
	}
	var d models.Deliverable
	if err := tx.Where("engagement_id = ? AND type = ?", output.EngagementID, dtype).First(&d).Error; err != nil {
		return
	}
	if d.Status == models.DeliverableReleased {
		return
	}
	now := time.Now()
	d.Status = models.DeliverableApproved
	d.ApprovedAt = &now
	d.Filename = filepath.Base(output.StoragePath)
	d.StoragePath = output.StoragePath
	_ = tx.Save(&d).Error
}
