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

type checklistItem struct {
	Key      string
	Category string
	Name     string
	Notes    string
	Priority string // required / if_available / optional
}

// 25 пунктов чеклиста документов; 12 обязательных, шесть категорий.
var uploadChecklist = []checklistItem{
	{"income_stmt_ytd", "financial", "Income Statement (YTD + prior 2 years)", "P&L by month preferred", "required"},
	{"balance_sheet", "financial", "Balance Sheet (current + prior 2 years)", "", "required"},
	{"cash_flow_stmt", "financial", "Cash Flow Statement (prior 2 years)", "", "required"},
	{"trial_balance", "financial", "Trial Balance (current period)", "", "required"},
	{"chart_of_accounts", "financial", "Chart of Accounts", "", "required"},
	{"payroll_register", "payroll", "Payroll Register (last 12 months)", "Summary by employee", "required"},
	{"benefits_summary", "payroll", "Benefits Summary / Enrollment", "Health, dental, 401k, etc.", "required"},
	{"contractor_list", "payroll", "1099 Contractor List + Payments", "", "if_available"},
	{"org_chart", "payroll", "Organizational Chart", "", "if_available"},
	{"ap_aging", "vendor", "Accounts Payable Aging Report", "", "required"},
	{"vendor_list", "vendor", "Vendor List with Annual Spend", "Top 20 vendors minimum", "required"},
	{"credit_card_stmts", "vendor", "Credit Card Statements (last 6 months)", "", "if_available"},
	{"recurring_contracts", "vendor", "Recurring Service Contracts / Subscriptions", "SaaS, leases, retainers", "if_available"},
	{"ar_aging", "revenue", "Accounts Receivable Aging Report", "", "required"},
	{"revenue_by_customer", "revenue", "Revenue by Customer / Segment (last 12 months)", "", "required"},
	{"pricing_schedule", "revenue", "Pricing Schedule / Rate Card", "", "if_available"},
	{"sales_pipeline", "revenue", "Sales Pipeline / Backlog Report", "", "optional"},
	{"tech_stack", "operations", "Technology / Software Stack List", "With monthly costs", "if_available"},
	{"insurance_summary", "operations", "Insurance Policies Summary", "GL, E&O, D&O, cyber", "optional"},
	{"lease_agreements", "operations", "Lease Agreements (office, equipment)", "", "optional"},
	{"fleet_schedule", "operations", "Vehicle / Fleet Schedule", "", "optional"},
	{"tax_returns", "legal", "Tax Returns (prior 2 years)", "Federal + state", "required"},
	{"entity_docs", "legal", "Entity Formation Documents", "Articles, operating agreement", "if_available"},
	{"loan_agreements", "legal", "Loan / Line-of-Credit Agreements", "", "if_available"},
	{"pending_litigation", "legal", "Pending Litigation / Legal Matters", "", "optional"},
}

var checklistByKey = func() map[string]checklistItem {
	m := make(map[string]checklistItem, len(uploadChecklist))
	for _, it := range uploadChecklist {
		m[it.Key] = it
	}
	return m
}()

var requiredChecklistKeys = func() []string {
	var keys []string
	for _, it := range uploadChecklist {
		if it.Priority == "required" {
			keys = append(keys, it.Key)
		}
	}
	return keys
}()

var allowedUploadExtensions = map[string]bool{
	".pdf": true, ".xlsx": true, ".xls": true, ".csv": true,
	".docx": true, ".doc": true, ".png": true, ".jpg": true, ".jpeg": true,
}

// статусы, в которых портал принимает загрузки
var uploadAllowedStatuses = map[models.EngagementStatus]bool{
	models.StatusAgreementSigned:   true,
	models.StatusDocumentsPending:  true,
	models.StatusDocumentsReceived: true,
}

const uploadTokenTTL = 30 * 24 * time.Hour

// ChecklistEntry — пункт чеклиста с наложенным статусом загрузки.
type ChecklistEntry struct {
	Key        string     `json:"key"`
	Category   string     `json:"category"`
	Name       string     `json:"name"`
	Notes      string     `json:"notes"`
	Priority   string     `json:"priority"`
	Uploaded   bool       `json:"uploaded"`
	Filename   string     `json:"filename,omitempty"`
	FileSize   int64      `json:"file_size,omitempty"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
}

type ChecklistProgress struct {
	TotalItems       int `json:"total_items"`
	TotalUploaded    int `json:"total_uploaded"`
	RequiredTotal    int `json:"required_total"`
	RequiredUploaded int `json:"required_uploaded"`
}

type ChecklistView struct {
	EngagementID uint              `json:"engagement_id"`
	CompanyName  string            `json:"company_name"`
	PartnerLead  string            `json:"partner_lead"`
	IsComplete   bool              `json:"is_complete"`
	Checklist    []ChecklistEntry  `json:"checklist"`
	Progress     ChecklistProgress `json:"progress"`
}

// EngagementByUploadToken находит проект по токену портала загрузки.
// Просроченный токен (30 дней с создания проекта) — validation-ошибка.
func EngagementByUploadToken(db *gorm.DB, token string) (*models.Engagement, error) {
	if token == "" {
		return nil, Validation("Токен не задан")
	}
	var eng models.Engagement
	if err := db.Preload("Client").Where("upload_token = ?", token).First(&eng).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Ссылка не найдена")
		}
		return nil, Internal(err.Error())
	}
	if time.Since(eng.CreatedAt) > uploadTokenTTL {
		return nil, Validation("Срок действия ссылки на загрузку истёк")
	}
	return &eng, nil
}

// BuildChecklist собирает чеклист с прогрессом по загруженным документам.
func BuildChecklist(db *gorm.DB, eng *models.Engagement) (*ChecklistView, error) {
	var docs []models.Document
	if err := db.Where("engagement_id = ? AND item_name IS NOT NULL", eng.ID).Find(&docs).Error; err != nil {
		return nil, Internal(err.Error())
	}

	uploaded := make(map[string]*models.Document, len(docs))
	for i := range docs {
		if docs[i].ItemName != nil {
			uploaded[*docs[i].ItemName] = &docs[i]
		}
	}

	view := &ChecklistView{
		EngagementID: eng.ID,
		CompanyName:  eng.Client.CompanyName,
		PartnerLead:  eng.PartnerLead,
		IsComplete:   models.StatusIndex(eng.Status) >= models.StatusIndex(models.StatusDocumentsReceived),
	}

	requiredUploaded := 0
	for _, item := range uploadChecklist {
		entry := ChecklistEntry{
			Key:      item.Key,
			Category: item.Category,
			Name:     item.Name,
			Notes:    item.Notes,
			Priority: item.Priority,
		}
		if doc, ok := uploaded[item.Key]; ok {
			entry.Uploaded = true
			entry.Filename = doc.Filename
			entry.FileSize = doc.FileSize
			at := doc.UploadedAt
			entry.UploadedAt = &at
			if item.Priority == "required" {
				requiredUploaded++
			}
		}
		view.Checklist = append(view.Checklist, entry)
	}

	view.Progress = ChecklistProgress{
		TotalItems:       len(uploadChecklist),
		TotalUploaded:    len(uploaded),
		RequiredTotal:    len(requiredChecklistKeys),
		RequiredUploaded: requiredUploaded,
	}
	return view, nil
}

// UploadDocument принимает файл чеклиста через портал. Повторная загрузка
// по тому же пункту заменяет прежний файл и запись.
func UploadDocument(db *gorm.DB, clients *collab.Clients, eng *models.Engagement, itemKey, filename string, content []byte) (*ChecklistView, error) {
	if !uploadAllowedStatuses[eng.Status] {
		return nil, Conflict("Загрузка документов сейчас не принимается (статус: " + string(eng.Status) + ")")
	}

	item, ok := checklistByKey[itemKey]
	if !ok {
		return nil, Validation("Неизвестный пункт чеклиста: " + itemKey)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedUploadExtensions[ext] {
		return nil, Validation("Недопустимый тип файла: " + ext)
	}
	if len(content) > maxOutputFileSize {
		return nil, Validation("Файл больше 50 МБ")
	}

	storagePath := fmt.Sprintf("%d/inbox/%s/%s_%s", eng.ID, item.Category, itemKey, filename)

	err := db.Transaction(func(tx *gorm.DB) error {
		var old models.Document
		err := tx.Where("engagement_id = ? AND item_name = ?", eng.ID, itemKey).First(&old).Error
		switch {
		case err == nil:
			_ = clients.Store.Remove(old.StoragePath)
			if err := tx.Unscoped().Delete(&old).Error; err != nil {
				return Internal("Ошибка замены документа")
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return Internal(err.Error())
		}

		if err := clients.Store.Save(storagePath, content); err != nil {
			return Internal("Ошибка сохранения файла: " + err.Error())
		}

		key := itemKey
		doc := models.Document{
			EngagementID: eng.ID,
			Category:     item.Category,
			ItemName:     &key,
			Filename:     filename,
			StoragePath:  storagePath,
			FileSize:     int64(len(content)),
			UploadedBy:   "client",
			UploadedAt:   time.Now(),
		}
		if err := tx.Create(&doc).Error; err != nil {
			return Internal("Ошибка записи документа")
		}

		database.LogActivity(tx, eng.ID, "client", "document_uploaded", map[string]any{
			"filename":  filename,
			"item_key":  itemKey,
			"item_name": item.Name,
			"category":  item.Category,
			"size":      len(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// уведомление партнёру по каждому файлу, неуспех не блокирует загрузку
	if clients.PartnerEmail != "" {
		_ = collab.Dispatch(db, eng.ID, "email", "document_uploaded", map[string]any{
			"item_key": itemKey,
		}, func() error {
			subject := fmt.Sprintf("Document uploaded: %s", eng.Client.CompanyName)
			body := fmt.Sprintf("%s uploaded %q for checklist item %s (%s).\n",
				eng.Client.CompanyName, filename, item.Name, item.Category)
			return clients.Email.Send(clients.PartnerEmail, subject, body)
		})
	}

	return BuildChecklist(db, eng)
}

// CompleteResult — исход попытки завершить загрузку.
type CompleteResult struct {
	Completed    bool
	MissingItems []ChecklistEntry
}

// CompleteUpload завершает подачу документов. При недостающих обязательных
// пунктах без force возвращает их список, статус не меняется.
func CompleteUpload(db *gorm.DB, clients *collab.Clients, eng *models.Engagement, force bool) (*CompleteResult, error) {
	if !uploadAllowedStatuses[eng.Status] {
		return nil, Conflict("Завершить загрузку сейчас нельзя (статус: " + string(eng.Status) + ")")
	}

	var docs []models.Document
	if err := db.Where("engagement_id = ? AND item_name IS NOT NULL", eng.ID).Find(&docs).Error; err != nil {
		return nil, Internal(err.Error())
	}
	uploadedKeys := make(map[string]bool, len(docs))
	for _, d := range docs {
		if d.ItemName != nil {
			uploadedKeys[*d.ItemName] = true
		}
	}

	var missing []ChecklistEntry
	for _, key := range requiredChecklistKeys {
		if !uploadedKeys[key] {
			item := checklistByKey[key]
			missing = append(missing, ChecklistEntry{Key: item.Key, Name: item.Name, Category: item.Category, Priority: item.Priority})
		}
	}

	if len(missing) > 0 && !force {
		return &CompleteResult{Completed: false, MissingItems: missing}, nil
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := advanceStatus(tx, eng, models.StatusDocumentsReceived); err != nil {
			return Internal("Ошибка обновления статуса")
		}
		database.LogActivity(tx, eng.ID, "client", "upload_complete", map[string]any{
			"total_uploaded":   len(uploadedKeys),
			"missing_required": len(missing),
			"forced":           force && len(missing) > 0,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if clients.PartnerEmail != "" {
		_ = collab.Dispatch(db, eng.ID, "email", "upload_complete", nil, func() error {
			subject := fmt.Sprintf("Documents received: %s", eng.Client.CompanyName)
			body := fmt.Sprintf("%s marked document submission complete (%d files uploaded).\n",
				eng.Client.CompanyName, len(uploadedKeys))
			return clients.Email.Send(clients.PartnerEmail, subject, body)
		})
	}

	return &CompleteResult{Completed: true, MissingItems: missing}, nil
}
