package handlers

import (
	"errors"
	"net/http"
	"time"

	"engagement-crm/internal/database"
	"engagement-crm/internal/models"
	"engagement-crm/internal/workflow"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func ListEngagements(c *gin.Context) {
	var engs []models.Engagement
	q := database.DB.Preload("Client").Order("updated_at DESC")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&engs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка загрузки проектов"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"engagements": engs, "count": len(engs)})
}

func GetEngagement(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var eng models.Engagement
	if err := database.DB.Preload("Client").First(&eng, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Проект не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var contacts []models.InterviewContact
	database.DB.Where("engagement_id = ?", eng.ID).Order("contact_number").Find(&contacts)

	var legal []models.LegalDocument
	database.DB.Where("engagement_id = ?", eng.ID).Find(&legal)

	c.JSON(http.StatusOK, gin.H{
		"engagement":         eng,
		"interview_contacts": contacts,
		"legal_documents":    legal,
		"phase_name":         workflow.PhaseNames[eng.Phase],
	})
}

type startForm struct {
	Fee            float64    `json:"fee" binding:"required"`
	StartDate      *time.Time `json:"start_date"`
	TargetEndDate  *time.Time `json:"target_end_date"`
	PartnerLead    string     `json:"partner_lead"`
	DiscoveryNotes string     `json:"discovery_notes"`
}

func StartEngagement(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var form startForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	eng, err := workflow.Start(database.DB, Collab, id, workflow.StartInput{
		Fee:            form.Fee,
		StartDate:      form.StartDate,
		TargetEndDate:  form.TargetEndDate,
		PartnerLead:    form.PartnerLead,
		DiscoveryNotes: form.DiscoveryNotes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, eng)
}

func BeginPhases(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	eng, err := workflow.BeginPhases(database.DB, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"engagement": eng,
		"phase_name": workflow.PhaseNames[eng.Phase],
	})
}

type advancePhaseForm struct {
	Notes           string `json:"notes"`
	ReviewConfirmed bool   `json:"review_confirmed"`
}

func AdvancePhase(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	// тело опционально: пустой запрос означает продвижение без заметок
	var form advancePhaseForm
	_ = c.ShouldBindJSON(&form)

	res, err := workflow.AdvancePhase(database.DB, Collab, id, workflow.AdvancePhaseInput{
		Notes:           form.Notes,
		ReviewConfirmed: form.ReviewConfirmed,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"engagement": res.Engagement,
		"from_phase": res.FromPhase,
		"to_phase":   res.Engagement.Phase,
		"phase_name": workflow.PhaseNames[res.Engagement.Phase],
	})
}

func MarkDebriefComplete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	eng, err := workflow.MarkDebriefComplete(database.DB, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, eng)
}

func ArchiveEngagement(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	res, err := workflow.Archive(database.DB, Collab, id, currentUsername(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListActivity — журнал действий по проекту, свежие записи первыми.
func ListActivity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var logs []models.ActivityLog
	if err := database.DB.Where("engagement_id = ?", id).
		Order("created_at DESC").Limit(200).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка загрузки журнала"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": logs, "count": len(logs)})
}

func ListClients(c *gin.Context) {
	var clients []models.Client
	if err := database.DB.Preload("Engagements").Order("company_name").Find(&clients).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка загрузки клиентов"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients, "count": len(clients)})
}
