package handlers

import (
	"errors"
	"net/http"

	"engagement-crm/internal/database"
	"engagement-crm/internal/models"
	"engagement-crm/internal/workflow"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListDueFollowUps — актуальные тачпоинты по всем проектам.
func ListDueFollowUps(c *gin.Context) {
	due, err := workflow.DueFollowUps(database.DB)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"follow_ups": due, "count": len(due)})
}

func ListEngagementFollowUps(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	items, err := workflow.ListFollowUps(database.DB, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"follow_ups": items, "count": len(items)})
}

// GetFollowUp возвращает тачпоинт с отрендеренными темой и текстом письма.
func GetFollowUp(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var fu models.FollowUp
	if err := database.DB.First(&fu, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Фоллоу-ап не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var eng models.Engagement
	if err := database.DB.Preload("Client").First(&eng, fu.EngagementID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	subject, body := workflow.RenderFollowUp(&fu, &eng)
	c.JSON(http.StatusOK, gin.H{
		"follow_up":        fu,
		"rendered_subject": subject,
		"rendered_body":    body,
	})
}

type followUpActionForm struct {
	Action        string  `json:"action" binding:"required"` // send / snooze / skip / edit
	ActualSubject *string `json:"actual_subject"`
	ActualBody    *string `json:"actual_body"`
	SnoozeDays    int     `json:"snooze_days"`
	Notes         *string `json:"notes"`
}

func UpdateFollowUp(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var form followUpActionForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}

	var (
		fu  *models.FollowUp
		err error
	)
	switch form.Action {
	case "send":
		fu, err = workflow.SendFollowUp(database.DB, Collab, id, deref(form.ActualSubject), deref(form.ActualBody))
	case "snooze":
		fu, err = workflow.SnoozeFollowUp(database.DB, id, form.SnoozeDays)
	case "skip":
		fu, err = workflow.SkipFollowUp(database.DB, id, deref(form.Notes))
	case "edit":
		fu, err = workflow.EditFollowUp(database.DB, id, form.ActualSubject, form.ActualBody, form.Notes)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестное действие: " + form.Action})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "follow_up": fu})
}
