package handlers

import (
	"net/http"

	"engagement-crm/internal/database"
	"engagement-crm/internal/workflow"

	"github.com/gin-gonic/gin"
)

// Колбэки внешних сервисов. Провайдеры ретраят доставку, поэтому
// обработчики идемпотентны: повтор события не двигает статус назад.

type esignEvent struct {
	EnvelopeID string `json:"envelope_id" binding:"required"`
	Event      string `json:"event" binding:"required"` // nda_signed / agreement_signed
}

func ESignWebhook(c *gin.Context) {
	var ev esignEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректное событие"})
		return
	}

	switch ev.Event {
	case "nda_signed":
		eng, err := workflow.NDASigned(database.DB, ev.EnvelopeID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "status": eng.Status})
	case "agreement_signed":
		eng, err := workflow.AgreementSigned(database.DB, Collab, ev.EnvelopeID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "status": eng.Status})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестное событие: " + ev.Event})
	}
}

type paymentEvent struct {
	SessionID string `json:"session_id" binding:"required"`
	Event     string `json:"event" binding:"required"` // checkout_completed
}

func PaymentWebhook(c *gin.Context) {
	var ev paymentEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректное событие"})
		return
	}
	if ev.Event != "checkout_completed" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестное событие: " + ev.Event})
		return
	}

	inv, err := workflow.PaymentReceived(database.DB, Collab, ev.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "invoice": inv.Number, "status": inv.Status})
}
