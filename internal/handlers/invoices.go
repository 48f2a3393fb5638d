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

func ListInvoices(c *gin.Context) {
	var invoices []models.Invoice
	q := database.DB.Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&invoices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка загрузки счетов"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices, "count": len(invoices)})
}

func GetInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var inv models.Invoice
	if err := database.DB.First(&inv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Счёт не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, inv)
}

func ListEngagementInvoices(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var invoices []models.Invoice
	if err := database.DB.Where("engagement_id = ?", id).
		Order("created_at DESC").Find(&invoices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка загрузки счетов"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices, "count": len(invoices)})
}

type generateInvoiceForm struct {
	InvoiceType string `json:"invoice_type" binding:"required"`
}

func GenerateInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var form generateInvoiceForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	inv, err := workflow.GenerateInvoice(database.DB, Collab, id, models.InvoiceType(form.InvoiceType))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "invoice": inv})
}

func ResendInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := workflow.ResendInvoice(database.DB, Collab, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "invoice": inv})
}

func VoidInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := workflow.VoidInvoice(database.DB, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "invoice": inv})
}

func MarkInvoicePaid(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := workflow.MarkInvoicePaid(database.DB, Collab, id, "manual")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "invoice": inv})
}

func CheckOverdueInvoices(c *gin.Context) {
	updated, err := workflow.CheckOverdue(database.DB)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overdue_count": len(updated), "updated_invoices": updated})
}

func RevenueSummary(c *gin.Context) {
	summary, err := workflow.BuildRevenueSummary(database.DB)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
