package handlers

import (
	"io"
	"net/http"

	"engagement-crm/internal/database"
	"engagement-crm/internal/workflow"

	"github.com/gin-gonic/gin"
)

func EnsureDeliverables(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	all, err := workflow.EnsureDeliverables(database.DB, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deliverables": all})
}

func UploadDeliverable(c *gin.Context) {
	engID, ok := parseID(c, "id")
	if !ok {
		return
	}
	delivID, ok := parseID(c, "deliverable_id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Файл не передан"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Не удалось прочитать файл"})
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Не удалось прочитать файл"})
		return
	}

	d, err := workflow.UploadDeliverable(database.DB, Collab.Store, engID, delivID, fileHeader.Filename, content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deliverable": d})
}

func ApproveDeliverable(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	d, err := workflow.ApproveDeliverable(database.DB, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deliverable": d})
}

func ReleaseWave1(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	eng, err := workflow.ReleaseWave1(database.DB, Collab, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "engagement": eng})
}

func ReleaseWave2(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	eng, err := workflow.ReleaseWave2(database.DB, Collab, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "engagement": eng})
}

// DeliverablePortal — клиентский портал материалов по токену, без авторизации.
func DeliverablePortal(c *gin.Context) {
	view, err := workflow.PortalByToken(database.DB, c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
