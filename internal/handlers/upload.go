package handlers

import (
	"io"
	"net/http"

	"engagement-crm/internal/database"
	"engagement-crm/internal/workflow"

	"github.com/gin-gonic/gin"
)

// Портал загрузки документов: доступ по токену, без сессии.

func UploadStatus(c *gin.Context) {
	eng, err := workflow.EngagementByUploadToken(database.DB, c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	view, err := workflow.BuildChecklist(database.DB, eng)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func UploadFile(c *gin.Context) {
	eng, err := workflow.EngagementByUploadToken(database.DB, c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	itemKey := c.PostForm("item_key")
	if itemKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Не задан пункт чеклиста"})
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

	view, err := workflow.UploadDocument(database.DB, Collab, eng, itemKey, fileHeader.Filename, content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"filename": fileHeader.Filename,
		"item_key": itemKey,
		"progress": view.Progress,
	})
}

type completeForm struct {
	Force bool `json:"force"`
}

func CompleteUpload(c *gin.Context) {
	eng, err := workflow.EngagementByUploadToken(database.DB, c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	// тело опционально
	var form completeForm
	_ = c.ShouldBindJSON(&form)

	res, err := workflow.CompleteUpload(database.DB, Collab, eng, form.Force)
	if err != nil {
		respondError(c, err)
		return
	}
	if !res.Completed {
		c.JSON(http.StatusOK, gin.H{
			"success":       false,
			"warning":       true,
			"missing_count": len(res.MissingItems),
			"missing_items": res.MissingItems,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
