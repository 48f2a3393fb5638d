package handlers

import (
	"io"
	"net/http"
	"strconv"

	"engagement-crm/internal/database"
	"engagement-crm/internal/workflow"

	"github.com/gin-gonic/gin"
)

func SeedPhaseOutputs(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	created, err := workflow.SeedPhaseOutputs(database.DB, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "created": created})
}

func ListPhaseOutputs(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	phase := -1
	if p := c.Param("phase"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 7 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный номер фазы"})
			return
		}
		phase = n
	}

	outputs, err := workflow.ListPhaseOutputs(database.DB, id, phase)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phase_outputs": outputs, "count": len(outputs)})
}

func UploadPhaseOutput(c *gin.Context) {
	id, ok := parseID(c, "id")
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

	output, err := workflow.UploadOutput(database.DB, Collab.Store, id, fileHeader.Filename, content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "phase_output": output})
}

func AcceptPhaseOutput(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	output, err := workflow.AcceptOutput(database.DB, id, currentUsername(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "phase_output": output})
}

func AcceptAllPhaseOutputs(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	phase, err := strconv.Atoi(c.Param("phase"))
	if err != nil || phase < 0 || phase > 7 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный номер фазы"})
		return
	}

	accepted, err := workflow.AcceptAllOutputs(database.DB, id, phase, currentUsername(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "accepted_count": len(accepted), "accepted": accepted})
}
