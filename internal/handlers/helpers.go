package handlers

import (
	"net/http"
	"strconv"

	"engagement-crm/internal/collab"
	"engagement-crm/internal/workflow"

	"github.com/gin-gonic/gin"
)

// Collab — клиенты внешних сервисов; инициализируется при старте сервера.
var Collab *collab.Clients

func Init(c *collab.Clients) { Collab = c }

// respondError переводит типизированную ошибку движка в HTTP-ответ.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch workflow.KindOf(err) {
	case workflow.KindValidation:
		status = http.StatusBadRequest
	case workflow.KindConflict:
		status = http.StatusConflict
	case workflow.KindNotFound:
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный идентификатор"})
		return 0, false
	}
	return uint(id), true
}

// currentUsername — кем выполнено действие, для журналов и манифестов.
func currentUsername(c *gin.Context) string {
	if v, ok := c.Get("CurrentUsername"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "partner"
}
