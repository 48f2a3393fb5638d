package database

import (
	"encoding/json"

	"engagement-crm/internal/models"

	"gorm.io/gorm"
)

// LogActivity пишет событие в журнал проекта. Details сериализуются в JSON;
// ошибка записи журнала не валит основную операцию.
func LogActivity(tx *gorm.DB, engagementID uint, actor, action string, details map[string]any) {
	if tx == nil {
		return
	}
	payload := ""
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			payload = string(b)
		}
	}
	record := models.ActivityLog{
		EngagementID: engagementID,
		Actor:        actor,
		Action:       action,
		Details:      payload,
	}
	_ = tx.Create(&record).Error
}
