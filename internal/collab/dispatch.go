package collab

import (
	"encoding/json"
	"time"

	"engagement-crm/internal/models"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm"
)

// Dispatch выполняет вызов внешнего сервиса с ретраями и фиксирует сам факт
// попытки в outbound_dispatches. Локальное состояние к этому моменту уже
// закоммичено: неуспех вызова не откатывает переход, а остаётся записанным
// фактом для последующего ручного/фонового ретрая.
func Dispatch(db *gorm.DB, engagementID uint, collaborator, kind string, payload map[string]any, fn func() error) error {
	body := ""
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			body = string(b)
		}
	}

	rec := models.OutboundDispatch{
		EngagementID: engagementID,
		Collaborator: collaborator,
		Kind:         kind,
		Payload:      body,
		Status:       models.DispatchPending,
	}
	if db != nil {
		_ = db.Create(&rec).Error
	}

	attempts := 0
	op := func() error {
		attempts++
		return fn()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 15 * time.Second
	err := backoff.Retry(op, backoff.WithMaxRetries(bo, 3))

	rec.Attempts = attempts
	if err != nil {
		rec.Status = models.DispatchFailed
		rec.LastError = err.Error()
	} else {
		now := time.Now()
		rec.Status = models.DispatchSent
		rec.CompletedAt = &now
	}
	if db != nil {
		_ = db.Save(&rec).Error
	}
	return err
}
