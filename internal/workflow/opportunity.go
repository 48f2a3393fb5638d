package workflow

import (
	"errors"
	"strings"

	"engagement-crm/internal/database"
	"engagement-crm/internal/models"

	"gorm.io/gorm"
)

// StageResult — состояние после смены стадии. ConversionPrompt=true значит,
// что сделка выиграна, но ещё не конвертирована — вызывающей стороне стоит
// предложить запустить конверсию (сама конверсия — отдельная команда).
type StageResult struct {
	Opportunity      models.Opportunity
	ConversionPrompt bool
}

// SetStage переводит сделку в новую стадию. Доска поддерживает ручную
// правку, поэтому любая пара различных стадий легальна; охраняются только
// lost (нужна причина) и won (идемпотентность относительно конверсии).
func SetStage(db *gorm.DB, oppID uint, stage models.OpportunityStage, lossReason string) (*StageResult, error) {
	if !models.ValidStage(stage) {
		return nil, Validation("Неизвестная стадия: " + string(stage))
	}

	var opp models.Opportunity
	if err := db.First(&opp, oppID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Сделка не найдена")
		}
		return nil, Internal(err.Error())
	}

	if stage == models.StageLost && strings.TrimSpace(lossReason) == "" {
		return nil, Validation("Для стадии lost обязательна причина проигрыша")
	}

	opp.Stage = stage
	if stage == models.StageLost {
		opp.LossReason = strings.TrimSpace(lossReason)
	}

	if err := db.Save(&opp).Error; err != nil {
		return nil, Internal("Ошибка сохранения сделки")
	}

	res := &StageResult{Opportunity: opp}
	if stage == models.StageWon && opp.ConvertedClientID == nil {
		res.ConversionPrompt = true
	}

	if eng := opp.ConvertedEngagementID; eng != nil {
		database.LogActivity(db, *eng, "partner", "opportunity_stage_changed", map[string]any{
			"opportunity_id": opp.ID,
			"stage":          string(stage),
		})
	}
	return res, nil
}
