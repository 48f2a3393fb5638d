package workflow

import (
	"errors"
	"fmt"
	"log"
	"time"

	"engagement-crm/internal/collab"
	"engagement-crm/internal/database"
	"engagement-crm/internal/models"

	"gorm.io/gorm"
)

func getEngagement(db *gorm.DB, id uint) (*models.Engagement, error) {
	var eng models.Engagement
	if err := db.Preload("Client").First(&eng, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Проект не найден")
		}
		return nil, Internal(err.Error())
	}
	return &eng, nil
}

// guardOpen отклоняет любые мутации по закрытому проекту.
func guardOpen(eng *models.Engagement) error {
	if eng.Status == models.StatusClosed {
		return Conflict("Проект закрыт, изменения недоступны")
	}
	return nil
}

// advanceStatus двигает статус только вперёд по models.StatusOrder.
// Повтор колбэка (цель не дальше текущего статуса) — no-op, не ошибка.
func advanceStatus(tx *gorm.DB, eng *models.Engagement, target models.EngagementStatus) error {
	cur := models.StatusIndex(eng.Status)
	next := models.StatusIndex(target)
	if next < 0 {
		return Internal("unknown engagement status: " + string(target))
	}
	if next <= cur {
		return nil
	}
	eng.Status = target
	return tx.Save(eng).Error
}

type StartInput struct {
	Fee            float64
	StartDate      *time.Time
	TargetEndDate  *time.Time
	PartnerLead    string
	DiscoveryNotes string
}

// Start запускает проект: фиксирует условия и отправляет договор на подпись.
func Start(db *gorm.DB, clients *collab.Clients, engagementID uint, in StartInput) (*models.Engagement, error) {
	eng, err := getEngagement(db, engagementID)
	if err != nil {
		return nil, err
	}
	if eng.Status != models.StatusNDASignedEng && eng.Status != models.StatusDiscoveryDone {
		return nil, Conflict("Нельзя запустить проект в статусе " + string(eng.Status))
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		eng.Fee = in.Fee
		eng.PartnerLead = in.PartnerLead
		if in.StartDate != nil {
			eng.StartDate = in.StartDate
		}
		if in.TargetEndDate != nil {
			eng.TargetEndDate = in.TargetEndDate
		}
		if in.DiscoveryNotes != "" {
			eng.DiscoveryNotes = in.DiscoveryNotes
		}
		if err := advanceStatus(tx, eng, models.StatusAgreementPending); err != nil {
			return Internal("Ошибка обновления проекта")
		}
		database.LogActivity(tx, eng.ID, "partner", "engagement_started", map[string]any{
			"fee":          in.Fee,
			"partner_lead": in.PartnerLead,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// договор уходит после коммита; неуспех не откатывает переход
	if clients != nil && eng.Client.PrimaryContactEmail != "" {
		client := eng.Client
		dispatchErr := collab.Dispatch(db, eng.ID, "esign", "send_agreement", map[string]any{
			"contact_email": client.PrimaryContactEmail,
		}, func() error {
			envelopeID, err := clients.ESign.SendAgreement(
				client.PrimaryContactEmail, client.PrimaryContactName, client.CompanyName, eng.Fee)
			if err != nil {
				return err
			}
			now := time.Now()
			legal := models.LegalDocument{
				EngagementID: eng.ID,
				Type:         models.LegalAgreement,
				Status:       models.LegalSent,
				EnvelopeID:   envelopeID,
				SentAt:       &now,
			}
			_, err = database.CreateIfAbsent(db, map[string]any{
				"engagement_id": eng.ID,
				"type":          models.LegalAgreement,
			}, &legal)
			return err
		})
		if dispatchErr != nil {
			log.Printf("agreement dispatch failed for engagement %d (non-blocking): %v", eng.ID, dispatchErr)
		}
	}

	return eng, nil
}

// NDASigned — колбэк e-sign провайдера о подписании NDA.
func NDASigned(db *gorm.DB, envelopeID string) (*models.Engagement, error) {
	var legal models.LegalDocument
	if err := db.Where("envelope_id = ? AND type = ?", envelopeID, models.LegalNDA).First(&legal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Конверт NDA не найден")
		}
		return nil, Internal(err.Error())
	}

	eng, err := getEngagement(db, legal.EngagementID)
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		legal.Status = models.LegalSigned
		legal.SignedAt = &now
		if err := tx.Save(&legal).Error; err != nil {
			return Internal("Ошибка обновления NDA")
		}
		if err := advanceStatus(tx, eng, models.StatusNDASignedEng); err != nil {
			return Internal("Ошибка обновления статуса")
		}
		database.LogActivity(tx, eng.ID, "system", "nda_signed", map[string]any{
			"envelope_id": envelopeID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return eng, nil
}

// AgreementSigned — колбэк о подписании договора: выставляем депозитный счёт,
// шлём клиенту ссылку на загрузку документов и открываем приём документов.
func AgreementSigned(db *gorm.DB, clients *collab.Clients, envelopeID string) (*models.Engagement, error) {
	var legal models.LegalDocument
	if err := db.Where("envelope_id = ? AND type = ?", envelopeID, models.LegalAgreement).First(&legal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Конверт договора не найден")
		}
		return nil, Internal(err.Error())
	}

	eng, err := getEngagement(db, legal.EngagementID)
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		legal.Status = models.LegalSigned
		legal.SignedAt = &now
		if err := tx.Save(&legal).Error; err != nil {
			return Internal("Ошибка обновления договора")
		}
		if err := advanceStatus(tx, eng, models.StatusAgreementSigned); err != nil {
			return Internal("Ошибка обновления статуса")
		}
		database.LogActivity(tx, eng.ID, "system", "agreement_signed", map[string]any{
			"envelope_id": envelopeID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// депозитный счёт по вехе "договор подписан"
	if _, err := GenerateInvoice(db, clients, eng.ID, models.InvoiceDeposit); err != nil {
		if KindOf(err) != KindConflict {
			log.Printf("deposit invoice generation failed for engagement %d: %v", eng.ID, err)
		}
	}

	if clients != nil && eng.Client.PrimaryContactEmail != "" {
		_ = collab.Dispatch(db, eng.ID, "email", "upload_link", map[string]any{
			"to": eng.Client.PrimaryContactEmail,
		}, func() error {
			subject := "Document checklist for your engagement"
			body := fmt.Sprintf("Hi %s,\n\nPlease upload the requested documents using your secure link: /upload/%s\n",
				eng.Client.PrimaryContactName, eng.UploadToken)
			return clients.Email.Send(eng.Client.PrimaryContactEmail, subject, body)
		})
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return advanceStatus(tx, eng, models.StatusDocumentsPending)
	}); err != nil {
		return nil, Internal("Ошибка обновления статуса")
	}

	return eng, nil
}

// BeginPhases — явная команда documents_received → phase_0.
// Охраняется только равенством статуса, без дополнительных предусловий.
func BeginPhases(db *gorm.DB, engagementID uint) (*models.Engagement, error) {
	eng, err := getEngagement(db, engagementID)
	if err != nil {
		return nil, err
	}
	if eng.Status != models.StatusDocumentsReceived {
		return nil, Conflict("Начать фазы можно только из статуса documents_received (сейчас: " + string(eng.Status) + ")")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		eng.Phase = 0
		if err := advanceStatus(tx, eng, models.StatusPhase0); err != nil {
			return Internal("Ошибка обновления статуса")
		}

		// шаблоны фаз и материалов заводятся при первом входе в фазы
		if err := seedPhaseOutputs(tx, eng.ID); err != nil {
			return err
		}
		if err := seedDeliverables(tx, eng.ID); err != nil {
			return err
		}

		exec := models.PhaseExecution{EngagementID: eng.ID, Phase: 0}
		if err := tx.Create(&exec).Error; err != nil {
			return Internal("Ошибка записи фазы")
		}
		database.LogActivity(tx, eng.ID, "partner", "phases_began", map[string]any{"phase": 0})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return eng, nil
}

type AdvancePhaseInput struct {
	Notes           string
	ReviewConfirmed bool
}

type AdvanceResult struct {
	Engagement models.Engagement
	FromPhase  int
}

// AdvancePhase продвигает проект на следующую фазу. Фазы-ревью требуют
// явного подтверждения. Номер фазы зажат в [0,7]: на фазе 7 переход ведёт
// в phases_complete, а не к phase = 8 — инкремент за границу ломал бы весь
// хвост жизненного цикла (счета, архивацию, фоллоу-апы).
func AdvancePhase(db *gorm.DB, clients *collab.Clients, engagementID uint, in AdvancePhaseInput) (*AdvanceResult, error) {
	eng, err := getEngagement(db, engagementID)
	if err != nil {
		return nil, err
	}
	if !models.IsPhaseStatus(eng.Status) {
		return nil, Conflict("Проект не находится в активной фазе (статус: " + string(eng.Status) + ")")
	}

	current := eng.Phase
	if IsReviewGate(current) && !in.ReviewConfirmed {
		return nil, Validation(fmt.Sprintf("Фаза %d — ревью-гейт, нужно явное подтверждение", current))
	}

	completed := false
	err = db.Transaction(func(tx *gorm.DB) error {
		exec := models.PhaseExecution{
			EngagementID:    eng.ID,
			Phase:           current,
			Notes:           in.Notes,
			ReviewConfirmed: in.ReviewConfirmed,
		}
		if err := tx.Create(&exec).Error; err != nil {
			return Internal("Ошибка записи фазы")
		}

		if current >= models.MaxPhase {
			eng.Phase = models.MaxPhase
			completed = true
			if err := advanceStatus(tx, eng, models.StatusPhasesComplete); err != nil {
				return Internal("Ошибка обновления статуса")
			}
		} else {
			eng.Phase = current + 1
			if err := advanceStatus(tx, eng, models.PhaseStatus(current+1)); err != nil {
				return Internal("Ошибка обновления статуса")
			}
		}

		database.LogActivity(tx, eng.ID, "partner", "phase_advanced", map[string]any{
			"from_phase": current,
			"to_phase":   eng.Phase,
			"new_status": string(eng.Status),
			"notes":      in.Notes,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// финальный счёт по вехе phases_complete
	if completed {
		if _, err := GenerateInvoice(db, clients, eng.ID, models.InvoiceFinal); err != nil {
			if KindOf(err) != KindConflict {
				log.Printf("final invoice generation failed for engagement %d: %v", eng.ID, err)
			}
		}
	}

	return &AdvanceResult{Engagement: *eng, FromPhase: current}, nil
}
