package workflow

import (
	"errors"
	"fmt"
	"log"
	"time"

	"engagement-crm/internal/collab"
	"engagement-crm/internal/database"
	"engagement-crm/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// стадии, из которых разрешена конверсия
var convertibleStages = map[models.OpportunityStage]bool{
	models.StageWon:           true,
	models.StageNegotiation:   true,
	models.StageAgreementSent: true,
}

type ConvertInput struct {
	Fee                float64
	PreferredStartDate *time.Time
	PartnerLead        string
	ContactIDs         []uint // до трёх контактов воронки → интервью-контакты
	DiscoveryNotes     string
	PainPoints         string
	ReferralSource     string
	SendNDA            bool
}

type ConvertResult struct {
	ClientID     uint
	EngagementID uint
	ContactCount int
	NDASent      bool
	Status       models.EngagementStatus
}

// Convert превращает выигранную сделку в пару Client + Engagement.
// Всё, кроме отправки NDA, выполняется одной транзакцией: сделка никогда
// не останется со ссылкой на наполовину созданный проект. Повторный вызов
// по уже конвертированной сделке — конфликт, второй проект не создаётся.
func Convert(db *gorm.DB, clients *collab.Clients, oppID uint, in ConvertInput) (*ConvertResult, error) {
	if len(in.ContactIDs) > 3 {
		return nil, Validation("Можно выбрать не более трёх контактов для интервью")
	}

	res := &ConvertResult{Status: models.StatusNDAPending}
	var ndaContact *models.Contact
	var companyName string

	err := db.Transaction(func(tx *gorm.DB) error {
		var opp models.Opportunity
		if err := tx.Preload("Company").Preload("PrimaryContact").First(&opp, oppID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("Сделка не найдена")
			}
			return Internal(err.Error())
		}

		if !convertibleStages[opp.Stage] {
			return Conflict("Конверсия доступна только со стадий won, negotiation или agreement_sent (сейчас: " + string(opp.Stage) + ")")
		}
		if opp.ConvertedEngagementID != nil {
			return Conflict("Сделка уже конвертирована")
		}

		company := opp.Company
		companyName = company.Name
		contact := opp.PrimaryContact

		// снимок клиента на момент конверсии
		client := models.Client{
			CompanyName:        company.Name,
			Industry:           company.Industry,
			RevenueRange:       company.RevenueRange,
			EmployeeCount:      company.EmployeeCount,
			WebsiteURL:         company.Website,
			ReferralSource:     in.ReferralSource,
			PrimaryContactName: company.Name,
		}
		if client.ReferralSource == "" {
			client.ReferralSource = company.Source
		}
		if contact != nil {
			client.PrimaryContactName = contact.Name
			client.PrimaryContactEmail = contact.Email
			client.PrimaryContactPhone = contact.Phone
		}
		if err := tx.Create(&client).Error; err != nil {
			return Internal("Ошибка создания клиента")
		}

		eng := models.Engagement{
			ClientID:         client.ID,
			Status:           models.StatusNDAPending,
			Phase:            0,
			Fee:              in.Fee,
			StartDate:        in.PreferredStartDate,
			PartnerLead:      in.PartnerLead,
			DiscoveryNotes:   in.DiscoveryNotes,
			PainPoints:       in.PainPoints,
			UploadToken:      uuid.NewString(),
			DeliverableToken: uuid.NewString(),
		}
		if err := tx.Create(&eng).Error; err != nil {
			return Internal("Ошибка создания проекта")
		}

		// интервью-контакты: явный выбор или основной контакт первым
		selected := in.ContactIDs
		if len(selected) == 0 && opp.PrimaryContactID != nil {
			selected = []uint{*opp.PrimaryContactID}
		}
		num := 0
		for _, cid := range selected {
			var pc models.Contact
			if err := tx.First(&pc, cid).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return Validation(fmt.Sprintf("Контакт %d не найден", cid))
				}
				return Internal(err.Error())
			}
			num++
			ic := models.InterviewContact{
				EngagementID:  eng.ID,
				ContactNumber: num,
				Name:          pc.Name,
				Title:         pc.Title,
				Email:         pc.Email,
				Phone:         pc.Phone,
				LinkedinURL:   pc.LinkedinURL,
			}
			if err := tx.Create(&ic).Error; err != nil {
				return Internal("Ошибка создания интервью-контакта")
			}
		}

		opp.ConvertedClientID = &client.ID
		opp.ConvertedEngagementID = &eng.ID
		opp.Stage = models.StageWon
		if err := tx.Save(&opp).Error; err != nil {
			return Internal("Ошибка обновления сделки")
		}

		database.LogActivity(tx, eng.ID, "system", "engagement_created_from_pipeline", map[string]any{
			"opportunity_id": opp.ID,
			"company_name":   company.Name,
			"contact_count":  num,
			"fee":            in.Fee,
		})

		res.ClientID = client.ID
		res.EngagementID = eng.ID
		res.ContactCount = num
		ndaContact = contact
		return nil
	})
	if err != nil {
		return nil, err
	}

	// NDA отправляется после коммита: переход уже состоялся, а попытка
	// вызова фиксируется и ретраится отдельно
	if in.SendNDA && clients != nil && ndaContact != nil && ndaContact.Email != "" {
		sendErr := collab.Dispatch(db, res.EngagementID, "esign", "send_nda", map[string]any{
			"contact_email": ndaContact.Email,
		}, func() error {
			envelopeID, err := clients.ESign.SendNDA(ndaContact.Email, ndaContact.Name, companyName)
			if err != nil {
				return err
			}
			now := time.Now()
			legal := models.LegalDocument{
				EngagementID: res.EngagementID,
				Type:         models.LegalNDA,
				Status:       models.LegalSent,
				EnvelopeID:   envelopeID,
				SentAt:       &now,
			}
			created, err := database.CreateIfAbsent(db, map[string]any{
				"engagement_id": res.EngagementID,
				"type":          models.LegalNDA,
			}, &legal)
			if err == nil && created {
				res.NDASent = true
			}
			return err
		})
		if sendErr != nil {
			log.Printf("NDA dispatch failed for engagement %d (non-blocking): %v", res.EngagementID, sendErr)
		}
	}

	return res, nil
}
