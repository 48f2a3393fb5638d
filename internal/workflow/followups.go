package workflow

import (
	"errors"
	"strings"
	"time"

	"engagement-crm/internal/collab"
	"engagement-crm/internal/database"
	"engagement-crm/internal/models"

	"gorm.io/gorm"
)

const defaultSnoozeDays = 7

var touchpointLabels = map[models.FollowUpTouchpoint]string{
	models.Touchpoint30Day: "30-Day Check-In",
	models.Touchpoint60Day: "60-Day Pulse Check",
	models.Touchpoint90Day: "90-Day Review Offer",
}

var touchpointOrder = map[models.FollowUpTouchpoint]int{
	models.Touchpoint30Day: 1,
	models.Touchpoint60Day: 2,
	models.Touchpoint90Day: 3,
}

const thirtyDaySubject = "Checking in — how is implementation going?"

const thirtyDayTemplate = `Hi {contact_name},

It's been about a month since we wrapped up your diagnostic. I wanted to check in and see how things are progressing with the 90-day implementation roadmap.

Specifically, I'm curious:
- Have you been able to get started on the first set of recommendations?
- Any roadblocks coming up that we might be able to help with?

No pressure for a detailed response — even a quick "going well" or "hit a snag with X" would be great to hear.

Best,
{partner_name}`

const sixtyDaySubject = "{company_name} — quick margin health check"

const sixtyDayTemplate = `Hi {contact_name},

Two months out from the diagnostic — I'd love to do a quick pulse check on a few of the key metrics we identified during our work together.

Could you share a quick read on these three items?
1. {metric_1_from_diagnostic} — trending better, worse, or about the same?
2. {metric_2_from_diagnostic} — any movement here?
3. Overall — do you feel like the operational changes are taking hold?

This takes about 30 seconds and helps me understand how our recommendations are landing in practice. It also helps me calibrate our approach for future clients.

Thanks,
{partner_name}`

const ninetyDaySubject = "Follow-up review opportunity — {company_name}"

const ninetyDayTemplate = `Hi {contact_name},

We're now three months past your diagnostic. By now, you've had enough time to implement the initial recommendations and see early results.

I'd like to offer a half-day follow-up review — essentially a focused check-in where we:
- Review progress against the 90-day roadmap
- Identify any recommendations that need adjustment based on real-world results
- Update the profit leak analysis with current numbers to measure actual impact

This is a standalone engagement at $3,500 — not a commitment to ongoing work, just a structured way to make sure the diagnostic investment is paying off.

Would that be useful? Happy to walk through what it would look like on a quick call.

Also — if you know anyone who could benefit from the kind of work we did together, I'd welcome an introduction. Our best clients come from referrals like yours.

Best,
{partner_name}`

// createFollowUpSequence заводит три тачпоинта (30/60/90 дней) для
// закрытого проекта. Ровно один раз: существующие записи не трогаются.
func createFollowUpSequence(tx *gorm.DB, eng *models.Engagement) (int, error) {
	var count int64
	if err := tx.Model(&models.FollowUp{}).Where("engagement_id = ?", eng.ID).Count(&count).Error; err != nil {
		return 0, Internal(err.Error())
	}
	if count > 0 {
		return 0, nil
	}

	today := time.Now()
	seq := []struct {
		tp       models.FollowUpTouchpoint
		days     int
		subject  string
		template string
	}{
		{models.Touchpoint30Day, 30, thirtyDaySubject, thirtyDayTemplate},
		{models.Touchpoint60Day, 60, sixtyDaySubject, sixtyDayTemplate},
		{models.Touchpoint90Day, 90, ninetyDaySubject, ninetyDayTemplate},
	}

	for _, s := range seq {
		fu := models.FollowUp{
			EngagementID:    eng.ID,
			ClientID:        eng.ClientID,
			Touchpoint:      s.tp,
			Status:          models.FollowUpScheduled,
			ScheduledDate:   today.AddDate(0, 0, s.days),
			SubjectTemplate: s.subject,
			BodyTemplate:    s.template,
		}
		if err := tx.Create(&fu).Error; err != nil {
			return 0, Internal("Ошибка создания фоллоу-апа")
		}
	}

	database.LogActivity(tx, eng.ID, "system", "follow_up_sequence_created", map[string]any{
		"touchpoints": []string{"30_day", "60_day", "90_day"},
	})
	return len(seq), nil
}

// RenderFollowUp подставляет переменные в шаблоны тачпоинта.
func RenderFollowUp(fu *models.FollowUp, eng *models.Engagement) (subject, body string) {
	vars := map[string]string{
		"contact_name":             eng.Client.PrimaryContactName,
		"company_name":             eng.Client.CompanyName,
		"partner_name":             eng.PartnerLead,
		"metric_1_from_diagnostic": "[Key metric 1 — edit before sending]",
		"metric_2_from_diagnostic": "[Key metric 2 — edit before sending]",
	}
	if vars["contact_name"] == "" {
		vars["contact_name"] = "there"
	}
	if vars["partner_name"] == "" {
		vars["partner_name"] = "your BaxterLabs partner"
	}

	render := func(text string) string {
		for k, v := range vars {
			text = strings.ReplaceAll(text, "{"+k+"}", v)
		}
		return text
	}
	return render(fu.SubjectTemplate), render(fu.BodyTemplate)
}

func getFollowUp(db *gorm.DB, id uint) (*models.FollowUp, error) {
	var fu models.FollowUp
	if err := db.First(&fu, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Фоллоу-ап не найден")
		}
		return nil, Internal(err.Error())
	}
	return &fu, nil
}

// SendFollowUp отправляет письмо тачпоинта и фиксирует факт отправки.
// Уже отправленный или пропущенный тачпоинт повторно не отправляется.
func SendFollowUp(db *gorm.DB, clients *collab.Clients, followUpID uint, actualSubject, actualBody string) (*models.FollowUp, error) {
	fu, err := getFollowUp(db, followUpID)
	if err != nil {
		return nil, err
	}
	if fu.Status == models.FollowUpSent || fu.Status == models.FollowUpSkipped {
		return nil, Conflict("Фоллоу-ап уже в статусе " + string(fu.Status))
	}

	eng, err := getEngagement(db, fu.EngagementID)
	if err != nil {
		return nil, err
	}

	subject, body := RenderFollowUp(fu, eng)
	if actualSubject != "" {
		subject = actualSubject
	}
	if actualBody != "" {
		body = actualBody
	}

	if clients != nil && eng.Client.PrimaryContactEmail != "" {
		if err := collab.Dispatch(db, eng.ID, "email", "follow_up_"+string(fu.Touchpoint), map[string]any{
			"to": eng.Client.PrimaryContactEmail,
		}, func() error {
			return clients.Email.Send(eng.Client.PrimaryContactEmail, subject, body)
		}); err != nil {
			return nil, Internal("Не удалось отправить письмо: " + err.Error())
		}
	}

	now := time.Now()
	fu.Status = models.FollowUpSent
	fu.SentAt = &now
	fu.ActualSubject = subject
	fu.ActualBody = body
	if err := db.Save(fu).Error; err != nil {
		return nil, Internal("Ошибка обновления фоллоу-апа")
	}

	database.LogActivity(db, fu.EngagementID, "partner", "follow_up_sent", map[string]any{
		"touchpoint": string(fu.Touchpoint),
		"label":      touchpointLabels[fu.Touchpoint],
		"to":         eng.Client.PrimaryContactEmail,
	})
	return fu, nil
}

// SnoozeFollowUp откладывает тачпоинт; по умолчанию на неделю.
func SnoozeFollowUp(db *gorm.DB, followUpID uint, days int) (*models.FollowUp, error) {
	fu, err := getFollowUp(db, followUpID)
	if err != nil {
		return nil, err
	}
	if fu.Status == models.FollowUpSent || fu.Status == models.FollowUpSkipped {
		return nil, Conflict("Фоллоу-ап уже в статусе " + string(fu.Status))
	}
	if days <= 0 {
		days = defaultSnoozeDays
	}

	until := time.Now().AddDate(0, 0, days)
	fu.Status = models.FollowUpSnoozed
	fu.SnoozedUntil = &until
	if err := db.Save(fu).Error; err != nil {
		return nil, Internal("Ошибка обновления фоллоу-апа")
	}

	database.LogActivity(db, fu.EngagementID, "partner", "follow_up_snoozed", map[string]any{
		"touchpoint":    string(fu.Touchpoint),
		"snoozed_until": until.Format("2006-01-02"),
	})
	return fu, nil
}

// SkipFollowUp помечает тачпоинт пропущенным. Отправленный не пропустить.
func SkipFollowUp(db *gorm.DB, followUpID uint, notes string) (*models.FollowUp, error) {
	fu, err := getFollowUp(db, followUpID)
	if err != nil {
		return nil, err
	}
	if fu.Status == models.FollowUpSent {
		return nil, Conflict("Фоллоу-ап уже отправлен")
	}

	now := time.Now()
	fu.Status = models.FollowUpSkipped
	fu.SkippedAt = &now
	if notes != "" {
		fu.Notes = notes
	}
	if err := db.Save(fu).Error; err != nil {
		return nil, Internal("Ошибка обновления фоллоу-апа")
	}

	database.LogActivity(db, fu.EngagementID, "partner", "follow_up_skipped", map[string]any{
		"touchpoint": string(fu.Touchpoint),
		"notes":      notes,
	})
	return fu, nil
}

// EditFollowUp правит черновик письма до отправки.
func EditFollowUp(db *gorm.DB, followUpID uint, actualSubject, actualBody, notes *string) (*models.FollowUp, error) {
	fu, err := getFollowUp(db, followUpID)
	if err != nil {
		return nil, err
	}
	if actualSubject != nil {
		fu.ActualSubject = *actualSubject
	}
	if actualBody != nil {
		fu.ActualBody = *actualBody
	}
	if notes != nil {
		fu.Notes = *notes
	}
	if err := db.Save(fu).Error; err != nil {
		return nil, Internal("Ошибка обновления фоллоу-апа")
	}
	return fu, nil
}

// DueFollowUps — актуальные тачпоинты: запланированные плюс отложенные,
// у которых вышел срок. Только чтение, статусы не меняются.
func DueFollowUps(db *gorm.DB) ([]models.FollowUp, error) {
	now := time.Now()
	var due []models.FollowUp
	err := db.Where("status = ?", models.FollowUpScheduled).
		Or("status = ? AND snoozed_until <= ?", models.FollowUpSnoozed, now).
		Order("scheduled_date").
		Find(&due).Error
	if err != nil {
		return nil, Internal(err.Error())
	}
	return due, nil
}

// ListFollowUps возвращает тачпоинты проекта в порядке 30 → 60 → 90.
func ListFollowUps(db *gorm.DB, engagementID uint) ([]models.FollowUp, error) {
	var items []models.FollowUp
	if err := db.Where("engagement_id = ?", engagementID).Find(&items).Error; err != nil {
		return nil, Internal(err.Error())
	}
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if touchpointOrder[items[j].Touchpoint] < touchpointOrder[items[i].Touchpoint] {
				items[i], items[j] = items[j], items[i]
			}
		}
	}
	return items, nil
}
