package workflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"engagement-crm/internal/collab"
	"engagement-crm/internal/database"
	"engagement-crm/internal/models"

	"gorm.io/gorm"
)

const invoiceDueDays = 14

// nextInvoiceNumber выдаёт следующий сквозной номер BL-{год}-{NNN}.
// Берём последний созданный счёт года, а не строковый максимум номера:
// строковая сортировка ломается, когда суффикс переваливает за 999.
func nextInvoiceNumber(tx *gorm.DB) (string, error) {
	prefix := fmt.Sprintf("BL-%d-", time.Now().Year())

	var last models.Invoice
	err := tx.Where("number LIKE ?", prefix+"%").Order("id DESC").First(&last).Error
	seq := 1
	switch {
	case err == nil:
		parts := strings.Split(last.Number, "-")
		if n, perr := strconv.Atoi(parts[len(parts)-1]); perr == nil {
			seq = n + 1
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", err
	}
	return fmt.Sprintf("%s%03d", prefix, seq), nil
}

// GenerateInvoice выставляет счёт по вехе: deposit после подписания
// договора, final после завершения фаз. Сумма — половина гонорара.
// Пока существует не-аннулированный счёт того же типа, новый не создаётся.
func GenerateInvoice(db *gorm.DB, clients *collab.Clients, engagementID uint, invType models.InvoiceType) (*models.Invoice, error) {
	if invType != models.InvoiceDeposit && invType != models.InvoiceFinal {
		return nil, Validation("Тип счёта должен быть deposit или final")
	}

	eng, err := getEngagement(db, engagementID)
	if err != nil {
		return nil, err
	}
	if err := guardOpen(eng); err != nil {
		return nil, err
	}

	milestone := models.StatusAgreementSigned
	if invType == models.InvoiceFinal {
		milestone = models.StatusPhasesComplete
	}
	if models.StatusIndex(eng.Status) < models.StatusIndex(milestone) {
		return nil, Validation(fmt.Sprintf("Счёт %s доступен только после вехи %s", invType, milestone))
	}
	if eng.Fee <= 0 {
		return nil, Validation("У проекта не задан гонорар")
	}

	amount := eng.Fee / 2

	var invoice models.Invoice
	err = db.Transaction(func(tx *gorm.DB) error {
		var existing models.Invoice
		err := tx.Where("engagement_id = ? AND type = ? AND status <> ?",
			engagementID, invType, models.InvoiceVoid).First(&existing).Error
		if err == nil {
			return Conflict("Не-аннулированный счёт типа " + string(invType) + " уже существует: " + existing.Number)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return Internal(err.Error())
		}

		number, err := nextInvoiceNumber(tx)
		if err != nil {
			return Internal(err.Error())
		}

		now := time.Now()
		due := now.AddDate(0, 0, invoiceDueDays)
		invoice = models.Invoice{
			EngagementID: engagementID,
			Number:       number,
			Type:         invType,
			Amount:       amount,
			Status:       models.InvoiceSent,
			IssuedAt:     &now,
			DueDate:      &due,
		}
		if err := tx.Create(&invoice).Error; err != nil {
			return Internal("Ошибка создания счёта")
		}

		database.LogActivity(tx, engagementID, "system", "invoice_created", map[string]any{
			"invoice_number": number,
			"type":           string(invType),
			"amount":         amount,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// платёжная сессия и письмо клиенту — после коммита, не блокируют счёт
	if clients != nil {
		_ = collab.Dispatch(db, engagementID, "payments", "create_checkout", map[string]any{
			"invoice_number": invoice.Number,
		}, func() error {
			sessionID, link, err := clients.Payments.CreateCheckout(invoice.Number, invoice.Amount, eng.Client.CompanyName)
			if err != nil {
				return err
			}
			invoice.SessionID = sessionID
			invoice.PaymentLink = link
			return db.Save(&invoice).Error
		})

		if eng.Client.PrimaryContactEmail != "" {
			_ = collab.Dispatch(db, engagementID, "email", "invoice_sent", map[string]any{
				"invoice_number": invoice.Number,
			}, func() error {
				return clients.Email.Send(eng.Client.PrimaryContactEmail,
					fmt.Sprintf("Invoice %s from BaxterLabs", invoice.Number),
					invoiceEmailBody(eng, &invoice))
			})
		}
	}

	return &invoice, nil
}

func invoiceEmailBody(eng *models.Engagement, inv *models.Invoice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", eng.Client.PrimaryContactName)
	fmt.Fprintf(&b, "Please find invoice %s (%s) for $%.2f.\n", inv.Number, inv.Type, inv.Amount)
	if inv.DueDate != nil {
		fmt.Fprintf(&b, "Due date: %s.\n", inv.DueDate.Format("2006-01-02"))
	}
	if inv.PaymentLink != "" {
		fmt.Fprintf(&b, "Pay online: %s\n", inv.PaymentLink)
	}
	return b.String()
}

func getInvoice(db *gorm.DB, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := db.First(&inv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Счёт не найден")
		}
		return nil, Internal(err.Error())
	}
	return &inv, nil
}

// ResendInvoice повторно отправляет письмо со счётом.
func ResendInvoice(db *gorm.DB, clients *collab.Clients, invoiceID uint) (*models.Invoice, error) {
	inv, err := getInvoice(db, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvoiceVoid {
		return nil, Conflict("Нельзя переотправить аннулированный счёт")
	}

	eng, err := getEngagement(db, inv.EngagementID)
	if err != nil {
		return nil, err
	}
	if clients != nil && eng.Client.PrimaryContactEmail != "" {
		_ = collab.Dispatch(db, eng.ID, "email", "invoice_resent", map[string]any{
			"invoice_number": inv.Number,
		}, func() error {
			return clients.Email.Send(eng.Client.PrimaryContactEmail,
				fmt.Sprintf("Invoice %s from BaxterLabs", inv.Number),
				invoiceEmailBody(eng, inv))
		})
	}

	database.LogActivity(db, inv.EngagementID, "partner", "invoice_resent", map[string]any{
		"invoice_number": inv.Number,
	})
	return inv, nil
}

// VoidInvoice аннулирует счёт. Необратимо; оплаченный счёт не аннулируется.
// void освобождает слот типа — после него можно перегенерировать счёт.
func VoidInvoice(db *gorm.DB, invoiceID uint) (*models.Invoice, error) {
	inv, err := getInvoice(db, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvoicePaid {
		return nil, Conflict("Нельзя аннулировать оплаченный счёт")
	}
	if inv.Status == models.InvoiceVoid {
		return nil, Conflict("Счёт уже аннулирован")
	}

	now := time.Now()
	inv.Status = models.InvoiceVoid
	inv.VoidedAt = &now
	if err := db.Save(inv).Error; err != nil {
		return nil, Internal("Ошибка аннулирования счёта")
	}

	database.LogActivity(db, inv.EngagementID, "partner", "invoice_voided", map[string]any{
		"invoice_number": inv.Number,
	})
	return inv, nil
}

// MarkInvoicePaid — ручная отметка оплаты (чек, перевод).
func MarkInvoicePaid(db *gorm.DB, clients *collab.Clients, invoiceID uint, method string) (*models.Invoice, error) {
	inv, err := getInvoice(db, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvoicePaid {
		return nil, Conflict("Счёт уже оплачен")
	}
	if inv.Status == models.InvoiceVoid {
		return nil, Conflict("Нельзя оплатить аннулированный счёт")
	}
	if method == "" {
		method = "manual"
	}

	now := time.Now()
	inv.Status = models.InvoicePaid
	inv.PaidAt = &now
	if err := db.Save(inv).Error; err != nil {
		return nil, Internal("Ошибка обновления счёта")
	}

	database.LogActivity(db, inv.EngagementID, "partner", "invoice_marked_paid", map[string]any{
		"invoice_number": inv.Number,
		"amount":         inv.Amount,
		"method":         method,
	})

	if clients != nil && clients.PartnerEmail != "" {
		_ = collab.Dispatch(db, inv.EngagementID, "email", "payment_notification", map[string]any{
			"invoice_number": inv.Number,
		}, func() error {
			return clients.Email.Send(clients.PartnerEmail,
				fmt.Sprintf("Payment received: %s", inv.Number),
				fmt.Sprintf("Invoice %s paid ($%.2f, %s).\n", inv.Number, inv.Amount, method))
		})
	}
	return inv, nil
}

// PaymentReceived — колбэк платёжного провайдера по checkout-сессии.
// Повтор по уже оплаченному счёту — no-op.
func PaymentReceived(db *gorm.DB, clients *collab.Clients, sessionID string) (*models.Invoice, error) {
	if sessionID == "" {
		return nil, Validation("Не задан идентификатор сессии")
	}
	var inv models.Invoice
	if err := db.Where("session_id = ?", sessionID).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Счёт по сессии не найден")
		}
		return nil, Internal(err.Error())
	}
	if inv.Status == models.InvoicePaid {
		return &inv, nil
	}
	if inv.Status == models.InvoiceVoid {
		return nil, Conflict("Оплата по аннулированному счёту")
	}
	return MarkInvoicePaid(db, clients, inv.ID, "checkout")
}

// CheckOverdue помечает просроченные отправленные счета. Апдейт условный:
// счёт, успевший смениться между выборкой и записью (оплата, void),
// не трогается.
func CheckOverdue(db *gorm.DB) ([]string, error) {
	var candidates []models.Invoice
	if err := db.Where("status = ? AND due_date < ?", models.InvoiceSent, time.Now()).Find(&candidates).Error; err != nil {
		return nil, Internal(err.Error())
	}

	var updated []string
	for i := range candidates {
		res := db.Model(&models.Invoice{}).
			Where("id = ? AND status = ?", candidates[i].ID, models.InvoiceSent).
			Update("status", models.InvoiceOverdue)
		if res.Error != nil {
			return updated, Internal("Ошибка обновления счёта")
		}
		if res.RowsAffected == 0 {
			continue
		}
		database.LogActivity(db, candidates[i].EngagementID, "system", "invoice_overdue", map[string]any{
			"invoice_number": candidates[i].Number,
			"amount":         candidates[i].Amount,
		})
		updated = append(updated, candidates[i].Number)
	}
	return updated, nil
}

// OverdueInvoices — отправленные счета с истёкшим сроком. Только чтение,
// статусы не меняются; пометкой занимается CheckOverdue по явной команде.
func OverdueInvoices(db *gorm.DB) ([]models.Invoice, error) {
	var due []models.Invoice
	if err := db.Where("status = ? AND due_date < ?", models.InvoiceSent, time.Now()).
		Order("due_date").Find(&due).Error; err != nil {
		return nil, Internal(err.Error())
	}
	return due, nil
}

// RevenueSummary — сводка по выручке без учёта аннулированных счетов.
type RevenueSummary struct {
	TotalInvoiced    float64 `json:"total_invoiced"`
	TotalPaid        float64 `json:"total_paid"`
	TotalOutstanding float64 `json:"total_outstanding"`
	TotalOverdue     float64 `json:"total_overdue"`
	InvoiceCount     int     `json:"invoice_count"`
	DepositCount     int     `json:"deposit_count"`
	FinalCount       int     `json:"final_count"`
}

func BuildRevenueSummary(db *gorm.DB) (*RevenueSummary, error) {
	var invoices []models.Invoice
	if err := db.Find(&invoices).Error; err != nil {
		return nil, Internal(err.Error())
	}

	s := &RevenueSummary{InvoiceCount: len(invoices)}
	for _, inv := range invoices {
		if inv.Status == models.InvoiceVoid {
			continue
		}
		s.TotalInvoiced += inv.Amount
		switch inv.Status {
		case models.InvoicePaid:
			s.TotalPaid += inv.Amount
		case models.InvoiceSent:
			s.TotalOutstanding += inv.Amount
		case models.InvoiceOverdue:
			s.TotalOutstanding += inv.Amount
			s.TotalOverdue += inv.Amount
		}
		switch inv.Type {
		case models.InvoiceDeposit:
			s.DepositCount++
		case models.InvoiceFinal:
			s.FinalCount++
		}
	}
	return s, nil
}
