package models

import (
	"time"

	"gorm.io/gorm"
)

type InvoiceType string
type InvoiceStatus string

const (
	InvoiceDeposit InvoiceType = "deposit"
	InvoiceFinal   InvoiceType = "final"

	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
	InvoiceVoid    InvoiceStatus = "void"
)

// Invoice — не более одного не-аннулированного счёта каждого типа на проект;
// void освобождает слот для перегенерации.
type Invoice struct {
	gorm.Model
	EngagementID uint `gorm:"index"`

	Number string      `gorm:"size:20;uniqueIndex"`
	Type   InvoiceType `gorm:"type:varchar(20);not null"`
	Amount float64     `gorm:"not null"`

	Status      InvoiceStatus `gorm:"type:varchar(20);not null"`
	PaymentLink string        `gorm:"size:512"`
	SessionID   string        `gorm:"size:255"` // checkout-сессия у платёжного провайдера

	IssuedAt *time.Time
	DueDate  *time.Time
	PaidAt   *time.Time
	VoidedAt *time.Time
}
