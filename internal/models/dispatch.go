package models

import (
	"time"

	"gorm.io/gorm"
)

type DispatchStatus string

const (
	DispatchPending DispatchStatus = "pending"
	DispatchSent    DispatchStatus = "sent"
	DispatchFailed  DispatchStatus = "failed"
)

// OutboundDispatch — факт обращения к внешнему сервису (e-sign, платежи,
// хранилище, почта). Сама попытка — записанный факт: локальная транзакция
// коммитится независимо от исхода вызова, а неуспех виден и ретраится.
type OutboundDispatch struct {
	gorm.Model
	EngagementID uint `gorm:"index"`

	Collaborator string `gorm:"size:50;not null"` // "esign", "payments", "storage", "email"
	Kind         string `gorm:"size:100;not null"`
	Payload      string `gorm:"type:text"`

	Status      DispatchStatus `gorm:"type:varchar(20);not null"`
	Attempts    int
	LastError   string `gorm:"type:text"`
	CompletedAt *time.Time
}
