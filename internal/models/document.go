package models

import (
	"time"

	"gorm.io/gorm"
)

// Document — загруженный клиентом файл. Для файлов из чеклиста ItemName
// содержит ключ пункта; пара (engagement_id, item_name) уникальна —
// повторная загрузка заменяет файл, а не плодит дубликаты.
type Document struct {
	gorm.Model
	EngagementID uint `gorm:"index;index:idx_doc_item,unique"`

	Category    string  `gorm:"size:50;not null"`
	ItemName    *string `gorm:"size:100;index:idx_doc_item,unique"`
	Filename    string  `gorm:"size:255;not null"`
	StoragePath string  `gorm:"size:512;not null"`
	FileSize    int64
	UploadedBy  string `gorm:"size:50"` // client / partner
	UploadedAt  time.Time
}
