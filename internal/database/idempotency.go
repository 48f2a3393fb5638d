package database

import (
	"errors"

	"gorm.io/gorm"
)

// CreateIfAbsent — общий примитив "создай, если ещё нет" под уникальным
// условием. Конверсия, счета и фоллоу-апы требуют at-most-once семантики
// при ретраях; вся проверка собрана здесь, а не размазана по обработчикам.
// Возвращает true, если запись создана именно этим вызовом.
func CreateIfAbsent[T any](tx *gorm.DB, cond map[string]any, record *T) (bool, error) {
	var existing T
	err := tx.Where(cond).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	if err := tx.Create(record).Error; err != nil {
		return false, err
	}
	return true, nil
}
