package models

import "time"

type AppSettings struct {
	ID              uint   `gorm:"primaryKey"` // single-row table (ID=1)
	Version         int    `gorm:"not null;default:1"`
	Theme           string `gorm:"not null;default:system"` // "light" | "dark" | "system"
	DefaultModelKey string `gorm:"size:255"`
	QueueLimit      int    `gorm:"not null;default:200"`
	DocSyncURL      string `gorm:"size:1024"`
	UpdatedAt       time.Time
}
