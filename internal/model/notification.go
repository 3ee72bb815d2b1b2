package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an inbox message delivered to an employee.
type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    int64     `gorm:"not null;index"`
	Title     string    `gorm:"not null"`
	Content   string    `gorm:"not null"`
	IsRead    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Notice is a message the engine wants delivered once its mutation is persisted.
type Notice struct {
	UserID  int64
	Title   string
	Content string
}
