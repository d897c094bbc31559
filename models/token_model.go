package models

import (
	"time"

	"github.com/google/uuid"
)

type EmailVerificationToken struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key"`
	Token     string     `gorm:"size:64;not null;unique"`
	UserID    uuid.UUID  `gorm:"not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time
}

type PasswordResetToken struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key"`
	Token     string     `gorm:"size:64;not null;unique"`
	UserID    uuid.UUID  `gorm:"not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time
}
