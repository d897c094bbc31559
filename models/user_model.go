package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;not null;unique" json:"email"`
	CPF          string    `gorm:"column:cpf;size:11;not null;unique" json:"cpf"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"size:20;not null;default:'client'" json:"role"`

	// Code handed out to the affiliate program, carried through checkout
	// metadata as referralCode.
	AffiliateCode *string `gorm:"size:20;unique" json:"affiliate_code"`

	EmailVerifiedAt *time.Time `json:"email_verified_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
