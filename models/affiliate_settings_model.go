package models

import (
	"time"

	"github.com/google/uuid"
)

const DefaultCommissionRatePercent = 20.00

// AffiliateSettings is a singleton by convention: the oldest row wins, and
// one is materialized with the default rate when none exists yet.
type AffiliateSettings struct {
	ID                    uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CommissionRatePercent float64   `gorm:"type:numeric(5,2);not null;default:20.00" json:"commission_rate_percent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
