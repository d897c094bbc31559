package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ProviderStripe      = "stripe"
	ProviderPagarme     = "pagarme"
	ProviderMercadoPago = "mercadopago"
	ProviderPayPal      = "paypal"
	ProviderPix         = "pix"
	ProviderCrypto      = "crypto"
)

// ProviderKeys is the closed set of providers the admin screen knows about.
var ProviderKeys = []string{
	ProviderStripe,
	ProviderPagarme,
	ProviderMercadoPago,
	ProviderPayPal,
	ProviderPix,
	ProviderCrypto,
}

func IsKnownProvider(provider string) bool {
	for _, p := range ProviderKeys {
		if p == provider {
			return true
		}
	}
	return false
}

type PaymentProviderConfig struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Provider string    `gorm:"size:50;not null;unique" json:"provider"`
	IsActive bool      `gorm:"not null;default:false" json:"is_active"`

	// Credentials and per-provider parameters, kept server-side only.
	Config datatypes.JSONMap `json:"config"`
}
