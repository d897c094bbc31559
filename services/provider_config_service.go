package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/juniorcfabio/viralizaai-backend/database"
	"github.com/juniorcfabio/viralizaai-backend/models"
	"gorm.io/gorm"
)

// Fallback when the admin config carries no minimum for the currency.
// Matches Stripe's documented floor of 50 minor units.
const defaultMinimumMinorUnits int64 = 50

func GetActiveProviderConfig(provider string) (*models.PaymentProviderConfig, error) {
	var cfg models.PaymentProviderConfig
	err := database.DB.Where("provider = ?", provider).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("Configurações do provedor %s não encontradas ou inativas.", provider))
		}
		return nil, err
	}

	if !cfg.IsActive || cfg.Config == nil {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("Configurações do provedor %s não encontradas ou inativas.", provider))
	}

	return &cfg, nil
}

// StripeCredentials pulls the keys out of the schemaless config blob through
// one typed accessor instead of free-form lookups at every call site.
func StripeCredentials(cfg *models.PaymentProviderConfig) (secretKey, publicKey string, err error) {
	secretKey, _ = cfg.Config["secretKey"].(string)
	publicKey, _ = cfg.Config["publicKey"].(string)

	if secretKey == "" || publicKey == "" {
		return "", "", fiber.NewError(fiber.StatusBadRequest,
			"Chaves da Stripe não configuradas corretamente.")
	}
	return secretKey, publicKey, nil
}

// MinimumMinorUnits resolves the smallest chargeable amount for a currency:
// per-currency override, then the provider-wide value, then the default.
func MinimumMinorUnits(cfg *models.PaymentProviderConfig, currency string) int64 {
	if perCurrency, ok := cfg.Config["minimumAmounts"].(map[string]interface{}); ok {
		if raw, ok := perCurrency[currency]; ok {
			if value, ok := toInt64(raw); ok {
				return value
			}
		}
	}

	if raw, ok := cfg.Config["minimumAmount"]; ok {
		if value, ok := toInt64(raw); ok {
			return value
		}
	}

	return defaultMinimumMinorUnits
}

func toInt64(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
