package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/juniorcfabio/viralizaai-backend/database"
	"github.com/juniorcfabio/viralizaai-backend/models"
	"github.com/juniorcfabio/viralizaai-backend/services"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GetPaymentConfigs answers one entry per known provider so the admin
// screen can render unconfigured ones as empty forms.
func GetPaymentConfigs(c *fiber.Ctx) error {
	var configs []models.PaymentProviderConfig
	if err := database.DB.Find(&configs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load provider configs"})
	}

	byProvider := make(map[string]*models.PaymentProviderConfig, len(models.ProviderKeys))
	for _, provider := range models.ProviderKeys {
		byProvider[provider] = nil
	}
	for i := range configs {
		byProvider[configs[i].Provider] = &configs[i]
	}

	return c.JSON(byProvider)
}

type upsertProviderConfigRequest struct {
	IsActive *bool                  `json:"isActive"`
	Config   map[string]interface{} `json:"config"`
}

func UpsertPaymentConfig(c *fiber.Ctx) error {
	provider := c.Params("provider")
	if !models.IsKnownProvider(provider) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Provedor de pagamento desconhecido."})
	}

	var req upsertProviderConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	var cfg models.PaymentProviderConfig
	err := database.DB.Where("provider = ?", provider).First(&cfg).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
		}
		cfg = models.PaymentProviderConfig{Provider: provider}
	}

	if req.IsActive != nil {
		cfg.IsActive = *req.IsActive
	}
	if req.Config != nil {
		cfg.Config = datatypes.JSONMap(req.Config)
	}

	if err := database.DB.Save(&cfg).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save provider config"})
	}
	return c.JSON(cfg)
}

func GetAffiliateSettings(c *fiber.Ctx) error {
	settings, err := services.GetOrCreateAffiliateSettings()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load affiliate settings"})
	}
	return c.JSON(settings)
}

func UpdateAffiliateSettings(c *fiber.Ctx) error {
	var req struct {
		CommissionRatePercent *float64 `json:"commissionRatePercent"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if req.CommissionRatePercent == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "commissionRatePercent é obrigatório."})
	}
	if *req.CommissionRatePercent <= 0 || *req.CommissionRatePercent > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "commissionRatePercent deve estar entre 0 e 100."})
	}

	settings, err := services.GetOrCreateAffiliateSettings()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load affiliate settings"})
	}

	settings.CommissionRatePercent = *req.CommissionRatePercent
	if err := database.DB.Save(settings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save affiliate settings"})
	}
	return c.JSON(settings)
}
