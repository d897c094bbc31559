package services

import (
	"log"
	"strconv"

	config "github.com/juniorcfabio/viralizaai-backend/configs"
	"github.com/juniorcfabio/viralizaai-backend/database"
	"github.com/juniorcfabio/viralizaai-backend/models"
	"github.com/shopspring/decimal"
)

// GetOrCreateAffiliateSettings returns the authoritative settings row (the
// oldest one), materializing it with the default rate when none exists.
func GetOrCreateAffiliateSettings() (*models.AffiliateSettings, error) {
	var settings models.AffiliateSettings
	err := database.DB.Order("created_at ASC").First(&settings).Error
	if err == nil {
		return &settings, nil
	}

	settings = models.AffiliateSettings{
		CommissionRatePercent: models.DefaultCommissionRatePercent,
	}
	if err := database.DB.Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// ResolveCommissionRate returns the commission rate as a fraction (0.20 for
// 20%). Resolution order, later wins: built-in default, stored settings
// when positive, AFFILIATE_COMMISSION_RATE deployment override.
func ResolveCommissionRate() float64 {
	rate := models.DefaultCommissionRatePercent / 100

	var settings models.AffiliateSettings
	if err := database.DB.Order("created_at ASC").First(&settings).Error; err == nil {
		if settings.CommissionRatePercent > 0 {
			rate = settings.CommissionRatePercent / 100
		}
	}

	if fromEnv := config.Config("AFFILIATE_COMMISSION_RATE"); fromEnv != "" {
		percent, err := strconv.ParseFloat(fromEnv, 64)
		if err != nil {
			log.Printf("⚠️ Invalid AFFILIATE_COMMISSION_RATE %q, ignoring", fromEnv)
		} else {
			rate = percent / 100
		}
	}

	return rate
}

// CommissionAmount applies the rate to a transaction amount, rounded to two
// decimal places.
func CommissionAmount(txAmount, rate float64) float64 {
	value := decimal.NewFromFloat(txAmount).
		Mul(decimal.NewFromFloat(rate)).
		Round(2)
	amount, _ := value.Float64()
	return amount
}

type CommissionTotals struct {
	Pending float64 `json:"pending"`
	Paid    float64 `json:"paid"`
}

// SumCommissionTotals accumulates pending and paid amounts with decimal
// arithmetic so the totals stay exact at two decimal places.
func SumCommissionTotals(commissions []models.AffiliateCommission) CommissionTotals {
	pending := decimal.Zero
	paid := decimal.Zero

	for _, c := range commissions {
		amount := decimal.NewFromFloat(c.Amount)
		switch c.Status {
		case models.CommissionStatusPending:
			pending = pending.Add(amount)
		case models.CommissionStatusPaid:
			paid = paid.Add(amount)
		}
	}

	totals := CommissionTotals{}
	totals.Pending, _ = pending.Round(2).Float64()
	totals.Paid, _ = paid.Round(2).Float64()
	return totals
}
