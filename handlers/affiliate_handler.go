package handlers

import (
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/juniorcfabio/viralizaai-backend/database"
	"github.com/juniorcfabio/viralizaai-backend/models"
	"github.com/juniorcfabio/viralizaai-backend/services"
	"github.com/shopspring/decimal"
)

func GetMyCommissions(c *fiber.Ctx) error {
	affiliateCode := c.Query("affiliateCode")
	if affiliateCode == "" {
		return c.JSON(fiber.Map{
			"commissions": []models.AffiliateCommission{},
			"totals":      services.CommissionTotals{},
		})
	}

	var commissions []models.AffiliateCommission
	err := database.DB.Where("affiliate_code = ?", affiliateCode).
		Order("created_at DESC").Find(&commissions).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list commissions"})
	}

	return c.JSON(fiber.Map{
		"commissions": commissions,
		"totals":      services.SumCommissionTotals(commissions),
	})
}

type purchasedItem struct {
	ItemType string `json:"itemType"`
	ItemID   string `json:"itemId"`
}

type referredUser struct {
	ReferredUserID    string          `json:"referredUserId"`
	ReferredUserName  string          `json:"referredUserName,omitempty"`
	ReferredUserEmail string          `json:"referredUserEmail,omitempty"`
	FirstSeenAt       time.Time       `json:"firstSeenAt"`
	LastSeenAt        time.Time       `json:"lastSeenAt"`
	HasPlan           bool            `json:"hasPlan"`
	HasGrowthEngine   bool            `json:"hasGrowthEngine"`
	HasAds            bool            `json:"hasAds"`
	Purchases         int             `json:"purchases"`
	PurchasedPlans    []string        `json:"purchasedPlans"`
	PurchasedAddons   []string        `json:"purchasedAddons"`
	PurchasedItems    []purchasedItem `json:"purchasedItems"`
}

// GetMyReferredUsers aggregates an affiliate's commissions into one row per
// referred user, using the same metadata alias fallbacks as the derivation.
func GetMyReferredUsers(c *fiber.Ctx) error {
	affiliateCode := c.Query("affiliateCode")
	if affiliateCode == "" {
		return c.JSON(fiber.Map{"referredUserIds": []string{}, "referredUsers": []referredUser{}})
	}

	var commissions []models.AffiliateCommission
	err := database.DB.Where("affiliate_code = ?", affiliateCode).
		Order("created_at DESC").Find(&commissions).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list commissions"})
	}

	byUser := map[string]*referredUser{}
	ids := []string{}

	for i := range commissions {
		commission := &commissions[i]
		id := commissionReferredUserID(commission)
		if id == "" {
			continue
		}

		name := commissionMetadataString(commission, "referredUserName", "userName")
		email := commissionMetadataString(commission, "referredUserEmail", "userEmail")
		itemType := commissionMetadataString(commission, "itemType")
		itemID := commissionMetadataString(commission, "itemId")

		current, ok := byUser[id]
		if !ok {
			current = &referredUser{
				ReferredUserID:  id,
				FirstSeenAt:     commission.CreatedAt,
				LastSeenAt:      commission.CreatedAt,
				PurchasedPlans:  []string{},
				PurchasedAddons: []string{},
				PurchasedItems:  []purchasedItem{},
			}
			byUser[id] = current
			ids = append(ids, id)
		}

		current.Purchases++
		if current.ReferredUserName == "" {
			current.ReferredUserName = name
		}
		if current.ReferredUserEmail == "" {
			current.ReferredUserEmail = email
		}
		if commission.CreatedAt.Before(current.FirstSeenAt) {
			current.FirstSeenAt = commission.CreatedAt
		}
		if commission.CreatedAt.After(current.LastSeenAt) {
			current.LastSeenAt = commission.CreatedAt
		}

		if itemType != "" && itemID != "" {
			exists := false
			for _, item := range current.PurchasedItems {
				if item.ItemType == itemType && item.ItemID == itemID {
					exists = true
					break
				}
			}
			if !exists {
				current.PurchasedItems = append(current.PurchasedItems, purchasedItem{ItemType: itemType, ItemID: itemID})
			}
		}

		switch itemType {
		case models.ItemTypePlan:
			current.HasPlan = true
			appendUnique(&current.PurchasedPlans, itemID)
		case models.ItemTypeAddon:
			appendUnique(&current.PurchasedAddons, itemID)
			lowered := strings.ToLower(itemID)
			if strings.HasPrefix(lowered, "motor de crescimento") {
				current.HasGrowthEngine = true
			}
			if strings.HasPrefix(lowered, "anúncio") {
				current.HasAds = true
			}
		}
	}

	users := make([]referredUser, 0, len(byUser))
	for _, u := range byUser {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].LastSeenAt.After(users[j].LastSeenAt)
	})

	return c.JSON(fiber.Map{"referredUserIds": ids, "referredUsers": users})
}

func AdminListCommissions(c *fiber.Ctx) error {
	query := database.DB.Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var commissions []models.AffiliateCommission
	if err := query.Find(&commissions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list commissions"})
	}
	return c.JSON(commissions)
}

type summaryRow struct {
	AffiliateCode string  `json:"affiliateCode"`
	ItemType      string  `json:"itemType"`
	ItemID        string  `json:"itemId"`
	ProductType   string  `json:"productType"`
	Currency      string  `json:"currency"`
	PendingCount  int     `json:"pendingCount"`
	PaidCount     int     `json:"paidCount"`
	TotalCount    int     `json:"totalCount"`
	PendingAmount float64 `json:"pendingAmount"`
	PaidAmount    float64 `json:"paidAmount"`
	TotalAmount   float64 `json:"totalAmount"`

	pending decimal.Decimal
	paid    decimal.Decimal
	total   decimal.Decimal
}

// AdminCommissionSummary rolls commissions up per affiliate and product
// type, with exact decimal sums rounded to two places at the edge.
func AdminCommissionSummary(c *fiber.Ctx) error {
	var commissions []models.AffiliateCommission
	if err := database.DB.Find(&commissions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load commissions"})
	}

	rows := map[string]*summaryRow{}
	order := []string{}

	for i := range commissions {
		commission := &commissions[i]
		itemType := commissionMetadataString(commission, "itemType")
		if itemType == "" {
			itemType = "unknown"
		}
		itemID := commissionMetadataString(commission, "itemId")
		productType := classifyProduct(itemType, itemID)

		key := commission.AffiliateCode + "|" + itemType + "|" + itemID + "|" + productType + "|" + commission.Currency
		row, ok := rows[key]
		if !ok {
			row = &summaryRow{
				AffiliateCode: commission.AffiliateCode,
				ItemType:      itemType,
				ItemID:        itemID,
				ProductType:   productType,
				Currency:      commission.Currency,
			}
			rows[key] = row
			order = append(order, key)
		}

		amount := decimal.NewFromFloat(commission.Amount)
		row.TotalCount++
		row.total = row.total.Add(amount)
		switch commission.Status {
		case models.CommissionStatusPending:
			row.PendingCount++
			row.pending = row.pending.Add(amount)
		case models.CommissionStatusPaid:
			row.PaidCount++
			row.paid = row.paid.Add(amount)
		}
	}

	summary := make([]summaryRow, 0, len(rows))
	for _, key := range order {
		row := rows[key]
		row.PendingAmount, _ = row.pending.Round(2).Float64()
		row.PaidAmount, _ = row.paid.Round(2).Float64()
		row.TotalAmount, _ = row.total.Round(2).Float64()
		summary = append(summary, *row)
	}
	sort.Slice(summary, func(i, j int) bool {
		if summary[i].AffiliateCode != summary[j].AffiliateCode {
			return summary[i].AffiliateCode < summary[j].AffiliateCode
		}
		return summary[i].ProductType < summary[j].ProductType
	})

	return c.JSON(fiber.Map{"summary": summary})
}

// MarkCommissionPaid is the only path that ever moves a commission out of
// pending.
func MarkCommissionPaid(c *fiber.Ctx) error {
	id := c.Params("id")

	var commission models.AffiliateCommission
	if err := database.DB.Where("id = ?", id).First(&commission).Error; err != nil {
		return c.JSON(fiber.Map{"ok": false, "message": "Comissão não encontrada"})
	}

	now := time.Now()
	commission.Status = models.CommissionStatusPaid
	commission.PaidAt = &now

	if err := database.DB.Save(&commission).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update commission"})
	}
	return c.JSON(fiber.Map{"ok": true, "commission": commission})
}

func classifyProduct(itemType, itemID string) string {
	lowered := strings.ToLower(itemID)
	switch {
	case itemType == models.ItemTypePlan:
		return "plan"
	case itemType == models.ItemTypeAddon && strings.HasPrefix(lowered, "motor de crescimento"):
		return "growth_engine"
	case itemType == models.ItemTypeAddon && strings.HasPrefix(lowered, "anúncio"):
		return "ads"
	case itemType == models.ItemTypeAddon:
		return "addon_other"
	}
	return "unknown"
}

func commissionReferredUserID(commission *models.AffiliateCommission) string {
	if commission.ReferredUserID != nil && *commission.ReferredUserID != "" {
		return *commission.ReferredUserID
	}
	return commissionMetadataString(commission, "referredUserId", "userId")
}

func commissionMetadataString(commission *models.AffiliateCommission, aliases ...string) string {
	if commission.Metadata == nil {
		return ""
	}
	for _, key := range aliases {
		if value, ok := commission.Metadata[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func appendUnique(values *[]string, value string) {
	if value == "" {
		return
	}
	for _, existing := range *values {
		if existing == value {
			return
		}
	}
	*values = append(*values, value)
}
