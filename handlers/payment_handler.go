package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/juniorcfabio/viralizaai-backend/models"
	"github.com/juniorcfabio/viralizaai-backend/services"
)

func PaymentsTest(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true, "message": "Payments API online"})
}

func CreateTestTransaction(c *fiber.Ctx) error {
	userID := c.Query("userId", "USER_TESTE")
	provider := c.Query("provider", models.ProviderStripe)

	tx, err := services.CreateTestTransaction(userID, provider)
	if err != nil {
		log.Printf("🔥 Failed to create test transaction: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create transaction"})
	}
	return c.JSON(tx)
}

func ListTransactions(c *fiber.Ctx) error {
	txs, err := services.ListTransactions()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list transactions"})
	}
	return c.JSON(txs)
}

func CreateCheckout(c *fiber.Ctx) error {
	var req services.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := services.CreateStripeCheckout(req)
	if err != nil {
		return paymentError(c, err, "Failed to create checkout")
	}
	return c.JSON(result)
}

func ConfirmTransaction(c *fiber.Ctx) error {
	var req struct {
		TxID string `json:"txId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	tx, err := services.ConfirmTransaction(req.TxID)
	if err != nil {
		return paymentError(c, err, "Failed to confirm transaction")
	}
	return c.JSON(tx)
}

// HandleStripeWebhook acknowledges everything it can: unknown event types
// and unknown transactions come back 200 with an ignored reason, because
// Stripe retries any non-2xx without looking at the body.
func HandleStripeWebhook(c *fiber.Ctx) error {
	var payload map[string]interface{}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse webhook payload"})
	}

	result, err := services.HandleStripeWebhookEvent(payload)
	if err != nil {
		log.Printf("🔥 CRITICAL: Error processing Stripe webhook: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process webhook"})
	}
	return c.JSON(result)
}

func CreateAffiliateCommissionManually(c *fiber.Ctx) error {
	var req services.ManualCommissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	commission, err := services.CreateAffiliateCommissionManually(req)
	if err != nil {
		return paymentError(c, err, "Failed to create commission")
	}
	return c.JSON(fiber.Map{"ok": true, "commission": commission})
}

func paymentError(c *fiber.Ctx, err error, fallback string) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}
	log.Printf("🔥 %s: %v", fallback, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
}
