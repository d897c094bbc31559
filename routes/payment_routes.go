package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/juniorcfabio/viralizaai-backend/handlers"
	"github.com/juniorcfabio/viralizaai-backend/middleware"
)

func PaymentRoutes(app *fiber.App) {
	payments := app.Group("/payments")

	payments.Get("/test", handlers.PaymentsTest)
	payments.Get("/create-test", handlers.CreateTestTransaction)
	payments.Get("/list", middleware.Protected(), handlers.ListTransactions)

	payments.Post("/checkout", middleware.Protected(), handlers.CreateCheckout)

	// Confirmation and webhooks stay public: Stripe calls in without a JWT,
	// and the frontend confirms right after the redirect back.
	payments.Post("/confirm", handlers.ConfirmTransaction)
	payments.Post("/webhook", handlers.HandleStripeWebhook)
	payments.Post("/webhooks/stripe", handlers.HandleStripeWebhook)

	payments.Post("/admin/affiliate-commission",
		middleware.Protected(), middleware.AdminRequired(),
		handlers.CreateAffiliateCommissionManually)
}
