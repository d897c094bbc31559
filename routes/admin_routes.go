package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/juniorcfabio/viralizaai-backend/handlers"
	"github.com/juniorcfabio/viralizaai-backend/middleware"
)

func AdminRoutes(app *fiber.App) {
	admin := app.Group("/admin", middleware.Protected(), middleware.AdminRequired())

	admin.Get("/payment-configs", handlers.GetPaymentConfigs)
	admin.Put("/payment-configs/:provider", handlers.UpsertPaymentConfig)

	admin.Get("/affiliate-settings", handlers.GetAffiliateSettings)
	admin.Put("/affiliate-settings", handlers.UpdateAffiliateSettings)
}
