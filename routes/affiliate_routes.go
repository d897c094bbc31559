package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/juniorcfabio/viralizaai-backend/handlers"
	"github.com/juniorcfabio/viralizaai-backend/middleware"
)

func AffiliateRoutes(app *fiber.App) {
	affiliates := app.Group("/affiliates")

	// Self-service area keyed by affiliateCode query param; token
	// resolution stays out of this surface.
	affiliates.Get("/me/commissions", handlers.GetMyCommissions)
	affiliates.Get("/me/referred-users", handlers.GetMyReferredUsers)

	admin := affiliates.Group("/admin", middleware.Protected(), middleware.AdminRequired())
	admin.Get("/commissions", handlers.AdminListCommissions)
	admin.Get("/summary", handlers.AdminCommissionSummary)
	admin.Patch("/commissions/:id/mark-paid", handlers.MarkCommissionPaid)
}
