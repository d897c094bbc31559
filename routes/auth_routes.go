package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/juniorcfabio/viralizaai-backend/handlers"
)

func AuthRoutes(app *fiber.App) {
	auth := app.Group("/auth")

	auth.Post("/register", handlers.RegisterUser)
	auth.Post("/resend-verification", handlers.ResendVerification)
	auth.Get("/verify-email", handlers.VerifyEmail)
	auth.Post("/login", handlers.LoginUser)
	auth.Post("/forgot-password", handlers.ForgotPassword)
	auth.Post("/reset-password", handlers.ResetPassword)
}
