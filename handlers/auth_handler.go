package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	config "github.com/juniorcfabio/viralizaai-backend/configs"
	"github.com/juniorcfabio/viralizaai-backend/database"
	"github.com/juniorcfabio/viralizaai-backend/models"
	"github.com/juniorcfabio/viralizaai-backend/notifications"
	"github.com/juniorcfabio/viralizaai-backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var validate = validator.New()

var nonDigits = regexp.MustCompile(`\D`)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeCPF(cpf string) string {
	return strings.TrimSpace(nonDigits.ReplaceAllString(cpf, ""))
}

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	CPF      string `json:"cpf" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	CPF      string `json:"cpf" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func RegisterUser(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	email := normalizeEmail(req.Email)
	cpf := normalizeCPF(req.CPF)
	if len(cpf) != 11 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "CPF inválido."})
	}

	var count int64
	database.DB.Model(&models.User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Este e-mail já está cadastrado."})
	}
	database.DB.Model(&models.User{}).Where("cpf = ?", cpf).Count(&count)
	if count > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Este CPF já está cadastrado."})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	var newUser models.User
	var verification models.EmailVerificationToken
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		affiliateCode, err := utils.GenerateUniqueAffiliateCode(tx)
		if err != nil {
			return err
		}

		newUser = models.User{
			Name:          strings.TrimSpace(req.Name),
			Email:         email,
			CPF:           cpf,
			PasswordHash:  string(hashedPassword),
			Role:          "client",
			AffiliateCode: &affiliateCode,
		}
		if err := tx.Create(&newUser).Error; err != nil {
			return err
		}

		verification = models.EmailVerificationToken{
			Token:     generateToken(),
			UserID:    newUser.ID,
			ExpiresAt: time.Now().Add(time.Hour),
		}
		return tx.Create(&verification).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Este e-mail já está cadastrado."})
		}
		log.Printf("🔥 Failed to register user: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create user"})
	}

	backendBase := config.ConfigOr("BACKEND_PUBLIC_URL", "http://localhost:8080")
	verifyURL := fmt.Sprintf("%s/auth/verify-email?token=%s", backendBase, verification.Token)
	go notifications.SendEmailVerification(newUser.Name, newUser.Email, verifyURL)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Cadastro criado. Verifique seu e-mail para confirmar a conta.",
	})
}

func ResendVerification(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := database.DB.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Usuário não encontrado."})
	}
	if user.EmailVerifiedAt != nil {
		return c.JSON(fiber.Map{"success": true, "message": "E-mail já confirmado."})
	}

	verification := models.EmailVerificationToken{
		Token:     generateToken(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := database.DB.Create(&verification).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create verification token"})
	}

	backendBase := config.ConfigOr("BACKEND_PUBLIC_URL", "http://localhost:8080")
	verifyURL := fmt.Sprintf("%s/auth/verify-email?token=%s", backendBase, verification.Token)
	go notifications.SendEmailVerification(user.Name, user.Email, verifyURL)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Se o e-mail existir, enviamos um novo link de verificação.",
	})
}

func VerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	success := verifyEmailToken(token)

	redirectBase := config.ConfigOr("FRONTEND_URL", "https://viralizaai.vercel.app")
	verified := "0"
	if success {
		verified = "1"
	}
	return c.Redirect(fmt.Sprintf("%s/#/?emailVerified=%s", redirectBase, verified), fiber.StatusFound)
}

func verifyEmailToken(token string) bool {
	if token == "" {
		return false
	}

	var record models.EmailVerificationToken
	if err := database.DB.Where("token = ?", token).First(&record).Error; err != nil {
		return false
	}

	var user models.User
	if err := database.DB.Where("id = ?", record.UserID).First(&user).Error; err != nil {
		return false
	}

	// Idempotent: an already-verified user stays verified even when the
	// token was consumed earlier (mail scanners prefetch the link).
	if user.EmailVerifiedAt != nil {
		return true
	}

	if record.UsedAt != nil || record.ExpiresAt.Before(time.Now()) {
		return false
	}

	now := time.Now()
	user.EmailVerifiedAt = &now
	if err := database.DB.Save(&user).Error; err != nil {
		return false
	}

	record.UsedAt = &now
	database.DB.Save(&record)

	return true
}

func LoginUser(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	cpf := normalizeCPF(req.CPF)
	if len(cpf) != 11 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "CPF inválido."})
	}

	var user models.User
	if err := database.DB.Where("cpf = ?", cpf).First(&user).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Credenciais inválidas."})
	}

	if user.EmailVerifiedAt == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Confirme seu e-mail antes de entrar."})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Credenciais inválidas."})
	}

	secret := config.Config("JWT_SECRET")
	if secret == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "JWT_SECRET não configurado no servidor."})
	}

	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  time.Now().Add(7 * 24 * time.Hour).Unix(),
	}
	if user.AffiliateCode != nil {
		claims["affiliate_code"] = *user.AffiliateCode
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sign token"})
	}

	return c.JSON(fiber.Map{
		"token": signed,
		"user": fiber.Map{
			"id":             user.ID.String(),
			"name":           user.Name,
			"email":          user.Email,
			"cpf":            user.CPF,
			"role":           user.Role,
			"affiliate_code": user.AffiliateCode,
			"created_at":     user.CreatedAt,
		},
	})
}

func ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	okResponse := fiber.Map{
		"success": true,
		"message": "Se o e-mail existir, enviaremos um link para redefinir a senha.",
	}

	var user models.User
	if err := database.DB.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		// Same answer whether or not the account exists.
		return c.JSON(okResponse)
	}

	reset := models.PasswordResetToken{
		Token:     generateToken(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := database.DB.Create(&reset).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create reset token"})
	}

	frontendBase := config.ConfigOr("FRONTEND_URL", "https://viralizaai.vercel.app")
	resetURL := fmt.Sprintf("%s/reset-password?token=%s#/reset-password", frontendBase, reset.Token)
	go notifications.SendPasswordReset(user.Name, user.Email, resetURL)

	return c.JSON(okResponse)
}

func ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,min=6"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var record models.PasswordResetToken
	if err := database.DB.Where("token = ?", strings.TrimSpace(req.Token)).First(&record).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Token inválido ou expirado."})
	}
	if record.UsedAt != nil || record.ExpiresAt.Before(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Token inválido ou expirado."})
	}

	var user models.User
	if err := database.DB.Where("id = ?", record.UserID).First(&user).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Usuário não encontrado."})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	user.PasswordHash = string(hashedPassword)
	if err := database.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update password"})
	}

	now := time.Now()
	record.UsedAt = &now
	database.DB.Save(&record)

	return c.JSON(fiber.Map{"success": true, "message": "Senha redefinida com sucesso."})
}
