package services

import (
	"fmt"
	"testing"

	"github.com/juniorcfabio/viralizaai-backend/database"
	"github.com/juniorcfabio/viralizaai-backend/models"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&models.User{},
		&models.EmailVerificationToken{},
		&models.PasswordResetToken{},
		&models.PaymentTransaction{},
		&models.PaymentProviderConfig{},
		&models.AffiliateSettings{},
		&models.AffiliateCommission{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	database.DB = db
}

func seedStripeConfig(t *testing.T, active bool, extra map[string]interface{}) {
	t.Helper()

	cfg := datatypes.JSONMap{
		"secretKey": "sk_test_123",
		"publicKey": "pk_test_123",
	}
	for key, value := range extra {
		cfg[key] = value
	}

	err := database.DB.Create(&models.PaymentProviderConfig{
		Provider: models.ProviderStripe,
		IsActive: active,
		Config:   cfg,
	}).Error
	if err != nil {
		t.Fatalf("failed to seed stripe config: %v", err)
	}
}

func seedPendingTransaction(t *testing.T, amount float64, rawPayload datatypes.JSONMap) *models.PaymentTransaction {
	t.Helper()

	tx := models.PaymentTransaction{
		UserID:     "user-1",
		ItemType:   models.ItemTypePlan,
		ItemID:     "Plano Mensal",
		Amount:     amount,
		Currency:   "BRL",
		Provider:   models.ProviderStripe,
		Status:     models.TxStatusPending,
		RawPayload: rawPayload,
	}
	if err := database.DB.Create(&tx).Error; err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}
	return &tx
}

func countCommissions(t *testing.T, txID interface{}) int64 {
	t.Helper()

	var count int64
	err := database.DB.Model(&models.AffiliateCommission{}).
		Where("transaction_id = ?", txID).Count(&count).Error
	if err != nil {
		t.Fatalf("failed to count commissions: %v", err)
	}
	return count
}
