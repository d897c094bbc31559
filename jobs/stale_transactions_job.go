package jobs

import (
	"log"
	"strconv"
	"time"

	config "github.com/juniorcfabio/viralizaai-backend/configs"
	"github.com/juniorcfabio/viralizaai-backend/database"
	"github.com/juniorcfabio/viralizaai-backend/models"
)

const defaultStaleTxMaxAgeHours = 72

// SweepStaleTransactions fails pending transactions whose checkout was
// abandoned. A webhook or manual confirm arriving later still flips the row
// to paid, so the sweep never races the reconciliation.
func SweepStaleTransactions() {
	log.Println("Running job: SweepStaleTransactions...")

	maxAgeHours := defaultStaleTxMaxAgeHours
	if raw := config.Config("STALE_TX_MAX_AGE_HOURS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			maxAgeHours = parsed
		}
	}

	cutoff := time.Now().Add(-time.Duration(maxAgeHours) * time.Hour)

	result := database.DB.Model(&models.PaymentTransaction{}).
		Where("status = ? AND created_at < ?", models.TxStatusPending, cutoff).
		Update("status", models.TxStatusFailed)

	if result.Error != nil {
		log.Printf("Error sweeping stale transactions: %v", result.Error)
		return
	}

	if result.RowsAffected > 0 {
		log.Printf("Marked %d stale transaction(s) as failed.", result.RowsAffected)
	}
}
