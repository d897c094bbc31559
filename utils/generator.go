package utils

import (
	"math/rand"
	"time"

	"github.com/juniorcfabio/viralizaai-backend/models"
	"gorm.io/gorm"
)

const affiliateCodeLength = 8
const affiliateCodePrefix = "viral_"
const letterBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateUniqueAffiliateCode produces a code like viral_7KQ2M9XD that no
// existing user holds.
func GenerateUniqueAffiliateCode(tx *gorm.DB) (string, error) {
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		b := make([]byte, affiliateCodeLength)
		for i := range b {
			b[i] = letterBytes[seededRand.Intn(len(letterBytes))]
		}
		code := affiliateCodePrefix + string(b)

		var user models.User
		err := tx.Where("affiliate_code = ?", code).First(&user).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return code, nil
			}
			return "", err
		}
	}
}
