package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/juniorcfabio/viralizaai-backend/database"
	"github.com/juniorcfabio/viralizaai-backend/models"
	"github.com/juniorcfabio/viralizaai-backend/notifications"
	"github.com/juniorcfabio/viralizaai-backend/payments"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const stripeCheckoutCompletedEvent = "checkout.session.completed"

// Ordered alias lists for the logical referred-user fields carried in
// checkout metadata. Earlier keys win.
var (
	referredUserIDAliases    = []string{"referredUserId", "userId"}
	referredUserNameAliases  = []string{"referredUserName", "userName"}
	referredUserEmailAliases = []string{"referredUserEmail", "userEmail"}
)

type CheckoutRequest struct {
	UserID     string  `json:"userId" validate:"required"`
	UserName   string  `json:"userName"`
	UserEmail  string  `json:"userEmail"`
	ItemType   string  `json:"itemType" validate:"required,oneof=plan addon"`
	ItemID     string  `json:"itemId" validate:"required"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	Currency   string  `json:"currency" validate:"required,len=3"`
	Provider   string  `json:"provider" validate:"required"`
	SuccessURL string  `json:"successUrl" validate:"required,url"`
	CancelURL  string  `json:"cancelUrl" validate:"required,url"`

	ReferralCode   string `json:"referralCode"`
	ReferredUserID string `json:"referredUserId"`
}

type CheckoutResult struct {
	CheckoutURL   string `json:"checkoutUrl"`
	TransactionID string `json:"transactionId"`
	Provider      string `json:"provider"`
}

func CreateStripeCheckout(req CheckoutRequest) (*CheckoutResult, error) {
	if req.Provider != models.ProviderStripe {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			"Este endpoint de checkout está configurado apenas para Stripe.")
	}

	providerConfig, err := GetActiveProviderConfig(models.ProviderStripe)
	if err != nil {
		return nil, err
	}
	secretKey, _, err := StripeCredentials(providerConfig)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(req.Currency)
	amount := math.Round(req.Amount*100) / 100

	tx := models.PaymentTransaction{
		UserID:   req.UserID,
		ItemType: req.ItemType,
		ItemID:   req.ItemID,
		Amount:   amount,
		Currency: currency,
		Provider: models.ProviderStripe,
		Status:   models.TxStatusPending,
	}
	if err := database.DB.Create(&tx).Error; err != nil {
		return nil, err
	}

	amountInCents := int64(math.Round(amount * 100))
	if minimum := MinimumMinorUnits(providerConfig, currency); amountInCents < minimum {
		return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf(
			"O valor mínimo para checkout na Stripe é %d centavos (%s).", minimum, currency))
	}

	session, err := payments.CreateCheckoutSession(secretKey, payments.CheckoutSessionParams{
		Currency:    currency,
		UnitAmount:  amountInCents,
		ProductName: req.ItemID,
		SuccessURL:  fmt.Sprintf("%s?txId=%s", req.SuccessURL, tx.ID),
		CancelURL:   fmt.Sprintf("%s?txId=%s", req.CancelURL, tx.ID),
		Metadata: map[string]string{
			"txId":           tx.ID.String(),
			"userId":         req.UserID,
			"userName":       req.UserName,
			"userEmail":      req.UserEmail,
			"itemType":       req.ItemType,
			"itemId":         req.ItemID,
			"referralCode":   req.ReferralCode,
			"referredUserId": req.ReferredUserID,
		},
	})
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	tx.ProviderReference = &session.ID
	mergeRawPayload(&tx, map[string]interface{}{
		"checkoutSessionId":       session.ID,
		"checkoutSessionMetadata": toInterfaceMap(session.Metadata),
	})
	if err := database.DB.Save(&tx).Error; err != nil {
		return nil, err
	}

	return &CheckoutResult{
		CheckoutURL:   session.URL,
		TransactionID: tx.ID.String(),
		Provider:      models.ProviderStripe,
	}, nil
}

func CreateTestTransaction(userID, provider string) (*models.PaymentTransaction, error) {
	tx := models.PaymentTransaction{
		UserID:   userID,
		ItemType: models.ItemTypePlan,
		ItemID:   "PLANO_TESTE",
		Amount:   100.00,
		Currency: "BRL",
		Provider: provider,
		Status:   models.TxStatusPending,
	}
	if err := database.DB.Create(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

func ListTransactions() ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	err := database.DB.Order("created_at DESC").Limit(20).Find(&txs).Error
	return txs, err
}

// HandleStripeWebhookEvent reconciles a raw Stripe event envelope. Events we
// cannot act on are answered with an explicit ignored result instead of an
// error: Stripe retries on non-2xx without distinguishing the reason.
func HandleStripeWebhookEvent(payload map[string]interface{}) (fiber.Map, error) {
	eventType, _ := payload["type"].(string)
	if eventType != stripeCheckoutCompletedEvent {
		return fiber.Map{"ignored": true, "reason": "unsupported_event_type", "type": eventType}, nil
	}

	data, _ := payload["data"].(map[string]interface{})
	session, _ := data["object"].(map[string]interface{})
	if session == nil {
		return fiber.Map{"ignored": true, "reason": "missing_session_object"}, nil
	}

	metadata, _ := session["metadata"].(map[string]interface{})
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	txID, _ := metadata["txId"].(string)
	if txID == "" {
		return fiber.Map{"ignored": true, "reason": "missing_txId_in_metadata"}, nil
	}

	var tx models.PaymentTransaction
	if err := database.DB.Where("id = ?", txID).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.Map{"ignored": true, "reason": "transaction_not_found", "txId": txID}, nil
		}
		return nil, err
	}

	mergeRawPayload(&tx, map[string]interface{}{"stripeWebhook": payload})
	tx.Status = models.TxStatusPaid
	if err := database.DB.Save(&tx).Error; err != nil {
		return nil, err
	}

	if err := createAffiliateCommissionIfApplicable(&tx, metadata); err != nil {
		return nil, err
	}

	return fiber.Map{"processed": true, "txId": tx.ID.String(), "status": tx.Status}, nil
}

// ConfirmTransaction marks a transaction paid when the client returns from
// checkout without a webhook (local/test environments). Safe to call again
// after a partial earlier failure: the paid write is idempotent and the
// commission is re-attempted every time, gated by its uniqueness check.
func ConfirmTransaction(txID string) (*models.PaymentTransaction, error) {
	if txID == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "txId é obrigatório para confirmação.")
	}

	var tx models.PaymentTransaction
	if err := database.DB.Where("id = ?", txID).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusBadRequest,
				"Transação não encontrada para o txId informado.")
		}
		return nil, err
	}

	if tx.Status != models.TxStatusPaid {
		tx.Status = models.TxStatusPaid
		mergeRawPayload(&tx, map[string]interface{}{"manualConfirm": true})
	}
	if err := database.DB.Save(&tx).Error; err != nil {
		return nil, err
	}

	metadata := ensureCheckoutMetadata(&tx)
	if err := createAffiliateCommissionIfApplicable(&tx, metadata); err != nil {
		return nil, err
	}

	return &tx, nil
}

// ensureCheckoutMetadata recovers the original checkout metadata: the cached
// snapshot when present, otherwise a direct session lookup at the provider.
// Recovery is best effort, failures degrade to empty metadata instead of
// blocking the confirmation.
func ensureCheckoutMetadata(tx *models.PaymentTransaction) map[string]interface{} {
	if cached, ok := tx.RawPayload["checkoutSessionMetadata"].(map[string]interface{}); ok {
		return cached
	}

	sessionID, _ := tx.RawPayload["checkoutSessionId"].(string)
	if sessionID == "" && tx.ProviderReference != nil {
		sessionID = *tx.ProviderReference
	}
	if tx.Provider != models.ProviderStripe || sessionID == "" {
		return map[string]interface{}{}
	}

	providerConfig, err := GetActiveProviderConfig(models.ProviderStripe)
	if err != nil {
		return map[string]interface{}{}
	}
	secretKey, _, err := StripeCredentials(providerConfig)
	if err != nil {
		return map[string]interface{}{}
	}

	session, err := payments.RetrieveCheckoutSession(secretKey, sessionID)
	if err != nil {
		log.Printf("⚠️ Failed to retrieve checkout session %s: %v", sessionID, err)
		return map[string]interface{}{}
	}

	metadata := toInterfaceMap(session.Metadata)
	mergeRawPayload(tx, map[string]interface{}{
		"checkoutSessionId":       sessionID,
		"checkoutSessionMetadata": metadata,
	})
	if err := database.DB.Save(tx).Error; err != nil {
		log.Printf("⚠️ Failed to cache checkout metadata for tx %s: %v", tx.ID, err)
	}

	return metadata
}

// createAffiliateCommissionIfApplicable derives at most one commission for a
// paid transaction. Bad data (no referral code, zero rate, invalid amount)
// is a silent no-op: commission bookkeeping never blocks a payment
// confirmation. Only storage failures propagate.
func createAffiliateCommissionIfApplicable(tx *models.PaymentTransaction, metadata map[string]interface{}) error {
	referralCode := metadataString(metadata, "referralCode")
	if referralCode == "" {
		return nil
	}

	var count int64
	err := database.DB.Model(&models.AffiliateCommission{}).
		Where("transaction_id = ?", tx.ID).Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	rate := ResolveCommissionRate()
	if rate <= 0 {
		return nil
	}
	if tx.Amount <= 0 || math.IsNaN(tx.Amount) {
		return nil
	}

	referredUserID := metadataString(metadata, referredUserIDAliases...)
	referredUserName := metadataString(metadata, referredUserNameAliases...)
	referredUserEmail := metadataString(metadata, referredUserEmailAliases...)

	commission := models.AffiliateCommission{
		AffiliateCode: referralCode,
		TransactionID: tx.ID,
		Amount:        CommissionAmount(tx.Amount, rate),
		Currency:      tx.Currency,
		Status:        models.CommissionStatusPending,
		Metadata: datatypes.JSONMap{
			"itemType":          tx.ItemType,
			"itemId":            tx.ItemID,
			"referredUserName":  referredUserName,
			"referredUserEmail": referredUserEmail,
		},
	}
	if referredUserID != "" {
		commission.ReferredUserID = &referredUserID
	}

	if err := database.DB.Create(&commission).Error; err != nil {
		// Two confirmations racing on the same transaction: the unique
		// index turns the second insert into a no-op.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}

	go notifyAffiliate(&commission)
	return nil
}

type ManualCommissionRequest struct {
	TxID              string `json:"txId" validate:"required"`
	AffiliateCode     string `json:"affiliateCode" validate:"required"`
	ReferredUserID    string `json:"referredUserId"`
	ReferredUserName  string `json:"referredUserName"`
	ReferredUserEmail string `json:"referredUserEmail"`
}

// CreateAffiliateCommissionManually is the admin escape hatch for
// retroactive fixes: it derives a commission for an already-paid transaction
// whose metadata never reached us.
func CreateAffiliateCommissionManually(req ManualCommissionRequest) (*models.AffiliateCommission, error) {
	var tx models.PaymentTransaction
	if err := database.DB.Where("id = ?", req.TxID).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusBadRequest,
				"Transação não encontrada para o txId informado.")
		}
		return nil, err
	}
	if tx.Status != models.TxStatusPaid {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			"Apenas transações pagas podem gerar comissão.")
	}

	metadata := map[string]interface{}{
		"referralCode":      req.AffiliateCode,
		"referredUserId":    req.ReferredUserID,
		"referredUserName":  req.ReferredUserName,
		"referredUserEmail": req.ReferredUserEmail,
	}
	if err := createAffiliateCommissionIfApplicable(&tx, metadata); err != nil {
		return nil, err
	}

	var commission models.AffiliateCommission
	if err := database.DB.Where("transaction_id = ?", tx.ID).First(&commission).Error; err != nil {
		return nil, err
	}
	return &commission, nil
}

func notifyAffiliate(commission *models.AffiliateCommission) {
	var affiliate models.User
	err := database.DB.Where("affiliate_code = ?", commission.AffiliateCode).First(&affiliate).Error
	if err != nil {
		return
	}

	notifications.SendEmail(affiliate.Name, affiliate.Email,
		"Você ganhou uma nova comissão! - Viraliza.ai",
		fmt.Sprintf("<h1>Parabéns!</h1><p>Uma indicação sua concluiu uma compra. Comissão de %.2f %s registrada e pendente de pagamento.</p>",
			commission.Amount, commission.Currency))
}

func mergeRawPayload(tx *models.PaymentTransaction, entries map[string]interface{}) {
	if tx.RawPayload == nil {
		tx.RawPayload = datatypes.JSONMap{}
	}
	for key, value := range entries {
		tx.RawPayload[key] = value
	}
}

func metadataString(metadata map[string]interface{}, aliases ...string) string {
	for _, key := range aliases {
		if value, ok := metadata[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func toInterfaceMap(in map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
