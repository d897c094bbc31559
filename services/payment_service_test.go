package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/juniorcfabio/viralizaai-backend/database"
	"github.com/juniorcfabio/viralizaai-backend/models"
	"gorm.io/datatypes"
)

func requireFiberError(t *testing.T, err error, wantCode int) *fiber.Error {
	t.Helper()

	var fiberErr *fiber.Error
	if !errors.As(err, &fiberErr) {
		t.Fatalf("expected fiber error, got %v", err)
	}
	if fiberErr.Code != wantCode {
		t.Fatalf("expected status %d, got %d (%s)", wantCode, fiberErr.Code, fiberErr.Message)
	}
	return fiberErr
}

func completedWebhookPayload(txID, referralCode string) map[string]interface{} {
	metadata := map[string]interface{}{
		"txId":   txID,
		"userId": "user-1",
	}
	if referralCode != "" {
		metadata["referralCode"] = referralCode
	}
	return map[string]interface{}{
		"type": "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "cs_test_abc",
				"metadata": metadata,
			},
		},
	}
}

func TestHandleStripeWebhookMarksPaidAndCreatesCommission(t *testing.T) {
	setupTestDB(t)
	tx := seedPendingTransaction(t, 100.00, nil)

	result, err := HandleStripeWebhookEvent(completedWebhookPayload(tx.ID.String(), "viral_ABCD1234"))
	if err != nil {
		t.Fatalf("webhook processing failed: %v", err)
	}
	if result["processed"] != true {
		t.Fatalf("expected processed result, got %v", result)
	}

	var updated models.PaymentTransaction
	if err := database.DB.First(&updated, "id = ?", tx.ID).Error; err != nil {
		t.Fatalf("failed to reload transaction: %v", err)
	}
	if updated.Status != models.TxStatusPaid {
		t.Fatalf("expected status paid, got %s", updated.Status)
	}
	if _, ok := updated.RawPayload["stripeWebhook"]; !ok {
		t.Fatal("expected webhook payload merged into rawPayload")
	}

	var commission models.AffiliateCommission
	if err := database.DB.First(&commission, "transaction_id = ?", tx.ID).Error; err != nil {
		t.Fatalf("expected a commission row: %v", err)
	}
	if commission.Amount != 20.00 {
		t.Fatalf("expected commission 20.00 for amount 100.00 at 20%%, got %.2f", commission.Amount)
	}
	if commission.Status != models.CommissionStatusPending {
		t.Fatalf("expected pending commission, got %s", commission.Status)
	}
	if commission.AffiliateCode != "viral_ABCD1234" {
		t.Fatalf("unexpected affiliate code %s", commission.AffiliateCode)
	}
}

func TestHandleStripeWebhookIgnoredReasons(t *testing.T) {
	setupTestDB(t)
	tx := seedPendingTransaction(t, 50.00, nil)

	tests := []struct {
		name    string
		payload map[string]interface{}
		reason  string
	}{
		{
			name:    "unsupported event type",
			payload: map[string]interface{}{"type": "payment_intent.succeeded"},
			reason:  "unsupported_event_type",
		},
		{
			name:    "missing session object",
			payload: map[string]interface{}{"type": "checkout.session.completed", "data": map[string]interface{}{}},
			reason:  "missing_session_object",
		},
		{
			name: "missing txId in metadata",
			payload: map[string]interface{}{
				"type": "checkout.session.completed",
				"data": map[string]interface{}{
					"object": map[string]interface{}{"metadata": map[string]interface{}{}},
				},
			},
			reason: "missing_txId_in_metadata",
		},
		{
			name:    "transaction not found",
			payload: completedWebhookPayload("00000000-0000-0000-0000-000000000000", "viral_X"),
			reason:  "transaction_not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := HandleStripeWebhookEvent(tt.payload)
			if err != nil {
				t.Fatalf("ignored events must not error: %v", err)
			}
			if result["ignored"] != true {
				t.Fatalf("expected ignored result, got %v", result)
			}
			if result["reason"] != tt.reason {
				t.Fatalf("expected reason %s, got %v", tt.reason, result["reason"])
			}
		})
	}

	// None of the ignored events may have touched the pending transaction.
	var untouched models.PaymentTransaction
	if err := database.DB.First(&untouched, "id = ?", tx.ID).Error; err != nil {
		t.Fatalf("failed to reload transaction: %v", err)
	}
	if untouched.Status != models.TxStatusPending {
		t.Fatalf("expected status pending, got %s", untouched.Status)
	}
	if count := countCommissions(t, tx.ID); count != 0 {
		t.Fatalf("expected no commissions, got %d", count)
	}
}

func TestDuplicateWebhookDeliveryCreatesOneCommission(t *testing.T) {
	setupTestDB(t)
	tx := seedPendingTransaction(t, 100.00, nil)
	payload := completedWebhookPayload(tx.ID.String(), "viral_ABCD1234")

	for i := 0; i < 2; i++ {
		if _, err := HandleStripeWebhookEvent(payload); err != nil {
			t.Fatalf("delivery %d failed: %v", i+1, err)
		}
	}

	if count := countCommissions(t, tx.ID); count != 1 {
		t.Fatalf("expected exactly one commission, got %d", count)
	}
}

func TestConfirmTransactionIdempotent(t *testing.T) {
	setupTestDB(t)
	tx := seedPendingTransaction(t, 100.00, datatypes.JSONMap{
		"checkoutSessionMetadata": map[string]interface{}{
			"referralCode": "viral_ABCD1234",
			"userId":       "user-1",
			"itemType":     "plan",
			"itemId":       "Plano Mensal",
		},
	})

	for i := 0; i < 2; i++ {
		confirmed, err := ConfirmTransaction(tx.ID.String())
		if err != nil {
			t.Fatalf("confirm %d failed: %v", i+1, err)
		}
		if confirmed.Status != models.TxStatusPaid {
			t.Fatalf("expected status paid, got %s", confirmed.Status)
		}
	}

	if count := countCommissions(t, tx.ID); count != 1 {
		t.Fatalf("expected exactly one commission after double confirm, got %d", count)
	}

	var commission models.AffiliateCommission
	if err := database.DB.First(&commission, "transaction_id = ?", tx.ID).Error; err != nil {
		t.Fatalf("expected commission row: %v", err)
	}
	if commission.Amount != 20.00 {
		t.Fatalf("expected commission 20.00, got %.2f", commission.Amount)
	}
}

func TestConfirmTransactionWithoutReferralCreatesNoCommission(t *testing.T) {
	setupTestDB(t)
	tx := seedPendingTransaction(t, 100.00, datatypes.JSONMap{
		"checkoutSessionMetadata": map[string]interface{}{
			"userId": "user-1",
		},
	})

	if _, err := ConfirmTransaction(tx.ID.String()); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if count := countCommissions(t, tx.ID); count != 0 {
		t.Fatalf("expected no commissions without referral code, got %d", count)
	}
}

func TestConfirmTransactionZeroRateCreatesNoCommission(t *testing.T) {
	setupTestDB(t)
	t.Setenv("AFFILIATE_COMMISSION_RATE", "0")

	tx := seedPendingTransaction(t, 100.00, datatypes.JSONMap{
		"checkoutSessionMetadata": map[string]interface{}{
			"referralCode": "viral_ABCD1234",
		},
	})

	if _, err := ConfirmTransaction(tx.ID.String()); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if count := countCommissions(t, tx.ID); count != 0 {
		t.Fatalf("expected no commissions at zero rate, got %d", count)
	}
}

func TestConfirmTransactionValidation(t *testing.T) {
	setupTestDB(t)

	_, err := ConfirmTransaction("")
	requireFiberError(t, err, fiber.StatusBadRequest)

	_, err = ConfirmTransaction("00000000-0000-0000-0000-000000000000")
	requireFiberError(t, err, fiber.StatusBadRequest)
}

func TestConfirmTransactionAlreadyPaidStillDerivesCommission(t *testing.T) {
	setupTestDB(t)
	tx := seedPendingTransaction(t, 100.00, datatypes.JSONMap{
		"checkoutSessionMetadata": map[string]interface{}{
			"referralCode": "viral_ABCD1234",
		},
	})
	database.DB.Model(tx).Update("status", models.TxStatusPaid)

	if _, err := ConfirmTransaction(tx.ID.String()); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if count := countCommissions(t, tx.ID); count != 1 {
		t.Fatalf("expected commission for already-paid transaction, got %d", count)
	}
}

func TestConfirmTransactionRecoversMetadataFromProvider(t *testing.T) {
	setupTestDB(t)
	seedStripeConfig(t, true, nil)

	sessionID := "cs_test_recovered"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     sessionID,
			"status": "complete",
			"metadata": map[string]string{
				"referralCode": "viral_RECOVER1",
				"userId":       "user-9",
			},
		})
	}))
	defer server.Close()
	t.Setenv("STRIPE_API_BASE_URL", server.URL)

	tx := seedPendingTransaction(t, 100.00, nil)
	database.DB.Model(tx).Update("provider_reference", sessionID)

	if _, err := ConfirmTransaction(tx.ID.String()); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	if count := countCommissions(t, tx.ID); count != 1 {
		t.Fatalf("expected commission from recovered metadata, got %d", count)
	}

	var updated models.PaymentTransaction
	database.DB.First(&updated, "id = ?", tx.ID)
	cached, ok := updated.RawPayload["checkoutSessionMetadata"].(map[string]interface{})
	if !ok {
		t.Fatal("expected recovered metadata cached in rawPayload")
	}
	if cached["referralCode"] != "viral_RECOVER1" {
		t.Fatalf("unexpected cached metadata: %v", cached)
	}
}

func TestConfirmTransactionProviderFailureDegradesToNoMetadata(t *testing.T) {
	setupTestDB(t)
	seedStripeConfig(t, true, nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	t.Setenv("STRIPE_API_BASE_URL", server.URL)

	tx := seedPendingTransaction(t, 100.00, nil)
	database.DB.Model(tx).Update("provider_reference", "cs_test_gone")

	confirmed, err := ConfirmTransaction(tx.ID.String())
	if err != nil {
		t.Fatalf("metadata recovery failure must not block confirmation: %v", err)
	}
	if confirmed.Status != models.TxStatusPaid {
		t.Fatalf("expected status paid, got %s", confirmed.Status)
	}
	if count := countCommissions(t, tx.ID); count != 0 {
		t.Fatalf("expected no commissions without metadata, got %d", count)
	}
}

func TestDuplicateCommissionInsertTreatedAsSuccess(t *testing.T) {
	setupTestDB(t)
	tx := seedPendingTransaction(t, 100.00, nil)

	existing := models.AffiliateCommission{
		AffiliateCode: "viral_FIRST",
		TransactionID: tx.ID,
		Amount:        20.00,
		Currency:      "BRL",
		Status:        models.CommissionStatusPending,
	}
	if err := database.DB.Create(&existing).Error; err != nil {
		t.Fatalf("failed to seed commission: %v", err)
	}

	// A second insert for the same transaction must hit the unique index.
	dup := models.AffiliateCommission{
		AffiliateCode: "viral_SECOND",
		TransactionID: tx.ID,
		Amount:        20.00,
		Currency:      "BRL",
		Status:        models.CommissionStatusPending,
	}
	if err := database.DB.Create(&dup).Error; err == nil {
		t.Fatal("expected unique constraint violation")
	}

	// The derivation path sees the existing row and no-ops.
	metadata := map[string]interface{}{"referralCode": "viral_SECOND"}
	if err := createAffiliateCommissionIfApplicable(tx, metadata); err != nil {
		t.Fatalf("derivation must swallow the duplicate: %v", err)
	}
	if count := countCommissions(t, tx.ID); count != 1 {
		t.Fatalf("expected one commission, got %d", count)
	}
}

func TestCreateStripeCheckout(t *testing.T) {
	setupTestDB(t)
	seedStripeConfig(t, true, nil)

	var providerCalls int
	var lastForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerCalls++
		r.ParseForm()
		lastForm = map[string]string{}
		for key := range r.PostForm {
			lastForm[key] = r.PostForm.Get(key)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":  "cs_test_123",
			"url": "https://checkout.stripe.com/pay/cs_test_123",
		})
	}))
	defer server.Close()
	t.Setenv("STRIPE_API_BASE_URL", server.URL)

	result, err := CreateStripeCheckout(CheckoutRequest{
		UserID:     "user-1",
		ItemType:   models.ItemTypePlan,
		ItemID:     "Plano Mensal",
		Amount:     100.00,
		Currency:   "brl",
		Provider:   models.ProviderStripe,
		SuccessURL: "https://app.example.com/billing",
		CancelURL:  "https://app.example.com/billing",
		ReferralCode: "viral_ABCD1234",
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if providerCalls != 1 {
		t.Fatalf("expected one provider call, got %d", providerCalls)
	}
	if result.CheckoutURL != "https://checkout.stripe.com/pay/cs_test_123" {
		t.Fatalf("unexpected checkout URL %s", result.CheckoutURL)
	}
	if result.Provider != models.ProviderStripe {
		t.Fatalf("unexpected provider %s", result.Provider)
	}

	if lastForm["line_items[0][price_data][unit_amount]"] != "10000" {
		t.Fatalf("expected 10000 minor units, got %s", lastForm["line_items[0][price_data][unit_amount]"])
	}
	if lastForm["line_items[0][price_data][currency]"] != "brl" {
		t.Fatalf("expected lower-cased currency, got %s", lastForm["line_items[0][price_data][currency]"])
	}
	if lastForm["metadata[referralCode]"] != "viral_ABCD1234" {
		t.Fatalf("expected referral code in metadata, got %s", lastForm["metadata[referralCode]"])
	}

	var tx models.PaymentTransaction
	if err := database.DB.First(&tx, "id = ?", result.TransactionID).Error; err != nil {
		t.Fatalf("failed to load transaction: %v", err)
	}
	if tx.Status != models.TxStatusPending {
		t.Fatalf("expected pending transaction, got %s", tx.Status)
	}
	if tx.Currency != "BRL" {
		t.Fatalf("expected upper-cased currency, got %s", tx.Currency)
	}
	if tx.ProviderReference == nil || *tx.ProviderReference != "cs_test_123" {
		t.Fatal("expected provider reference stored")
	}
	if _, ok := tx.RawPayload["checkoutSessionMetadata"]; !ok {
		t.Fatal("expected session metadata snapshot in rawPayload")
	}

	expectedSuccess := fmt.Sprintf("https://app.example.com/billing?txId=%s", tx.ID)
	if lastForm["success_url"] != expectedSuccess {
		t.Fatalf("expected success_url %s, got %s", expectedSuccess, lastForm["success_url"])
	}
}

func TestCreateStripeCheckoutBelowMinimumRejectedBeforeProviderCall(t *testing.T) {
	setupTestDB(t)
	seedStripeConfig(t, true, nil)

	var providerCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerCalls++
	}))
	defer server.Close()
	t.Setenv("STRIPE_API_BASE_URL", server.URL)

	_, err := CreateStripeCheckout(CheckoutRequest{
		UserID:     "user-1",
		ItemType:   models.ItemTypePlan,
		ItemID:     "Plano Mensal",
		Amount:     0.30,
		Currency:   "BRL",
		Provider:   models.ProviderStripe,
		SuccessURL: "https://app.example.com/billing",
		CancelURL:  "https://app.example.com/billing",
	})
	requireFiberError(t, err, fiber.StatusBadRequest)

	if providerCalls != 0 {
		t.Fatalf("expected no provider call for below-minimum amount, got %d", providerCalls)
	}
}

func TestCreateStripeCheckoutConfigurableMinimum(t *testing.T) {
	setupTestDB(t)
	seedStripeConfig(t, true, map[string]interface{}{
		"minimumAmounts": map[string]interface{}{"USD": float64(100)},
	})

	var providerCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerCalls++
	}))
	defer server.Close()
	t.Setenv("STRIPE_API_BASE_URL", server.URL)

	_, err := CreateStripeCheckout(CheckoutRequest{
		UserID:     "user-1",
		ItemType:   models.ItemTypeAddon,
		ItemID:     "Extra",
		Amount:     0.99,
		Currency:   "USD",
		Provider:   models.ProviderStripe,
		SuccessURL: "https://app.example.com/billing",
		CancelURL:  "https://app.example.com/billing",
	})
	requireFiberError(t, err, fiber.StatusBadRequest)
	if providerCalls != 0 {
		t.Fatalf("expected no provider call, got %d", providerCalls)
	}
}

func TestCreateStripeCheckoutRejectsUnsupportedProvider(t *testing.T) {
	setupTestDB(t)

	_, err := CreateStripeCheckout(CheckoutRequest{Provider: models.ProviderPayPal})
	requireFiberError(t, err, fiber.StatusBadRequest)
}

func TestCreateStripeCheckoutRejectsMissingOrInactiveConfig(t *testing.T) {
	setupTestDB(t)

	_, err := CreateStripeCheckout(CheckoutRequest{Provider: models.ProviderStripe})
	requireFiberError(t, err, fiber.StatusBadRequest)

	seedStripeConfig(t, false, nil)
	_, err = CreateStripeCheckout(CheckoutRequest{Provider: models.ProviderStripe})
	requireFiberError(t, err, fiber.StatusBadRequest)
}

func TestCreateStripeCheckoutSurfacesProviderError(t *testing.T) {
	setupTestDB(t)
	seedStripeConfig(t, true, nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"message": "Invalid currency: xyz",
				"type":    "invalid_request_error",
			},
		})
	}))
	defer server.Close()
	t.Setenv("STRIPE_API_BASE_URL", server.URL)

	_, err := CreateStripeCheckout(CheckoutRequest{
		UserID:     "user-1",
		ItemType:   models.ItemTypePlan,
		ItemID:     "Plano Mensal",
		Amount:     100.00,
		Currency:   "XYZ",
		Provider:   models.ProviderStripe,
		SuccessURL: "https://app.example.com/billing",
		CancelURL:  "https://app.example.com/billing",
	})
	fiberErr := requireFiberError(t, err, fiber.StatusBadRequest)
	if fiberErr.Message != "Invalid currency: xyz" {
		t.Fatalf("expected provider message surfaced, got %q", fiberErr.Message)
	}
}

func TestCreateAffiliateCommissionManually(t *testing.T) {
	setupTestDB(t)
	tx := seedPendingTransaction(t, 250.00, nil)

	_, err := CreateAffiliateCommissionManually(ManualCommissionRequest{
		TxID:          tx.ID.String(),
		AffiliateCode: "viral_MANUAL01",
	})
	requireFiberError(t, err, fiber.StatusBadRequest) // not paid yet

	database.DB.Model(tx).Update("status", models.TxStatusPaid)
	tx.Status = models.TxStatusPaid

	commission, err := CreateAffiliateCommissionManually(ManualCommissionRequest{
		TxID:             tx.ID.String(),
		AffiliateCode:    "viral_MANUAL01",
		ReferredUserID:   "user-7",
		ReferredUserName: "Maria",
	})
	if err != nil {
		t.Fatalf("manual commission failed: %v", err)
	}
	if commission.Amount != 50.00 {
		t.Fatalf("expected 50.00 commission for 250.00 at 20%%, got %.2f", commission.Amount)
	}
	if commission.ReferredUserID == nil || *commission.ReferredUserID != "user-7" {
		t.Fatal("expected explicit referred user id stored")
	}

	// Second attempt reuses the existing row instead of duplicating.
	again, err := CreateAffiliateCommissionManually(ManualCommissionRequest{
		TxID:          tx.ID.String(),
		AffiliateCode: "viral_OTHER",
	})
	if err != nil {
		t.Fatalf("repeat manual commission failed: %v", err)
	}
	if again.ID != commission.ID {
		t.Fatal("expected the existing commission returned")
	}
	if count := countCommissions(t, tx.ID); count != 1 {
		t.Fatalf("expected one commission, got %d", count)
	}
}

func TestMetadataAliasExtraction(t *testing.T) {
	metadata := map[string]interface{}{
		"userId":    "fallback-id",
		"userName":  "Fallback Name",
		"userEmail": "fallback@example.com",
	}

	if got := metadataString(metadata, referredUserIDAliases...); got != "fallback-id" {
		t.Fatalf("expected fallback alias, got %q", got)
	}

	metadata["referredUserId"] = "primary-id"
	if got := metadataString(metadata, referredUserIDAliases...); got != "primary-id" {
		t.Fatalf("expected primary alias to win, got %q", got)
	}

	if got := metadataString(map[string]interface{}{}, referredUserNameAliases...); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}
