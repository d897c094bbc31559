package payments

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/juniorcfabio/viralizaai-backend/configs"
)

// CheckoutSession is the slice of Stripe's Checkout Session object we care
// about: the id we store as provider reference, the hosted URL the frontend
// redirects to, and the metadata echoed back on completion.
type CheckoutSession struct {
	ID       string            `json:"id"`
	URL      string            `json:"url"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

type CheckoutSessionParams struct {
	Currency    string
	UnitAmount  int64
	ProductName string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// StripeError carries the provider's own error message so it can be
// surfaced verbatim to the caller.
type StripeError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *StripeError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Erro ao criar sessão de checkout na Stripe."
}

type stripeErrorResponse struct {
	Error StripeError `json:"error"`
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

func apiBase() string {
	return config.ConfigOr("STRIPE_API_BASE_URL", "https://api.stripe.com")
}

func CreateCheckoutSession(secretKey string, params CheckoutSessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(params.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.UnitAmount, 10))
	form.Set("line_items[0][price_data][product_data][name]", params.ProductName)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	for key, value := range params.Metadata {
		if value == "" {
			continue
		}
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/v1/checkout/sessions", apiBase()), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", secretKey))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeStripeError(resp)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

func RetrieveCheckoutSession(secretKey, sessionID string) (*CheckoutSession, error) {
	req, err := http.NewRequest("GET", fmt.Sprintf("%s/v1/checkout/sessions/%s", apiBase(), url.PathEscape(sessionID)), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", secretKey))

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeStripeError(resp)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

func decodeStripeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp stripeErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &errResp.Error
	}
	return fmt.Errorf("stripe API error, status %d: %s", resp.StatusCode, string(body))
}
