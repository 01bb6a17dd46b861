package pay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const yooKassaBaseURL = "https://api.yookassa.ru/v3"

// YooKassa payment states the bot reacts to.
const (
	YooKassaSucceeded = "succeeded"
	YooKassaCanceled  = "canceled"
	YooKassaPending   = "pending"
)

// YooKassa is a client for the YooKassa payments API.
type YooKassa struct {
	shopID    string
	secretKey string
	returnURL string
	baseURL   string
	httpc     *http.Client
}

// YooKassaOpts holds parameters for creating a YooKassa client.
type YooKassaOpts struct {
	ShopID     string
	SecretKey  string
	ReturnURL  string // where the user lands after paying
	BaseURL    string // defaults to the production endpoint
	HTTPClient *http.Client
}

// NewYooKassa creates a YooKassa client.
func NewYooKassa(opts YooKassaOpts) (*YooKassa, error) {
	if opts.ShopID == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("pay: yookassa: shop id and secret key are required")
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = yooKassaBaseURL
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &YooKassa{
		shopID:    opts.ShopID,
		secretKey: opts.SecretKey,
		returnURL: opts.ReturnURL,
		baseURL:   baseURL,
		httpc:     httpc,
	}, nil
}

type yooKassaAmount struct {
	Value    string `json:"value"` // "500.00"
	Currency string `json:"currency"`
}

type yooKassaPayment struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	Amount       yooKassaAmount `json:"amount"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
	Description string `json:"description"`
}

// CreatePayment creates a redirect-confirmation payment. Amount is in
// kopecks; the Idempotence-Key header makes accidental retries safe.
func (y *YooKassa) CreatePayment(ctx context.Context, amount int64, description string) (*Invoice, error) {
	body := map[string]interface{}{
		"amount": yooKassaAmount{
			Value:    fmt.Sprintf("%d.%02d", amount/100, amount%100),
			Currency: "RUB",
		},
		"capture": true,
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": y.returnURL,
		},
		"description": description,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("pay: yookassa: marshal payment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.baseURL+"/payments", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("pay: yookassa: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())
	req.SetBasicAuth(y.shopID, y.secretKey)

	p, err := y.do(req)
	if err != nil {
		return nil, err
	}
	return &Invoice{
		PaymentID: p.ID,
		URL:       p.Confirmation.ConfirmationURL,
		Amount:    amount,
	}, nil
}

// Init creates a hosted-checkout payment. It gives YooKassa the same call
// shape as the Tinkoff client so the bot can run on either provider.
func (y *YooKassa) Init(ctx context.Context, req InitRequest) (*Invoice, error) {
	return y.CreatePayment(ctx, req.Amount, req.Description)
}

// Status returns the provider status of a payment: pending, succeeded or
// canceled.
func (y *YooKassa) Status(ctx context.Context, paymentID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return "", fmt.Errorf("pay: yookassa: build request: %w", err)
	}
	req.SetBasicAuth(y.shopID, y.secretKey)

	p, err := y.do(req)
	if err != nil {
		return "", err
	}
	return p.Status, nil
}

func (y *YooKassa) do(req *http.Request) (*yooKassaPayment, error) {
	httpResp, err := y.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pay: yookassa: %s: %w", req.URL.Path, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pay: yookassa: %s: unexpected status %d", req.URL.Path, httpResp.StatusCode)
	}
	var p yooKassaPayment
	if err := json.NewDecoder(httpResp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("pay: yookassa: decode response: %w", err)
	}
	return &p, nil
}
