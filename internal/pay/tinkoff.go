// Package pay holds the payment provider clients the subscription bot sells
// access through: Tinkoff (primary) and YooKassa (fallback).
package pay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
)

const tinkoffBaseURL = "https://securepay.tinkoff.ru/v2"

// Tinkoff payment states the bot reacts to.
const (
	TinkoffConfirmed = "CONFIRMED"
	TinkoffRejected  = "REJECTED"
	TinkoffCanceled  = "CANCELED"
)

// Tinkoff is a client for the Tinkoff acquiring API.
type Tinkoff struct {
	terminalKey string
	password    string
	baseURL     string
	httpc       *http.Client
}

// TinkoffOpts holds parameters for creating a Tinkoff client.
type TinkoffOpts struct {
	TerminalKey string
	Password    string
	BaseURL     string // defaults to the production endpoint
	HTTPClient  *http.Client
}

// NewTinkoff creates a Tinkoff client.
func NewTinkoff(opts TinkoffOpts) (*Tinkoff, error) {
	if opts.TerminalKey == "" || opts.Password == "" {
		return nil, fmt.Errorf("pay: tinkoff: terminal key and password are required")
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = tinkoffBaseURL
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Tinkoff{
		terminalKey: opts.TerminalKey,
		password:    opts.Password,
		baseURL:     baseURL,
		httpc:       httpc,
	}, nil
}

// ReceiptItem is one line of a fiscal receipt.
type ReceiptItem struct {
	Name     string `json:"Name"`
	Price    int64  `json:"Price"` // kopecks
	Quantity int    `json:"Quantity"`
	Amount   int64  `json:"Amount"` // kopecks
	Tax      string `json:"Tax"`
}

// Receipt is the fiscal receipt attached to an Init call.
type Receipt struct {
	Email    string        `json:"Email,omitempty"`
	Phone    string        `json:"Phone,omitempty"`
	Taxation string        `json:"Taxation"`
	Items    []ReceiptItem `json:"Items"`
}

// Invoice is a created payment the user can follow a URL to complete.
type Invoice struct {
	PaymentID string
	OrderID   string
	URL       string
	Amount    int64
}

// InitRequest describes the payment to create.
type InitRequest struct {
	Amount      int64 // kopecks
	OrderID     string
	Description string
	Receipt     *Receipt
}

type tinkoffResponse struct {
	Success    bool   `json:"Success"`
	ErrorCode  string `json:"ErrorCode"`
	Message    string `json:"Message"`
	Details    string `json:"Details"`
	PaymentID  string `json:"PaymentId"`
	PaymentURL string `json:"PaymentURL"`
	Status     string `json:"Status"`
}

// NewOrderID builds a unique merchant order ID for a user. Tinkoff rejects
// reused OrderIds, so every invoice gets a fresh UUID salt.
func NewOrderID(userID int64) string {
	return fmt.Sprintf("%d_%s", userID, uuid.NewString())
}

// Init creates a payment and returns the invoice with its confirmation URL.
func (t *Tinkoff) Init(ctx context.Context, req InitRequest) (*Invoice, error) {
	params := map[string]interface{}{
		"TerminalKey": t.terminalKey,
		"Amount":      req.Amount,
		"OrderId":     req.OrderID,
		"Description": req.Description,
	}
	params["Token"] = t.token(map[string]string{
		"TerminalKey": t.terminalKey,
		"Amount":      fmt.Sprintf("%d", req.Amount),
		"OrderId":     req.OrderID,
		"Description": req.Description,
	})
	// Receipt is excluded from the token per the signing rules.
	if req.Receipt != nil {
		params["Receipt"] = req.Receipt
	}

	resp, err := t.post(ctx, "/Init", params)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("pay: tinkoff init: %s (%s)", resp.Message, resp.ErrorCode)
	}
	return &Invoice{
		PaymentID: resp.PaymentID,
		OrderID:   req.OrderID,
		URL:       resp.PaymentURL,
		Amount:    req.Amount,
	}, nil
}

// Status returns the provider status of a payment, e.g. CONFIRMED.
func (t *Tinkoff) Status(ctx context.Context, paymentID string) (string, error) {
	params := map[string]interface{}{
		"TerminalKey": t.terminalKey,
		"PaymentId":   paymentID,
	}
	params["Token"] = t.token(map[string]string{
		"TerminalKey": t.terminalKey,
		"PaymentId":   paymentID,
	})

	resp, err := t.post(ctx, "/GetState", params)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("pay: tinkoff get state: %s (%s)", resp.Message, resp.ErrorCode)
	}
	return resp.Status, nil
}

// Cancel voids or refunds a payment.
func (t *Tinkoff) Cancel(ctx context.Context, paymentID string) error {
	params := map[string]interface{}{
		"TerminalKey": t.terminalKey,
		"PaymentId":   paymentID,
	}
	params["Token"] = t.token(map[string]string{
		"TerminalKey": t.terminalKey,
		"PaymentId":   paymentID,
	})

	resp, err := t.post(ctx, "/Cancel", params)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("pay: tinkoff cancel: %s (%s)", resp.Message, resp.ErrorCode)
	}
	return nil
}

// token computes the request signature: the terminal password is added under
// the key Password, values are concatenated in alphabetical key order, and
// the result is SHA-256 hashed. Object-valued fields (Receipt, DATA) never
// participate.
func (t *Tinkoff) token(params map[string]string) string {
	keys := make([]string, 0, len(params)+1)
	for k := range params {
		keys = append(keys, k)
	}
	keys = append(keys, "Password")
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		if k == "Password" {
			buf.WriteString(t.password)
			continue
		}
		buf.WriteString(params[k])
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

func (t *Tinkoff) post(ctx context.Context, path string, params map[string]interface{}) (*tinkoffResponse, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("pay: tinkoff: marshal %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pay: tinkoff: build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := t.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pay: tinkoff: %s: %w", path, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pay: tinkoff: %s: unexpected status %d", path, httpResp.StatusCode)
	}
	var resp tinkoffResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("pay: tinkoff: decode %s response: %w", path, err)
	}
	return &resp, nil
}
