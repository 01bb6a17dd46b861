// Package aiparse extracts structured taxi-order fields from free-form
// message text using the DeepSeek chat API. Extraction is best-effort: a
// message the model cannot parse yields no order, not an error.
package aiparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	deepSeekBaseURL = "https://api.deepseek.com"
	defaultModel    = "deepseek-chat"

	// Low temperature keeps field extraction deterministic.
	extractionTemperature = 0.1
)

const systemPrompt = `Ты извлекаешь данные заказа такси из сообщения. ` +
	`Ответь только JSON-объектом с полями: origin (откуда), destination (куда), ` +
	`depart_at (когда, как указано в тексте), seats (число мест, 0 если не указано), ` +
	`price (цена как указана), phone (телефон). ` +
	`Неизвестные поля оставь пустыми. Если это не заказ такси, ответь {}.`

// Order is the structured result of one extraction. Any field may be empty.
type Order struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	DepartAt    string `json:"depart_at"`
	Seats       int    `json:"seats"`
	Price       string `json:"price"`
	Phone       string `json:"phone"`
}

// Empty reports whether the extraction produced nothing usable.
func (o *Order) Empty() bool {
	return o.Origin == "" && o.Destination == "" && o.DepartAt == "" &&
		o.Seats == 0 && o.Price == "" && o.Phone == ""
}

// Client calls the DeepSeek chat-completions API.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
}

// Opts holds parameters for creating a Client.
type Opts struct {
	APIKey     string
	Model      string // defaults to deepseek-chat
	BaseURL    string // defaults to the production endpoint
	HTTPClient *http.Client
}

// New creates a Client.
func New(opts Opts) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("aiparse: api key is required")
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = deepSeekBaseURL
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{apiKey: opts.APIKey, model: model, baseURL: baseURL, httpc: httpc}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Parse extracts an order from text. Returns (nil, nil) when the model sees
// no taxi order in the message.
func (c *Client) Parse(ctx context.Context, text string) (*Order, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		Temperature: extractionTemperature,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("aiparse: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("aiparse: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aiparse: request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aiparse: unexpected status %d", httpResp.StatusCode)
	}
	var resp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("aiparse: decode response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("aiparse: empty response")
	}

	raw, ok := extractJSON(resp.Choices[0].Message.Content)
	if !ok {
		return nil, nil
	}
	var order Order
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		// Model produced malformed JSON; treat as no extraction.
		return nil, nil
	}
	if order.Empty() {
		return nil, nil
	}
	return &order, nil
}

// extractJSON cuts the substring between the first '{' and the last '}'.
// Models wrap answers in prose or code fences; the payload inside is what
// counts.
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
