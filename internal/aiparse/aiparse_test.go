package aiparse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, reply string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	c, err := New(Opts{APIKey: "sk-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(Opts{}); err == nil {
		t.Error("expected error for missing api key")
	}
}

func TestParse_ExtractsOrder(t *testing.T) {
	reply := `{"origin":"Москва","destination":"Тверь","depart_at":"сегодня в 19:00","seats":3,"price":"5000 руб","phone":""}`
	c := newTestClient(t, reply)

	order, err := c.Parse(context.Background(), "Маршрут Москва-Тверь, 3 пассажира, сегодня в 19:00, 5000 руб")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if order == nil {
		t.Fatal("expected an order")
	}
	if order.Origin != "Москва" || order.Destination != "Тверь" || order.Seats != 3 {
		t.Errorf("order = %+v", order)
	}
}

func TestParse_UnwrapsProseAndFences(t *testing.T) {
	reply := "Вот данные заказа:\n```json\n{\"origin\":\"Сочи\",\"destination\":\"Адлер\",\"seats\":2}\n```"
	c := newTestClient(t, reply)

	order, err := c.Parse(context.Background(), "Сочи - Адлер, двое")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if order == nil || order.Origin != "Сочи" || order.Seats != 2 {
		t.Errorf("order = %+v", order)
	}
}

func TestParse_NotAnOrder(t *testing.T) {
	for _, reply := range []string{"{}", "Это не заказ такси.", "```{broken json```"} {
		c := newTestClient(t, reply)
		order, err := c.Parse(context.Background(), "всем привет")
		if err != nil {
			t.Fatalf("parse(%q): %v", reply, err)
		}
		if order != nil {
			t.Errorf("reply %q produced order %+v, want nil", reply, order)
		}
	}
}

func TestParse_SendsAuthAndModel(t *testing.T) {
	var auth string
	var body chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "{}"}},
			},
		})
	}))
	defer srv.Close()
	c, err := New(Opts{APIKey: "sk-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Parse(context.Background(), "текст"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if auth != "Bearer sk-test" {
		t.Errorf("auth header = %q", auth)
	}
	if body.Model != defaultModel {
		t.Errorf("model = %q, want %q", body.Model, defaultModel)
	}
	if body.Temperature != extractionTemperature {
		t.Errorf("temperature = %v", body.Temperature)
	}
	if len(body.Messages) != 2 || body.Messages[1].Content != "текст" {
		t.Errorf("messages = %+v", body.Messages)
	}
}

func TestParse_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c, err := New(Opts{APIKey: "sk-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Parse(context.Background(), "x"); err == nil {
		t.Error("expected error on HTTP 429")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"prefix {\"a\":1} suffix", `{"a":1}`, true},
		{"no json here", "", false},
		{"} reversed {", "", false},
	}
	for _, tt := range tests {
		got, ok := extractJSON(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("extractJSON(%q) = %q, %v", tt.in, got, ok)
		}
	}
}
