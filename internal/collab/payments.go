package collab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Payments — платёжный провайдер: создаёт checkout-сессию со ссылкой на оплату.
type Payments interface {
	CreateCheckout(invoiceNumber string, amount float64, companyName string) (sessionID, paymentLink string, err error)
}

type httpPayments struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewPayments(baseURL, apiKey string) Payments {
	if baseURL == "" {
		return devPayments{}
	}
	return &httpPayments{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *httpPayments) CreateCheckout(invoiceNumber string, amount float64, companyName string) (string, string, error) {
	body, err := json.Marshal(map[string]any{
		"invoice_number": invoiceNumber,
		"amount":         amount,
		"company_name":   companyName,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("payments: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		SessionID string `json:"session_id"`
		URL       string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", err
	}
	return out.SessionID, out.URL, nil
}

type devPayments struct{}

func (devPayments) CreateCheckout(invoiceNumber string, _ float64, _ string) (string, string, error) {
	id := "dev-session-" + uuid.NewString()
	return id, "https://pay.example.local/" + invoiceNumber, nil
}
