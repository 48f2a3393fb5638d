package collab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ESign — провайдер электронной подписи. Движок только отправляет конверты
// и реагирует на вебхуки о подписании; внутренности провайдера нас не касаются.
type ESign interface {
	SendNDA(contactEmail, contactName, companyName string) (envelopeID string, err error)
	SendAgreement(contactEmail, contactName, companyName string, fee float64) (envelopeID string, err error)
}

type httpESign struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewESign возвращает HTTP-клиент провайдера; при пустом URL — dev-заглушку,
// которая "подписывает" мгновенно и выдаёт синтетические конверты.
func NewESign(baseURL, apiKey string) ESign {
	if baseURL == "" {
		return devESign{}
	}
	return &httpESign{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (e *httpESign) send(kind, contactEmail, contactName, companyName string, extra map[string]any) (string, error) {
	payload := map[string]any{
		"template":      kind,
		"contact_email": contactEmail,
		"contact_name":  contactName,
		"company_name":  companyName,
	}
	for k, v := range extra {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, e.baseURL+"/envelopes", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("esign: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		EnvelopeID string `json:"envelope_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.EnvelopeID, nil
}

func (e *httpESign) SendNDA(contactEmail, contactName, companyName string) (string, error) {
	return e.send("nda", contactEmail, contactName, companyName, nil)
}

func (e *httpESign) SendAgreement(contactEmail, contactName, companyName string, fee float64) (string, error) {
	return e.send("agreement", contactEmail, contactName, companyName, map[string]any{"fee": fee})
}

type devESign struct{}

func (devESign) SendNDA(_, _, _ string) (string, error) {
	return "dev-nda-" + uuid.NewString(), nil
}

func (devESign) SendAgreement(_, _, _ string, _ float64) (string, error) {
	return "dev-agreement-" + uuid.NewString(), nil
}
