package collab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Email — почтовый сервис для писем клиентам и уведомлений партнёру.
type Email interface {
	Send(to, subject, body string) error
}

type httpEmail struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewEmail(baseURL, apiKey string) Email {
	if baseURL == "" {
		return devEmail{}
	}
	return &httpEmail{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (e *httpEmail) Send(to, subject, body string) error {
	payload, err := json.Marshal(map[string]string{
		"to":      to,
		"subject": subject,
		"body":    body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, e.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("email: unexpected status %d", resp.StatusCode)
	}
	return nil
}

type devEmail struct{}

func (devEmail) Send(to, subject, _ string) error {
	log.Printf("dev email to=%s subject=%q", to, subject)
	return nil
}
