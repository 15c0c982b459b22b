// internal/infra/whatsapp/periskope_client.go
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const sendMessagePath = "/message/send"

// PeriskopeClient implements messaging.Sender against the Periskope WhatsApp API.
type PeriskopeClient struct {
	baseURL     string
	apiKey      string
	senderPhone string
	httpClient  *http.Client
}

func NewPeriskopeClient(baseURL, apiKey, senderPhone string, timeout time.Duration) *PeriskopeClient {
	return &PeriskopeClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		senderPhone: senderPhone,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type sendMessageRequest struct {
	RecipientChatID string `json:"recipient_chat_id"`
	Message         string `json:"message"`
}

// APIError is returned when the provider answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("periskope: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Send enqueues one message. A 2xx response means the provider accepted it.
func (c *PeriskopeClient) Send(ctx context.Context, chatID string, text string) error {
	payload, err := json.Marshal(sendMessageRequest{RecipientChatID: chatID, Message: text})
	if err != nil {
		return fmt.Errorf("failed to encode message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendMessagePath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("x-phone", c.senderPhone)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request to %s failed: %w", chatID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
