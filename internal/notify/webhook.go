package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// WebhookClient отправляет уведомления и запросы на снятие резерва во
// внешний шлюз. Одна попытка, свой короткий таймаут: дешевый побочный канал
// не должен ни блокировать, ни ронять денежную транзакцию.
type WebhookClient struct {
	log     *slog.Logger
	baseURL string
	client  *http.Client
}

func NewWebhookClient(log *slog.Logger, baseURL string, timeout time.Duration) *WebhookClient {
	return &WebhookClient{
		log:     log,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type notificationPayload struct {
	RecipientID int64  `json:"recipientId"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	OrderID     int64  `json:"orderId"`
}

// Notify делает единственную попытку доставки уведомления.
func (c *WebhookClient) Notify(ctx context.Context, recipientID int64, kind, title, message string, orderID int64) error {
	payload := notificationPayload{
		RecipientID: recipientID,
		Type:        kind,
		Title:       title,
		Message:     message,
		OrderID:     orderID,
	}
	return c.post(ctx, "/notifications", payload)
}

type releasePayload struct {
	OrderID int64 `json:"orderId"`
}

// ReleaseInventory просит внешний сервис снять резерв по отмененному заказу.
func (c *WebhookClient) ReleaseInventory(ctx context.Context, orderID int64) error {
	return c.post(ctx, "/inventory/release", releasePayload{OrderID: orderID})
}

func (c *WebhookClient) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	c.log.Debug("webhook delivered", slog.String("path", path))
	return nil
}
