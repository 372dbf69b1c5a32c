// Package printagent предоставляет клиент агента печати, установленного на компьютере кассы с чековым принтером.
package printagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mmeshcher/playhouse/internal/billing"
)

// Client инкапсулирует HTTP-взаимодействие с агентом печати.
type Client struct {
	baseURL    string
	title      string
	httpClient *http.Client
}

// Job описывает задание на печать, отправляемое агенту.
type Job struct {
	Title   string          `json:"title,omitempty"`
	Receipt billing.Receipt `json:"receipt"`
}

// RetryAfterError возвращается, когда агент занят и просит повторить печать позже.
type RetryAfterError struct {
	Delay time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("print agent busy, retry after %s", e.Delay)
}

// RetryAfter возвращает задержку перед повторной попыткой.
func (e *RetryAfterError) RetryAfter() time.Duration {
	return e.Delay
}

// NewClient создаёт HTTP-клиент агента печати по указанному адресу.
func NewClient(baseURL, title string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		title:   title,
		httpClient: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Print отправляет чек агенту печати.
func (c *Client) Print(ctx context.Context, r billing.Receipt) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("print agent client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(Job{Title: c.title, Receipt: r})
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/print", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RetryAfterError{Delay: retryAfter}
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}
