package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/civicdispatch/auth"
	"github.com/kilianp07/civicdispatch/core/dispatch"
)

// WebhookConfig configures HTTP delivery. URL may contain "{target_id}",
// replaced by the id of the receiving target.
type WebhookConfig struct {
	URL       string            `json:"url"`
	TimeoutMS int               `json:"timeout_ms"`
	Headers   map[string]string `json:"headers"`
	Auth      auth.Conf         `json:"auth"`
}

// Webhook POSTs the submission payload as JSON. 2xx responses are accepted;
// other 4xx responses, except 408 and 429, are not retried.
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
	creds   *auth.ClientCred
	now     func() time.Time
}

func NewWebhook(cfg WebhookConfig) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	timeout := 10 * time.Second
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	w := &Webhook{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
	if cfg.Auth.Enabled() {
		w.creds = auth.NewClientCred(cfg.Auth)
	}
	return w, nil
}

func (w *Webhook) Deliver(ctx context.Context, d dispatch.Delivery) error {
	id := uuid.NewString()
	body, err := json.Marshal(dispatch.NewPayload(d, id, w.now()))
	if err != nil {
		return dispatch.Permanent(err)
	}
	resp, err := w.post(ctx, d.Target.ID, id, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized && w.creds != nil {
		_ = resp.Body.Close()
		if _, err := w.creds.ForceRefresh(ctx); err != nil {
			return err
		}
		if resp, err = w.post(ctx, d.Target.ID, id, body); err != nil {
			return err
		}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return statusError(resp)
}

func (w *Webhook) post(ctx context.Context, targetID, id string, body []byte) (*http.Response, error) {
	url := strings.ReplaceAll(w.url, "{target_id}", targetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, dispatch.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", id)
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	if w.creds != nil {
		if err := w.creds.SetAuthHeader(ctx, req); err != nil {
			return nil, err
		}
	}
	return w.client.Do(req)
}

func statusError(resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	err := fmt.Errorf("endpoint answered %s", resp.Status)
	if code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests {
		return dispatch.Permanent(err)
	}
	return err
}
