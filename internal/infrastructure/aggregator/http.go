package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/exp/slog"

	"bankfeed/internal/config"
)

// HTTPClient talks to the real aggregator over JSON POST endpoints.
// Client credentials ride in every request body; each call carries a
// bounded timeout so a stuck aggregator surfaces as a transient error.
type HTTPClient struct {
	client   *http.Client
	log      *slog.Logger
	baseURL  string
	clientID string
	secret   string
	timeout  time.Duration
}

func NewHTTPClient(cfg config.Aggregator, log *slog.Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		log:      log.With("component", "aggregator_http"),
		baseURL:  cfg.Address,
		clientID: cfg.ClientID,
		secret:   cfg.Secret,
		timeout:  cfg.Timeout,
	}
}

func (h *HTTPClient) CreateLinkSession(ctx context.Context, userID int64) (LinkSession, error) {
	var out LinkSession
	err := h.post(ctx, "/link/session/create", map[string]any{
		"user_id": fmt.Sprintf("user-%d", userID),
	}, &out)
	return out, err
}

func (h *HTTPClient) ExchangePublicToken(ctx context.Context, publicToken string) (ExchangeResult, error) {
	var out ExchangeResult
	err := h.post(ctx, "/item/public_token/exchange", map[string]any{
		"public_token": publicToken,
	}, &out)
	return out, err
}

func (h *HTTPClient) ListAccounts(ctx context.Context, accessCredential string) ([]AccountData, error) {
	var out struct {
		Accounts []AccountData `json:"accounts"`
	}
	err := h.post(ctx, "/accounts/list", map[string]any{
		"access_credential": accessCredential,
	}, &out)
	return out.Accounts, err
}

func (h *HTTPClient) SyncPage(ctx context.Context, accessCredential, cursor string) (Page, error) {
	body := map[string]any{
		"access_credential": accessCredential,
	}
	if cursor != "" {
		body["cursor"] = cursor
	}

	var out Page
	err := h.post(ctx, "/transactions/sync", body, &out)
	return out, err
}

func (h *HTTPClient) RevokeItem(ctx context.Context, accessCredential string) error {
	var out struct {
		Removed bool `json:"removed"`
	}
	return h.post(ctx, "/item/remove", map[string]any{
		"access_credential": accessCredential,
	}, &out)
}

type apiError struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (h *HTTPClient) post(ctx context.Context, path string, body map[string]any, out any) error {
	body["client_id"] = h.clientID
	body["secret"] = h.secret

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		// Covers DNS failures, refused connections, and timeouts.
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return &TransientError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return h.mapError(path, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}

func (h *HTTPClient) mapError(path string, status int, data []byte) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		h.log.Warn("aggregator unavailable", "path", path, "status", status)
		return &TransientError{Err: fmt.Errorf("%s returned status %d", path, status)}
	}

	var ae apiError
	if err := json.Unmarshal(data, &ae); err != nil || ae.ErrorCode == "" {
		ae.ErrorCode = CodeInstitutionError
		ae.ErrorMessage = fmt.Sprintf("%s returned status %d", path, status)
	}

	h.log.Warn("aggregator rejected request",
		"path", path, "status", status, "code", ae.ErrorCode)
	return &PermanentError{Code: ae.ErrorCode, Message: ae.ErrorMessage}
}
