package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/exp/slog"

	"bankfeed/internal/app/client/config"
	"bankfeed/internal/domain/connection"
	"bankfeed/internal/domain/ledger"
	syncdomain "bankfeed/internal/domain/sync"
	"bankfeed/internal/domain/user"
)

type httpClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	token     string
	userAgent string
}

func newHTTPClient(cfg *config.Config, log *slog.Logger) *httpClient {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	scheme := "http://"
	if cfg.EnableTLS {
		scheme = "https://"
	}

	return &httpClient{
		client:    client,
		log:       log,
		baseURL:   scheme + cfg.ServerAddress,
		userAgent: "Bankfeed-Client/1.0",
	}
}

func (h *httpClient) SetToken(token string) {
	h.token = token
}

func (h *httpClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/ping", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}

func (h *httpClient) Register(ctx context.Context, login, password string) error {
	resp, err := h.doRequest(ctx, http.MethodPost, "/user/register", user.BaseRequest{
		Login:    login,
		Password: password,
	})
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

func (h *httpClient) Login(ctx context.Context, login, password string) (string, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/user/login", user.BaseRequest{
		Login:    login,
		Password: password,
	})
	if err != nil {
		return "", err
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := h.parseResponse(resp, &loginResp); err != nil {
		return "", err
	}

	h.token = loginResp.Token
	return loginResp.Token, nil
}

func (h *httpClient) CreateLinkSession(ctx context.Context) (string, time.Time, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/link/session", struct{}{})
	if err != nil {
		return "", time.Time{}, err
	}

	var sessionResp struct {
		SessionToken string    `json:"session_token"`
		Expiry       time.Time `json:"expiry"`
	}
	if err := h.parseResponse(resp, &sessionResp); err != nil {
		return "", time.Time{}, err
	}
	return sessionResp.SessionToken, sessionResp.Expiry, nil
}

func (h *httpClient) EstablishLink(ctx context.Context, publicToken, institution string) (int64, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/link", map[string]string{
		"public_token": publicToken,
		"institution":  institution,
	})
	if err != nil {
		return 0, err
	}

	var linkResp struct {
		ConnectionID int64 `json:"connection_id"`
	}
	if err := h.parseResponse(resp, &linkResp); err != nil {
		return 0, err
	}
	return linkResp.ConnectionID, nil
}

func (h *httpClient) ListConnections(ctx context.Context) ([]connection.Connection, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/connections", nil)
	if err != nil {
		return nil, err
	}

	var conns []connection.Connection
	if err := h.parseResponse(resp, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

func (h *httpClient) TriggerSync(ctx context.Context, connectionID int64, cursor *string) (syncdomain.Result, error) {
	body := map[string]any{}
	if cursor != nil {
		body["cursor"] = *cursor
	}

	path := "/api/v1/connections/" + strconv.FormatInt(connectionID, 10) + "/sync"
	resp, err := h.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return syncdomain.Result{}, err
	}

	var syncResp struct {
		Result syncdomain.Result `json:"result"`
	}
	if err := h.parseResponse(resp, &syncResp); err != nil {
		return syncdomain.Result{}, err
	}
	return syncResp.Result, nil
}

func (h *httpClient) Unlink(ctx context.Context, connectionID int64) (connection.UnlinkResult, error) {
	path := "/api/v1/connections/" + strconv.FormatInt(connectionID, 10)
	resp, err := h.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return connection.UnlinkResult{}, err
	}

	var unlinkResp struct {
		Result connection.UnlinkResult `json:"result"`
		Status string                  `json:"status"`
	}
	if err := h.parseResponse(resp, &unlinkResp); err != nil {
		return connection.UnlinkResult{}, err
	}
	return unlinkResp.Result, nil
}

func (h *httpClient) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/accounts", nil)
	if err != nil {
		return nil, err
	}

	var accounts []ledger.Account
	if err := h.parseResponse(resp, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (h *httpClient) ListTransactions(ctx context.Context, accountID int64, includeHidden bool) ([]ledger.Transaction, error) {
	path := "/api/v1/accounts/" + strconv.FormatInt(accountID, 10) + "/transactions"
	if includeHidden {
		path += "?include_hidden=true"
	}

	resp, err := h.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var transactions []ledger.Transaction
	if err := h.parseResponse(resp, &transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (h *httpClient) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	h.log.Debug("sending request", "method", method, "url", req.URL.String())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (h *httpClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	h.log.Debug("received response", "status", resp.StatusCode)

	if resp.StatusCode >= 400 {
		var errResp struct {
			Detail string `json:"detail"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil {
			if errResp.Detail != "" {
				return fmt.Errorf("server error: %s", errResp.Detail)
			}
			if errResp.Error != "" {
				return fmt.Errorf("server error: %s", errResp.Error)
			}
		}
		return fmt.Errorf("server error: status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
