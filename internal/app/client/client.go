package client

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/exp/slog"

	"bankfeed/internal/app/client/config"
	"bankfeed/internal/domain/connection"
	"bankfeed/internal/domain/ledger"
	syncdomain "bankfeed/internal/domain/sync"
)

// App is the CLI application: a thin authenticated API client plus a
// local sqlite cache for offline reads.
type App struct {
	config *config.Config
	log    *slog.Logger
	http   *httpClient
	cache  *CacheStorage
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	cache, err := NewCacheStorage(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	app := &App{
		config: cfg,
		log:    log,
		http:   newHTTPClient(cfg, log),
		cache:  cache,
	}

	// A previously saved token keeps the session across invocations.
	if token, err := os.ReadFile(cfg.TokenPath); err == nil && len(token) > 0 {
		app.http.SetToken(string(token))
	}

	return app, nil
}

func (a *App) Close() error {
	return a.cache.Close()
}

func (a *App) CheckConnection(ctx context.Context) error {
	return a.http.HealthCheck(ctx)
}

func (a *App) Register(ctx context.Context, login, password string) error {
	return a.http.Register(ctx, login, password)
}

func (a *App) Login(ctx context.Context, login, password string) (string, error) {
	return a.http.Login(ctx, login, password)
}

func (a *App) SaveToken(token string) error {
	if err := os.WriteFile(a.config.TokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (a *App) CreateLinkSession(ctx context.Context) (string, time.Time, error) {
	return a.http.CreateLinkSession(ctx)
}

func (a *App) EstablishLink(ctx context.Context, publicToken, institution string) (int64, error) {
	return a.http.EstablishLink(ctx, publicToken, institution)
}

func (a *App) ListConnections(ctx context.Context) ([]connection.Connection, error) {
	return a.http.ListConnections(ctx)
}

func (a *App) TriggerSync(ctx context.Context, connectionID int64, cursor *string) (syncdomain.Result, error) {
	return a.http.TriggerSync(ctx, connectionID, cursor)
}

func (a *App) Unlink(ctx context.Context, connectionID int64) (connection.UnlinkResult, error) {
	return a.http.Unlink(ctx, connectionID)
}

// ListAccounts fetches the account listing and refreshes the cache.
// When the server is unreachable it falls back to the cached listing.
func (a *App) ListAccounts(ctx context.Context) ([]ledger.Account, bool, error) {
	accounts, err := a.http.ListAccounts(ctx)
	if err != nil {
		cached, cacheErr := a.cache.ListAccounts()
		if cacheErr != nil || len(cached) == 0 {
			return nil, false, err
		}
		a.log.Debug("serving accounts from cache", "error", err)
		return cached, true, nil
	}

	if err := a.cache.SaveAccounts(accounts); err != nil {
		a.log.Warn("failed to refresh account cache", "error", err)
	}
	return accounts, false, nil
}

// ListTransactions mirrors ListAccounts: server first, cache fallback.
// Hidden transactions are never cached.
func (a *App) ListTransactions(ctx context.Context, accountID int64, includeHidden bool) ([]ledger.Transaction, bool, error) {
	transactions, err := a.http.ListTransactions(ctx, accountID, includeHidden)
	if err != nil {
		cached, cacheErr := a.cache.ListTransactions(accountID)
		if cacheErr != nil || len(cached) == 0 {
			return nil, false, err
		}
		a.log.Debug("serving transactions from cache", "account_id", accountID, "error", err)
		return cached, true, nil
	}

	if !includeHidden {
		if err := a.cache.SaveTransactions(accountID, transactions); err != nil {
			a.log.Warn("failed to refresh transaction cache", "error", err)
		}
	}
	return transactions, false, nil
}
