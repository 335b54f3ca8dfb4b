// Package api assembles the HTTP surface.
//
// POST /user/register                     # register (public)
// POST /user/login                        # login (public)
// POST /api/v1/link/session              # start link flow (auth)
// POST /api/v1/link                      # establish connection (auth)
// GET  /api/v1/connections               # list connections (auth)
// POST /api/v1/connections/{id}/sync     # run sync now (auth)
// DELETE /api/v1/connections/{id}        # unlink (auth)
// GET  /api/v1/accounts                  # list accounts (auth)
// GET  /api/v1/accounts/{id}/transactions # list transactions (auth)
package api

import (
	connectionAPI "bankfeed/internal/app/server/api/http/connection"
	healthAPI "bankfeed/internal/app/server/api/http/health"
	ledgerAPI "bankfeed/internal/app/server/api/http/ledger"
	linkAPI "bankfeed/internal/app/server/api/http/link"
	"bankfeed/internal/app/server/api/http/middleware"
	"bankfeed/internal/app/server/api/http/middleware/auth"
	"bankfeed/internal/app/server/api/http/middleware/logger"
	userAPI "bankfeed/internal/app/server/api/http/user"
	"bankfeed/internal/domain/connection"
	"bankfeed/internal/domain/session"
	syncdomain "bankfeed/internal/domain/sync"
	"bankfeed/internal/domain/user"
	"bankfeed/internal/infrastructure/aggregator"
	"bankfeed/internal/infrastructure/storage/postgres"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

// Deps carries the pieces built in main that the API shares with the
// background scheduler: the sync engine and the enqueue trigger must be
// the same instances, or the per-connection lease would not hold across
// manual and scheduled runs.
type Deps struct {
	Storage *postgres.Storage
	Cipher  connection.Cipher
	Client  aggregator.Client
	Engine  syncdomain.Servicer
	Trigger connection.SyncTrigger
}

type Handlers struct {
	Health     *healthAPI.Handler
	User       *userAPI.Handler
	Link       *linkAPI.Handler
	Connection *connectionAPI.Handler
	Ledger     *ledgerAPI.Handler
}

// New builds a *chi.Mux with every operation registered through huma.
func New(deps Deps, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("Bankfeed API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, config)

	h := handlers(deps, log)
	h.Health.SetupRoutes(API)
	h.User.SetupRoutes(API)
	h.Link.SetupRoutes(API)
	h.Connection.SetupRoutes(API)
	h.Ledger.SetupRoutes(API)

	return mux
}

func handlers(deps Deps, log *slog.Logger) *Handlers {
	pool := deps.Storage.Pool()

	sessionRepo := postgres.NewSessionRepository(pool, log)
	sessionService := session.NewService(sessionRepo, log)
	authMW := auth.New(sessionService, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(log, middlewares.GetAllAndClear())

	userRepo := postgres.NewUserRepository(pool, log)
	userService := user.NewService(userRepo, log)
	middlewares.Add(loggerMW.Middleware())
	userHandler := userAPI.NewHandler(userService, sessionService, log, middlewares.GetAllAndClear())

	connRepo := postgres.NewConnectionRepository(pool, log)
	ledgerRepo := postgres.NewLedgerRepository(pool, log)
	connService := connection.NewService(connRepo, ledgerRepo, deps.Client, deps.Cipher, deps.Trigger, log)

	middlewares.Add(authMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	linkHandler := linkAPI.NewHandler(connService, log, middlewares.GetAllAndClear())

	middlewares.Add(authMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	connHandler := connectionAPI.NewHandler(connService, connRepo, deps.Engine, log, middlewares.GetAllAndClear())

	middlewares.Add(authMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	ledgerHandler := ledgerAPI.NewHandler(ledgerRepo, connRepo, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:     healthHandler,
		User:       userHandler,
		Link:       linkHandler,
		Connection: connHandler,
		Ledger:     ledgerHandler,
	}
}
