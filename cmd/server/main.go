package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"bankfeed/internal/app/server/api"
	"bankfeed/internal/app/server/crypto"
	"bankfeed/internal/config"
	"bankfeed/internal/domain/ledger"
	syncdomain "bankfeed/internal/domain/sync"
	"bankfeed/internal/infrastructure/aggregator"
	"bankfeed/internal/infrastructure/storage/postgres"
	"bankfeed/internal/utils/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := postgres.New(cfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	cipher, err := crypto.NewCredentialCipher(cfg.Cipher)
	if err != nil {
		return err
	}

	var client aggregator.Client
	if cfg.Aggregator.UseFake {
		log.Warn("using fake aggregator client")
		client = aggregator.NewFake()
	} else {
		client = aggregator.NewHTTPClient(cfg.Aggregator, log)
	}

	pool := storage.Pool()
	connRepo := postgres.NewConnectionRepository(pool, log)
	ledgerRepo := postgres.NewLedgerRepository(pool, log)
	syncRepo := postgres.NewSyncRepository(pool, log)
	reconciler := ledger.NewReconciler(ledgerRepo, log)

	engine := syncdomain.NewService(
		connRepo, syncRepo, ledgerRepo, reconciler,
		cipher, client, cfg.Sync.MaxPagesPerRun, log,
	)
	scheduler := syncdomain.NewScheduler(engine, connRepo, cfg.Sync.Interval, cfg.Sync.Workers, log)

	mux := api.New(api.Deps{
		Storage: storage,
		Cipher:  cipher,
		Client:  client,
		Engine:  engine,
		Trigger: scheduler,
	}, log)

	srv := &http.Server{
		Addr:    cfg.Server.RunAddress,
		Handler: mux,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Run(gCtx)
	})

	g.Go(func() error {
		log.Info("server listening", "address", cfg.Server.RunAddress, "env", cfg.Env)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("server stopped")
	return nil
}
