package sync

import (
	"context"
	"errors"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"bankfeed/internal/domain/connection"
)

const queueCapacity = 256

// Scheduler owns the asynchronous sync workload: a bounded worker pool
// drains an enqueue channel, and a ticker re-enqueues every active
// connection each interval. Mutual exclusion per connection is the
// engine's job (its lease), so a duplicate trigger degrades to a
// logged no-op rather than a second concurrent run.
type Scheduler struct {
	engine   Servicer
	conns    connection.Repository
	log      *slog.Logger
	queue    chan int64
	interval time.Duration
	workers  int
}

func NewScheduler(engine Servicer, conns connection.Repository, interval time.Duration, workers int, log *slog.Logger) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{
		engine:   engine,
		conns:    conns,
		log:      log.With("component", "sync_scheduler"),
		queue:    make(chan int64, queueCapacity),
		interval: interval,
		workers:  workers,
	}
}

// Enqueue requests an asynchronous sync for a connection. Never blocks:
// when the queue is full the trigger is dropped, and the periodic tick
// covers the connection anyway.
func (s *Scheduler) Enqueue(connectionID int64) {
	select {
	case s.queue <- connectionID:
	default:
		s.log.Warn("sync queue full, dropping trigger", "connection_id", connectionID)
	}
}

// Run blocks until ctx is cancelled, operating the worker pool and the
// periodic tick.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			return s.worker(ctx)
		})
	}

	g.Go(func() error {
		return s.tick(ctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Context expiry is the shutdown signal, not a failure.
		return nil
	}
	return err
}

func (s *Scheduler) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case connectionID := <-s.queue:
			s.runOne(ctx, connectionID)
		}
	}
}

func (s *Scheduler) runOne(ctx context.Context, connectionID int64) {
	_, err := s.engine.Run(ctx, connectionID, Options{})
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress):
		s.log.Debug("sync already running, skipping", "connection_id", connectionID)
	case errors.Is(err, context.Canceled):
	default:
		// The engine already recorded status/detail; the scheduler's
		// next tick is the retry.
		s.log.Warn("scheduled sync failed",
			"connection_id", connectionID, "error", err)
	}
}

func (s *Scheduler) tick(ctx context.Context) error {
	if s.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ids, err := s.conns.ListActiveIDs(ctx)
			if err != nil {
				s.log.Error("failed to list connections for periodic sync", "error", err)
				continue
			}
			for _, id := range ids {
				s.Enqueue(id)
			}
		}
	}
}
