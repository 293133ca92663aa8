package app

import (
	"context"
	"fmt"
	"sync"

	"mako/internal/config"
	"mako/internal/engine"
	"mako/internal/logger"
	"mako/internal/store/eventlog"
	"mako/internal/store/gormstore"
	livehttp "mako/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App owns the application lifecycle: build dependencies, run the trading
// engine and the HTTP surface, tear everything down on exit.
type App struct {
	cfg      *config.Config
	engine   *engine.Engine
	liveHTTP *livehttp.Server
	store    *gormstore.Store
	events   *eventlog.Log

	shutdownReq  chan struct{}
	shutdownOnce sync.Once
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildApp(cfg)
}

// Run starts the engine loop and the HTTP server and blocks until ctx is
// cancelled or either component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.engine == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	logger.Infof("app: starting %s on %s %s (http %s)",
		a.cfg.Strategy.Name, a.cfg.Trading.Symbol, a.cfg.Trading.Interval, a.liveHTTP.Addr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		select {
		case <-ctx.Done():
		case <-a.shutdownReq:
			logger.Infof("app: shutdown requested over the api")
			cancel()
		}
		return nil
	})

	group.Go(func() error {
		if err := a.liveHTTP.Start(ctx); err != nil {
			return fmt.Errorf("live http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		return a.engine.Run(ctx)
	})

	return group.Wait()
}

func (a *App) close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			logger.Warnf("app: event log close failed: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("app: store close failed: %v", err)
		}
	}
}

// RequestShutdown stops a running app, same as a termination signal. Safe to
// call more than once and before Run.
func (a *App) RequestShutdown() {
	if a == nil {
		return
	}
	a.shutdownOnce.Do(func() { close(a.shutdownReq) })
}

// Engine exposes the engine instance for test harnesses.
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}
