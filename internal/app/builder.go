package app

import (
	"fmt"
	"time"

	"mako/internal/config"
	"mako/internal/engine"
	"mako/internal/execution"
	"mako/internal/gateway/binance"
	"mako/internal/gateway/notifier"
	"mako/internal/logger"
	"mako/internal/position"
	"mako/internal/store/eventlog"
	"mako/internal/store/gormstore"
	"mako/internal/strategy"
	livehttp "mako/internal/transport/http/live"
)

// buildApp wires the full dependency graph by hand: gateway, execution
// policy, stores, notifier, strategy profiles, engine, HTTP server.
func buildApp(cfg *config.Config) (*App, error) {
	gw, err := binance.New(binance.Config{
		APIKey:      cfg.Exchange.APIKey,
		APISecret:   cfg.Exchange.APISecret,
		Testnet:     cfg.Exchange.Testnet,
		RESTBaseURL: cfg.Exchange.RESTBaseURL,
		HTTPTimeout: time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("build exchange gateway: %w", err)
	}

	store, err := gormstore.NewStore(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	events, err := eventlog.Open(cfg.Store.EventsPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open event log: %w", err)
	}

	profiles, err := strategy.NewProfileLoader(cfg.Strategy.ProfilesPath)
	if err != nil {
		// profiles are optional: the engine falls back to the risk config
		logger.Warnf("app: strategy profiles unavailable (%v), using config defaults", err)
		profiles = nil
	}

	var textNotifier notifier.TextNotifier = notifier.Nop{}
	if cfg.Notify.Telegram.Enabled {
		textNotifier = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
		logger.Infof("app: telegram notifications enabled")
	}

	eng, err := engine.New(engine.Params{
		Config:  cfg,
		Gateway: gw,
		Policy:  execution.NewPolicy(gw),
		Manager: position.NewManager(position.Config{
			RiskPerTrade:   cfg.Risk.RiskPerTrade,
			MaxPositionPct: cfg.Risk.MaxPositionPct,
		}),
		Store:    store,
		Events:   events,
		Notifier: textNotifier,
		Profiles: profiles,
	})
	if err != nil {
		events.Close()
		store.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}

	a := &App{
		cfg:         cfg,
		engine:      eng,
		store:       store,
		events:      events,
		shutdownReq: make(chan struct{}),
	}

	httpSrv, err := livehttp.NewServer(livehttp.ServerConfig{
		Addr:     cfg.App.HTTPAddr,
		Engine:   eng,
		Trades:   store,
		Events:   events,
		Shutdown: a.RequestShutdown,
	})
	if err != nil {
		events.Close()
		store.Close()
		return nil, fmt.Errorf("build http server: %w", err)
	}
	a.liveHTTP = httpSrv

	return a, nil
}
