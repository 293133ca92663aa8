package config

import "strings"

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":9991"
	defaultAppLogPath      = "/data/logs/mako-live.log"
	defaultExchangeName    = "binance"
	defaultExchangeTimeout = 15
	defaultTradingInterval = "15m"
	defaultTradingHistory  = 300
	defaultTradingLeverage = 10
	defaultRiskPerTrade    = 0.01
	defaultStopLossPct     = 0.02
	defaultTakeProfitPct   = 0.06
	defaultMaxDailyLossPct = 0.05
	defaultMaxPositionPct  = 0.5
	defaultStrategyName    = "ema_cross"
	defaultProfilesPath    = "configs/strategies.yaml"
	defaultStoreDBPath     = "/data/live/mako.db"
	defaultStoreEventsPath = "/data/live/events.db"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Strategy.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.name", &e.Name, defaultExchangeName),
		fieldDefault{
			key:   "exchange.timeout_seconds",
			need:  func() bool { return e.TimeoutSeconds <= 0 },
			apply: func() { e.TimeoutSeconds = defaultExchangeTimeout },
		},
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("trading.interval", &t.Interval, defaultTradingInterval),
		fieldDefault{
			key:   "trading.history_limit",
			need:  func() bool { return t.HistoryLimit <= 0 },
			apply: func() { t.HistoryLimit = defaultTradingHistory },
		},
		fieldDefault{
			key:   "trading.leverage",
			need:  func() bool { return t.Leverage <= 0 },
			apply: func() { t.Leverage = defaultTradingLeverage },
		},
		boolFieldDefault("trading.isolated_margin", &t.IsolatedMargin, true),
		boolFieldDefault("trading.run_immediately", &t.RunImmediately, true),
	)
	t.Symbol = strings.TrimSpace(t.Symbol)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.risk_per_trade",
			need:  func() bool { return r.RiskPerTrade <= 0 },
			apply: func() { r.RiskPerTrade = defaultRiskPerTrade },
		},
		fieldDefault{
			key:   "risk.stop_loss_pct",
			need:  func() bool { return r.StopLossPct <= 0 },
			apply: func() { r.StopLossPct = defaultStopLossPct },
		},
		fieldDefault{
			key:   "risk.take_profit_pct",
			need:  func() bool { return r.TakeProfitPct <= 0 },
			apply: func() { r.TakeProfitPct = defaultTakeProfitPct },
		},
		fieldDefault{
			key:   "risk.max_daily_loss_pct",
			need:  func() bool { return r.MaxDailyLossPct <= 0 },
			apply: func() { r.MaxDailyLossPct = defaultMaxDailyLossPct },
		},
		fieldDefault{
			key:   "risk.max_position_pct",
			need:  func() bool { return r.MaxPositionPct <= 0 },
			apply: func() { r.MaxPositionPct = defaultMaxPositionPct },
		},
	)
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("strategy.name", &s.Name, defaultStrategyName),
		stringFieldDefault("strategy.profiles_path", &s.ProfilesPath, defaultProfilesPath),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.db_path", &s.DBPath, defaultStoreDBPath),
		stringFieldDefault("store.events_path", &s.EventsPath, defaultStoreEventsPath),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
