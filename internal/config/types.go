package config

import "strings"

// Config is the main configuration carrier for mako.
type Config struct {
	App      AppConfig      `toml:"app"`
	Exchange ExchangeConfig `toml:"exchange"`
	Trading  TradingConfig  `toml:"trading"`
	Risk     RiskConfig     `toml:"risk"`
	Strategy StrategyConfig `toml:"strategy"`
	Notify   NotifyConfig   `toml:"notify"`
	Store    StoreConfig    `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// ExchangeConfig describes the venue the bot trades on.
type ExchangeConfig struct {
	Name           string `toml:"name"`
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	Testnet        bool   `toml:"testnet"`
	RESTBaseURL    string `toml:"rest_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TradingConfig pins the single instrument and the evaluation cadence.
type TradingConfig struct {
	Symbol         string `toml:"symbol"`
	Interval       string `toml:"interval"`
	HistoryLimit   int    `toml:"history_limit"`
	Leverage       int    `toml:"leverage"`
	IsolatedMargin bool   `toml:"isolated_margin"`
	RunImmediately bool   `toml:"run_immediately"`
}

// RiskConfig holds the sizing and loss-limit knobs. Percentages are
// fractions of capital (0.01 = 1%).
type RiskConfig struct {
	RiskPerTrade    float64 `toml:"risk_per_trade"`
	StopLossPct     float64 `toml:"stop_loss_pct"`
	TakeProfitPct   float64 `toml:"take_profit_pct"`
	MaxDailyLossPct float64 `toml:"max_daily_loss_pct"`
	MaxPositionPct  float64 `toml:"max_position_pct"`
}

type StrategyConfig struct {
	Name         string `toml:"name"`
	ProfilesPath string `toml:"profiles_path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type StoreConfig struct {
	DBPath     string `toml:"db_path"`
	EventsPath string `toml:"events_path"`
}

// keySet tracks which field paths were explicitly set in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the default rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
