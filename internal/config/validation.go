package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (e *ExchangeConfig) validate() error {
	if strings.TrimSpace(e.Name) != "binance" {
		return fmt.Errorf("exchange.name %q is not supported", e.Name)
	}
	if strings.TrimSpace(e.APIKey) == "" || strings.TrimSpace(e.APISecret) == "" {
		return fmt.Errorf("exchange.api_key and exchange.api_secret are required")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if strings.TrimSpace(t.Interval) == "" {
		return fmt.Errorf("trading.interval is required")
	}
	if t.Leverage < 1 || t.Leverage > 125 {
		return fmt.Errorf("trading.leverage must be between 1 and 125")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.RiskPerTrade <= 0 || r.RiskPerTrade >= 1 {
		return fmt.Errorf("risk.risk_per_trade must be in (0, 1)")
	}
	if r.StopLossPct <= 0 || r.StopLossPct >= 1 {
		return fmt.Errorf("risk.stop_loss_pct must be in (0, 1)")
	}
	if r.TakeProfitPct <= 0 {
		return fmt.Errorf("risk.take_profit_pct must be > 0")
	}
	if r.MaxDailyLossPct <= 0 || r.MaxDailyLossPct >= 1 {
		return fmt.Errorf("risk.max_daily_loss_pct must be in (0, 1)")
	}
	if r.MaxPositionPct <= 0 || r.MaxPositionPct > 1 {
		return fmt.Errorf("risk.max_position_pct must be in (0, 1]")
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("strategy.name is required")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if tg.Enabled && (strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "") {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}
