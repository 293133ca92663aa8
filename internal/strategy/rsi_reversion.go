package strategy

import (
	"fmt"

	"mako/internal/gateway/exchange"
	"mako/internal/logger"
	"mako/internal/market"

	"github.com/markcheno/go-talib"
)

func init() {
	Register("rsi_reversion", NewRSIReversion)
}

type rsiReversionParams struct {
	Period     int     `toml:"period"`
	Oversold   float64 `toml:"oversold"`
	Overbought float64 `toml:"overbought"`
	ExitLevel  float64 `toml:"exit_level"`
}

// RSIReversion fades extremes: long when RSI dips below the oversold level,
// short above the overbought level, exit when RSI reverts to the midline.
type RSIReversion struct {
	params        rsiReversionParams
	stopLossPct   float64
	takeProfitPct float64
}

func NewRSIReversion(cfg Config) (Strategy, error) {
	p := rsiReversionParams{
		Period:     14,
		Oversold:   30,
		Overbought: 70,
		ExitLevel:  50,
	}
	if err := decodeParams(cfg.Params, &p); err != nil {
		return nil, fmt.Errorf("rsi_reversion params: %w", err)
	}
	if p.Period <= 1 {
		return nil, fmt.Errorf("rsi_reversion requires period > 1, got %d", p.Period)
	}
	if p.Oversold >= p.Overbought {
		return nil, fmt.Errorf("rsi_reversion requires oversold < overbought")
	}
	return &RSIReversion{
		params:        p,
		stopLossPct:   cfg.StopLossPct,
		takeProfitPct: cfg.TakeProfitPct,
	}, nil
}

func (s *RSIReversion) Name() string { return "rsi_reversion" }

func (s *RSIReversion) ShouldEnter(snap market.Snapshot) Signal {
	closes := snap.Closes()
	if len(closes) < s.params.Period+2 {
		return SignalNone
	}
	rsi, ok := lastAfterWarmup(talib.Rsi(closes, s.params.Period), s.params.Period)
	if !ok {
		return SignalNone
	}
	if rsi < s.params.Oversold {
		logger.Infof("rsi_reversion: LONG signal, RSI %.1f < %.1f", rsi, s.params.Oversold)
		return SignalLong
	}
	if rsi > s.params.Overbought {
		logger.Infof("rsi_reversion: SHORT signal, RSI %.1f > %.1f", rsi, s.params.Overbought)
		return SignalShort
	}
	return SignalNone
}

func (s *RSIReversion) ShouldExit(snap market.Snapshot, pos PositionView) (bool, string) {
	price := snap.LastPrice
	if price > 0 {
		switch pos.Side {
		case exchange.SideLong:
			if pos.StopLoss > 0 && price <= pos.StopLoss {
				return true, "stop-loss"
			}
			if pos.TakeProfit > 0 && price >= pos.TakeProfit {
				return true, "take-profit"
			}
		case exchange.SideShort:
			if pos.StopLoss > 0 && price >= pos.StopLoss {
				return true, "stop-loss"
			}
			if pos.TakeProfit > 0 && price <= pos.TakeProfit {
				return true, "take-profit"
			}
		}
	}

	closes := snap.Closes()
	if len(closes) < s.params.Period+2 {
		return false, ""
	}
	rsi, ok := lastAfterWarmup(talib.Rsi(closes, s.params.Period), s.params.Period)
	if !ok {
		return false, ""
	}
	if pos.Side == exchange.SideLong && rsi >= s.params.ExitLevel {
		return true, "rsi-reverted"
	}
	if pos.Side == exchange.SideShort && rsi <= s.params.ExitLevel {
		return true, "rsi-reverted"
	}
	return false, ""
}

func (s *RSIReversion) StopLossFor(entry float64, side exchange.Side) float64 {
	dist := entry * s.stopLossPct
	if side == exchange.SideShort {
		return entry + dist
	}
	return entry - dist
}

func (s *RSIReversion) TakeProfitFor(entry float64, side exchange.Side) float64 {
	dist := entry * s.takeProfitPct
	if side == exchange.SideShort {
		return entry - dist
	}
	return entry + dist
}
