package strategy

import (
	"fmt"
	"math"

	"mako/internal/gateway/exchange"
	"mako/internal/logger"
	"mako/internal/market"

	"github.com/markcheno/go-talib"
)

func init() {
	Register("ema_cross", NewEMACross)
}

// emaCrossParams are the profile knobs for the crossover strategy.
type emaCrossParams struct {
	EMAFast      int     `toml:"ema_fast"`
	EMASlow      int     `toml:"ema_slow"`
	VolumePeriod int     `toml:"volume_period"`
	VolumeFactor float64 `toml:"volume_factor"`
	MinSpreadPct float64 `toml:"min_spread_pct"`
}

// EMACross enters on a fast/slow EMA crossover, or on sustained momentum
// once the EMAs have separated, with a relaxed volume confirmation.
type EMACross struct {
	params        emaCrossParams
	stopLossPct   float64
	takeProfitPct float64
}

func NewEMACross(cfg Config) (Strategy, error) {
	p := emaCrossParams{
		EMAFast:      5,
		EMASlow:      13,
		VolumePeriod: 20,
		VolumeFactor: 0.8,
		MinSpreadPct: 0.05,
	}
	if err := decodeParams(cfg.Params, &p); err != nil {
		return nil, fmt.Errorf("ema_cross params: %w", err)
	}
	if p.EMAFast <= 0 || p.EMASlow <= 0 || p.EMAFast >= p.EMASlow {
		return nil, fmt.Errorf("ema_cross requires 0 < ema_fast < ema_slow, got %d/%d", p.EMAFast, p.EMASlow)
	}
	return &EMACross{
		params:        p,
		stopLossPct:   cfg.StopLossPct,
		takeProfitPct: cfg.TakeProfitPct,
	}, nil
}

func (s *EMACross) Name() string { return "ema_cross" }

func (s *EMACross) ShouldEnter(snap market.Snapshot) Signal {
	closes := snap.Closes()
	if len(closes) < s.params.EMASlow+2 {
		return SignalNone
	}
	fast := talib.Ema(closes, s.params.EMAFast)
	slow := talib.Ema(closes, s.params.EMASlow)

	if !s.volumeConfirmed(snap) {
		return SignalNone
	}

	fPrev, fCur, ok := lastTwo(fast)
	if !ok {
		return SignalNone
	}
	sPrev, sCur, ok := lastTwo(slow)
	if !ok {
		return SignalNone
	}
	spreadPct := math.Abs(fCur-sCur) / sCur * 100

	if crossedAbove(fast, slow) {
		logger.Infof("ema_cross: LONG signal (crossover), EMA(%d) above EMA(%d)", s.params.EMAFast, s.params.EMASlow)
		return SignalLong
	}
	if fCur > sCur && fPrev > sPrev && fCur > fPrev && spreadPct > s.params.MinSpreadPct {
		logger.Infof("ema_cross: LONG signal (momentum), spread %.3f%%", spreadPct)
		return SignalLong
	}
	if crossedBelow(fast, slow) {
		logger.Infof("ema_cross: SHORT signal (crossover), EMA(%d) below EMA(%d)", s.params.EMAFast, s.params.EMASlow)
		return SignalShort
	}
	if fCur < sCur && fPrev < sPrev && fCur < fPrev && spreadPct > s.params.MinSpreadPct {
		logger.Infof("ema_cross: SHORT signal (momentum), spread %.3f%%", spreadPct)
		return SignalShort
	}
	return SignalNone
}

func (s *EMACross) ShouldExit(snap market.Snapshot, pos PositionView) (bool, string) {
	price := snap.LastPrice
	if price <= 0 {
		return false, ""
	}
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

	closes := snap.Closes()
	if len(closes) < s.params.EMASlow+2 {
		return false, ""
	}
	fast := talib.Ema(closes, s.params.EMAFast)
	slow := talib.Ema(closes, s.params.EMASlow)
	if pos.Side == exchange.SideLong && crossedBelow(fast, slow) {
		return true, "opposite-crossover"
	}
	if pos.Side == exchange.SideShort && crossedAbove(fast, slow) {
		return true, "opposite-crossover"
	}
	return false, ""
}

func (s *EMACross) StopLossFor(entry float64, side exchange.Side) float64 {
	dist := entry * s.stopLossPct
	if side == exchange.SideShort {
		return entry + dist
	}
	return entry - dist
}

func (s *EMACross) TakeProfitFor(entry float64, side exchange.Side) float64 {
	dist := entry * s.takeProfitPct
	if side == exchange.SideShort {
		return entry - dist
	}
	return entry + dist
}

func (s *EMACross) volumeConfirmed(snap market.Snapshot) bool {
	volumes := snap.Volumes()
	if len(volumes) < s.params.VolumePeriod+1 {
		return false
	}
	avg := lastValid(talib.Sma(volumes, s.params.VolumePeriod))
	if avg <= 0 {
		return false
	}
	return volumes[len(volumes)-1] > avg*s.params.VolumeFactor
}
