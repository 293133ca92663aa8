package position

import (
	"fmt"
	"math"
	"time"

	"mako/internal/gateway/exchange"
	"mako/internal/logger"

	"github.com/shopspring/decimal"
)

// SizingError means this cycle's entry cannot be sized. The engine skips the
// entry and continues; it never halts on a sizing failure.
type SizingError struct {
	Reason string
}

func (e *SizingError) Error() string { return "sizing: " + e.Reason }

// Config holds the sizing fractions.
type Config struct {
	RiskPerTrade   float64
	MaxPositionPct float64
}

// Manager is the only component allowed to construct or destroy a Position.
// It also carries the epoch counter that makes idempotency keys unique
// across position lifetimes.
type Manager struct {
	cfg   Config
	epoch int64
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, epoch: 1}
}

// Epoch returns the current position epoch.
func (m *Manager) Epoch() int64 { return m.epoch }

// RestoreEpoch is used on restart so recovered keys never collide with ones
// issued before the crash.
func (m *Manager) RestoreEpoch(epoch int64) {
	if epoch > m.epoch {
		m.epoch = epoch
	}
}

// SizeEntry computes a fixed-fractional entry size: risk a fixed slice of
// capital between entry and stop, clamp to what margin and the position cap
// allow, then floor to the exchange step size.
func (m *Manager) SizeEntry(capital, entryPrice, stopLossPrice float64, leverage int, filters exchange.SymbolFilters) (float64, error) {
	if capital <= 0 {
		return 0, &SizingError{Reason: "capital must be positive"}
	}
	if entryPrice <= 0 {
		return 0, &SizingError{Reason: "entry price must be positive"}
	}
	if leverage < 1 {
		return 0, &SizingError{Reason: "leverage must be >= 1"}
	}
	perUnitRisk := math.Abs(entryPrice - stopLossPrice)
	if perUnitRisk == 0 {
		return 0, &SizingError{Reason: "stop distance is zero"}
	}

	riskAmount := capital * m.cfg.RiskPerTrade
	size := riskAmount / perUnitRisk

	// margin clamp: never request more margin than capital allows
	if maxByMargin := capital * float64(leverage) / entryPrice; size > maxByMargin {
		size = maxByMargin
	}
	// position cap: bound notional to a fraction of leveraged capital
	if m.cfg.MaxPositionPct > 0 {
		if maxByCap := capital * float64(leverage) * m.cfg.MaxPositionPct / entryPrice; size > maxByCap {
			size = maxByCap
		}
	}

	size = floorToStep(size, filters.StepSize)
	if size <= 0 {
		return 0, &SizingError{Reason: fmt.Sprintf("size rounds to zero (step %.8f)", filters.StepSize)}
	}
	if filters.MinQty > 0 && size < filters.MinQty {
		return 0, &SizingError{Reason: fmt.Sprintf("size %.8f below exchange minimum %.8f", size, filters.MinQty)}
	}
	if filters.MinNotional > 0 && size*entryPrice < filters.MinNotional {
		return 0, &SizingError{Reason: fmt.Sprintf("notional %.2f below exchange minimum %.2f", size*entryPrice, filters.MinNotional)}
	}
	return size, nil
}

// ComputeStopLoss places the stop a fixed fraction from entry.
func ComputeStopLoss(entryPrice float64, side exchange.Side, pct float64) float64 {
	if side == exchange.SideShort {
		return entryPrice * (1 + pct)
	}
	return entryPrice * (1 - pct)
}

// ComputeTakeProfit places the target a fixed fraction from entry.
func ComputeTakeProfit(entryPrice float64, side exchange.Side, pct float64) float64 {
	if side == exchange.SideShort {
		return entryPrice * (1 - pct)
	}
	return entryPrice * (1 + pct)
}

// Open constructs the Position from a confirmed entry fill. This is the only
// call site that may create one.
func (m *Manager) Open(symbol string, side exchange.Side, fill exchange.OrderResult, stopLoss, takeProfit float64, leverage int) *Position {
	pos := &Position{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: fill.FillPrice,
		Size:       fill.FilledSize,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Leverage:   leverage,
		OpenedAt:   time.Now(),
		Epoch:      m.epoch,
	}
	pos.TrackOrder(OrderRoleEntry, fill.ClientOrderID)
	logger.Infof("position: opened %s %s size=%.6f entry=%.2f stop=%.2f target=%.2f (epoch %d)",
		side, symbol, pos.Size, pos.EntryPrice, stopLoss, takeProfit, pos.Epoch)
	return pos
}

// Close destroys the Position against a confirmed exit fill and returns the
// signed realized P&L. The epoch advances so the next position's idempotency
// keys cannot collide with this one's.
func (m *Manager) Close(pos *Position, fill exchange.OrderResult) float64 {
	exitPrice := fill.FillPrice
	size := fill.FilledSize
	if size <= 0 {
		size = pos.Size
	}
	var pnl float64
	if pos.Side == exchange.SideShort {
		pnl = (pos.EntryPrice - exitPrice) * size
	} else {
		pnl = (exitPrice - pos.EntryPrice) * size
	}
	m.epoch++
	logger.Infof("position: closed %s %s size=%.6f entry=%.2f exit=%.2f pnl=%.2f",
		pos.Side, pos.Symbol, size, pos.EntryPrice, exitPrice, pnl)
	return pnl
}

// floorToStep snaps size down to a multiple of the exchange step size.
// Decimal arithmetic avoids float drift producing an off-by-one-step qty.
func floorToStep(size, step float64) float64 {
	if step <= 0 {
		return size
	}
	d := decimal.NewFromFloat(size)
	s := decimal.NewFromFloat(step)
	steps := d.Div(s).Floor()
	out, _ := steps.Mul(s).Float64()
	return out
}
