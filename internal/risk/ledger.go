// Package risk tracks the session risk ledger and gates prospective entries.
package risk

import (
	"time"

	"mako/internal/logger"
)

// Ledger is the per-day risk state. The engine goroutine is its only writer.
type Ledger struct {
	Day              string  `json:"day"`
	StartOfDayEquity float64 `json:"start_of_day_equity"`
	CurrentEquity    float64 `json:"current_equity"`
	RealizedPnLToday float64 `json:"realized_pnl_today"`
	TradingHalted    bool    `json:"trading_halted"`
	Trades           int     `json:"trades"`
	Wins             int     `json:"wins"`
	Losses           int     `json:"losses"`
	GrossProfit      float64 `json:"gross_profit"`
	GrossLoss        float64 `json:"gross_loss"`
}

// DayKey is the trading-day bucket. Days roll at UTC midnight.
func DayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

func NewLedger(equity float64, now time.Time) Ledger {
	return Ledger{
		Day:              DayKey(now),
		StartOfDayEquity: equity,
		CurrentEquity:    equity,
	}
}

// RecordClose applies a realized close to the ledger and trips the halt flag
// the moment the daily loss limit is breached. Returns true if this close
// tripped the halt.
func (l *Ledger) RecordClose(pnl, dailyLossLimit float64) bool {
	l.RealizedPnLToday += pnl
	l.CurrentEquity += pnl
	l.Trades++
	if pnl >= 0 {
		l.Wins++
		l.GrossProfit += pnl
	} else {
		l.Losses++
		l.GrossLoss += -pnl
	}
	if l.TradingHalted {
		return false
	}
	if l.StartOfDayEquity > 0 && l.RealizedPnLToday < -dailyLossLimit*l.StartOfDayEquity {
		l.TradingHalted = true
		logger.Warnf("risk: daily loss limit breached (pnl today %.2f, limit %.2f), trading halted",
			l.RealizedPnLToday, -dailyLossLimit*l.StartOfDayEquity)
		return true
	}
	return false
}

// SyncEquity refreshes the equity mark without touching realized P&L.
func (l *Ledger) SyncEquity(equity float64) {
	if equity > 0 {
		l.CurrentEquity = equity
	}
}

// RollDay resets the ledger at a day boundary. Returns true if a new trading
// day started; the halt flag only clears here.
func (l *Ledger) RollDay(now time.Time, equity float64) bool {
	day := DayKey(now)
	if day == l.Day {
		return false
	}
	if equity <= 0 {
		equity = l.CurrentEquity
	}
	prev := l.Day
	*l = NewLedger(equity, now)
	logger.Infof("risk: new trading day %s (was %s), ledger reset, equity %.2f", day, prev, equity)
	return true
}

// WinRate is wins over closed trades, 0 when no trade closed yet.
func (l Ledger) WinRate() float64 {
	if l.Trades == 0 {
		return 0
	}
	return float64(l.Wins) / float64(l.Trades)
}

// AvgWin is the mean realized profit of winning closes, 0 without a win.
func (l Ledger) AvgWin() float64 {
	if l.Wins == 0 {
		return 0
	}
	return l.GrossProfit / float64(l.Wins)
}

// AvgLoss is the mean realized loss of losing closes as a positive number,
// 0 without a loss.
func (l Ledger) AvgLoss() float64 {
	if l.Losses == 0 {
		return 0
	}
	return l.GrossLoss / float64(l.Losses)
}
