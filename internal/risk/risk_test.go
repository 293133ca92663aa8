package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateDeniesWhenHalted(t *testing.T) {
	gate := Gate{RiskPerTrade: 0.01, DailyLossLimit: 0.05}
	ledger := NewLedger(1000, time.Now())
	ledger.TradingHalted = true

	dec := gate.Evaluate(Intent{Action: ActionEnter}, ledger, false)
	assert.False(t, dec.Allowed)
	assert.Equal(t, ReasonDailyLossLimit, dec.Reason)

	// halt blocks every action, not only entries
	dec = gate.Evaluate(Intent{Action: ActionExit}, ledger, true)
	assert.False(t, dec.Allowed)
}

func TestGateDeniesEntryWithOpenPosition(t *testing.T) {
	gate := Gate{RiskPerTrade: 0.01, DailyLossLimit: 0.05}
	ledger := NewLedger(1000, time.Now())

	dec := gate.Evaluate(Intent{Action: ActionEnter}, ledger, true)
	assert.False(t, dec.Allowed)
	assert.Equal(t, ReasonPositionOpen, dec.Reason)

	// losses, profits, fresh ledger: the single-position rule always wins
	ledger.RealizedPnLToday = 30
	dec = gate.Evaluate(Intent{Action: ActionEnter}, ledger, true)
	assert.Equal(t, ReasonPositionOpen, dec.Reason)
}

func TestGateDeniesWhenBudgetExhausted(t *testing.T) {
	gate := Gate{RiskPerTrade: 0.01, DailyLossLimit: 0.05}
	ledger := NewLedger(1000, time.Now())
	ledger.RealizedPnLToday = -45 // remaining budget 5, prospective risk 10

	dec := gate.Evaluate(Intent{Action: ActionEnter}, ledger, false)
	assert.False(t, dec.Allowed)
	assert.Equal(t, ReasonRiskBudget, dec.Reason)
}

func TestGatePermitsHealthyEntry(t *testing.T) {
	gate := Gate{RiskPerTrade: 0.01, DailyLossLimit: 0.05}
	ledger := NewLedger(1000, time.Now())

	dec := gate.Evaluate(Intent{Action: ActionEnter, Side: "LONG", ReferencePrice: 50_000}, ledger, false)
	assert.True(t, dec.Allowed)
	assert.Empty(t, dec.Reason)
}

func TestLedgerHaltsOnLimitBreach(t *testing.T) {
	ledger := NewLedger(1000, time.Now())

	tripped := ledger.RecordClose(-30, 0.05)
	assert.False(t, tripped)
	assert.False(t, ledger.TradingHalted)

	tripped = ledger.RecordClose(-25, 0.05)
	assert.True(t, tripped)
	assert.True(t, ledger.TradingHalted)
	assert.Equal(t, -55.0, ledger.RealizedPnLToday)
	assert.Equal(t, 945.0, ledger.CurrentEquity)

	// once halted, further closes never re-trip
	assert.False(t, ledger.RecordClose(-10, 0.05))
	assert.True(t, ledger.TradingHalted)
}

func TestLedgerHaltPersistsThroughProfits(t *testing.T) {
	ledger := NewLedger(1000, time.Now())
	ledger.RecordClose(-60, 0.05)
	assert.True(t, ledger.TradingHalted)

	ledger.RecordClose(200, 0.05)
	assert.True(t, ledger.TradingHalted, "only a day reset clears the halt")
}

func TestLedgerRollDayResetsState(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ledger := NewLedger(1000, start)
	ledger.RecordClose(-60, 0.05)
	assert.True(t, ledger.TradingHalted)

	// same day: no reset
	assert.False(t, ledger.RollDay(start.Add(2*time.Hour), 940))
	assert.True(t, ledger.TradingHalted)

	next := start.Add(15 * time.Hour) // crosses UTC midnight
	assert.True(t, ledger.RollDay(next, 940))
	assert.False(t, ledger.TradingHalted)
	assert.Equal(t, 940.0, ledger.StartOfDayEquity)
	assert.Zero(t, ledger.RealizedPnLToday)
	assert.Zero(t, ledger.Trades)
}

func TestLedgerWinRate(t *testing.T) {
	ledger := NewLedger(1000, time.Now())
	assert.Zero(t, ledger.WinRate())

	ledger.RecordClose(10, 0.05)
	ledger.RecordClose(10, 0.05)
	ledger.RecordClose(-5, 0.05)
	assert.InDelta(t, 2.0/3.0, ledger.WinRate(), 1e-9)
}

func TestLedgerAverageWinAndLoss(t *testing.T) {
	ledger := NewLedger(1000, time.Now())
	assert.Zero(t, ledger.AvgWin())
	assert.Zero(t, ledger.AvgLoss())

	ledger.RecordClose(10, 0.05)
	ledger.RecordClose(30, 0.05)
	ledger.RecordClose(-8, 0.05)
	ledger.RecordClose(-4, 0.05)

	assert.InDelta(t, 40.0, ledger.GrossProfit, 1e-9)
	assert.InDelta(t, 12.0, ledger.GrossLoss, 1e-9)
	assert.InDelta(t, 20.0, ledger.AvgWin(), 1e-9)
	assert.InDelta(t, 6.0, ledger.AvgLoss(), 1e-9)
}
