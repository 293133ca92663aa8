package position

import (
	"testing"

	"mako/internal/gateway/exchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var btcFilters = exchange.SymbolFilters{StepSize: 0.001, MinQty: 0.001, QtyPrec: 3}

func TestSizeEntryFixedFractional(t *testing.T) {
	m := NewManager(Config{RiskPerTrade: 0.01, MaxPositionPct: 1})

	// $100 capital, 1% risk, $1000 stop distance: exactly 0.001 BTC
	size, err := m.SizeEntry(100, 50_000, 49_000, 10, btcFilters)
	require.NoError(t, err)
	assert.InDelta(t, 0.001, size, 1e-12)

	// risked amount matches capital x riskPerTrade within rounding tolerance
	assert.InDelta(t, 100*0.01, size*1000, 1e-6)
}

func TestSizeEntryMarginClamp(t *testing.T) {
	m := NewManager(Config{RiskPerTrade: 0.5, MaxPositionPct: 1})

	// unclamped size would need more margin than capital allows
	size, err := m.SizeEntry(100, 50_000, 49_900, 2, btcFilters)
	require.NoError(t, err)
	assert.LessOrEqual(t, size*50_000/2, 100.0)
}

func TestSizeEntryPositionCap(t *testing.T) {
	m := NewManager(Config{RiskPerTrade: 0.5, MaxPositionPct: 0.1})

	size, err := m.SizeEntry(1000, 50_000, 49_900, 10, btcFilters)
	require.NoError(t, err)
	// notional bounded to 10% of leveraged capital
	assert.LessOrEqual(t, size*50_000, 1000*10*0.1+1e-9)
}

func TestSizeEntryFailsOnZeroStopDistance(t *testing.T) {
	m := NewManager(Config{RiskPerTrade: 0.01, MaxPositionPct: 1})

	_, err := m.SizeEntry(100, 50_000, 50_000, 10, btcFilters)
	var sizingErr *SizingError
	require.ErrorAs(t, err, &sizingErr)
}

func TestSizeEntryFailsWhenSizeRoundsToZero(t *testing.T) {
	m := NewManager(Config{RiskPerTrade: 0.001, MaxPositionPct: 1})

	// $1 capital cannot buy a single step of BTC
	_, err := m.SizeEntry(1, 50_000, 49_000, 1, btcFilters)
	var sizingErr *SizingError
	require.ErrorAs(t, err, &sizingErr)
}

func TestSizeEntryFloorsToStep(t *testing.T) {
	m := NewManager(Config{RiskPerTrade: 0.01, MaxPositionPct: 1})

	// raw size 0.0015 floors to 0.001, never rounds up
	size, err := m.SizeEntry(150, 50_000, 49_000, 10, btcFilters)
	require.NoError(t, err)
	assert.InDelta(t, 0.001, size, 1e-12)
}

func TestComputeStopAndTarget(t *testing.T) {
	assert.InDelta(t, 49_000, ComputeStopLoss(50_000, exchange.SideLong, 0.02), 1e-9)
	assert.InDelta(t, 51_000, ComputeStopLoss(50_000, exchange.SideShort, 0.02), 1e-9)
	assert.InDelta(t, 53_000, ComputeTakeProfit(50_000, exchange.SideLong, 0.06), 1e-9)
	assert.InDelta(t, 47_000, ComputeTakeProfit(50_000, exchange.SideShort, 0.06), 1e-9)
}

func TestOpenCloseLifecycle(t *testing.T) {
	m := NewManager(Config{RiskPerTrade: 0.01, MaxPositionPct: 1})
	require.EqualValues(t, 1, m.Epoch())

	entry := exchange.OrderResult{ClientOrderID: "mako-1-entry-abc", FillPrice: 50_000, FilledSize: 0.001}
	pos := m.Open("BTCUSDT", exchange.SideLong, entry, 49_000, 53_000, 10)
	require.NotNil(t, pos)
	assert.EqualValues(t, 1, pos.Epoch)
	assert.Equal(t, "mako-1-entry-abc", pos.OrderIDs[OrderRoleEntry])
	assert.InDelta(t, 3.0, pos.RiskReward(), 1e-9)

	exit := exchange.OrderResult{ClientOrderID: "mako-1-exit-def", FillPrice: 53_000, FilledSize: 0.001}
	pnl := m.Close(pos, exit)
	assert.InDelta(t, 3.0, pnl, 1e-9)
	assert.EqualValues(t, 2, m.Epoch(), "epoch advances when a position dies")
}

func TestCloseShortPnL(t *testing.T) {
	m := NewManager(Config{RiskPerTrade: 0.01, MaxPositionPct: 1})
	entry := exchange.OrderResult{FillPrice: 50_000, FilledSize: 0.002}
	pos := m.Open("BTCUSDT", exchange.SideShort, entry, 51_000, 47_000, 10)

	exit := exchange.OrderResult{FillPrice: 51_000, FilledSize: 0.002}
	pnl := m.Close(pos, exit)
	assert.InDelta(t, -2.0, pnl, 1e-9)
}

func TestUnrealizedPnL(t *testing.T) {
	pos := &Position{Side: exchange.SideLong, EntryPrice: 50_000, Size: 0.001}
	assert.InDelta(t, 1.0, pos.UnrealizedPnL(51_000), 1e-9)

	short := &Position{Side: exchange.SideShort, EntryPrice: 50_000, Size: 0.001}
	assert.InDelta(t, 1.0, short.UnrealizedPnL(49_000), 1e-9)

	var nilPos *Position
	assert.Zero(t, nilPos.UnrealizedPnL(50_000))
}

func TestRestoreEpochNeverRewinds(t *testing.T) {
	m := NewManager(Config{RiskPerTrade: 0.01})
	m.RestoreEpoch(7)
	assert.EqualValues(t, 7, m.Epoch())
	m.RestoreEpoch(3)
	assert.EqualValues(t, 7, m.Epoch())
}
