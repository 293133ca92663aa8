package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"mako/internal/gateway/exchange"
	"mako/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotFrom(closes []float64, lastVolume float64) market.Snapshot {
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i+1)*60_000 - 1,
			Open:      c,
			High:      c * 1.001,
			Low:       c * 0.999,
			Close:     c,
			Volume:    100,
		}
	}
	if len(candles) > 0 && lastVolume > 0 {
		candles[len(candles)-1].Volume = lastVolume
	}
	snap := market.Snapshot{
		Symbol:   "BTCUSDT",
		Interval: "15m",
		Candles:  candles,
	}
	if len(closes) > 0 {
		snap.LastPrice = closes[len(closes)-1]
	}
	return snap
}

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func falling(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start - float64(i)*step
	}
	return out
}

func TestEMACrossEnterLongOnMomentum(t *testing.T) {
	s, err := NewEMACross(Config{StopLossPct: 0.02, TakeProfitPct: 0.06})
	require.NoError(t, err)

	// steady uptrend keeps the fast EMA above and rising with a wide spread
	snap := snapshotFrom(rising(60, 100, 1), 500)
	assert.Equal(t, SignalLong, s.ShouldEnter(snap))
}

func TestEMACrossEnterShortOnMomentum(t *testing.T) {
	s, err := NewEMACross(Config{StopLossPct: 0.02, TakeProfitPct: 0.06})
	require.NoError(t, err)

	snap := snapshotFrom(falling(60, 200, 1), 500)
	assert.Equal(t, SignalShort, s.ShouldEnter(snap))
}

func TestEMACrossRequiresVolumeConfirmation(t *testing.T) {
	s, err := NewEMACross(Config{StopLossPct: 0.02, TakeProfitPct: 0.06})
	require.NoError(t, err)

	// last bar trades well below 80% of the volume average
	snap := snapshotFrom(rising(60, 100, 1), 10)
	assert.Equal(t, SignalNone, s.ShouldEnter(snap))
}

func TestEMACrossNoSignalWithoutHistory(t *testing.T) {
	s, err := NewEMACross(Config{StopLossPct: 0.02, TakeProfitPct: 0.06})
	require.NoError(t, err)

	snap := snapshotFrom(rising(5, 100, 1), 500)
	assert.Equal(t, SignalNone, s.ShouldEnter(snap))
}

func TestEMACrossExitOnStopAndTarget(t *testing.T) {
	s, err := NewEMACross(Config{StopLossPct: 0.02, TakeProfitPct: 0.06})
	require.NoError(t, err)

	pos := PositionView{Side: exchange.SideLong, EntryPrice: 50_000, StopLoss: 49_000, TakeProfit: 53_000}

	snap := snapshotFrom(rising(60, 100, 1), 500)
	snap.LastPrice = 48_900
	exit, reason := s.ShouldExit(snap, pos)
	assert.True(t, exit)
	assert.Equal(t, "stop-loss", reason)

	snap.LastPrice = 53_100
	exit, reason = s.ShouldExit(snap, pos)
	assert.True(t, exit)
	assert.Equal(t, "take-profit", reason)

	short := PositionView{Side: exchange.SideShort, EntryPrice: 50_000, StopLoss: 51_000, TakeProfit: 47_000}
	snap.LastPrice = 51_200
	exit, reason = s.ShouldExit(snap, short)
	assert.True(t, exit)
	assert.Equal(t, "stop-loss", reason)
}

func TestEMACrossStopAndTargetPrices(t *testing.T) {
	s, err := NewEMACross(Config{StopLossPct: 0.02, TakeProfitPct: 0.06})
	require.NoError(t, err)

	assert.InDelta(t, 49_000, s.StopLossFor(50_000, exchange.SideLong), 1e-9)
	assert.InDelta(t, 53_000, s.TakeProfitFor(50_000, exchange.SideLong), 1e-9)
	assert.InDelta(t, 51_000, s.StopLossFor(50_000, exchange.SideShort), 1e-9)
	assert.InDelta(t, 47_000, s.TakeProfitFor(50_000, exchange.SideShort), 1e-9)
}

func TestEMACrossRejectsBadPeriods(t *testing.T) {
	_, err := NewEMACross(Config{Params: map[string]any{"ema_fast": 20, "ema_slow": 10}})
	require.Error(t, err)
}

func TestRSIReversionSignals(t *testing.T) {
	s, err := NewRSIReversion(Config{StopLossPct: 0.02, TakeProfitPct: 0.04})
	require.NoError(t, err)

	// relentless selling pins RSI near zero
	snap := snapshotFrom(falling(40, 200, 2), 100)
	assert.Equal(t, SignalLong, s.ShouldEnter(snap))

	snap = snapshotFrom(rising(40, 100, 2), 100)
	assert.Equal(t, SignalShort, s.ShouldEnter(snap))

	// too little history for a warmed-up RSI
	snap = snapshotFrom(falling(10, 200, 2), 100)
	assert.Equal(t, SignalNone, s.ShouldEnter(snap))
}

func TestRSIReversionExitsOnReversion(t *testing.T) {
	s, err := NewRSIReversion(Config{StopLossPct: 0.02, TakeProfitPct: 0.04})
	require.NoError(t, err)

	// strong rally after entry pushes RSI back above the midline
	snap := snapshotFrom(rising(40, 100, 2), 100)
	snap.LastPrice = 0 // skip price triggers
	exit, reason := s.ShouldExit(snap, PositionView{Side: exchange.SideLong, EntryPrice: 100})
	assert.True(t, exit)
	assert.Equal(t, "rsi-reverted", reason)
}

func TestRegistryResolvesByName(t *testing.T) {
	s, err := New("ema_cross", Config{StopLossPct: 0.02, TakeProfitPct: 0.06})
	require.NoError(t, err)
	assert.Equal(t, "ema_cross", s.Name())

	_, err = New("does_not_exist", Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ema_cross")
}

func TestProfileLoaderReadsDefinitions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  ema_cross:
    stop_loss_pct: 0.01
    take_profit_pct: 0.03
    params:
      ema_fast: 9
      ema_slow: 21
  rsi_reversion:
    params:
      period: 7
`), 0o644))

	loader, err := NewProfileLoader(path)
	require.NoError(t, err)

	snap := loader.Snapshot()
	require.Len(t, snap.Profiles, 2)

	def, ok := snap.Profile("ema_cross")
	require.True(t, ok)
	assert.Equal(t, 0.01, def.StopLossPct)
	assert.Equal(t, 9, def.Params["ema_fast"])

	s, err := New("ema_cross", Config{
		StopLossPct:   def.StopLossPct,
		TakeProfitPct: def.TakeProfitPct,
		Params:        def.Params,
	})
	require.NoError(t, err)
	assert.InDelta(t, 99, s.StopLossFor(100, exchange.SideLong), 1e-9)
}
