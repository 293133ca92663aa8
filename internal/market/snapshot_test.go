package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotSeriesAccessors(t *testing.T) {
	snap := Snapshot{Candles: []Candle{
		{Close: 10, Volume: 1},
		{Close: 11, Volume: 2},
		{Close: 12, Volume: 3},
	}}

	assert.Equal(t, []float64{10, 11, 12}, snap.Closes())
	assert.Equal(t, []float64{1, 2, 3}, snap.Volumes())

	last, ok := snap.LastCandle()
	require.True(t, ok)
	assert.Equal(t, 12.0, last.Close)
}

func TestSnapshotEmpty(t *testing.T) {
	var snap Snapshot

	assert.Empty(t, snap.Closes())
	assert.Empty(t, snap.Volumes())

	_, ok := snap.LastCandle()
	assert.False(t, ok)
}
