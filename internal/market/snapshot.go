package market

import "time"

// Snapshot is the per-cycle view of the market handed to strategies. Candles
// are ordered oldest first and only contain closed klines.
type Snapshot struct {
	Symbol    string
	Interval  string
	Candles   []Candle
	LastPrice float64
	FetchedAt time.Time
}

func (s Snapshot) LastCandle() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Closes returns the close series, oldest first.
func (s Snapshot) Closes() []float64 { return Closes(s.Candles) }

// Volumes returns the volume series, oldest first.
func (s Snapshot) Volumes() []float64 { return Volumes(s.Candles) }
