package strategy

// Indicator series come straight from go-talib. The helpers below deal with
// its zero-padded warmup prefix and with bar-to-bar comparisons.

func lastTwo(series []float64) (prev, cur float64, ok bool) {
	if len(series) < 2 {
		return 0, 0, false
	}
	prev = series[len(series)-2]
	cur = series[len(series)-1]
	if prev == 0 || cur == 0 {
		return 0, 0, false
	}
	return prev, cur, true
}

// crossedAbove reports a cross of fast above slow on the latest closed bar.
func crossedAbove(fast, slow []float64) bool {
	fPrev, fCur, ok := lastTwo(fast)
	if !ok {
		return false
	}
	sPrev, sCur, ok := lastTwo(slow)
	if !ok {
		return false
	}
	return fPrev <= sPrev && fCur > sCur
}

// crossedBelow reports a cross of fast below slow on the latest closed bar.
func crossedBelow(fast, slow []float64) bool {
	fPrev, fCur, ok := lastTwo(fast)
	if !ok {
		return false
	}
	sPrev, sCur, ok := lastTwo(slow)
	if !ok {
		return false
	}
	return fPrev >= sPrev && fCur < sCur
}

// lastAfterWarmup returns the final value of a talib output series, treating
// the zero-padded warmup prefix as absent. ok is false when the series is not
// longer than the warmup, so a genuine 0 past the warmup still comes through.
func lastAfterWarmup(series []float64, warmup int) (float64, bool) {
	if len(series) <= warmup {
		return 0, false
	}
	return series[len(series)-1], true
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] != 0 {
			return series[i]
		}
	}
	return 0
}
