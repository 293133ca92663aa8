package risk

import "math"

// IntentAction is what the engine wants to do this cycle.
type IntentAction string

const (
	ActionEnter IntentAction = "ENTER"
	ActionExit  IntentAction = "EXIT"
	ActionHold  IntentAction = "HOLD"
)

// Intent is an ephemeral per-cycle value, discarded at cycle end.
type Intent struct {
	Action         IntentAction
	Side           string
	ReferencePrice float64
	ReasonCode     string
}

// Deny reason codes.
const (
	ReasonDailyLossLimit = "daily-loss-limit-reached"
	ReasonPositionOpen   = "position-already-open"
	ReasonRiskBudget     = "exceeds-remaining-risk-budget"
)

// Decision is the gate verdict for one intent.
type Decision struct {
	Allowed bool
	Reason  string
}

func permit() Decision            { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// Gate holds the static risk limits. Evaluate is a pure function over its
// inputs so it stays testable without any exchange access.
type Gate struct {
	RiskPerTrade   float64
	DailyLossLimit float64
}

// Evaluate applies the gate rules in order; the first failing rule wins.
func (g Gate) Evaluate(intent Intent, ledger Ledger, hasOpenPosition bool) Decision {
	if ledger.TradingHalted {
		return deny(ReasonDailyLossLimit)
	}
	if intent.Action != ActionEnter {
		return permit()
	}
	if hasOpenPosition {
		return deny(ReasonPositionOpen)
	}
	prospective := ledger.CurrentEquity * g.RiskPerTrade
	remaining := g.DailyLossLimit*ledger.StartOfDayEquity - math.Abs(ledger.RealizedPnLToday)
	if prospective > remaining {
		return deny(ReasonRiskBudget)
	}
	return permit()
}
