// Package position owns the single tracked exposure and its sizing rules.
package position

import (
	"time"

	"mako/internal/gateway/exchange"
)

// Order roles inside a position's order-id set.
const (
	OrderRoleEntry = "entry"
	OrderRoleExit  = "exit"
)

// Position is the one open exposure. Flat is represented by its absence
// (nil pointer), never by a zero-value sentinel.
type Position struct {
	Symbol     string            `json:"symbol"`
	Side       exchange.Side     `json:"side"`
	EntryPrice float64           `json:"entry_price"`
	Size       float64           `json:"size"`
	StopLoss   float64           `json:"stop_loss"`
	TakeProfit float64           `json:"take_profit"`
	Leverage   int               `json:"leverage"`
	OpenedAt   time.Time         `json:"opened_at"`
	Epoch      int64             `json:"epoch"`
	OrderIDs   map[string]string `json:"order_ids"`
}

// TrackOrder records a client order id under its role (entry, exit).
func (p *Position) TrackOrder(role, clientOrderID string) {
	if p.OrderIDs == nil {
		p.OrderIDs = make(map[string]string)
	}
	p.OrderIDs[role] = clientOrderID
}

// UnrealizedPnL marks the position against the given price.
func (p *Position) UnrealizedPnL(markPrice float64) float64 {
	if p == nil || markPrice <= 0 {
		return 0
	}
	if p.Side == exchange.SideShort {
		return (p.EntryPrice - markPrice) * p.Size
	}
	return (markPrice - p.EntryPrice) * p.Size
}

// RiskReward is the take-profit distance over the stop distance.
func (p *Position) RiskReward() float64 {
	if p == nil {
		return 0
	}
	risk := p.EntryPrice - p.StopLoss
	reward := p.TakeProfit - p.EntryPrice
	if p.Side == exchange.SideShort {
		risk, reward = -risk, -reward
	}
	if risk <= 0 {
		return 0
	}
	return reward / risk
}
