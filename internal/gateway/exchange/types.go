// Package exchange defines the abstract boundary to the remote derivatives
// exchange. The engine and execution policy only ever talk to this contract;
// transport details live in the per-exchange gateway implementations.
package exchange

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// OrderSide is the buy/sell direction that opens a position on this side.
func (s Side) OrderSide() OrderSide {
	if s == SideShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderSide is the wire-level direction of an order (buy/sell), distinct from
// the position side it opens or closes.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
)

type OrderStatus string

const (
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	// OrderStatusUnknown means the exchange has no record of the client
	// order id. After an ambiguous submission this is the signal that the
	// order never landed.
	OrderStatusUnknown OrderStatus = "UNKNOWN"
)

// Position is the exchange's authoritative view of current exposure.
// Size is always positive; Side carries the direction. A nil *Position from
// GetPosition means flat.
type Position struct {
	Symbol     string
	Side       Side
	Size       float64
	EntryPrice float64
	Leverage   int
	MarkPrice  float64
	UpdatedAt  time.Time
}

type Balance struct {
	Asset     string
	Total     float64
	Available float64
	UpdatedAt time.Time
}

// OrderRequest describes one order submission. ClientOrderID is mandatory for
// mutating calls: it is the idempotency key the status query resolves against.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Size          float64
	Price         float64 // 0 for market orders
	ReduceOnly    bool
	ClientOrderID string
}

// OrderResult is the exchange's acknowledgement of a submission.
type OrderResult struct {
	OrderID       string
	ClientOrderID string
	Status        OrderStatus
	FillPrice     float64
	FilledSize    float64
	SubmittedAt   time.Time
}

// SymbolFilters carries the exchange trading rules needed for sizing.
type SymbolFilters struct {
	StepSize    float64
	MinQty      float64
	MinNotional float64
	PricePrec   int
	QtyPrec     int
}
