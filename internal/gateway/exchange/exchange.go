package exchange

import (
	"context"

	"mako/internal/market"
)

// Gateway is the full capability set the engine needs from an exchange.
// Implementations must tag every returned error with a Kind (see errors.go)
// so the execution policy can classify it.
type Gateway interface {
	Name() string

	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)

	GetPrice(ctx context.Context, symbol string) (float64, error)

	GetPosition(ctx context.Context, symbol string) (*Position, error)

	GetBalance(ctx context.Context) (Balance, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)

	CancelOrder(ctx context.Context, symbol, clientOrderID string) error

	GetOrderStatus(ctx context.Context, symbol, clientOrderID string) (OrderResult, error)

	SymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error)
}

// Configurer is implemented by gateways that support one-time account setup
// (margin mode, leverage). Called once at engine startup.
type Configurer interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetIsolatedMargin(ctx context.Context, symbol string) error
}
