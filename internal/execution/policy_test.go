package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"mako/internal/gateway/exchange"
	"mako/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway scripts gateway behavior per call and counts submissions per
// idempotency key.
type fakeGateway struct {
	placeFn  func(call int, req exchange.OrderRequest) (exchange.OrderResult, error)
	statusFn func(call int, clientOrderID string) (exchange.OrderResult, error)
	cancelFn func(clientOrderID string) error

	placeCalls  int
	statusCalls int
	cancelCalls int
	submissions map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{submissions: make(map[string]int)}
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) GetCandles(context.Context, string, string, int) ([]market.Candle, error) {
	return nil, nil
}
func (f *fakeGateway) GetPrice(context.Context, string) (float64, error) { return 0, nil }
func (f *fakeGateway) GetPosition(context.Context, string) (*exchange.Position, error) {
	return nil, nil
}
func (f *fakeGateway) GetBalance(context.Context) (exchange.Balance, error) {
	return exchange.Balance{}, nil
}
func (f *fakeGateway) SymbolFilters(context.Context, string) (exchange.SymbolFilters, error) {
	return exchange.SymbolFilters{}, nil
}

func (f *fakeGateway) PlaceOrder(_ context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	f.placeCalls++
	f.submissions[req.ClientOrderID]++
	return f.placeFn(f.placeCalls, req)
}

func (f *fakeGateway) CancelOrder(_ context.Context, _, clientOrderID string) error {
	f.cancelCalls++
	if f.cancelFn != nil {
		return f.cancelFn(clientOrderID)
	}
	return nil
}

func (f *fakeGateway) GetOrderStatus(_ context.Context, _, clientOrderID string) (exchange.OrderResult, error) {
	f.statusCalls++
	return f.statusFn(f.statusCalls, clientOrderID)
}

func fastPolicy(gw exchange.Gateway) *Policy {
	return NewPolicy(gw, WithMaxAttempts(4), WithBackoff(time.Millisecond, 2*time.Millisecond))
}

func filledResult(id string) exchange.OrderResult {
	return exchange.OrderResult{
		ClientOrderID: id,
		Status:        exchange.OrderStatusFilled,
		FillPrice:     50_000,
		FilledSize:    0.001,
	}
}

func TestExecuteFillsFirstTry(t *testing.T) {
	gw := newFakeGateway()
	gw.placeFn = func(_ int, req exchange.OrderRequest) (exchange.OrderResult, error) {
		return filledResult(req.ClientOrderID), nil
	}

	out := fastPolicy(gw).Execute(context.Background(), exchange.OrderRequest{
		Symbol: "BTCUSDT", Side: exchange.OrderSideBuy, Size: 0.001, ClientOrderID: "mako-1-entry-aaaa",
	})
	assert.Equal(t, OutcomeFilled, out.Kind)
	assert.Equal(t, 1, gw.placeCalls)
}

func TestExecuteRetriesTransientWithSameKey(t *testing.T) {
	gw := newFakeGateway()
	gw.placeFn = func(call int, req exchange.OrderRequest) (exchange.OrderResult, error) {
		if call < 3 {
			return exchange.OrderResult{}, exchange.NewError(exchange.KindTransient, "PlaceOrder", errors.New("rate limited"))
		}
		return filledResult(req.ClientOrderID), nil
	}

	out := fastPolicy(gw).Execute(context.Background(), exchange.OrderRequest{
		Symbol: "BTCUSDT", Side: exchange.OrderSideBuy, Size: 0.001, ClientOrderID: "mako-1-entry-bbbb",
	})
	require.Equal(t, OutcomeFilled, out.Kind)
	assert.Equal(t, 3, gw.placeCalls)
	assert.Equal(t, 3, gw.submissions["mako-1-entry-bbbb"], "every retry reuses the key")
}

func TestExecuteStopsOnPermanent(t *testing.T) {
	gw := newFakeGateway()
	gw.placeFn = func(int, exchange.OrderRequest) (exchange.OrderResult, error) {
		return exchange.OrderResult{}, exchange.NewError(exchange.KindPermanent, "PlaceOrder", errors.New("insufficient balance"))
	}

	out := fastPolicy(gw).Execute(context.Background(), exchange.OrderRequest{
		Symbol: "BTCUSDT", Side: exchange.OrderSideBuy, Size: 0.001, ClientOrderID: "mako-1-entry-cccc",
	})
	assert.Equal(t, OutcomeRejected, out.Kind)
	assert.Equal(t, 1, gw.placeCalls, "permanent failures never retry")
}

func TestExecuteAmbiguousResolvedAsFilled(t *testing.T) {
	gw := newFakeGateway()
	gw.placeFn = func(int, exchange.OrderRequest) (exchange.OrderResult, error) {
		return exchange.OrderResult{}, exchange.NewError(exchange.KindAmbiguous, "PlaceOrder", errors.New("connection reset"))
	}
	gw.statusFn = func(_ int, id string) (exchange.OrderResult, error) {
		return filledResult(id), nil
	}

	out := fastPolicy(gw).Execute(context.Background(), exchange.OrderRequest{
		Symbol: "BTCUSDT", Side: exchange.OrderSideBuy, Size: 0.001, ClientOrderID: "mako-1-entry-dddd",
	})
	assert.Equal(t, OutcomeFilled, out.Kind)
	assert.Equal(t, 1, gw.placeCalls, "a landed order is never resubmitted")
}

func TestExecuteAmbiguousResubmitsOnlyWhenConfirmedNotLanded(t *testing.T) {
	gw := newFakeGateway()
	gw.placeFn = func(call int, req exchange.OrderRequest) (exchange.OrderResult, error) {
		if call == 1 {
			return exchange.OrderResult{}, exchange.NewError(exchange.KindAmbiguous, "PlaceOrder", errors.New("timeout"))
		}
		return filledResult(req.ClientOrderID), nil
	}
	gw.statusFn = func(_ int, id string) (exchange.OrderResult, error) {
		// order never reached the exchange
		return exchange.OrderResult{ClientOrderID: id, Status: exchange.OrderStatusUnknown}, nil
	}

	out := fastPolicy(gw).Execute(context.Background(), exchange.OrderRequest{
		Symbol: "BTCUSDT", Side: exchange.OrderSideBuy, Size: 0.001, ClientOrderID: "mako-1-entry-eeee",
	})
	require.Equal(t, OutcomeFilled, out.Kind)
	assert.Equal(t, 2, gw.placeCalls)
	assert.Equal(t, 2, gw.submissions["mako-1-entry-eeee"])
}

func TestExecuteExhaustionEscalatesToUnknown(t *testing.T) {
	gw := newFakeGateway()
	gw.placeFn = func(int, exchange.OrderRequest) (exchange.OrderResult, error) {
		return exchange.OrderResult{}, exchange.NewError(exchange.KindTransient, "PlaceOrder", errors.New("rate limited"))
	}

	out := fastPolicy(gw).Execute(context.Background(), exchange.OrderRequest{
		Symbol: "BTCUSDT", Side: exchange.OrderSideBuy, Size: 0.001, ClientOrderID: "mako-1-entry-ffff",
	})
	assert.Equal(t, OutcomeUnknown, out.Kind)
	assert.Error(t, out.Err)
	assert.Equal(t, 4, gw.placeCalls)
}

func TestExecuteRequiresIdempotencyKey(t *testing.T) {
	gw := newFakeGateway()
	out := fastPolicy(gw).Execute(context.Background(), exchange.OrderRequest{Symbol: "BTCUSDT"})
	assert.Equal(t, OutcomeRejected, out.Kind)
	assert.Zero(t, gw.placeCalls)
}

func TestExecuteAbortsDuringBackoffOnCancel(t *testing.T) {
	gw := newFakeGateway()
	gw.placeFn = func(int, exchange.OrderRequest) (exchange.OrderResult, error) {
		return exchange.OrderResult{}, exchange.NewError(exchange.KindTransient, "PlaceOrder", errors.New("rate limited"))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewPolicy(gw, WithMaxAttempts(3), WithBackoff(time.Hour, time.Hour)).
		Execute(ctx, exchange.OrderRequest{Symbol: "BTCUSDT", ClientOrderID: "mako-1-entry-gggg"})
	assert.Equal(t, OutcomeUnknown, out.Kind)
	assert.Equal(t, 1, gw.placeCalls)
}

func TestResolveOrderCancelsOpenOrder(t *testing.T) {
	gw := newFakeGateway()
	gw.statusFn = func(call int, id string) (exchange.OrderResult, error) {
		if call == 1 {
			return exchange.OrderResult{ClientOrderID: id, Status: exchange.OrderStatusOpen}, nil
		}
		return exchange.OrderResult{ClientOrderID: id, Status: exchange.OrderStatusCancelled}, nil
	}

	out := fastPolicy(gw).ResolveOrder(context.Background(), "BTCUSDT", "mako-1-entry-hhhh")
	assert.Equal(t, OutcomeRejected, out.Kind)
	assert.Equal(t, 1, gw.cancelCalls)
}

func TestResolveOrderDetectsRacedFill(t *testing.T) {
	gw := newFakeGateway()
	gw.statusFn = func(call int, id string) (exchange.OrderResult, error) {
		if call == 1 {
			return exchange.OrderResult{ClientOrderID: id, Status: exchange.OrderStatusOpen}, nil
		}
		return filledResult(id), nil
	}

	out := fastPolicy(gw).ResolveOrder(context.Background(), "BTCUSDT", "mako-1-exit-iiii")
	assert.Equal(t, OutcomeFilled, out.Kind, "cancel raced a fill; the fill wins")
}

func TestIdempotencyKeyShape(t *testing.T) {
	key := IdempotencyKey(3, "entry")
	assert.Regexp(t, `^mako-3-entry-[0-9a-f]{8}$`, key)
	assert.NotEqual(t, key, IdempotencyKey(3, "entry"))
}
