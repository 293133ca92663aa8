package execution

import (
	"context"
	"fmt"
	"time"

	"mako/internal/gateway/exchange"
	"mako/internal/logger"
)

const (
	defaultMaxAttempts = 4
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 8 * time.Second
	statusPollAttempts = 5
	statusPollDelay    = time.Second
)

// Policy executes order intents with bounded retries. Transient failures
// back off and retry; permanent failures return immediately; ambiguous
// failures are resolved through the client order id before any resubmit.
// The invariant: at most one live exchange order per idempotency key.
type Policy struct {
	gw          exchange.Gateway
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// Option tunes a Policy.
type Option func(*Policy)

func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func WithBackoff(base, max time.Duration) Option {
	return func(p *Policy) {
		if base > 0 {
			p.baseDelay = base
		}
		if max > 0 {
			p.maxDelay = max
		}
	}
}

func NewPolicy(gw exchange.Gateway, opts ...Option) *Policy {
	p := &Policy{
		gw:          gw,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute drives one order intent to a terminal outcome. req.ClientOrderID
// is the idempotency key and must be set by the caller; it is reused across
// every retry of this intent.
func (p *Policy) Execute(ctx context.Context, req exchange.OrderRequest) Outcome {
	if req.ClientOrderID == "" {
		return rejected("missing idempotency key")
	}
	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := p.wait(ctx, p.backoff(attempt)); err != nil {
				return unknown(fmt.Errorf("cancelled during backoff: %w", err))
			}
		}
		res, err := p.gw.PlaceOrder(ctx, req)
		if err == nil {
			return p.settle(ctx, req, res)
		}
		lastErr = err
		switch {
		case exchange.IsPermanent(err):
			logger.Warnf("execution: %s rejected permanently: %v", req.ClientOrderID, err)
			return rejected(err.Error())
		case exchange.IsTransient(err):
			logger.Warnf("execution: %s transient failure (attempt %d/%d): %v",
				req.ClientOrderID, attempt+1, p.maxAttempts, err)
			continue
		default:
			// ambiguous: the order may have landed. Query before deciding.
			logger.Warnf("execution: %s ambiguous failure, resolving via order status: %v",
				req.ClientOrderID, err)
			outcome, resubmit := p.resolveAmbiguous(ctx, req)
			if !resubmit {
				return outcome
			}
			// confirmed not landed, the retry below cannot duplicate
		}
	}
	return unknown(fmt.Errorf("retry budget exhausted: %w", lastErr))
}

// ResolveOrder determines the fate of a previously submitted order. Open
// orders are cancelled; used on shutdown and during reconciliation.
func (p *Policy) ResolveOrder(ctx context.Context, symbol, clientOrderID string) Outcome {
	for attempt := 0; attempt < statusPollAttempts; attempt++ {
		if attempt > 0 {
			if err := p.wait(ctx, statusPollDelay); err != nil {
				return unknown(err)
			}
		}
		res, err := p.gw.GetOrderStatus(ctx, symbol, clientOrderID)
		if err != nil {
			continue
		}
		switch res.Status {
		case exchange.OrderStatusFilled:
			return filled(res)
		case exchange.OrderStatusCancelled, exchange.OrderStatusRejected:
			return rejected("order " + string(res.Status))
		case exchange.OrderStatusUnknown:
			return rejected("order never reached the exchange")
		case exchange.OrderStatusOpen:
			if err := p.gw.CancelOrder(ctx, symbol, clientOrderID); err != nil {
				logger.Warnf("execution: cancel %s failed: %v", clientOrderID, err)
				continue
			}
			// re-query: the cancel may have raced a fill
		}
	}
	return unknown(fmt.Errorf("order %s unresolved after %d status checks", clientOrderID, statusPollAttempts))
}

// settle handles an accepted submission that is not terminal yet.
func (p *Policy) settle(ctx context.Context, req exchange.OrderRequest, res exchange.OrderResult) Outcome {
	switch res.Status {
	case exchange.OrderStatusFilled:
		return filled(res)
	case exchange.OrderStatusRejected:
		return rejected("order rejected by exchange")
	case exchange.OrderStatusCancelled:
		return rejected("order cancelled")
	}
	return p.awaitFill(ctx, req.Symbol, req.ClientOrderID)
}

// resolveAmbiguous answers "did my submission land?". Returns the final
// outcome, or resubmit=true when the order verifiably never reached the
// matching engine.
func (p *Policy) resolveAmbiguous(ctx context.Context, req exchange.OrderRequest) (Outcome, bool) {
	var lastErr error
	for attempt := 0; attempt < statusPollAttempts; attempt++ {
		if attempt > 0 {
			if err := p.wait(ctx, statusPollDelay); err != nil {
				return unknown(err), false
			}
		}
		res, err := p.gw.GetOrderStatus(ctx, req.Symbol, req.ClientOrderID)
		if err != nil {
			lastErr = err
			continue
		}
		switch res.Status {
		case exchange.OrderStatusFilled:
			logger.Infof("execution: %s resolved as filled", req.ClientOrderID)
			return filled(res), false
		case exchange.OrderStatusOpen:
			return p.awaitFill(ctx, req.Symbol, req.ClientOrderID), false
		case exchange.OrderStatusCancelled, exchange.OrderStatusRejected:
			return rejected("order " + string(res.Status)), false
		case exchange.OrderStatusUnknown:
			// not on the books: the submission never landed
			logger.Infof("execution: %s confirmed not landed, safe to resubmit", req.ClientOrderID)
			return Outcome{}, true
		}
	}
	return unknown(fmt.Errorf("ambiguous submission unresolved: %w", lastErr)), false
}

// awaitFill polls an accepted order until it fills or the budget runs out.
func (p *Policy) awaitFill(ctx context.Context, symbol, clientOrderID string) Outcome {
	for attempt := 0; attempt < statusPollAttempts; attempt++ {
		if err := p.wait(ctx, statusPollDelay); err != nil {
			return unknown(err)
		}
		res, err := p.gw.GetOrderStatus(ctx, symbol, clientOrderID)
		if err != nil {
			continue
		}
		switch res.Status {
		case exchange.OrderStatusFilled:
			return filled(res)
		case exchange.OrderStatusCancelled, exchange.OrderStatusRejected:
			return rejected("order " + string(res.Status))
		}
	}
	return unknown(fmt.Errorf("order %s accepted but fill unconfirmed", clientOrderID))
}

func (p *Policy) backoff(attempt int) time.Duration {
	d := p.baseDelay << (attempt - 1)
	if d > p.maxDelay || d <= 0 {
		d = p.maxDelay
	}
	return d
}

func (p *Policy) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
