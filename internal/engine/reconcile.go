package engine

import (
	"context"

	"mako/internal/gateway/exchange"
	"mako/internal/logger"
	"mako/internal/position"
	"mako/internal/store/eventlog"
	"mako/internal/store/gormstore"
)

// reconcile compares local position state against the exchange's
// authoritative view and corrects local state on divergence. This is the
// self-healing mechanism against missed fills (stop or target triggering
// between cycles) and against stale state after a restart.
func (e *Engine) reconcile(ctx context.Context) error {
	remote, err := e.gw.GetPosition(ctx, e.cfg.Trading.Symbol)
	if err != nil {
		return err
	}
	local := e.pos

	switch {
	case local == nil && remote == nil:
		return nil

	case local != nil && remote == nil:
		// stop or target filled out-of-band; settle at the current price
		return e.adoptRemoteClose(ctx)

	case local == nil && remote != nil:
		// an entry landed that we lost track of (crash mid-entry)
		e.adoptRemoteOpen(ctx, remote)
		return nil

	default:
		// both open: trust the exchange's numbers
		if local.Size != remote.Size || local.EntryPrice != remote.EntryPrice {
			logger.Warnf("engine: position drift, local size=%.8f entry=%.2f remote size=%.8f entry=%.2f",
				local.Size, local.EntryPrice, remote.Size, remote.EntryPrice)
			e.mu.Lock()
			local.Size = remote.Size
			local.EntryPrice = remote.EntryPrice
			e.mu.Unlock()
			e.event(ctx, eventlog.KindReconcile, "position synced from exchange", map[string]any{
				"size": remote.Size, "entry_price": remote.EntryPrice,
			})
		}
		return nil
	}
}

func (e *Engine) adoptRemoteClose(ctx context.Context) error {
	pos := e.pos
	price, err := e.gw.GetPrice(ctx, e.cfg.Trading.Symbol)
	if err != nil {
		return err
	}
	logger.Warnf("engine: exchange reports flat while local state is %s, adopting remote close at %.2f", e.state, price)

	pnl := e.manager.Close(pos, exchange.OrderResult{FillPrice: price, FilledSize: pos.Size})
	tripped := e.applyClose(pnl)

	rec := gormstore.TradeRecord{
		Symbol:     pos.Symbol,
		Side:       string(pos.Side),
		Size:       pos.Size,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		PnL:        pnl,
		ExitReason: "remote-close",
		Epoch:      pos.Epoch,
		OrderIDs:   pos.OrderIDs,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   e.nowFn(),
	}
	if err := e.store.RecordTrade(rec); err != nil {
		logger.Errorf("engine: trade journal write failed: %v", err)
	}
	if err := e.store.UpsertRiskDay(e.ledger); err != nil {
		logger.Errorf("engine: risk day write failed: %v", err)
	}
	e.setPosition(nil)
	e.pending = nil
	e.event(ctx, eventlog.KindReconcile, "adopted remote close", map[string]any{"pnl": pnl, "exit_price": price})
	e.notifyClose(rec)

	if tripped {
		e.transition(ctx, StateHalted, "daily-loss-limit-reached")
		e.notifyHalt()
	} else {
		e.transition(ctx, StateFlat, "remote-close")
	}
	e.persist()
	return nil
}

func (e *Engine) adoptRemoteOpen(ctx context.Context, remote *exchange.Position) {
	logger.Warnf("engine: exchange reports %s %.8f @ %.2f while local state is flat, adopting",
		remote.Side, remote.Size, remote.EntryPrice)

	strat := e.strategyRef()
	fill := exchange.OrderResult{FillPrice: remote.EntryPrice, FilledSize: remote.Size}
	pos := e.manager.Open(e.cfg.Trading.Symbol, remote.Side, fill,
		strat.StopLossFor(remote.EntryPrice, remote.Side),
		strat.TakeProfitFor(remote.EntryPrice, remote.Side),
		e.cfg.Trading.Leverage)
	if e.pending != nil && e.pending.Kind == "entry" {
		pos.TrackOrder(position.OrderRoleEntry, e.pending.Key)
		e.pending = nil
	}
	e.setPosition(pos)
	e.event(ctx, eventlog.KindReconcile, "adopted remote position", map[string]any{
		"side": string(remote.Side), "size": remote.Size, "entry_price": remote.EntryPrice,
	})
	e.transition(ctx, StateOpen, "remote-open")
	e.persist()
}
