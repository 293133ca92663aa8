// Package engine drives the position lifecycle state machine: one strictly
// sequential evaluation loop that observes the market, consults the
// strategy and the risk gate, and realizes decisions through the execution
// policy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"mako/internal/config"
	"mako/internal/execution"
	"mako/internal/gateway/exchange"
	"mako/internal/gateway/notifier"
	"mako/internal/logger"
	"mako/internal/market"
	"mako/internal/pkg/circuit"
	"mako/internal/position"
	"mako/internal/risk"
	"mako/internal/scheduler"
	"mako/internal/store/eventlog"
	"mako/internal/store/gormstore"
	"mako/internal/strategy"
)

const shutdownResolveTimeout = 30 * time.Second

// Store is the persistence surface the engine needs.
type Store interface {
	SaveState(state string, pos *position.Position, ledger risk.Ledger, epoch int64) error
	Load() (*gormstore.RecoveredState, error)
	RecordTrade(rec gormstore.TradeRecord) error
	UpsertRiskDay(ledger risk.Ledger) error
	RiskDay(day string) (*risk.Ledger, error)
}

// EventSink is the append-only journal surface.
type EventSink interface {
	Append(ctx context.Context, kind, message string, fields map[string]any) error
}

// pendingOrder tracks an in-flight entry or exit across cycles, so an
// unresolved submission is never abandoned.
type pendingOrder struct {
	Key        string
	Kind       string
	Side       exchange.Side
	StopLoss   float64
	TakeProfit float64
	Reason     string
}

// Params wires an Engine.
type Params struct {
	Config   *config.Config
	Gateway  exchange.Gateway
	Policy   *execution.Policy
	Manager  *position.Manager
	Store    Store
	Events   EventSink
	Notifier notifier.TextNotifier
	Profiles *strategy.ProfileLoader
	NowFn    func() time.Time
}

type Engine struct {
	cfg      *config.Config
	gw       exchange.Gateway
	policy   *execution.Policy
	manager  *position.Manager
	gate     risk.Gate
	store    Store
	events   EventSink
	notifier notifier.TextNotifier
	profiles *strategy.ProfileLoader
	breaker  *circuit.Breaker
	nowFn    func() time.Time

	// latest profile snapshot from the hot-reload listener; the engine
	// goroutine applies it at the next cycle boundary.
	pendingProfiles atomic.Pointer[strategy.ProfileSnapshot]
	profileVersion  int64

	mu        sync.RWMutex
	state     State
	pos       *position.Position
	ledger    risk.Ledger
	strat     strategy.Strategy
	lastPrice float64
	pending   *pendingOrder
}

func New(p Params) (*Engine, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("engine: config is required")
	}
	if p.Gateway == nil || p.Policy == nil || p.Manager == nil || p.Store == nil {
		return nil, fmt.Errorf("engine: gateway, policy, manager and store are required")
	}
	if p.Notifier == nil {
		p.Notifier = notifier.Nop{}
	}
	if p.NowFn == nil {
		p.NowFn = time.Now
	}
	e := &Engine{
		cfg:      p.Config,
		gw:       p.Gateway,
		policy:   p.Policy,
		manager:  p.Manager,
		store:    p.Store,
		events:   p.Events,
		notifier: p.Notifier,
		profiles: p.Profiles,
		breaker:  circuit.NewBreaker("TradingEngine", 5, 2*time.Minute),
		nowFn:    p.NowFn,
		state:    StateFlat,
		gate: risk.Gate{
			RiskPerTrade:   p.Config.Risk.RiskPerTrade,
			DailyLossLimit: p.Config.Risk.MaxDailyLossPct,
		},
	}
	if err := e.buildStrategy(e.currentProfiles()); err != nil {
		return nil, err
	}
	if e.profiles != nil {
		e.profiles.Subscribe(func(snap strategy.ProfileSnapshot) {
			e.pendingProfiles.Store(&snap)
		})
	}
	return e, nil
}

// Run blocks until ctx is cancelled. It restores persisted state, reconciles
// it against the live exchange, then enters the cycle loop.
func (e *Engine) Run(ctx context.Context) error {
	interval, ok := scheduler.ParseIntervalDuration(e.cfg.Trading.Interval)
	if !ok || interval <= 0 {
		return fmt.Errorf("engine: invalid trading interval %q", e.cfg.Trading.Interval)
	}

	if err := e.setupExchange(ctx); err != nil {
		return fmt.Errorf("engine: exchange setup: %w", err)
	}
	if err := e.restore(ctx); err != nil {
		return fmt.Errorf("engine: state restore: %w", err)
	}
	e.event(ctx, eventlog.KindLifecycle, "engine started", map[string]any{
		"symbol":   e.cfg.Trading.Symbol,
		"strategy": e.strategyName(),
		"interval": e.cfg.Trading.Interval,
	})
	e.notifyStart()

	sched := scheduler.NewCycleScheduler(ctx, interval)
	sched.Name = "TradingEngine"
	sched.RunImmediately = e.cfg.Trading.RunImmediately
	sched.Start(func() {
		if !e.breaker.Allow() {
			logger.Warnf("engine: circuit breaker open, skipping cycle")
			return
		}
		if err := e.cycle(ctx); err != nil {
			logger.Errorf("engine: cycle failed: %v", err)
			e.breaker.RecordFailure()
			return
		}
		e.breaker.RecordSuccess()
	})

	e.shutdown()
	return ctx.Err()
}

// cycle is one full evaluation pass. Errors abort only this cycle.
func (e *Engine) cycle(ctx context.Context) error {
	e.applyProfileUpdate()

	balance, err := e.gw.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	e.rollDay(ctx, balance.Total)

	if err := e.reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if e.pending != nil {
		if done := e.resolvePending(ctx); !done {
			return nil
		}
	}

	snap, err := e.observe(ctx)
	if err != nil {
		return fmt.Errorf("market data: %w", err)
	}
	e.setLastPrice(snap.LastPrice)

	switch e.state {
	case StateHalted:
		logger.Debugf("engine: halted, waiting for day boundary")
	case StateOpen:
		e.evaluateExit(ctx, snap)
	case StateFlat:
		e.evaluateEntry(ctx, snap, balance.Total)
	}

	e.persist()
	return nil
}

func (e *Engine) observe(ctx context.Context) (market.Snapshot, error) {
	candles, err := e.gw.GetCandles(ctx, e.cfg.Trading.Symbol, e.cfg.Trading.Interval, e.cfg.Trading.HistoryLimit)
	if err != nil {
		return market.Snapshot{}, err
	}
	price, err := e.gw.GetPrice(ctx, e.cfg.Trading.Symbol)
	if err != nil {
		return market.Snapshot{}, err
	}
	return market.Snapshot{
		Symbol:    e.cfg.Trading.Symbol,
		Interval:  e.cfg.Trading.Interval,
		Candles:   candles,
		LastPrice: price,
		FetchedAt: e.nowFn(),
	}, nil
}

func (e *Engine) evaluateExit(ctx context.Context, snap market.Snapshot) {
	pos := e.pos
	if pos == nil {
		return
	}
	exit, reason := e.strategyRef().ShouldExit(snap, strategy.PositionView{
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		StopLoss:   pos.StopLoss,
		TakeProfit: pos.TakeProfit,
	})
	if !exit {
		return
	}
	intent := risk.Intent{Action: risk.ActionExit, Side: string(pos.Side), ReferencePrice: snap.LastPrice, ReasonCode: reason}
	if dec := e.gate.Evaluate(intent, e.ledger, true); !dec.Allowed {
		logger.Infof("engine: exit denied: %s", dec.Reason)
		return
	}
	e.submitExit(ctx, reason)
}

func (e *Engine) submitExit(ctx context.Context, reason string) {
	pos := e.pos
	key := execution.IdempotencyKey(e.manager.Epoch(), "exit")
	pos.TrackOrder(position.OrderRoleExit, key)
	e.transition(ctx, StateExitPending, reason)
	e.pending = &pendingOrder{Key: key, Kind: "exit", Side: pos.Side, Reason: reason}
	e.persist()

	out := e.policy.Execute(ctx, exchange.OrderRequest{
		Symbol:        pos.Symbol,
		Side:          pos.Side.Opposite().OrderSide(),
		Type:          exchange.OrderTypeMarket,
		Size:          pos.Size,
		ReduceOnly:    true,
		ClientOrderID: key,
	})
	e.settleExit(ctx, out)
}

func (e *Engine) settleExit(ctx context.Context, out execution.Outcome) {
	switch out.Kind {
	case execution.OutcomeFilled:
		e.finishClose(ctx, out.Fill, e.pending.Reason)
	case execution.OutcomeRejected:
		// the position is still ours; try again next cycle
		logger.Warnf("engine: exit rejected: %s", out.Reason)
		e.event(ctx, eventlog.KindOrder, "exit rejected", map[string]any{"reason": out.Reason})
		e.pending = nil
		e.transition(ctx, StateOpen, "exit-rejected")
	case execution.OutcomeUnknown:
		logger.Warnf("engine: exit outcome unknown, will reconcile: %v", out.Err)
		e.event(ctx, eventlog.KindOrder, "exit outcome unknown", map[string]any{"error": fmt.Sprint(out.Err)})
	}
}

func (e *Engine) evaluateEntry(ctx context.Context, snap market.Snapshot, capital float64) {
	sig := e.strategyRef().ShouldEnter(snap)
	if sig == strategy.SignalNone {
		return
	}
	side := sig.Side()
	intent := risk.Intent{Action: risk.ActionEnter, Side: string(side), ReferencePrice: snap.LastPrice, ReasonCode: "signal-" + string(sig)}
	if dec := e.gate.Evaluate(intent, e.ledger, e.pos != nil); !dec.Allowed {
		logger.Infof("engine: entry denied: %s", dec.Reason)
		e.event(ctx, eventlog.KindRisk, "entry denied", map[string]any{"reason": dec.Reason, "side": string(side)})
		return
	}

	strat := e.strategyRef()
	stopLoss := strat.StopLossFor(snap.LastPrice, side)
	takeProfit := strat.TakeProfitFor(snap.LastPrice, side)

	filters, err := e.gw.SymbolFilters(ctx, e.cfg.Trading.Symbol)
	if err != nil {
		logger.Warnf("engine: symbol filters unavailable: %v", err)
		return
	}
	size, err := e.manager.SizeEntry(capital, snap.LastPrice, stopLoss, e.cfg.Trading.Leverage, filters)
	if err != nil {
		var sizingErr *position.SizingError
		if errors.As(err, &sizingErr) {
			logger.Warnf("engine: entry skipped: %v", err)
			return
		}
		logger.Errorf("engine: sizing failed: %v", err)
		return
	}

	key := execution.IdempotencyKey(e.manager.Epoch(), "entry")
	e.transition(ctx, StateEntryPending, "signal-"+string(sig))
	e.pending = &pendingOrder{Key: key, Kind: "entry", Side: side, StopLoss: stopLoss, TakeProfit: takeProfit}
	e.persist()

	out := e.policy.Execute(ctx, exchange.OrderRequest{
		Symbol:        e.cfg.Trading.Symbol,
		Side:          side.OrderSide(),
		Type:          exchange.OrderTypeMarket,
		Size:          size,
		ClientOrderID: key,
	})
	e.settleEntry(ctx, out)
}

func (e *Engine) settleEntry(ctx context.Context, out execution.Outcome) {
	switch out.Kind {
	case execution.OutcomeFilled:
		e.finishOpen(ctx, out.Fill)
	case execution.OutcomeRejected:
		logger.Warnf("engine: entry rejected: %s", out.Reason)
		e.event(ctx, eventlog.KindOrder, "entry rejected", map[string]any{"reason": out.Reason})
		e.pending = nil
		e.transition(ctx, StateFlat, "entry-rejected")
	case execution.OutcomeUnknown:
		logger.Warnf("engine: entry outcome unknown, will reconcile: %v", out.Err)
		e.event(ctx, eventlog.KindOrder, "entry outcome unknown", map[string]any{"error": fmt.Sprint(out.Err)})
	}
}

// finishOpen constructs the Position from a confirmed entry fill.
func (e *Engine) finishOpen(ctx context.Context, fill exchange.OrderResult) {
	pending := e.pending
	e.pending = nil
	pos := e.manager.Open(e.cfg.Trading.Symbol, pending.Side, fill, pending.StopLoss, pending.TakeProfit, e.cfg.Trading.Leverage)
	e.setPosition(pos)
	e.transition(ctx, StateOpen, "entry-filled")
	logger.Infof("engine: opened %s %s size=%.6f entry=%.2f stop=%.2f target=%.2f rr=%.2f",
		pos.Side, pos.Symbol, pos.Size, pos.EntryPrice, pos.StopLoss, pos.TakeProfit, pos.RiskReward())
	e.event(ctx, eventlog.KindOrder, "entry filled", map[string]any{
		"side": string(pending.Side), "price": fill.FillPrice, "size": fill.FilledSize,
		"risk_reward": pos.RiskReward(),
	})
	e.notifyOpen(pos)
	e.persist()
}

// finishClose destroys the Position, settles the ledger and journals the
// trade. Tripping the daily loss limit moves the machine to HALTED.
func (e *Engine) finishClose(ctx context.Context, fill exchange.OrderResult, reason string) {
	pos := e.pos
	e.pending = nil
	if pos == nil {
		e.transition(ctx, StateFlat, reason)
		return
	}
	pnl := e.manager.Close(pos, fill)
	tripped := e.applyClose(pnl)

	rec := gormstore.TradeRecord{
		Symbol:     pos.Symbol,
		Side:       string(pos.Side),
		Size:       pos.Size,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  fill.FillPrice,
		PnL:        pnl,
		ExitReason: reason,
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
	e.event(ctx, eventlog.KindOrder, "position closed", map[string]any{
		"reason": reason, "pnl": pnl, "exit_price": fill.FillPrice,
	})
	e.notifyClose(rec)

	if tripped {
		e.transition(ctx, StateHalted, "daily-loss-limit-reached")
		e.notifyHalt()
	} else {
		e.transition(ctx, StateFlat, reason)
	}
	e.persist()
}

// resolvePending answers what happened to an in-flight order from a previous
// cycle (or an Unknown outcome this cycle). Returns false while unresolved.
func (e *Engine) resolvePending(ctx context.Context) bool {
	pending := e.pending
	out := e.policy.ResolveOrder(ctx, e.cfg.Trading.Symbol, pending.Key)
	switch out.Kind {
	case execution.OutcomeFilled:
		if pending.Kind == "entry" {
			e.finishOpen(ctx, out.Fill)
		} else {
			e.finishClose(ctx, out.Fill, pending.Reason)
		}
		return true
	case execution.OutcomeRejected:
		e.pending = nil
		if pending.Kind == "entry" {
			e.transition(ctx, StateFlat, "entry-not-filled")
		} else {
			e.transition(ctx, StateOpen, "exit-not-filled")
		}
		e.persist()
		return true
	default:
		logger.Warnf("engine: pending %s order still unresolved", pending.Kind)
		return false
	}
}

func (e *Engine) applyClose(pnl float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.RecordClose(pnl, e.cfg.Risk.MaxDailyLossPct)
}

// rollDay resets the ledger at the UTC day boundary; only this clears HALTED.
func (e *Engine) rollDay(ctx context.Context, equity float64) {
	e.mu.Lock()
	rolled := e.ledger.RollDay(e.nowFn(), equity)
	if !rolled {
		e.ledger.SyncEquity(equity)
		e.mu.Unlock()
		return
	}
	halted := e.state == StateHalted
	if halted {
		e.state = StateFlat
	}
	ledger := e.ledger
	e.mu.Unlock()

	if halted {
		e.event(ctx, eventlog.KindTransition, "HALTED -> FLAT", map[string]any{"reason": "day-boundary-reset"})
	}
	e.event(ctx, eventlog.KindRisk, "trading day reset", map[string]any{"day": ledger.Day, "equity": equity})
	if err := e.store.UpsertRiskDay(ledger); err != nil {
		logger.Errorf("engine: risk day write failed: %v", err)
	}
}

// restore loads persisted state and reconciles it against the live exchange
// before the first cycle. Stale local state is never trusted as ground truth.
func (e *Engine) restore(ctx context.Context) error {
	now := e.nowFn()
	balance, err := e.gw.GetBalance(ctx)
	if err != nil {
		return err
	}
	e.ledger = risk.NewLedger(balance.Total, now)

	rec, err := e.store.Load()
	if err != nil {
		return err
	}
	if rec != nil {
		e.manager.RestoreEpoch(rec.Epoch)
		if rec.Ledger.Day == risk.DayKey(now) {
			e.ledger = rec.Ledger
			e.ledger.SyncEquity(balance.Total)
		}
		e.pos = rec.Position
		switch State(rec.State) {
		case StateOpen, StateEntryPending, StateExitPending:
			// reconcile below decides what we actually hold
			e.state = StateOpen
			if e.pos == nil {
				e.state = StateFlat
			}
		case StateHalted:
			e.state = StateHalted
		default:
			e.state = StateFlat
		}
	}
	if day, err := e.store.RiskDay(risk.DayKey(now)); err == nil && day != nil {
		e.ledger = *day
		e.ledger.SyncEquity(balance.Total)
		if day.TradingHalted {
			e.state = StateHalted
		}
	}

	if err := e.reconcile(ctx); err != nil {
		return err
	}
	e.persist()
	logger.Infof("engine: restored state=%s epoch=%d equity=%.2f", e.state, e.manager.Epoch(), balance.Total)
	return nil
}

// setupExchange applies leverage and margin mode at startup.
func (e *Engine) setupExchange(ctx context.Context) error {
	cfgr, ok := e.gw.(exchange.Configurer)
	if !ok {
		return nil
	}
	symbol := e.cfg.Trading.Symbol
	if e.cfg.Trading.IsolatedMargin {
		if err := cfgr.SetIsolatedMargin(ctx, symbol); err != nil {
			return err
		}
	}
	if err := cfgr.SetLeverage(ctx, symbol, e.cfg.Trading.Leverage); err != nil {
		return err
	}
	logger.Infof("engine: %s configured leverage=%dx isolated=%v", symbol, e.cfg.Trading.Leverage, e.cfg.Trading.IsolatedMargin)
	return nil
}

// shutdown resolves any in-flight order before the process exits. No order
// submission is ever silently abandoned.
func (e *Engine) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownResolveTimeout)
	defer cancel()
	if e.pending != nil {
		logger.Warnf("engine: shutdown with pending %s order, resolving", e.pending.Kind)
		e.resolvePending(ctx)
	}
	e.persist()
	e.event(ctx, eventlog.KindLifecycle, "engine stopped", nil)
	e.notifyDailySummary()
	logger.Infof("engine: stopped in state %s", e.state)
}

// Snapshot returns a copy of the engine state for read-only observers.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		State:         e.state,
		Symbol:        e.cfg.Trading.Symbol,
		Strategy:      e.stratName(),
		Position:      clonePosition(e.pos),
		UnrealizedPnL: e.pos.UnrealizedPnL(e.lastPrice),
		LastPrice:     e.lastPrice,
		Ledger:        e.ledger,
		UpdatedAt:     e.nowFn(),
	}
}

func (e *Engine) transition(ctx context.Context, to State, reason string) {
	e.mu.Lock()
	from := e.state
	e.state = to
	e.mu.Unlock()
	if from == to {
		return
	}
	logger.Infof("engine: %s -> %s (%s)", from, to, reason)
	e.event(ctx, eventlog.KindTransition, fmt.Sprintf("%s -> %s", from, to), map[string]any{"reason": reason})
}

func (e *Engine) persist() {
	e.mu.RLock()
	state, pos, ledger := e.state, clonePosition(e.pos), e.ledger
	e.mu.RUnlock()
	if err := e.store.SaveState(string(state), pos, ledger, e.manager.Epoch()); err != nil {
		logger.Errorf("engine: state persist failed: %v", err)
	}
}

func (e *Engine) setPosition(pos *position.Position) {
	e.mu.Lock()
	e.pos = pos
	e.mu.Unlock()
}

func (e *Engine) setLastPrice(price float64) {
	e.mu.Lock()
	e.lastPrice = price
	e.mu.Unlock()
}

func (e *Engine) event(ctx context.Context, kind, message string, fields map[string]any) {
	if e.events == nil {
		return
	}
	if err := e.events.Append(ctx, kind, message, fields); err != nil {
		logger.Debugf("engine: event write failed: %v", err)
	}
}

// applyProfileUpdate swaps in a hot-reloaded strategy at a cycle boundary.
func (e *Engine) applyProfileUpdate() {
	snap := e.pendingProfiles.Load()
	if snap == nil || snap.Version == e.profileVersion {
		return
	}
	if err := e.buildStrategy(*snap); err != nil {
		logger.Errorf("engine: profile update rejected: %v", err)
		e.profileVersion = snap.Version
		return
	}
	e.profileVersion = snap.Version
	logger.Infof("engine: strategy %s reloaded (profiles v%d)", e.strategyName(), snap.Version)
}

func (e *Engine) buildStrategy(profiles strategy.ProfileSnapshot) error {
	name := e.cfg.Strategy.Name
	cfg := strategy.Config{
		StopLossPct:   e.cfg.Risk.StopLossPct,
		TakeProfitPct: e.cfg.Risk.TakeProfitPct,
	}
	if def, ok := profiles.Profile(name); ok {
		if def.StopLossPct > 0 {
			cfg.StopLossPct = def.StopLossPct
		}
		if def.TakeProfitPct > 0 {
			cfg.TakeProfitPct = def.TakeProfitPct
		}
		cfg.Params = def.Params
	}
	strat, err := strategy.New(name, cfg)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.strat = strat
	e.mu.Unlock()
	return nil
}

func (e *Engine) currentProfiles() strategy.ProfileSnapshot {
	if e.profiles == nil {
		return strategy.ProfileSnapshot{}
	}
	return e.profiles.Snapshot()
}

func (e *Engine) strategyRef() strategy.Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.strat
}

func (e *Engine) strategyName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stratName()
}

// stratName assumes the caller holds e.mu.
func (e *Engine) stratName() string {
	if e.strat == nil {
		return ""
	}
	return e.strat.Name()
}
