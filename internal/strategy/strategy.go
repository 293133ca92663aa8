// Package strategy holds the pluggable signal sources the engine consults
// each cycle. Concrete strategies are selected by name from configuration
// and tuned through hot-reloadable profiles.
package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"mako/internal/gateway/exchange"
	"mako/internal/market"

	"github.com/mitchellh/mapstructure"
)

// Signal is an entry decision.
type Signal string

const (
	SignalLong  Signal = "LONG"
	SignalShort Signal = "SHORT"
	SignalNone  Signal = "NONE"
)

// Side maps an actionable signal to a position side.
func (s Signal) Side() exchange.Side {
	if s == SignalShort {
		return exchange.SideShort
	}
	return exchange.SideLong
}

// PositionView is the read-only slice of position state a strategy may see.
type PositionView struct {
	Side       exchange.Side
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
}

// Strategy is the signal contract the engine calls. Implementations never
// see or mutate engine state; they are queried by value.
type Strategy interface {
	Name() string
	ShouldEnter(snap market.Snapshot) Signal
	ShouldExit(snap market.Snapshot, pos PositionView) (bool, string)
	StopLossFor(entry float64, side exchange.Side) float64
	TakeProfitFor(entry float64, side exchange.Side) float64
}

// Config carries the risk fallbacks and the raw profile parameters a
// factory decodes into its own tuning struct.
type Config struct {
	StopLossPct   float64
	TakeProfitPct float64
	Params        map[string]any
}

// Factory builds a strategy from its profile configuration.
type Factory func(cfg Config) (Strategy, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a strategy constructable by name. Called from init().
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(strings.TrimSpace(name))] = factory
}

// New builds the named strategy or fails listing what is available.
func New(name string, cfg Config) (Strategy, error) {
	registryMu.RLock()
	factory, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return factory(cfg)
}

// Names lists registered strategy names in stable order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// decodeParams fills target from the profile's raw params, tolerating
// yaml's loose typing the same way the main config loader does.
func decodeParams(params map[string]any, target any) error {
	if len(params) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "toml",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}
