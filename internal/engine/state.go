package engine

import (
	"time"

	"mako/internal/position"
	"mako/internal/risk"
)

// State is the position lifecycle state.
type State string

const (
	StateFlat         State = "FLAT"
	StateEntryPending State = "ENTRY_PENDING"
	StateOpen         State = "OPEN"
	StateExitPending  State = "EXIT_PENDING"
	StateHalted       State = "HALTED"
)

// Snapshot is the read-only view handed to observers (HTTP status surface).
// The engine goroutine is the sole mutator; everyone else gets copies.
type Snapshot struct {
	State         State              `json:"state"`
	Symbol        string             `json:"symbol"`
	Strategy      string             `json:"strategy"`
	Position      *position.Position `json:"position,omitempty"`
	UnrealizedPnL float64            `json:"unrealized_pnl"`
	LastPrice     float64            `json:"last_price"`
	Ledger        risk.Ledger        `json:"ledger"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func clonePosition(p *position.Position) *position.Position {
	if p == nil {
		return nil
	}
	out := *p
	if p.OrderIDs != nil {
		out.OrderIDs = make(map[string]string, len(p.OrderIDs))
		for k, v := range p.OrderIDs {
			out.OrderIDs[k] = v
		}
	}
	return &out
}
