// Package model defines the persisted row shapes shared by the stores.
package model

import "gorm.io/datatypes"

// EngineStateModel is the single-row crash recovery snapshot: the last known
// position (empty JSON when flat), the risk ledger and the position epoch.
type EngineStateModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	State         string         `gorm:"column:state"`
	PositionJSON  datatypes.JSON `gorm:"column:position_json;type:TEXT"`
	LedgerJSON    datatypes.JSON `gorm:"column:ledger_json;type:TEXT"`
	Epoch         int64          `gorm:"column:epoch"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (EngineStateModel) TableName() string { return "engine_state" }

// TradeModel journals one closed round trip.
type TradeModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Symbol        string         `gorm:"column:symbol;index"`
	Side          string         `gorm:"column:side"`
	Size          float64        `gorm:"column:size"`
	EntryPrice    float64        `gorm:"column:entry_price"`
	ExitPrice     float64        `gorm:"column:exit_price"`
	PnL           float64        `gorm:"column:pnl"`
	ExitReason    string         `gorm:"column:exit_reason"`
	Epoch         int64          `gorm:"column:epoch"`
	OrderIDsJSON  datatypes.JSON `gorm:"column:order_ids_json;type:TEXT"`
	OpenedAtUnix  int64          `gorm:"column:opened_at"`
	ClosedAtUnix  int64          `gorm:"column:closed_at;index"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (TradeModel) TableName() string { return "trades" }

// RiskDayModel is the per-trading-day ledger row.
type RiskDayModel struct {
	ID               int64   `gorm:"column:id;primaryKey"`
	Day              string  `gorm:"column:day;uniqueIndex"`
	StartOfDayEquity float64 `gorm:"column:start_of_day_equity"`
	CurrentEquity    float64 `gorm:"column:current_equity"`
	RealizedPnL      float64 `gorm:"column:realized_pnl"`
	Halted           bool    `gorm:"column:halted"`
	Trades           int     `gorm:"column:trades"`
	Wins             int     `gorm:"column:wins"`
	Losses           int     `gorm:"column:losses"`
	GrossProfit      float64 `gorm:"column:gross_profit"`
	GrossLoss        float64 `gorm:"column:gross_loss"`
	UpdatedAtUnix    int64   `gorm:"column:updated_at"`
}

func (RiskDayModel) TableName() string { return "risk_days" }
