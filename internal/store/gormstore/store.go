// Package gormstore persists engine state, trades and the daily risk ledger
// in SQLite through Gorm.
package gormstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mako/internal/position"
	"mako/internal/risk"
	storemodel "mako/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	// Pure-Go sqlite driver; the cgo default is unavailable with CGO_ENABLED=0.
	_ "modernc.org/sqlite"
)

const stateRowID = 1

// TradeRecord is a closed round trip as handed in by the engine.
type TradeRecord struct {
	Symbol     string
	Side       string
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	ExitReason string
	Epoch      int64
	OrderIDs   map[string]string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// RecoveredState is what Load hands back after a restart. Position is nil
// when the process went down flat.
type RecoveredState struct {
	State    string
	Position *position.Position
	Ledger   risk.Ledger
	Epoch    int64
}

// DailyPnL is one aggregated day for the report chart.
type DailyPnL struct {
	Day    string
	PnL    float64
	Trades int
}

type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: db path is required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&storemodel.EngineStateModel{},
		&storemodel.TradeModel{},
		&storemodel.RiskDayModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP
	// reads while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveState overwrites the single crash-recovery row.
func (s *Store) SaveState(state string, pos *position.Position, ledger risk.Ledger, epoch int64) error {
	row := storemodel.EngineStateModel{
		ID:            stateRowID,
		State:         state,
		Epoch:         epoch,
		UpdatedAtUnix: time.Now().Unix(),
	}
	if pos != nil {
		raw, err := json.Marshal(pos)
		if err != nil {
			return fmt.Errorf("marshal position: %w", err)
		}
		row.PositionJSON = datatypes.JSON(raw)
	}
	raw, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	row.LedgerJSON = datatypes.JSON(raw)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// Load returns the recovered state, or nil when nothing was persisted yet.
func (s *Store) Load() (*RecoveredState, error) {
	var row storemodel.EngineStateModel
	err := s.db.First(&row, stateRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := &RecoveredState{State: row.State, Epoch: row.Epoch}
	if len(row.PositionJSON) > 0 {
		var pos position.Position
		if err := json.Unmarshal(row.PositionJSON, &pos); err != nil {
			return nil, fmt.Errorf("unmarshal position: %w", err)
		}
		out.Position = &pos
	}
	if len(row.LedgerJSON) > 0 {
		if err := json.Unmarshal(row.LedgerJSON, &out.Ledger); err != nil {
			return nil, fmt.Errorf("unmarshal ledger: %w", err)
		}
	}
	return out, nil
}

// RecordTrade appends a closed trade to the journal.
func (s *Store) RecordTrade(rec TradeRecord) error {
	row := storemodel.TradeModel{
		Symbol:        rec.Symbol,
		Side:          rec.Side,
		Size:          rec.Size,
		EntryPrice:    rec.EntryPrice,
		ExitPrice:     rec.ExitPrice,
		PnL:           rec.PnL,
		ExitReason:    rec.ExitReason,
		Epoch:         rec.Epoch,
		OpenedAtUnix:  rec.OpenedAt.Unix(),
		ClosedAtUnix:  rec.ClosedAt.Unix(),
		CreatedAtUnix: time.Now().Unix(),
	}
	if len(rec.OrderIDs) > 0 {
		raw, err := json.Marshal(rec.OrderIDs)
		if err != nil {
			return fmt.Errorf("marshal order ids: %w", err)
		}
		row.OrderIDsJSON = datatypes.JSON(raw)
	}
	return s.db.Create(&row).Error
}

// Trades returns the most recent closed trades, newest first.
func (s *Store) Trades(limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []storemodel.TradeModel
	if err := s.db.Order("closed_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]TradeRecord, 0, len(rows))
	for _, row := range rows {
		rec := TradeRecord{
			Symbol:     row.Symbol,
			Side:       row.Side,
			Size:       row.Size,
			EntryPrice: row.EntryPrice,
			ExitPrice:  row.ExitPrice,
			PnL:        row.PnL,
			ExitReason: row.ExitReason,
			Epoch:      row.Epoch,
			OpenedAt:   time.Unix(row.OpenedAtUnix, 0),
			ClosedAt:   time.Unix(row.ClosedAtUnix, 0),
		}
		if len(row.OrderIDsJSON) > 0 {
			_ = json.Unmarshal(row.OrderIDsJSON, &rec.OrderIDs)
		}
		out = append(out, rec)
	}
	return out, nil
}

// UpsertRiskDay persists the ledger under its day key.
func (s *Store) UpsertRiskDay(ledger risk.Ledger) error {
	row := storemodel.RiskDayModel{
		Day:              ledger.Day,
		StartOfDayEquity: ledger.StartOfDayEquity,
		CurrentEquity:    ledger.CurrentEquity,
		RealizedPnL:      ledger.RealizedPnLToday,
		Halted:           ledger.TradingHalted,
		Trades:           ledger.Trades,
		Wins:             ledger.Wins,
		Losses:           ledger.Losses,
		GrossProfit:      ledger.GrossProfit,
		GrossLoss:        ledger.GrossLoss,
		UpdatedAtUnix:    time.Now().Unix(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// RiskDay loads the persisted ledger for one day, if present.
func (s *Store) RiskDay(day string) (*risk.Ledger, error) {
	var row storemodel.RiskDayModel
	err := s.db.Where("day = ?", day).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &risk.Ledger{
		Day:              row.Day,
		StartOfDayEquity: row.StartOfDayEquity,
		CurrentEquity:    row.CurrentEquity,
		RealizedPnLToday: row.RealizedPnL,
		TradingHalted:    row.Halted,
		Trades:           row.Trades,
		Wins:             row.Wins,
		Losses:           row.Losses,
		GrossProfit:      row.GrossProfit,
		GrossLoss:        row.GrossLoss,
	}, nil
}

// DailyPnLSeries aggregates closed trades per day for the report chart.
func (s *Store) DailyPnLSeries(days int) ([]DailyPnL, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days).Unix()
	var rows []struct {
		Day    string
		PnL    float64
		Trades int
	}
	err := s.db.Model(&storemodel.TradeModel{}).
		Select("strftime('%Y-%m-%d', closed_at, 'unixepoch') AS day, SUM(pnl) AS pn_l, COUNT(*) AS trades").
		Where("closed_at >= ?", since).
		Group("day").
		Order("day ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]DailyPnL, 0, len(rows))
	for _, row := range rows {
		out = append(out, DailyPnL{Day: row.Day, PnL: row.PnL, Trades: row.Trades})
	}
	return out, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
