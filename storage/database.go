package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/polyneko/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DATABASE - Append-only trade and settlement history
// ═══════════════════════════════════════════════════════════════════════════════
//
// SQLite by default, PostgreSQL when the path is a postgres:// URL.
// Rows are never updated; a duplicate write only duplicates history.
// Hours are UTC.
//
// ═══════════════════════════════════════════════════════════════════════════════

type Database struct {
	db  *gorm.DB
	now func() time.Time
}

// TradeRecord is one fill
type TradeRecord struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time       `gorm:"index"`
	Slot      string          `gorm:"index"`
	Symbol    string          `gorm:"index"`
	Side      string          // YES or NO
	Shares    decimal.Decimal `gorm:"type:decimal(20,6)"`
	Price     decimal.Decimal `gorm:"type:decimal(10,6)"`
	Cost      decimal.Decimal `gorm:"type:decimal(20,6)"`
	IsHedge   bool
	Kind      string // entry, hedge, add
	Reason    string
	OrderID   string
	Attempts  int
}

func (TradeRecord) TableName() string { return "trades" }

// SettlementRecord is one resolved position
type SettlementRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp   time.Time `gorm:"index"`
	Hour        int       `gorm:"index"`
	Slot        string    `gorm:"index"`
	Symbol      string    `gorm:"index"`
	Winner      string
	InitialSide string
	Win         bool
	YesShares   decimal.Decimal `gorm:"type:decimal(20,6)"`
	YesCost     decimal.Decimal `gorm:"type:decimal(20,6)"`
	NoShares    decimal.Decimal `gorm:"type:decimal(20,6)"`
	NoCost      decimal.Decimal `gorm:"type:decimal(20,6)"`
	Payout      decimal.Decimal `gorm:"type:decimal(20,6)"`
	PnL         decimal.Decimal `gorm:"type:decimal(20,6)"`
	HedgeCount  int
}

func (SettlementRecord) TableName() string { return "settlements" }

// New opens the database and migrates the schema
func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), cfg)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("💾 Database connected (PostgreSQL)")
	} else {
		if dir := filepath.Dir(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(dbPath), cfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("💾 Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&TradeRecord{}, &SettlementRecord{}); err != nil {
		return nil, err
	}

	return &Database{db: db, now: time.Now}, nil
}

// Close releases the connection pool
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ═══════════════════════════════════════════════════════════════════════════════
// WRITES
// ═══════════════════════════════════════════════════════════════════════════════

// SaveTrade appends a fill
func (d *Database) SaveTrade(slot, symbol string, t types.Trade) error {
	ts := t.Timestamp
	if ts.IsZero() {
		ts = d.now()
	}
	return d.db.Create(&TradeRecord{
		Timestamp: ts.UTC(),
		Slot:      slot,
		Symbol:    symbol,
		Side:      string(t.Side),
		Shares:    t.Shares,
		Price:     t.Price,
		Cost:      t.Cost,
		IsHedge:   t.IsHedge(),
		Kind:      string(t.Kind),
		Reason:    t.Reason,
		OrderID:   t.OrderID,
		Attempts:  t.Attempts,
	}).Error
}

// SaveSettlement appends a resolved position
func (d *Database) SaveSettlement(s types.Settlement) error {
	ts := s.Timestamp
	if ts.IsZero() {
		ts = d.now()
	}
	ts = ts.UTC()
	return d.db.Create(&SettlementRecord{
		Timestamp:   ts,
		Hour:        ts.Hour(),
		Slot:        s.Slot,
		Symbol:      s.Symbol,
		Winner:      string(s.Winner),
		InitialSide: string(s.InitialSide),
		Win:         s.Profitable(),
		YesShares:   s.YesShares,
		YesCost:     s.YesCost,
		NoShares:    s.NoShares,
		NoCost:      s.NoCost,
		Payout:      s.Payout,
		PnL:         s.PnL,
		HedgeCount:  s.HedgeCount,
	}).Error
}

// ═══════════════════════════════════════════════════════════════════════════════
// READS
// ═══════════════════════════════════════════════════════════════════════════════

// HourlyWinRate is the share of profitable settlements in a UTC hour
func (d *Database) HourlyWinRate(hour int) (float64, int, error) {
	var total, wins int64
	if err := d.db.Model(&SettlementRecord{}).Where("hour = ?", hour).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if total == 0 {
		return 0, 0, nil
	}
	if err := d.db.Model(&SettlementRecord{}).Where("hour = ? AND win = ?", hour, true).Count(&wins).Error; err != nil {
		return 0, 0, err
	}
	return float64(wins) / float64(total), int(total), nil
}

// SymbolStats aggregates settlements for one symbol
type SymbolStats struct {
	Symbol      string
	Settlements int
	Wins        int
	PnL         decimal.Decimal
}

// Stats aggregates the whole history
type Stats struct {
	TotalTrades      int64
	TotalSettlements int
	Wins             int
	WinRate          float64 // 0..1
	TotalPnL         decimal.Decimal
	TotalCost        decimal.Decimal
	ROI              float64 // pnl / cost
	BySymbol         []SymbolStats
	TodaySettlements int
	TodayPnL         decimal.Decimal
}

// Stats computes totals, win rate, ROI, per-symbol and today's figures
func (d *Database) Stats() (*Stats, error) {
	stats := &Stats{TotalPnL: decimal.Zero, TotalCost: decimal.Zero, TodayPnL: decimal.Zero}

	if err := d.db.Model(&TradeRecord{}).Count(&stats.TotalTrades).Error; err != nil {
		return nil, err
	}

	var costs []decimal.Decimal
	if err := d.db.Model(&TradeRecord{}).Pluck("cost", &costs).Error; err != nil {
		return nil, err
	}
	for _, c := range costs {
		stats.TotalCost = stats.TotalCost.Add(c)
	}

	var rows []SettlementRecord
	if err := d.db.Select("timestamp", "symbol", "win", "pnl").Find(&rows).Error; err != nil {
		return nil, err
	}

	today := d.now().UTC().Format("2006-01-02")
	bySymbol := make(map[string]*SymbolStats)
	for _, r := range rows {
		stats.TotalSettlements++
		stats.TotalPnL = stats.TotalPnL.Add(r.PnL)

		sym, ok := bySymbol[r.Symbol]
		if !ok {
			sym = &SymbolStats{Symbol: r.Symbol, PnL: decimal.Zero}
			bySymbol[r.Symbol] = sym
		}
		sym.Settlements++
		sym.PnL = sym.PnL.Add(r.PnL)
		if r.Win {
			stats.Wins++
			sym.Wins++
		}

		if r.Timestamp.UTC().Format("2006-01-02") == today {
			stats.TodaySettlements++
			stats.TodayPnL = stats.TodayPnL.Add(r.PnL)
		}
	}

	if stats.TotalSettlements > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.TotalSettlements)
	}
	if stats.TotalCost.IsPositive() {
		stats.ROI = stats.TotalPnL.Div(stats.TotalCost).InexactFloat64()
	}

	for _, s := range bySymbol {
		stats.BySymbol = append(stats.BySymbol, *s)
	}
	sort.Slice(stats.BySymbol, func(i, j int) bool {
		return stats.BySymbol[i].Symbol < stats.BySymbol[j].Symbol
	})

	return stats, nil
}

// HourStats is settlement performance for one UTC hour of day
type HourStats struct {
	Hour        int
	Settlements int
	Wins        int
	PnL         decimal.Decimal
	AvgPnL      decimal.Decimal
}

// WinRate of the hour, 0..1
func (h HourStats) WinRate() float64 {
	if h.Settlements == 0 {
		return 0
	}
	return float64(h.Wins) / float64(h.Settlements)
}

// PerformanceByHour groups settlements by hour of day, ascending
func (d *Database) PerformanceByHour() ([]HourStats, error) {
	var rows []SettlementRecord
	if err := d.db.Select("hour", "win", "pnl").Find(&rows).Error; err != nil {
		return nil, err
	}

	byHour := make(map[int]*HourStats)
	for _, r := range rows {
		h, ok := byHour[r.Hour]
		if !ok {
			h = &HourStats{Hour: r.Hour, PnL: decimal.Zero}
			byHour[r.Hour] = h
		}
		h.Settlements++
		h.PnL = h.PnL.Add(r.PnL)
		if r.Win {
			h.Wins++
		}
	}

	out := make([]HourStats, 0, len(byHour))
	for _, h := range byHour {
		h.AvgPnL = h.PnL.Div(decimal.NewFromInt(int64(h.Settlements)))
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out, nil
}

// RecentTrades returns the newest fills first
func (d *Database) RecentTrades(limit int) ([]types.TradeRecord, error) {
	var rows []TradeRecord
	if err := d.db.Order("timestamp DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]types.TradeRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.TradeRecord{
			Slot:      r.Slot,
			Symbol:    r.Symbol,
			Side:      r.Side,
			Kind:      r.Kind,
			Price:     r.Price,
			Shares:    r.Shares,
			Cost:      r.Cost,
			Reason:    r.Reason,
			Timestamp: r.Timestamp,
		})
	}
	return out, nil
}

// RecentSettlements returns the newest settlements first
func (d *Database) RecentSettlements(limit int) ([]SettlementRecord, error) {
	var rows []SettlementRecord
	err := d.db.Order("timestamp DESC, id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
