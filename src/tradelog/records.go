package tradelog

import (
	"time"

	"gorm.io/gorm"
)

// DailyPnLRecord is the persisted day-scoped aggregate. One row per trading
// day, upserted on every recorded trade.
type DailyPnLRecord struct {
	gorm.Model
	Date              string  `gorm:"column:date;type:text;not null;uniqueIndex:idx_daily_pnl_date"`
	StartingCapital   float64 `gorm:"column:starting_capital;type:numeric;not null"`
	RealizedPnL       float64 `gorm:"column:realized_pnl;type:numeric;not null"`
	TradeCount        int     `gorm:"column:trade_count;not null"`
	ConsecutiveLosses int     `gorm:"column:consecutive_losses;not null"`
	LimitReached      bool    `gorm:"column:limit_reached;not null"`
}

// TradeEntry is one realized trade, kept for the operator's audit trail.
type TradeEntry struct {
	gorm.Model
	Date       string    `gorm:"column:date;type:text;not null;index:idx_trade_entry_date"`
	Symbol     string    `gorm:"column:symbol;type:text;not null"`
	Side       string    `gorm:"column:side;type:text;not null"`
	Quantity   float64   `gorm:"column:quantity;type:numeric;not null"`
	Price      float64   `gorm:"column:price;type:numeric;not null"`
	PnL        float64   `gorm:"column:pnl;type:numeric;not null"`
	ExecutedAt time.Time `gorm:"column:executed_at;type:timestamp;not null"`
}

// ExportRow is the CSV projection of a TradeEntry.
type ExportRow struct {
	Date       string  `csv:"date"`
	Symbol     string  `csv:"symbol"`
	Side       string  `csv:"side"`
	Quantity   float64 `csv:"quantity"`
	Price      float64 `csv:"price"`
	PnL        float64 `csv:"pnl"`
	ExecutedAt string  `csv:"executed_at"`
}

func newExportRow(entry TradeEntry) ExportRow {
	return ExportRow{
		Date:       entry.Date,
		Symbol:     entry.Symbol,
		Side:       entry.Side,
		Quantity:   entry.Quantity,
		Price:      entry.Price,
		PnL:        entry.PnL,
		ExecutedAt: entry.ExecutedAt.Format(time.RFC3339),
	}
}
