package tradelog

import (
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	applogger "github.com/jiaming2012/telegram-trading/src/logger"
	"github.com/jiaming2012/telegram-trading/src/models"
)

// Store keeps the daily P&L aggregate and the trade audit trail in postgres.
type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: applogger.NewGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("tradelog.Open: failed to connect: %w", err)
	}

	if err := db.AutoMigrate(&DailyPnLRecord{}, &TradeEntry{}); err != nil {
		return nil, fmt.Errorf("tradelog.Open: failed to migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) LoadDay(date string) (*models.DailyPnL, error) {
	var record DailyPnLRecord

	if err := s.db.Where("date = ?", date).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("tradelog.LoadDay: %w", err)
	}

	return &models.DailyPnL{
		Date:              record.Date,
		StartingCapital:   record.StartingCapital,
		RealizedPnL:       record.RealizedPnL,
		TradeCount:        record.TradeCount,
		ConsecutiveLosses: record.ConsecutiveLosses,
		LimitReached:      record.LimitReached,
	}, nil
}

func (s *Store) SaveDay(day *models.DailyPnL) error {
	record := DailyPnLRecord{Date: day.Date}

	// map form so zero values (a reset pnl, a cleared flag) still overwrite
	err := s.db.Where("date = ?", day.Date).
		Assign(map[string]interface{}{
			"date":               day.Date,
			"starting_capital":   day.StartingCapital,
			"realized_pnl":       day.RealizedPnL,
			"trade_count":        day.TradeCount,
			"consecutive_losses": day.ConsecutiveLosses,
			"limit_reached":      day.LimitReached,
		}).
		FirstOrCreate(&record).Error
	if err != nil {
		return fmt.Errorf("tradelog.SaveDay: %w", err)
	}

	return nil
}

func (s *Store) AppendTrade(entry *TradeEntry) error {
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("tradelog.AppendTrade: %w", err)
	}

	return nil
}

func (s *Store) FetchTrades(fromDate string, toDate string) ([]TradeEntry, error) {
	var entries []TradeEntry

	err := s.db.Where("date >= ? AND date <= ?", fromDate, toDate).
		Order("executed_at asc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("tradelog.FetchTrades: %w", err)
	}

	return entries, nil
}

// ExportCSV writes the trades within the date range as CSV.
func (s *Store) ExportCSV(fromDate string, toDate string, out io.Writer) error {
	entries, err := s.FetchTrades(fromDate, toDate)
	if err != nil {
		return fmt.Errorf("tradelog.ExportCSV: %w", err)
	}

	rows := make([]ExportRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, newExportRow(entry))
	}

	if err := gocsv.Marshal(&rows, out); err != nil {
		return fmt.Errorf("tradelog.ExportCSV: failed to marshal csv: %w", err)
	}

	return nil
}
