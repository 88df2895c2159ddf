package models

// DailyPnLStore persists the day-scoped P&L aggregate across restarts.
// LoadDay returns (nil, nil) when no aggregate exists for the date.
type DailyPnLStore interface {
	LoadDay(date string) (*DailyPnL, error)
	SaveDay(day *DailyPnL) error
}
