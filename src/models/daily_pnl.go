package models

// DailyPnL is the day-scoped realized P&L aggregate owned by the risk
// manager. Date is formatted as 2006-01-02 in exchange-local time.
type DailyPnL struct {
	Date              string
	StartingCapital   float64
	RealizedPnL       float64
	TradeCount        int
	ConsecutiveLosses int
	LimitReached      bool
}

// LossPercent returns the day's loss as a positive percentage of starting
// capital, or zero while the day is flat or profitable.
func (d *DailyPnL) LossPercent() float64 {
	if d.StartingCapital <= 0 || d.RealizedPnL >= 0 {
		return 0
	}
	return -d.RealizedPnL / d.StartingCapital * 100.0
}
