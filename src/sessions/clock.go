package sessions

import (
	"fmt"
	"time"

	"github.com/jiaming2012/telegram-trading/src/models"
)

// Clock derives the market session phase from wall-clock time. It is a pure
// function of time, weekday and the holiday calendar.
type Clock interface {
	CurrentPhase(now time.Time) (models.SessionPhase, string)
}

// TSEClock models the Tokyo Stock Exchange day: preopen warmup before the
// 09:00 open, a lunch break between sessions, a guard window around the
// closing auction and a postclose tail.
type TSEClock struct {
	location *time.Location
	calendar *Calendar
}

func NewTSEClock(calendar *Calendar) (*TSEClock, error) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return nil, fmt.Errorf("NewTSEClock: failed to load location Asia/Tokyo: %w", err)
	}

	return &TSEClock{
		location: loc,
		calendar: calendar,
	}, nil
}

func (c *TSEClock) CurrentPhase(now time.Time) (models.SessionPhase, string) {
	local := now.In(c.location)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return models.SessionPhaseOff, "weekend"
	}

	if c.calendar != nil && c.calendar.IsHoliday(local) {
		return models.SessionPhaseOff, "exchange holiday"
	}

	minutes := local.Hour()*60 + local.Minute()

	within := func(fromH, fromM, toH, toM int) bool {
		return minutes >= fromH*60+fromM && minutes < toH*60+toM
	}

	switch {
	case within(8, 45, 9, 0):
		return models.SessionPhasePreopenWarmup, "preopen warmup"
	case within(9, 0, 11, 30):
		return models.SessionPhaseInSession, "morning session"
	case within(11, 30, 12, 30):
		return models.SessionPhaseOff, "lunch break"
	case within(12, 30, 14, 55):
		return models.SessionPhaseInSession, "afternoon session"
	case within(14, 55, 15, 0):
		return models.SessionPhaseAuctionGuard, "closing auction guard"
	case within(15, 0, 15, 30):
		return models.SessionPhasePostClose, "post close"
	default:
		return models.SessionPhaseOff, "outside trading hours"
	}
}
