package marketdata

import (
	"time"

	"github.com/jiaming2012/telegram-trading/src/models"
)

// BarAggregator folds a chronologically arriving tick stream into closed
// one-minute bars, one open bucket per symbol. A bucket is finalized only
// when a tick belonging to a later minute arrives, so the minute currently
// accumulating is never emitted.
type BarAggregator struct {
	open map[models.Symbol]*models.CompletedBar
}

func NewBarAggregator() *BarAggregator {
	return &BarAggregator{
		open: make(map[models.Symbol]*models.CompletedBar),
	}
}

// AddTick returns the finalized bar for the previous minute, or nil while the
// current minute is still accumulating. Ticks whose minute is not strictly
// later than the open bucket's minute are folded into the open bucket, which
// tolerates duplicate delivery without reordering anything.
func (a *BarAggregator) AddTick(tick models.MarketTick) *models.CompletedBar {
	minute := tick.Timestamp.Truncate(time.Minute)

	bucket, ok := a.open[tick.Symbol]
	if !ok {
		a.open[tick.Symbol] = models.NewBar(tick.Symbol, minute, tick.Price, tick.Volume)
		return nil
	}

	if minute.After(bucket.Start) {
		a.open[tick.Symbol] = models.NewBar(tick.Symbol, minute, tick.Price, tick.Volume)
		return bucket
	}

	bucket.Update(tick.Price, tick.Volume)
	return nil
}

// OpenBucket exposes the accumulating bar for a symbol, nil when no tick has
// been seen yet. Callers must not retain the pointer across AddTick calls.
func (a *BarAggregator) OpenBucket(symbol models.Symbol) *models.CompletedBar {
	return a.open[symbol]
}
