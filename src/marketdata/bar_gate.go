package marketdata

import (
	"time"

	"github.com/jiaming2012/telegram-trading/src/models"
)

// SymbolBarGate guarantees at most one strategy evaluation per symbol per
// completed bar. It keeps only a per-symbol high-water mark, not a history.
type SymbolBarGate struct {
	watermarks map[models.Symbol]time.Time
}

func NewSymbolBarGate() *SymbolBarGate {
	return &SymbolBarGate{
		watermarks: make(map[models.Symbol]time.Time),
	}
}

// ShouldRun reports whether barTimestamp is strictly past the symbol's
// watermark. A zero timestamp never runs.
func (g *SymbolBarGate) ShouldRun(symbol models.Symbol, barTimestamp time.Time) bool {
	if barTimestamp.IsZero() {
		return false
	}

	last, ok := g.watermarks[symbol]
	if !ok {
		return true
	}

	return barTimestamp.After(last)
}

// MarkProcessed records the high-water mark. Marks that would move the
// watermark backwards are ignored.
func (g *SymbolBarGate) MarkProcessed(symbol models.Symbol, barTimestamp time.Time) {
	if last, ok := g.watermarks[symbol]; ok && !barTimestamp.After(last) {
		return
	}

	g.watermarks[symbol] = barTimestamp
}

// LastProcessed returns the symbol's watermark, zero when nothing has been
// processed yet.
func (g *SymbolBarGate) LastProcessed(symbol models.Symbol) time.Time {
	return g.watermarks[symbol]
}
