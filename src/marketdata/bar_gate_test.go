package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jiaming2012/telegram-trading/src/models"
)

func TestShouldRun(t *testing.T) {
	symbol := models.Symbol("7203")
	ts := time.Date(2024, 6, 3, 9, 1, 0, 0, time.UTC)

	t.Run("runs for an unseen symbol", func(t *testing.T) {
		gate := NewSymbolBarGate()

		assert.True(t, gate.ShouldRun(symbol, ts))
	})

	t.Run("never runs for a zero timestamp", func(t *testing.T) {
		gate := NewSymbolBarGate()

		assert.False(t, gate.ShouldRun(symbol, time.Time{}))
	})

	t.Run("equal timestamp is idempotent after mark", func(t *testing.T) {
		gate := NewSymbolBarGate()

		gate.MarkProcessed(symbol, ts)

		assert.False(t, gate.ShouldRun(symbol, ts))
		assert.True(t, gate.ShouldRun(symbol, ts.Add(time.Minute)))
	})

	t.Run("earlier timestamp never runs", func(t *testing.T) {
		gate := NewSymbolBarGate()

		gate.MarkProcessed(symbol, ts)

		assert.False(t, gate.ShouldRun(symbol, ts.Add(-time.Minute)))
	})

	t.Run("watermark never moves backwards", func(t *testing.T) {
		gate := NewSymbolBarGate()

		gate.MarkProcessed(symbol, ts)
		gate.MarkProcessed(symbol, ts.Add(-time.Minute))

		assert.Equal(t, ts, gate.LastProcessed(symbol))
	})

	t.Run("watermarks are per symbol", func(t *testing.T) {
		gate := NewSymbolBarGate()

		gate.MarkProcessed(symbol, ts)

		assert.True(t, gate.ShouldRun(models.Symbol("9984"), ts))
	})
}
