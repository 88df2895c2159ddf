package tradelog

import (
	"bytes"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportRow(t *testing.T) {
	executedAt := time.Date(2024, 6, 3, 9, 31, 0, 0, time.UTC)

	entry := TradeEntry{
		Date:       "2024-06-03",
		Symbol:     "7203",
		Side:       "sell",
		Quantity:   100,
		Price:      2510,
		PnL:        -12_000,
		ExecutedAt: executedAt,
	}

	row := newExportRow(entry)

	assert.Equal(t, "2024-06-03", row.Date)
	assert.Equal(t, "2024-06-03T09:31:00Z", row.ExecutedAt)
	assert.Equal(t, -12_000.0, row.PnL)

	var buf bytes.Buffer
	rows := []ExportRow{row}
	require.NoError(t, gocsv.Marshal(&rows, &buf))

	assert.Contains(t, buf.String(), "date,symbol,side,quantity,price,pnl,executed_at")
	assert.Contains(t, buf.String(), "2024-06-03,7203,sell,100,2510,-12000")
}
