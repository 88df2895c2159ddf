package trader

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/telegram-trading/src/marketdata"
	"github.com/jiaming2012/telegram-trading/src/models"
	"github.com/jiaming2012/telegram-trading/src/stream"
)

type scriptedConn struct {
	frames [][]byte
	idx    int
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	if c.idx < len(c.frames) {
		frame := c.frames[c.idx]
		c.idx++
		return 1, frame, nil
	}

	return 0, nil, fmt.Errorf("scriptedConn: out of frames")
}

func (c *scriptedConn) WriteJSON(v interface{}) error     { return nil }
func (c *scriptedConn) SetReadDeadline(t time.Time) error { return nil }
func (c *scriptedConn) Close() error                      { return nil }

// terminatedClientWith runs a client over a scripted transport until it dies,
// leaving the given frames' ticks buffered on its channel.
func terminatedClientWith(t *testing.T, frames [][]byte) *stream.Client {
	t.Helper()

	dials := 0
	dial := func(url string, token string) (stream.Conn, error) {
		dials++
		if dials > 1 {
			return nil, fmt.Errorf("connection refused")
		}
		return &scriptedConn{frames: frames}, nil
	}

	client := stream.NewClient(stream.Config{
		Symbols:              []models.Symbol{"7203"},
		MaxReconnectAttempts: 0,
		ReconnectBaseDelay:   time.Millisecond,
		OnFailure:            stream.FailurePolicyFallbackToRest,
	}, dial, nil)

	result := client.Run()
	require.False(t, result.Success)
	require.Equal(t, stream.StateTerminated, client.State())

	return client
}

func TestApplyStreamPolicyDrainsBeforeStop(t *testing.T) {
	client := terminatedClientWith(t, [][]byte{
		[]byte(`{"Symbol":"7203","CurrentPrice":2540.5,"CurrentPriceTime":"2024-06-03T09:00:12Z","TradingVolume":1200}`),
		[]byte(`{"Symbol":"7203","CurrentPrice":2542,"CurrentPriceTime":"2024-06-03T09:01:02Z","TradingVolume":300}`),
	})
	require.Len(t, client.Ticks(), 2)

	app := &App{
		aggregator:   marketdata.NewBarAggregator(),
		gate:         marketdata.NewSymbolBarGate(),
		streamClient: client,
		streamResult: make(chan stream.Result, 1),
	}

	var bars []*models.CompletedBar
	app.OnBar = func(bar *models.CompletedBar, policy models.RuntimePolicy) {
		bars = append(bars, bar)
	}

	// the policy no longer wants the stream; ticks buffered before the flip
	// must still become bars before the client is torn down
	app.applyStreamPolicy(models.RuntimePolicy{
		RunStrategy: true,
		FeedMode:    models.FeedModeRest,
	})

	require.Len(t, bars, 1)
	barStart := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, models.Symbol("7203"), bars[0].Symbol)
	assert.Equal(t, barStart, bars[0].Start.UTC())
	assert.Equal(t, 2540.5, bars[0].Close)
	assert.Equal(t, 1200.0, bars[0].Volume)

	// the completed bar is marked processed and the client is gone
	assert.False(t, app.gate.ShouldRun("7203", barStart))

	app.mu.RLock()
	assert.Nil(t, app.streamClient)
	app.mu.RUnlock()
}
