package sessions

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/telegram-trading/src/models"
)

func jst(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return loc
}

func TestCurrentPhase(t *testing.T) {
	loc := jst(t)
	clock, err := NewTSEClock(NewCalendar([]string{"2024-06-05"}))
	require.NoError(t, err)

	// 2024-06-03 is a Monday
	cases := []struct {
		name string
		at   time.Time
		want models.SessionPhase
	}{
		{"early morning", time.Date(2024, 6, 3, 7, 0, 0, 0, loc), models.SessionPhaseOff},
		{"preopen warmup", time.Date(2024, 6, 3, 8, 50, 0, 0, loc), models.SessionPhasePreopenWarmup},
		{"morning open", time.Date(2024, 6, 3, 9, 0, 0, 0, loc), models.SessionPhaseInSession},
		{"mid morning", time.Date(2024, 6, 3, 10, 15, 0, 0, loc), models.SessionPhaseInSession},
		{"lunch break", time.Date(2024, 6, 3, 11, 45, 0, 0, loc), models.SessionPhaseOff},
		{"afternoon open", time.Date(2024, 6, 3, 12, 30, 0, 0, loc), models.SessionPhaseInSession},
		{"auction guard", time.Date(2024, 6, 3, 14, 57, 0, 0, loc), models.SessionPhaseAuctionGuard},
		{"post close", time.Date(2024, 6, 3, 15, 10, 0, 0, loc), models.SessionPhasePostClose},
		{"evening", time.Date(2024, 6, 3, 16, 0, 0, 0, loc), models.SessionPhaseOff},
		{"saturday", time.Date(2024, 6, 8, 10, 0, 0, 0, loc), models.SessionPhaseOff},
		{"holiday", time.Date(2024, 6, 5, 10, 0, 0, 0, loc), models.SessionPhaseOff},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			phase, _ := clock.CurrentPhase(tc.at)
			assert.Equal(t, tc.want, phase)
		})
	}

	t.Run("utc input converts to exchange time", func(t *testing.T) {
		// 00:30 UTC is 09:30 JST
		phase, reason := clock.CurrentPhase(time.Date(2024, 6, 3, 0, 30, 0, 0, time.UTC))
		assert.Equal(t, models.SessionPhaseInSession, phase)
		assert.Equal(t, "morning session", reason)
	})
}

func TestCalendar(t *testing.T) {
	loc := jst(t)

	t.Run("holidays load from yaml", func(t *testing.T) {
		path := t.TempDir() + "/calendar.yaml"
		require.NoError(t, os.WriteFile(path, []byte("holidays:\n  - 2024-01-01\n  - 2024-01-08\n"), 0644))

		calendar, err := LoadCalendar(path)
		require.NoError(t, err)

		assert.True(t, calendar.IsHoliday(time.Date(2024, 1, 1, 10, 0, 0, 0, loc)))
		assert.False(t, calendar.IsHoliday(time.Date(2024, 1, 2, 10, 0, 0, 0, loc)))
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadCalendar("does-not-exist.yaml")
		assert.Error(t, err)
	})
}
