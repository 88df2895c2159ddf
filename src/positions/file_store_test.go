package positions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/telegram-trading/src/models"
)

func TestFileStore(t *testing.T) {
	store := NewFileStore(t.TempDir() + "/position.json")

	t.Run("load on an empty store returns nil without error", func(t *testing.T) {
		position, err := store.Load()
		require.NoError(t, err)
		assert.Nil(t, position)
	})

	t.Run("save then load round-trips and stamps SavedAt", func(t *testing.T) {
		saved := &models.StoredPosition{
			Symbol:      "7203",
			EntryPrice:  2500,
			Quantity:    100,
			StopPrice:   2400,
			TargetPrice: 2700,
			EntryDate:   "2024-06-03",
			ATRAtEntry:  35.5,
		}
		require.NoError(t, store.Save(saved))

		loaded, err := store.Load()
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, saved.Symbol, loaded.Symbol)
		assert.Equal(t, saved.Quantity, loaded.Quantity)
		assert.Equal(t, saved.ATRAtEntry, loaded.ATRAtEntry)
		assert.False(t, loaded.SavedAt.IsZero())
	})

	t.Run("save overwrites the previous record", func(t *testing.T) {
		require.NoError(t, store.Save(&models.StoredPosition{Symbol: "9984", Quantity: 200}))

		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, models.Symbol("9984"), loaded.Symbol)
	})

	t.Run("clear removes the record and is idempotent", func(t *testing.T) {
		require.NoError(t, store.Clear())
		require.NoError(t, store.Clear())

		position, err := store.Load()
		require.NoError(t, err)
		assert.Nil(t, position)
	})
}
