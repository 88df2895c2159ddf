package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/telegram-trading/src/models"
)

type fakeBroker struct {
	holdings []models.BrokerHolding
	err      error
	calls    int
}

func (b *fakeBroker) GetHoldings() ([]models.BrokerHolding, error) {
	b.calls++
	return b.holdings, b.err
}

type memStore struct {
	position *models.StoredPosition
	saves    int
	clears   int
}

func (s *memStore) Load() (*models.StoredPosition, error) {
	if s.position == nil {
		return nil, nil
	}
	copied := *s.position
	return &copied, nil
}

func (s *memStore) Save(position *models.StoredPosition) error {
	copied := *position
	s.position = &copied
	s.saves++
	return nil
}

func (s *memStore) Clear() error {
	s.position = nil
	s.clears++
	return nil
}

type fakeNotifier struct {
	kinds []models.NotificationKind
}

func (n *fakeNotifier) Notify(kind models.NotificationKind, payload string) {
	n.kinds = append(n.kinds, kind)
}

var testNow = func() time.Time {
	return time.Date(2024, 6, 3, 8, 30, 0, 0, time.UTC)
}

func TestDryRunMode(t *testing.T) {
	t.Run("never queries the broker", func(t *testing.T) {
		broker := &fakeBroker{holdings: []models.BrokerHolding{{Symbol: "7203", Quantity: 100}}}
		store := &memStore{}
		r := NewReconciler(models.TradeModeDryRun, "7203", broker, store, nil, testNow)

		result, err := r.SynchronizeOnStartup()
		require.NoError(t, err)

		assert.Equal(t, models.ReconciliationNoPosition, result.Outcome)
		assert.Equal(t, 0, broker.calls)
	})

	t.Run("trusts the local store as-is", func(t *testing.T) {
		broker := &fakeBroker{}
		store := &memStore{position: &models.StoredPosition{Symbol: "7203", Quantity: 100, StopPrice: 2400}}
		r := NewReconciler(models.TradeModeDryRun, "7203", broker, store, nil, testNow)

		result, err := r.SynchronizeOnStartup()
		require.NoError(t, err)

		assert.Equal(t, models.ReconciliationSynced, result.Outcome)
		require.NotNil(t, result.Position)
		assert.Equal(t, 2400.0, result.Position.StopPrice)
		assert.Equal(t, 0, broker.calls)
	})

	t.Run("force sync bypasses the dry-run skip", func(t *testing.T) {
		broker := &fakeBroker{holdings: []models.BrokerHolding{{Symbol: "7203", Quantity: 100, AveragePrice: 2500}}}
		store := &memStore{}
		r := NewReconciler(models.TradeModeDryRun, "7203", broker, store, nil, testNow)

		result, err := r.ForceSyncFromApi()
		require.NoError(t, err)

		assert.Equal(t, models.ReconciliationRecoveredFromApi, result.Outcome)
		assert.Equal(t, 1, broker.calls)
	})
}

func TestPaperMode(t *testing.T) {
	t.Run("always queries and overwrites the local cache", func(t *testing.T) {
		broker := &fakeBroker{holdings: []models.BrokerHolding{{Symbol: "7203", Quantity: 300, AveragePrice: 2500}}}
		store := &memStore{position: &models.StoredPosition{Symbol: "7203", Quantity: 100, EntryPrice: 2450}}
		r := NewReconciler(models.TradeModePaper, "7203", broker, store, nil, testNow)

		result, err := r.SynchronizeOnStartup()
		require.NoError(t, err)

		assert.Equal(t, models.ReconciliationSynced, result.Outcome)
		assert.Equal(t, 1, broker.calls)
		require.NotNil(t, store.position)
		assert.Equal(t, 300.0, store.position.Quantity)
		assert.Equal(t, 2500.0, store.position.EntryPrice)
	})

	t.Run("empty paper ledger clears the cache", func(t *testing.T) {
		broker := &fakeBroker{}
		store := &memStore{position: &models.StoredPosition{Symbol: "7203", Quantity: 100}}
		r := NewReconciler(models.TradeModePaper, "7203", broker, store, nil, testNow)

		result, err := r.SynchronizeOnStartup()
		require.NoError(t, err)

		assert.Equal(t, models.ReconciliationNoPosition, result.Outcome)
		assert.Equal(t, 1, store.clears)
		assert.Nil(t, store.position)
	})
}

func TestRealMode(t *testing.T) {
	t.Run("no local record adopts the broker holding", func(t *testing.T) {
		broker := &fakeBroker{holdings: []models.BrokerHolding{{Symbol: "7203", Quantity: 100, AveragePrice: 2500}}}
		store := &memStore{}
		notifier := &fakeNotifier{}
		r := NewReconciler(models.TradeModeReal, "7203", broker, store, notifier, testNow)

		result, err := r.SynchronizeOnStartup()
		require.NoError(t, err)

		assert.Equal(t, models.ReconciliationRecoveredFromApi, result.Outcome)
		require.NotNil(t, result.Position)
		assert.Equal(t, 100.0, result.Position.Quantity)
		assert.Equal(t, 2500.0, result.Position.EntryPrice)
		assert.Equal(t, "2024-06-03", result.Position.EntryDate)
		require.Len(t, notifier.kinds, 1)
		assert.Equal(t, models.NotificationReconciliation, notifier.kinds[0])
	})

	t.Run("stale local record is discarded when broker shows nothing", func(t *testing.T) {
		broker := &fakeBroker{}
		store := &memStore{position: &models.StoredPosition{Symbol: "7203", Quantity: 100}}
		r := NewReconciler(models.TradeModeReal, "7203", broker, store, &fakeNotifier{}, testNow)

		result, err := r.SynchronizeOnStartup()
		require.NoError(t, err)

		assert.Equal(t, models.ReconciliationRecoveredCleared, result.Outcome)
		assert.Nil(t, result.Position)
		assert.Nil(t, store.position)
	})

	t.Run("symbol mismatch adopts the broker holding under its own symbol", func(t *testing.T) {
		broker := &fakeBroker{holdings: []models.BrokerHolding{{Symbol: "9984", Quantity: 200, AveragePrice: 7100}}}
		store := &memStore{position: &models.StoredPosition{Symbol: "7203", Quantity: 100}}
		r := NewReconciler(models.TradeModeReal, "7203", broker, store, &fakeNotifier{}, testNow)

		result, err := r.SynchronizeOnStartup()
		require.NoError(t, err)

		assert.Equal(t, models.ReconciliationRecoveredReplaced, result.Outcome)
		require.NotNil(t, result.Position)
		assert.Equal(t, models.Symbol("9984"), result.Position.Symbol)
		assert.Equal(t, 200.0, result.Position.Quantity)
	})

	t.Run("duplicate broker rows aggregate by quantity", func(t *testing.T) {
		broker := &fakeBroker{holdings: []models.BrokerHolding{
			{Symbol: "7203", Quantity: 1, AveragePrice: 2500},
			{Symbol: "7203", Quantity: 2, AveragePrice: 2510},
		}}
		store := &memStore{position: &models.StoredPosition{Symbol: "7203", Quantity: 100, EntryPrice: 2450, StopPrice: 2400}}
		r := NewReconciler(models.TradeModeReal, "7203", broker, store, &fakeNotifier{}, testNow)

		result, err := r.SynchronizeOnStartup()
		require.NoError(t, err)

		assert.Equal(t, models.ReconciliationQuantityAdjusted, result.Outcome)
		require.NotNil(t, result.Position)
		assert.Equal(t, 3.0, result.Position.Quantity)
		// entry price and stops are kept from the local record
		assert.Equal(t, 2450.0, result.Position.EntryPrice)
		assert.Equal(t, 2400.0, result.Position.StopPrice)
	})

	t.Run("agreement yields synced with the local record intact", func(t *testing.T) {
		broker := &fakeBroker{holdings: []models.BrokerHolding{{Symbol: "7203", Quantity: 100, AveragePrice: 2500}}}
		store := &memStore{position: &models.StoredPosition{Symbol: "7203", Quantity: 100, EntryPrice: 2450}}
		r := NewReconciler(models.TradeModeReal, "7203", broker, store, &fakeNotifier{}, testNow)

		result, err := r.SynchronizeOnStartup()
		require.NoError(t, err)

		assert.Equal(t, models.ReconciliationSynced, result.Outcome)
		assert.Equal(t, 0, store.saves)
	})

	t.Run("zero-quantity broker rows are ignored", func(t *testing.T) {
		broker := &fakeBroker{holdings: []models.BrokerHolding{{Symbol: "7203", Quantity: 0}}}
		store := &memStore{position: &models.StoredPosition{Symbol: "7203", Quantity: 100}}
		r := NewReconciler(models.TradeModeReal, "7203", broker, store, &fakeNotifier{}, testNow)

		result, err := r.SynchronizeOnStartup()
		require.NoError(t, err)

		assert.Equal(t, models.ReconciliationRecoveredCleared, result.Outcome)
	})

	t.Run("broker failure propagates as a real error", func(t *testing.T) {
		broker := &fakeBroker{err: fmt.Errorf("503 service unavailable")}
		store := &memStore{}
		r := NewReconciler(models.TradeModeReal, "7203", broker, store, &fakeNotifier{}, testNow)

		_, err := r.SynchronizeOnStartup()
		assert.Error(t, err)
	})
}
