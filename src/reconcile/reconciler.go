package reconcile

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/telegram-trading/src/models"
)

// Reconciler resolves the authoritative position state at process start, or
// on explicit operator command, with a different trust policy per trade mode.
type Reconciler struct {
	mode         models.TradeMode
	targetSymbol models.Symbol
	broker       models.HoldingsFetcher
	store        models.PositionStore
	notifier     models.Notifier
	now          func() time.Time
}

func NewReconciler(mode models.TradeMode, targetSymbol models.Symbol, broker models.HoldingsFetcher, store models.PositionStore, notifier models.Notifier, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}

	return &Reconciler{
		mode:         mode,
		targetSymbol: targetSymbol,
		broker:       broker,
		store:        store,
		notifier:     notifier,
		now:          now,
	}
}

// SynchronizeOnStartup establishes truthful position state before any
// trading permission is issued.
func (r *Reconciler) SynchronizeOnStartup() (models.ReconciliationResult, error) {
	switch r.mode {
	case models.TradeModeDryRun:
		// no real capital at risk, a live query is not worth its cost
		return r.trustLocal()
	case models.TradeModePaper:
		// the paper ledger is cheap to query; correctness over efficiency
		return r.overwriteFromBroker()
	case models.TradeModeReal:
		return r.reconcileAgainstBroker()
	default:
		return models.ReconciliationResult{}, fmt.Errorf("SynchronizeOnStartup: unsupported trade mode: %s", r.mode)
	}
}

// ForceSyncFromApi runs the broker-is-ground-truth reconciliation
// unconditionally, bypassing the dry-run skip.
func (r *Reconciler) ForceSyncFromApi() (models.ReconciliationResult, error) {
	return r.reconcileAgainstBroker()
}

func (r *Reconciler) trustLocal() (models.ReconciliationResult, error) {
	local, err := r.store.Load()
	if err != nil {
		return models.ReconciliationResult{}, fmt.Errorf("trustLocal: failed to load position: %w", err)
	}

	if local == nil {
		return r.finish(models.ReconciliationResult{
			Success: true,
			Outcome: models.ReconciliationNoPosition,
		})
	}

	return r.finish(models.ReconciliationResult{
		Success:  true,
		Outcome:  models.ReconciliationSynced,
		Position: local,
	})
}

func (r *Reconciler) overwriteFromBroker() (models.ReconciliationResult, error) {
	holdings, err := r.fetchAggregated()
	if err != nil {
		return models.ReconciliationResult{}, err
	}

	if len(holdings) == 0 {
		if err := r.store.Clear(); err != nil {
			return models.ReconciliationResult{}, fmt.Errorf("overwriteFromBroker: failed to clear position: %w", err)
		}

		return r.finish(models.ReconciliationResult{
			Success: true,
			Outcome: models.ReconciliationNoPosition,
		})
	}

	position := r.adopt(r.pickHolding(holdings, nil))
	if err := r.store.Save(position); err != nil {
		return models.ReconciliationResult{}, fmt.Errorf("overwriteFromBroker: failed to save position: %w", err)
	}

	return r.finish(models.ReconciliationResult{
		Success:    true,
		Outcome:    models.ReconciliationSynced,
		Position:   position,
		Recoveries: []string{fmt.Sprintf("paper ledger sync: %s x %.0f", position.Symbol, position.Quantity)},
	})
}

// reconcileAgainstBroker applies the real-money decision table. The broker is
// always ground truth; the local cache is a performance optimization.
func (r *Reconciler) reconcileAgainstBroker() (models.ReconciliationResult, error) {
	local, err := r.store.Load()
	if err != nil {
		return models.ReconciliationResult{}, fmt.Errorf("reconcileAgainstBroker: failed to load position: %w", err)
	}

	holdings, err := r.fetchAggregated()
	if err != nil {
		return models.ReconciliationResult{}, err
	}

	if local == nil {
		if len(holdings) == 0 {
			return r.finish(models.ReconciliationResult{
				Success: true,
				Outcome: models.ReconciliationNoPosition,
			})
		}

		// broker shows a holding we know nothing about: adopt it
		position := r.adopt(r.pickHolding(holdings, nil))
		if err := r.store.Save(position); err != nil {
			return models.ReconciliationResult{}, fmt.Errorf("reconcileAgainstBroker: failed to save position: %w", err)
		}

		return r.finish(models.ReconciliationResult{
			Success:    true,
			Outcome:    models.ReconciliationRecoveredFromApi,
			Position:   position,
			Recoveries: []string{fmt.Sprintf("adopted broker holding %s x %.0f @ %.1f", position.Symbol, position.Quantity, position.EntryPrice)},
		})
	}

	if len(holdings) == 0 {
		// stale local state: the broker holds nothing for us
		if err := r.store.Clear(); err != nil {
			return models.ReconciliationResult{}, fmt.Errorf("reconcileAgainstBroker: failed to clear position: %w", err)
		}

		return r.finish(models.ReconciliationResult{
			Success:    true,
			Outcome:    models.ReconciliationRecoveredCleared,
			Recoveries: []string{fmt.Sprintf("discarded stale local position %s x %.0f", local.Symbol, local.Quantity)},
		})
	}

	holding := r.pickHolding(holdings, local)

	if holding.Symbol != local.Symbol {
		position := r.adopt(holding)
		if err := r.store.Save(position); err != nil {
			return models.ReconciliationResult{}, fmt.Errorf("reconcileAgainstBroker: failed to save position: %w", err)
		}

		return r.finish(models.ReconciliationResult{
			Success:  true,
			Outcome:  models.ReconciliationRecoveredReplaced,
			Position: position,
			Recoveries: []string{fmt.Sprintf("replaced local %s with broker holding %s x %.0f",
				local.Symbol, position.Symbol, position.Quantity)},
		})
	}

	if holding.Quantity != local.Quantity {
		adjusted := *local
		adjusted.Quantity = holding.Quantity
		if err := r.store.Save(&adjusted); err != nil {
			return models.ReconciliationResult{}, fmt.Errorf("reconcileAgainstBroker: failed to save position: %w", err)
		}

		return r.finish(models.ReconciliationResult{
			Success:  true,
			Outcome:  models.ReconciliationQuantityAdjusted,
			Position: &adjusted,
			Recoveries: []string{fmt.Sprintf("adjusted %s quantity %.0f -> %.0f",
				local.Symbol, local.Quantity, holding.Quantity)},
		})
	}

	return r.finish(models.ReconciliationResult{
		Success:  true,
		Outcome:  models.ReconciliationSynced,
		Position: local,
	})
}

// fetchAggregated queries the broker and folds duplicate rows for the same
// symbol into one holding by summing quantities. First-seen prices are kept;
// price spread across duplicate rows is not economically meaningful here.
func (r *Reconciler) fetchAggregated() ([]models.BrokerHolding, error) {
	holdings, err := r.broker.GetHoldings()
	if err != nil {
		return nil, fmt.Errorf("fetchAggregated: failed to fetch holdings: %w", err)
	}

	var order []models.Symbol
	merged := make(map[models.Symbol]models.BrokerHolding)

	for _, h := range holdings {
		if h.Quantity == 0 {
			continue
		}

		existing, ok := merged[h.Symbol]
		if !ok {
			merged[h.Symbol] = h
			order = append(order, h.Symbol)
			continue
		}

		existing.Quantity += h.Quantity
		merged[h.Symbol] = existing
	}

	aggregated := make([]models.BrokerHolding, 0, len(order))
	for _, symbol := range order {
		aggregated = append(aggregated, merged[symbol])
	}

	return aggregated, nil
}

// pickHolding chooses which broker holding to reconcile against: the local
// record's symbol when present, then the configured target symbol, then the
// first row the broker reported.
func (r *Reconciler) pickHolding(holdings []models.BrokerHolding, local *models.StoredPosition) models.BrokerHolding {
	if local != nil {
		for _, h := range holdings {
			if h.Symbol == local.Symbol {
				return h
			}
		}
	}

	for _, h := range holdings {
		if h.Symbol == r.targetSymbol {
			return h
		}
	}

	return holdings[0]
}

func (r *Reconciler) adopt(holding models.BrokerHolding) *models.StoredPosition {
	return &models.StoredPosition{
		Symbol:     holding.Symbol,
		EntryPrice: holding.AveragePrice,
		Quantity:   holding.Quantity,
		EntryDate:  r.now().Format("2006-01-02"),
	}
}

func (r *Reconciler) finish(result models.ReconciliationResult) (models.ReconciliationResult, error) {
	log.Infof("reconcile: %s (mode %s)", result.Outcome, r.mode)
	for _, recovery := range result.Recoveries {
		log.Warnf("reconcile: %s", recovery)
	}

	if result.Outcome != models.ReconciliationNoPosition && r.notifier != nil {
		payload := fmt.Sprintf("reconciliation: %s", result.Outcome)
		if len(result.Recoveries) > 0 {
			payload = fmt.Sprintf("%s (%s)", payload, result.Recoveries[0])
		}
		r.notifier.Notify(models.NotificationReconciliation, payload)
	}

	return result, nil
}
