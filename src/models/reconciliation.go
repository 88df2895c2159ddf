package models

type ReconciliationOutcome string

const (
	ReconciliationNoPosition        ReconciliationOutcome = "no_position"
	ReconciliationSynced            ReconciliationOutcome = "synced"
	ReconciliationRecoveredFromApi  ReconciliationOutcome = "auto_recovered_from_api"
	ReconciliationRecoveredCleared  ReconciliationOutcome = "auto_recovered_cleared"
	ReconciliationRecoveredReplaced ReconciliationOutcome = "auto_recovered_replaced"
	ReconciliationQuantityAdjusted  ReconciliationOutcome = "qty_adjusted"
)

// ReconciliationResult reports how the disagreement between the local store
// and the broker was resolved. Position is the record that is authoritative
// going forward, nil when the runtime holds nothing.
type ReconciliationResult struct {
	Success    bool
	Outcome    ReconciliationOutcome
	Position   *StoredPosition
	Recoveries []string
}
