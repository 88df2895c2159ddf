package models

import "time"

// StoredPosition is the locally persisted view of the current position. It is
// a cache of what the runtime believes it holds and may drift from broker
// truth across a crash; the reconciler resolves the disagreement.
type StoredPosition struct {
	Symbol      Symbol    `json:"symbol"`
	EntryPrice  float64   `json:"entry_price"`
	Quantity    float64   `json:"quantity"`
	StopPrice   float64   `json:"stop_price"`
	TargetPrice float64   `json:"target_price"`
	EntryDate   string    `json:"entry_date"`
	ATRAtEntry  float64   `json:"atr_at_entry"`
	SavedAt     time.Time `json:"saved_at"`
}
