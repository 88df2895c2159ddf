package models

import "fmt"

// TradeMode selects how much the runtime trusts local state versus the broker.
type TradeMode string

const (
	// TradeModeDryRun never touches the broker; the local store is trusted as-is.
	TradeModeDryRun TradeMode = "dry_run"
	// TradeModePaper always re-syncs from the broker's paper ledger on startup.
	TradeModePaper TradeMode = "paper"
	// TradeModeReal treats the broker as ground truth and auto-recovers local drift.
	TradeModeReal TradeMode = "real"
)

func (m TradeMode) Validate() error {
	switch m {
	case TradeModeDryRun, TradeModePaper, TradeModeReal:
		return nil
	default:
		return fmt.Errorf("TradeMode: unsupported trade mode: %s", m)
	}
}
