package models

// BrokerHolding is a read-only row from the broker's position ledger. It is
// fetched live and never cached beyond a single reconciliation pass.
type BrokerHolding struct {
	Symbol       Symbol
	Quantity     float64
	AveragePrice float64
	CurrentPrice float64
}
