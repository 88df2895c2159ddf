package models

// HoldingsFetcher is the broker-query collaborator used by the reconciler.
// Implementations may fail; the caller decides whether to retry.
type HoldingsFetcher interface {
	GetHoldings() ([]BrokerHolding, error)
}

// OrderRouter places orders with the broker. The runtime core never calls it
// directly; it is consumed by the strategy-execution loop after the risk
// manager has passed the order.
type OrderRouter interface {
	PlaceOrder(symbol Symbol, side OrderSide, quantity float64, price float64) (OrderResult, error)
}
