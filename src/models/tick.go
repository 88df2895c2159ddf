package models

import "time"

// Symbol is a brokerage securities code, e.g. "7203" for Toyota.
type Symbol string

func (s Symbol) String() string {
	return string(s)
}

type MarketTick struct {
	Symbol    Symbol
	Price     float64
	Volume    float64
	Timestamp time.Time
}
