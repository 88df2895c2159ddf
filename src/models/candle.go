package models

import "time"

// CompletedBar is a closed one-minute OHLCV bar. Start is the floor-to-minute
// of the first tick in the bar; End is always Start plus one minute.
type CompletedBar struct {
	Symbol Symbol
	Start  time.Time
	End    time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

func (b *CompletedBar) Update(price float64, volume float64) {
	if price > b.High {
		b.High = price
	}

	if price < b.Low {
		b.Low = price
	}

	b.Close = price
	b.Volume += volume
}

func NewBar(symbol Symbol, start time.Time, price float64, volume float64) *CompletedBar {
	return &CompletedBar{
		Symbol: symbol,
		Start:  start,
		End:    start.Add(time.Minute),
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: volume,
	}
}
