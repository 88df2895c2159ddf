package stream

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jiaming2012/telegram-trading/src/models"
)

type registerFrame struct {
	Event  string `json:"event"`
	Symbol string `json:"symbol"`
}

func newRegisterFrame(symbol models.Symbol) registerFrame {
	return registerFrame{
		Event:  "register",
		Symbol: symbol.String(),
	}
}

// pushDTO is the price-push envelope the broker emits. Everything besides
// these fields is ignored.
type pushDTO struct {
	Symbol           string     `json:"Symbol"`
	CurrentPrice     *float64   `json:"CurrentPrice"`
	CurrentPriceTime *time.Time `json:"CurrentPriceTime"`
	TradingVolume    *float64   `json:"TradingVolume"`
}

// parseTick converts one wire frame into at most one tick. Frames that do not
// match the envelope, including the bare numeric segments the live broker
// occasionally emits, are skipped silently.
func parseTick(message []byte) (models.MarketTick, bool) {
	trimmed := strings.TrimSpace(string(message))
	if !strings.HasPrefix(trimmed, "{") {
		return models.MarketTick{}, false
	}

	var dto pushDTO
	if err := json.Unmarshal(message, &dto); err != nil {
		return models.MarketTick{}, false
	}

	if dto.Symbol == "" || dto.CurrentPrice == nil || dto.CurrentPriceTime == nil {
		return models.MarketTick{}, false
	}

	var volume float64
	if dto.TradingVolume != nil {
		volume = *dto.TradingVolume
	}

	return models.MarketTick{
		Symbol:    models.Symbol(dto.Symbol),
		Price:     *dto.CurrentPrice,
		Volume:    volume,
		Timestamp: *dto.CurrentPriceTime,
	}, true
}
