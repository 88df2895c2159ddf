package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/telegram-trading/src/models"
)

// KabusBroker wraps the kabu-station local REST surface: token exchange,
// position fetches, symbol registration and order routing. Tokens are
// short-lived, so each call fetches a fresh one rather than caching.
type KabusBroker struct {
	BaseURL     string
	ApiPassword string
}

func NewKabusBroker(baseURL string, apiPassword string) *KabusBroker {
	return &KabusBroker{
		BaseURL:     baseURL,
		ApiPassword: apiPassword,
	}
}

func (b *KabusBroker) FetchToken() (string, error) {
	return FetchKabusToken(b.BaseURL, b.ApiPassword)
}

func (b *KabusBroker) GetHoldings() ([]models.BrokerHolding, error) {
	token, err := b.FetchToken()
	if err != nil {
		return nil, fmt.Errorf("GetHoldings: %w", err)
	}

	positions, err := FetchKabusPositions(b.BaseURL, token)
	if err != nil {
		return nil, fmt.Errorf("GetHoldings: %w", err)
	}

	holdings := make([]models.BrokerHolding, 0, len(positions))
	for _, dto := range positions {
		holdings = append(holdings, dto.ToBrokerHolding())
	}

	return holdings, nil
}

func (b *KabusBroker) RegisterSymbols(symbols []models.Symbol) error {
	token, err := b.FetchToken()
	if err != nil {
		return fmt.Errorf("RegisterSymbols: %w", err)
	}

	if err := RegisterKabusSymbols(b.BaseURL, token, symbols); err != nil {
		return fmt.Errorf("RegisterSymbols: %w", err)
	}

	return nil
}

// PlaceOrder routes a market order. Side and quantity map onto the broker's
// cash-equity order schema; price zero means market.
func (b *KabusBroker) PlaceOrder(symbol models.Symbol, side models.OrderSide, quantity float64, price float64) (models.OrderResult, error) {
	token, err := b.FetchToken()
	if err != nil {
		return models.OrderResult{}, fmt.Errorf("PlaceOrder: %w", err)
	}

	sideCode := "2"
	if side == models.OrderSideSell {
		sideCode = "1"
	}

	frontOrderType := 10
	if price > 0 {
		frontOrderType = 20
	}

	payload, err := json.Marshal(map[string]interface{}{
		"Symbol":         symbol.String(),
		"Exchange":       1,
		"SecurityType":   1,
		"Side":           sideCode,
		"CashMargin":     1,
		"DelivType":      2,
		"FundType":       "AA",
		"AccountType":    2,
		"Qty":            quantity,
		"FrontOrderType": frontOrderType,
		"Price":          price,
		"ExpireDay":      0,
	})
	if err != nil {
		return models.OrderResult{}, fmt.Errorf("PlaceOrder: failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/sendorder", b.BaseURL), bytes.NewBuffer(payload))
	if err != nil {
		return models.OrderResult{}, fmt.Errorf("PlaceOrder: failed to create request: %w", err)
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("X-API-KEY", token)

	body, err := doRequest(req)
	if err != nil {
		return models.OrderResult{}, fmt.Errorf("PlaceOrder: %w", err)
	}

	var dto KabusOrderResponseDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return models.OrderResult{}, fmt.Errorf("PlaceOrder: failed to parse response: %w", err)
	}

	if dto.Result != 0 {
		log.Errorf("PlaceOrder: broker rejected order for %s: result %d", symbol, dto.Result)
		return models.OrderResult{
			Success: false,
			Message: fmt.Sprintf("broker rejected order: result %d", dto.Result),
		}, nil
	}

	log.Infof("PlaceOrder: routed %s %s qty %.0f, order id %s", side, symbol, quantity, dto.OrderId)

	return models.OrderResult{
		Success: true,
		OrderID: dto.OrderId,
	}, nil
}
