package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jiaming2012/telegram-trading/src/models"
)

const httpTimeout = 10 * time.Second

type KabusTokenDTO struct {
	ResultCode int    `json:"ResultCode"`
	Token      string `json:"Token"`
}

type KabusPositionDTO struct {
	Symbol       string  `json:"Symbol"`
	SymbolName   string  `json:"SymbolName"`
	LeavesQty    float64 `json:"LeavesQty"`
	Price        float64 `json:"Price"`
	CurrentPrice float64 `json:"CurrentPrice"`
}

type KabusOrderResponseDTO struct {
	Result  int    `json:"Result"`
	OrderId string `json:"OrderId"`
}

func (dto KabusPositionDTO) ToBrokerHolding() models.BrokerHolding {
	return models.BrokerHolding{
		Symbol:       models.Symbol(dto.Symbol),
		Quantity:     dto.LeavesQty,
		AveragePrice: dto.Price,
		CurrentPrice: dto.CurrentPrice,
	}
}

// FetchKabusToken exchanges the API password for a short-lived token.
func FetchKabusToken(baseURL string, apiPassword string) (string, error) {
	payload, err := json.Marshal(map[string]string{"APIPassword": apiPassword})
	if err != nil {
		return "", fmt.Errorf("FetchKabusToken: failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/token", baseURL), bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("FetchKabusToken: failed to create request: %w", err)
	}
	req.Header.Add("Content-Type", "application/json")

	body, err := doRequest(req)
	if err != nil {
		return "", fmt.Errorf("FetchKabusToken: %w", err)
	}

	var dto KabusTokenDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return "", fmt.Errorf("FetchKabusToken: failed to parse response: %w", err)
	}

	if dto.ResultCode != 0 {
		return "", fmt.Errorf("FetchKabusToken: broker rejected password: result code %d", dto.ResultCode)
	}

	return dto.Token, nil
}

// FetchKabusPositions returns the broker's live position ledger.
func FetchKabusPositions(baseURL string, token string) ([]KabusPositionDTO, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/positions", baseURL), nil)
	if err != nil {
		return nil, fmt.Errorf("FetchKabusPositions: failed to create request: %w", err)
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("X-API-KEY", token)

	body, err := doRequest(req)
	if err != nil {
		return nil, fmt.Errorf("FetchKabusPositions: failed to fetch positions: %w", err)
	}

	var positions []KabusPositionDTO
	if err := json.Unmarshal(body, &positions); err != nil {
		return nil, fmt.Errorf("FetchKabusPositions: failed to parse response: %w", err)
	}

	return positions, nil
}

// RegisterKabusSymbols tells the push feed which symbols to deliver.
func RegisterKabusSymbols(baseURL string, token string, symbols []models.Symbol) error {
	type symbolDTO struct {
		Symbol   string `json:"Symbol"`
		Exchange int    `json:"Exchange"`
	}

	body := struct {
		Symbols []symbolDTO `json:"Symbols"`
	}{}
	for _, symbol := range symbols {
		body.Symbols = append(body.Symbols, symbolDTO{Symbol: symbol.String(), Exchange: 1})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("RegisterKabusSymbols: failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/register", baseURL), bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("RegisterKabusSymbols: failed to create request: %w", err)
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("X-API-KEY", token)

	if _, err := doRequest(req); err != nil {
		return fmt.Errorf("RegisterKabusSymbols: %w", err)
	}

	return nil
}

func doRequest(req *http.Request) ([]byte, error) {
	client := http.Client{
		Timeout: httpTimeout,
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}
