package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const apiBase = "https://api.telegram.org"

// Client posts operator messages to a Telegram chat. Delivery failures are
// logged and swallowed by SendMessage: notifications are fire-and-forget.
type Client struct {
	botToken string
	chatID   string
	baseURL  string
}

func NewClient(botToken string, chatID string) *Client {
	return &Client{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  apiBase,
	}
}

func (c *Client) SendMessage(text string) {
	if c.botToken == "" || c.chatID == "" {
		log.Tracef("telegram: not configured, dropping message: %s", text)
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	body := map[string]interface{}{
		"chat_id": c.chatID,
		"text":    text,
	}

	if _, err := PostJSON(url, body); err != nil {
		log.Errorf("telegram: failed to send message: %v", err)
	}
}

func PostJSON(url string, body map[string]interface{}) ([]byte, error) {
	client := http.Client{
		Timeout: 30 * time.Second,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("PostJSON (Marshal): %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("PostJSON (NewRequest): %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("PostJSON (Do): %w", err)
	}

	defer res.Body.Close()

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("PostJSON (ReadAll): %w", err)
	}

	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("PostJSON: %s: %s", res.Status, string(bodyBytes))
	}

	return bodyBytes, nil
}
