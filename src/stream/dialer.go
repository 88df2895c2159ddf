package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the client uses, narrowed so tests
// can substitute an in-memory transport.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens a transport connection. token is empty when no TokenSource is
// configured.
type Dialer func(url string, token string) (Conn, error)

func GorillaDialer(url string, token string) (Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("X-API-KEY", token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, err
	}

	return conn, nil
}
