package stream

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/telegram-trading/src/models"
)

type State string

const (
	StateConnecting   State = "connecting"
	StateSubscribed   State = "subscribed"
	StateReconnecting State = "reconnecting"
	StateTerminated   State = "terminated"
)

// FailurePolicy is decided by the caller up front; the client only carries it
// back when retries are exhausted.
type FailurePolicy string

const (
	FailurePolicyFallbackToRest FailurePolicy = "fallback_to_rest"
	FailurePolicyAbortProcess   FailurePolicy = "abort_process"
)

type Result struct {
	Success bool
	Policy  FailurePolicy
	Reason  string
}

// TokenSource fetches a short-lived authorization token before each connect.
// A nil TokenSource means the transport needs none.
type TokenSource interface {
	FetchToken() (string, error)
}

const maxBackoff = 30 * time.Second

type Config struct {
	URL                  string
	Symbols              []models.Symbol
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReadTimeout          time.Duration
	OnFailure            FailurePolicy
	TickBuffer           int
}

// Client maintains a live tick subscription over a websocket-style transport
// and delivers parsed ticks on a bounded channel. It holds no trading-domain
// state; its only side effects are network I/O and channel sends.
type Client struct {
	cfg    Config
	dial   Dialer
	tokens TokenSource

	ticks    chan models.MarketTick
	stop     chan struct{}
	stopOnce sync.Once

	mu            sync.RWMutex
	state         State
	running       bool
	connected     bool
	lastMessageAt time.Time
	lastBarAt     time.Time
}

func NewClient(cfg Config, dial Dialer, tokens TokenSource) *Client {
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = time.Second
	}

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}

	if cfg.TickBuffer <= 0 {
		cfg.TickBuffer = 1024
	}

	if dial == nil {
		dial = GorillaDialer
	}

	return &Client{
		cfg:    cfg,
		dial:   dial,
		tokens: tokens,
		ticks:  make(chan models.MarketTick, cfg.TickBuffer),
		stop:   make(chan struct{}),
		state:  StateConnecting,
	}
}

// Ticks is the delivery channel. Per-symbol ordering follows the wire order.
func (c *Client) Ticks() <-chan models.MarketTick {
	return c.ticks
}

// Stop is idempotent and safe to call from any goroutine. It does not
// interrupt an in-flight read; the loop exits at its next iteration.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// Run blocks until Stop is called or the retry budget is exhausted. An
// exhausted budget yields Success=false and the configured failure policy;
// a stop always yields Success=true.
func (c *Client) Run() Result {
	c.setRunning(true)
	defer c.setRunning(false)

	attempts := 0

	for {
		if c.stopped() {
			return Result{Success: true}
		}

		c.setState(StateConnecting)

		conn, err := c.connect()
		if err != nil {
			log.Errorf("stream: connect failed: %v", err)

			if result, done := c.backoff(&attempts, err); done {
				return result
			}
			continue
		}

		c.setState(StateSubscribed)
		c.setConnected(true)
		attempts = 0

		readErr := c.readLoop(conn)

		if err := conn.Close(); err != nil {
			log.Errorf("stream: error closing connection: %v", err)
		}
		c.setConnected(false)

		if c.stopped() {
			return Result{Success: true}
		}

		log.Errorf("stream: read failed: %v", readErr)
		c.setState(StateReconnecting)

		if result, done := c.backoff(&attempts, readErr); done {
			return result
		}
	}
}

// connect fetches a token when required, dials, and registers every symbol.
func (c *Client) connect() (Conn, error) {
	var token string
	if c.tokens != nil {
		t, err := c.tokens.FetchToken()
		if err != nil {
			return nil, fmt.Errorf("connect: failed to fetch token: %w", err)
		}
		token = t
	}

	log.Infof("stream: connecting to %s", c.cfg.URL)

	conn, err := c.dial(c.cfg.URL, token)
	if err != nil {
		return nil, fmt.Errorf("connect: dial failed: %w", err)
	}

	if conn == nil {
		return nil, fmt.Errorf("connect: connection is nil")
	}

	for _, symbol := range c.cfg.Symbols {
		if err := conn.WriteJSON(newRegisterFrame(symbol)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("connect: failed to register %s: %w", symbol, err)
		}
	}

	return conn, nil
}

func (c *Client) readLoop(conn Conn) error {
	for {
		if c.stopped() {
			return nil
		}

		if err := conn.SetReadDeadline(time.Now().UTC().Add(c.cfg.ReadTimeout)); err != nil {
			return fmt.Errorf("readLoop: failed to set read deadline: %w", err)
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("readLoop: %w", err)
		}

		c.noteMessage()

		tick, ok := parseTick(message)
		if !ok {
			// keep-alives and numeric envelope segments land here
			continue
		}

		select {
		case c.ticks <- tick:
		case <-c.stop:
			return nil
		}
	}
}

// backoff sleeps before the next attempt, doubling the delay per attempt up
// to a 30s ceiling. It reports (terminal result, true) once the budget is
// spent or the client is stopped mid-sleep.
func (c *Client) backoff(attempts *int, cause error) (Result, bool) {
	*attempts++

	if *attempts > c.cfg.MaxReconnectAttempts {
		c.setState(StateTerminated)
		return Result{
			Success: false,
			Policy:  c.cfg.OnFailure,
			Reason:  fmt.Sprintf("gave up after %d attempts: %v", *attempts, cause),
		}, true
	}

	delay := c.cfg.ReconnectBaseDelay << (*attempts - 1)
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}

	log.Warnf("stream: reconnect attempt %d/%d in %s", *attempts, c.cfg.MaxReconnectAttempts, delay)

	select {
	case <-time.After(delay):
		return Result{}, false
	case <-c.stop:
		return Result{Success: true}, true
	}
}

// MarkBar records the start timestamp of a bar completed from this
// transport's ticks; the state machine uses the sequence to prove the feed is
// delivering gap-free data.
func (c *Client) MarkBar(barStart time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastBarAt = barStart
}

// Status snapshots the transport's health for one evaluation cycle.
func (c *Client) Status() models.FeedStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return models.FeedStatus{
		Enabled:       c.running,
		Connected:     c.connected,
		LastMessageAt: c.lastMessageAt,
		LastBarAt:     c.lastBarAt,
	}
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

func (c *Client) setRunning(running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = running
}

func (c *Client) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
}

func (c *Client) noteMessage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastMessageAt = time.Now().UTC()
}
