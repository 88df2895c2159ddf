package models

import "time"

type FeedMode string

const (
	FeedModeRest FeedMode = "rest"
	FeedModeWs   FeedMode = "ws"
)

// FeedStatus is a snapshot of the streaming transport's health, recomputed
// every evaluation cycle. A zero LastMessageAt means no message has been
// received since the client started.
type FeedStatus struct {
	Enabled       bool
	Connected     bool
	LastMessageAt time.Time
	LastBarAt     time.Time
}

// MessageAge returns how long ago the last message arrived, or a negative
// duration when no message has been received yet.
func (f FeedStatus) MessageAge(now time.Time) time.Duration {
	if f.LastMessageAt.IsZero() {
		return -1
	}
	return now.Sub(f.LastMessageAt)
}
