package models

import "time"

// RuntimePolicy is what the system is allowed to do right now. It is derived
// once per evaluation cycle and never persisted.
type RuntimePolicy struct {
	AllowNewEntries   bool
	AllowExits        bool
	RunStrategy       bool
	FeedMode          FeedMode
	KeepStreamRunning bool
	Sleep             time.Duration
	Overlay           RuntimeOverlay
	Phase             SessionPhase
	Reason            string
}
