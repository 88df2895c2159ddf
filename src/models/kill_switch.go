package models

import "time"

// KillSwitchState is sticky: once active it is only cleared by an explicit
// operator action, never automatically.
type KillSwitchState struct {
	Active      bool
	Reason      string
	ActivatedAt time.Time
}
