package models

type RuntimeOverlay string

const (
	OverlayNormal        RuntimeOverlay = "normal"
	OverlayDegradedFeed  RuntimeOverlay = "degraded_feed"
	OverlayEmergencyStop RuntimeOverlay = "emergency_stop"
)

// RecoveryPolicy controls how a degraded feed is allowed back to normal.
type RecoveryPolicy string

const (
	// RecoveryPolicyAuto returns to normal as soon as the feed is stable.
	RecoveryPolicyAuto RecoveryPolicy = "auto"
	// RecoveryPolicyNextSession additionally requires the session phase to
	// have left and re-entered in_session since degradation began.
	RecoveryPolicyNextSession RecoveryPolicy = "next_session"
)

func (p RecoveryPolicy) Validate() error {
	switch p {
	case RecoveryPolicyAuto, RecoveryPolicyNextSession:
		return nil
	default:
		return ErrInvalidRecoveryPolicy
	}
}
