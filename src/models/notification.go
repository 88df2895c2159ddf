package models

type NotificationKind string

const (
	NotificationOverlayTransition NotificationKind = "overlay_transition"
	NotificationKillSwitch        NotificationKind = "kill_switch"
	NotificationDailyLimit        NotificationKind = "daily_limit"
	NotificationReconciliation    NotificationKind = "reconciliation"
	NotificationStreamTerminated  NotificationKind = "stream_terminated"
)

// Notifier is a fire-and-forget sink; the core never blocks on or depends on
// delivery success.
type Notifier interface {
	Notify(kind NotificationKind, payload string)
}
