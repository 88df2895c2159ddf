package runtime

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/telegram-trading/src/models"
)

type Config struct {
	StaleThreshold    time.Duration
	StartupGrace      time.Duration
	MinNormalDwell    time.Duration
	MinDegradedDwell  time.Duration
	RecoverStableFor  time.Duration
	RecoverConsecBars int
	RecoveryPolicy    models.RecoveryPolicy

	DefaultFeed       models.FeedMode
	StreamOffSession  bool
	AuctionAllowExits bool

	InSessionInterval  time.Duration
	PreopenInterval    time.Duration
	OffSessionInterval time.Duration
}

// StateMachine is the single source of truth for what the system may do
// right now. Each Evaluate call resolves the runtime overlay and derives one
// RuntimePolicy; it performs no I/O and is driven entirely by its inputs.
type StateMachine struct {
	cfg      Config
	notifier models.Notifier

	startedAt        time.Time
	overlay          models.RuntimeOverlay
	overlayChangedAt time.Time

	// degraded-feed bookkeeping
	leftSessionSinceDegrade bool
	reenteredSession        bool
	freshSince              time.Time
	barHistory              []time.Time
}

func NewStateMachine(cfg Config, notifier models.Notifier, startedAt time.Time) *StateMachine {
	if cfg.RecoverConsecBars < 2 {
		cfg.RecoverConsecBars = 2
	}

	return &StateMachine{
		cfg:              cfg,
		notifier:         notifier,
		startedAt:        startedAt,
		overlay:          models.OverlayNormal,
		overlayChangedAt: startedAt,
	}
}

func (s *StateMachine) Overlay() models.RuntimeOverlay {
	return s.overlay
}

// Evaluate resolves the overlay for this cycle, then derives the policy for
// the current session phase.
func (s *StateMachine) Evaluate(now time.Time, phase models.SessionPhase, feed models.FeedStatus, riskStop bool) models.RuntimePolicy {
	if riskStop && s.overlay != models.OverlayEmergencyStop {
		// sticky: nothing in this component ever leaves emergency stop
		s.transition(models.OverlayEmergencyStop, now, "risk stop raised")
	}

	if s.overlay != models.OverlayEmergencyStop {
		s.trackFreshness(now, feed)
		s.trackBars(feed)
		s.trackSessionCycle(phase)

		switch s.overlay {
		case models.OverlayNormal:
			if s.isStale(now, phase, feed) && now.Sub(s.overlayChangedAt) >= s.cfg.MinNormalDwell {
				s.transition(models.OverlayDegradedFeed, now, "feed stale in session")
			}
		case models.OverlayDegradedFeed:
			if s.mayRecover(now, phase) {
				s.transition(models.OverlayNormal, now, "feed recovered")
			}
		}
	}

	return s.derivePolicy(phase)
}

// isStale is only meaningful while in session, and never before the startup
// grace period has elapsed: a freshly started connection is not penalized
// before it had a chance to receive its first message.
func (s *StateMachine) isStale(now time.Time, phase models.SessionPhase, feed models.FeedStatus) bool {
	if !feed.Enabled || phase != models.SessionPhaseInSession {
		return false
	}

	if now.Sub(s.startedAt) < s.cfg.StartupGrace {
		return false
	}

	if feed.LastMessageAt.IsZero() {
		return true
	}

	return feed.MessageAge(now) > s.cfg.StaleThreshold
}

func (s *StateMachine) mayRecover(now time.Time, phase models.SessionPhase) bool {
	if now.Sub(s.overlayChangedAt) < s.cfg.MinDegradedDwell {
		return false
	}

	if !s.recoveryStable(now) {
		return false
	}

	if s.cfg.RecoveryPolicy == models.RecoveryPolicyNextSession && !s.reenteredSession {
		return false
	}

	return true
}

// recoveryStable proves the feed is not just connected but actually
// delivering usable data: fresh continuously for the configured duration and
// producing strictly consecutive one-minute bars.
func (s *StateMachine) recoveryStable(now time.Time) bool {
	if s.freshSince.IsZero() || now.Sub(s.freshSince) < s.cfg.RecoverStableFor {
		return false
	}

	return s.consecutiveBars()
}

func (s *StateMachine) trackFreshness(now time.Time, feed models.FeedStatus) {
	fresh := feed.Connected &&
		!feed.LastMessageAt.IsZero() &&
		now.Sub(feed.LastMessageAt) <= s.cfg.StaleThreshold

	if !fresh {
		s.freshSince = time.Time{}
		return
	}

	if s.freshSince.IsZero() {
		s.freshSince = now
	}
}

func (s *StateMachine) trackBars(feed models.FeedStatus) {
	if feed.LastBarAt.IsZero() {
		return
	}

	if n := len(s.barHistory); n > 0 && s.barHistory[n-1].Equal(feed.LastBarAt) {
		return
	}

	s.barHistory = append(s.barHistory, feed.LastBarAt)
	if len(s.barHistory) > s.cfg.RecoverConsecBars {
		s.barHistory = s.barHistory[len(s.barHistory)-s.cfg.RecoverConsecBars:]
	}
}

func (s *StateMachine) consecutiveBars() bool {
	if len(s.barHistory) < s.cfg.RecoverConsecBars {
		return false
	}

	for i := 1; i < len(s.barHistory); i++ {
		if s.barHistory[i].Sub(s.barHistory[i-1]) != time.Minute {
			return false
		}
	}

	return true
}

// trackSessionCycle records, while degraded, whether the session phase has
// left and then re-entered in_session. The next_session recovery policy
// forces any recovery across that boundary instead of mid-session.
func (s *StateMachine) trackSessionCycle(phase models.SessionPhase) {
	if s.overlay != models.OverlayDegradedFeed {
		return
	}

	if phase != models.SessionPhaseInSession {
		s.leftSessionSinceDegrade = true
		return
	}

	if s.leftSessionSinceDegrade {
		s.reenteredSession = true
	}
}

func (s *StateMachine) transition(to models.RuntimeOverlay, now time.Time, reason string) {
	from := s.overlay
	s.overlay = to
	s.overlayChangedAt = now

	if to == models.OverlayDegradedFeed {
		s.leftSessionSinceDegrade = false
		s.reenteredSession = false
		// bars completed before the outage prove nothing about the feed
		// now; recovery must be earned with bars delivered after this point
		s.barHistory = nil
	}

	log.Warnf("runtime: overlay %s -> %s: %s", from, to, reason)

	if s.notifier != nil {
		s.notifier.Notify(models.NotificationOverlayTransition,
			fmt.Sprintf("overlay %s -> %s: %s", from, to, reason))
	}
}

func (s *StateMachine) derivePolicy(phase models.SessionPhase) models.RuntimePolicy {
	policy := models.RuntimePolicy{
		FeedMode: models.FeedModeRest,
		Overlay:  s.overlay,
		Phase:    phase,
	}

	if s.overlay == models.OverlayEmergencyStop {
		policy.Sleep = s.cfg.OffSessionInterval
		policy.Reason = "emergency stop"
		return policy
	}

	wantWs := s.cfg.DefaultFeed == models.FeedModeWs

	switch phase {
	case models.SessionPhaseOff, models.SessionPhasePostClose:
		policy.Sleep = s.cfg.OffSessionInterval
		policy.KeepStreamRunning = s.cfg.StreamOffSession
		policy.Reason = "off session"

	case models.SessionPhasePreopenWarmup:
		policy.Sleep = s.cfg.PreopenInterval
		// warm the stream up before the open so the first bars are not lost
		policy.KeepStreamRunning = wantWs
		policy.Reason = "preopen warmup"

	case models.SessionPhaseAuctionGuard:
		policy.AllowExits = s.cfg.AuctionAllowExits
		policy.RunStrategy = s.cfg.AuctionAllowExits
		policy.Sleep = s.cfg.InSessionInterval
		policy.Reason = "auction guard"

		if s.overlay == models.OverlayNormal && wantWs {
			policy.FeedMode = models.FeedModeWs
		}
		policy.KeepStreamRunning = policy.FeedMode == models.FeedModeWs || s.overlay == models.OverlayDegradedFeed

	case models.SessionPhaseInSession:
		policy.AllowNewEntries = true
		policy.AllowExits = true
		policy.RunStrategy = true
		policy.Sleep = s.cfg.InSessionInterval
		policy.Reason = "in session"

		if s.overlay == models.OverlayDegradedFeed {
			// forced to rest, but the stream keeps running in the background
			// so it can satisfy the recovery-stability condition
			policy.KeepStreamRunning = true
		} else {
			if wantWs {
				policy.FeedMode = models.FeedModeWs
			}
			policy.KeepStreamRunning = policy.FeedMode == models.FeedModeWs
		}
	}

	return policy
}
