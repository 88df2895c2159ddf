package risk

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/telegram-trading/src/models"
)

type Config struct {
	StartingCapital     float64
	DailyMaxLossPercent float64
	ApiErrorMax         int
	ApiErrorWindow      time.Duration
}

// CheckResult is a business-rule decision, never an error. ShouldHaltProcess
// is only set for an active kill switch: an operator who pulled the switch
// wants no further action of any kind.
type CheckResult struct {
	Passed            bool
	Reason            string
	ShouldHaltProcess bool
}

// Manager is the single gate every order-placing code path passes through.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	signal   KillSignal
	notifier models.Notifier
	store    models.DailyPnLStore
	now      func() time.Time

	kill           models.KillSwitchState
	day            *models.DailyPnL
	apiErrorCount  int
	lastApiErrorAt time.Time
}

// NewManager restores today's P&L aggregate from the store when one exists.
// A nil store keeps the aggregate in memory only; a nil now defaults to
// time.Now.
func NewManager(cfg Config, signal KillSignal, notifier models.Notifier, store models.DailyPnLStore, now func() time.Time) (*Manager, error) {
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		cfg:      cfg,
		signal:   signal,
		notifier: notifier,
		store:    store,
		now:      now,
	}

	today := now().Format("2006-01-02")

	if store != nil {
		day, err := store.LoadDay(today)
		if err != nil {
			return nil, fmt.Errorf("NewManager: failed to load daily pnl: %w", err)
		}
		m.day = day
	}

	if m.day == nil {
		m.day = &models.DailyPnL{
			Date:            today,
			StartingCapital: cfg.StartingCapital,
		}
	}

	return m, nil
}

// CheckOrderAllowed decides whether an order may be submitted right now.
// Closing orders pass the daily-loss check unconditionally: refusing to let a
// position close would strand risk instead of reducing it.
func (m *Manager) CheckOrderAllowed(isClosingPosition bool) CheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detectExternalSignalLocked()

	if m.kill.Active {
		return CheckResult{
			Passed:            false,
			Reason:            fmt.Sprintf("kill switch active: %s", m.kill.Reason),
			ShouldHaltProcess: true,
		}
	}

	m.rolloverLocked()

	if m.limitBreachedLocked() && !isClosingPosition {
		return CheckResult{
			Passed: false,
			Reason: fmt.Sprintf("daily loss limit reached: %.2f%% of %.0f", m.day.LossPercent(), m.day.StartingCapital),
		}
	}

	return CheckResult{Passed: true}
}

// RecordTradePnl appends a realized trade result to the day's aggregate. The
// first trade that pushes the day past the loss limit raises the flag and
// notifies exactly once; later breaching trades stay silent.
func (m *Manager) RecordTradePnl(amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverLocked()

	m.day.RealizedPnL += amount
	m.day.TradeCount++
	if amount < 0 {
		m.day.ConsecutiveLosses++
	} else {
		m.day.ConsecutiveLosses = 0
	}

	if !m.day.LimitReached && m.day.LossPercent() >= m.cfg.DailyMaxLossPercent {
		m.day.LimitReached = true

		log.Warnf("risk: daily loss limit reached: %.2f%% (pnl %.0f)", m.day.LossPercent(), m.day.RealizedPnL)
		m.notify(models.NotificationDailyLimit,
			fmt.Sprintf("daily loss limit reached: %.2f%% (realized %.0f, trades %d)",
				m.day.LossPercent(), m.day.RealizedPnL, m.day.TradeCount))
	}

	if m.store != nil {
		if err := m.store.SaveDay(m.day); err != nil {
			return fmt.Errorf("RecordTradePnl: failed to persist daily pnl: %w", err)
		}
	}

	return nil
}

// RecordApiError counts consecutive upstream errors and reports whether the
// kill switch was activated by this call. The counter resets once the gap
// since the previous error exceeds the configured window.
func (m *Manager) RecordApiError(reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.lastApiErrorAt.IsZero() && now.Sub(m.lastApiErrorAt) > m.cfg.ApiErrorWindow {
		m.apiErrorCount = 0
	}

	m.apiErrorCount++
	m.lastApiErrorAt = now

	log.Warnf("risk: api error %d/%d: %s", m.apiErrorCount, m.cfg.ApiErrorMax, reason)

	if m.apiErrorCount >= m.cfg.ApiErrorMax && !m.kill.Active {
		if err := m.activateLocked(fmt.Sprintf("%d consecutive api errors, last: %s", m.apiErrorCount, reason), true); err != nil {
			log.Errorf("risk: failed to persist kill switch marker: %v", err)
		}
		return true
	}

	return false
}

// ActivateKillSwitch is the manual activation path.
func (m *Manager) ActivateKillSwitch(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.kill.Active {
		return nil
	}

	return m.activateLocked(reason, true)
}

// DeactivateKillSwitch is exclusively a manual operator action; nothing in
// this package deactivates automatically. It removes the marker so other
// processes stop seeing the signal.
func (m *Manager) DeactivateKillSwitch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.kill.Active {
		return nil
	}

	if err := m.signal.Clear(); err != nil {
		return fmt.Errorf("DeactivateKillSwitch: %w", err)
	}

	m.kill = models.KillSwitchState{}

	log.Info("risk: kill switch deactivated by operator")
	m.notify(models.NotificationKillSwitch, "kill switch deactivated by operator")

	return nil
}

func (m *Manager) KillSwitch() models.KillSwitchState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kill
}

func (m *Manager) Daily() models.DailyPnL {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverLocked()
	return *m.day
}

// RiskStop reports whether the runtime must drop into emergency stop.
func (m *Manager) RiskStop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detectExternalSignalLocked()
	return m.kill.Active
}

func (m *Manager) detectExternalSignalLocked() {
	if m.kill.Active || m.signal == nil {
		return
	}

	active, reason, err := m.signal.Check()
	if err != nil {
		log.Errorf("risk: failed to check kill signal: %v", err)
		return
	}

	if active {
		// marker already on disk, no need to write it again
		if err := m.activateLocked(reason, false); err != nil {
			log.Errorf("risk: %v", err)
		}
	}
}

func (m *Manager) activateLocked(reason string, writeMarker bool) error {
	m.kill = models.KillSwitchState{
		Active:      true,
		Reason:      reason,
		ActivatedAt: m.now(),
	}

	log.Warnf("risk: kill switch activated: %s", reason)
	m.notify(models.NotificationKillSwitch, fmt.Sprintf("kill switch activated: %s", reason))

	if writeMarker && m.signal != nil {
		if err := m.signal.Raise(reason); err != nil {
			return fmt.Errorf("activate kill switch: %w", err)
		}
	}

	return nil
}

func (m *Manager) limitBreachedLocked() bool {
	return m.day.LimitReached || m.day.LossPercent() >= m.cfg.DailyMaxLossPercent
}

func (m *Manager) rolloverLocked() {
	today := m.now().Format("2006-01-02")
	if m.day.Date == today {
		return
	}

	log.Infof("risk: new trading day %s, resetting daily pnl (was %s)", today, m.day.Date)

	m.day = &models.DailyPnL{
		Date:            today,
		StartingCapital: m.cfg.StartingCapital,
	}
}

func (m *Manager) notify(kind models.NotificationKind, payload string) {
	if m.notifier != nil {
		m.notifier.Notify(kind, payload)
	}
}
