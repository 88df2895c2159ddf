package trader

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/telegram-trading/src/config"
	"github.com/jiaming2012/telegram-trading/src/marketdata"
	"github.com/jiaming2012/telegram-trading/src/models"
	"github.com/jiaming2012/telegram-trading/src/notify"
	"github.com/jiaming2012/telegram-trading/src/ops"
	"github.com/jiaming2012/telegram-trading/src/positions"
	"github.com/jiaming2012/telegram-trading/src/reconcile"
	"github.com/jiaming2012/telegram-trading/src/risk"
	"github.com/jiaming2012/telegram-trading/src/runtime"
	"github.com/jiaming2012/telegram-trading/src/sessions"
	"github.com/jiaming2012/telegram-trading/src/services"
	"github.com/jiaming2012/telegram-trading/src/stream"
	"github.com/jiaming2012/telegram-trading/src/telegram"
	"github.com/jiaming2012/telegram-trading/src/tradelog"
)

// App owns every long-lived component and drives the evaluation loop. There
// is exactly one App per process; all trading-domain state lives behind it.
type App struct {
	cfg *config.Config

	clock      sessions.Clock
	hub        *notify.Hub
	riskMgr    *risk.Manager
	machine    *runtime.StateMachine
	broker     *services.KabusBroker
	positions  *positions.FileStore
	reconciler *reconcile.Reconciler
	tradeLog   *tradelog.Store

	aggregator *marketdata.BarAggregator
	gate       *marketdata.SymbolBarGate

	// OnBar is the strategy hook, called at most once per symbol per
	// completed one-minute bar and only while the policy allows strategy
	// runs. Order placement inside the hook must pass the risk gate first.
	OnBar func(bar *models.CompletedBar, policy models.RuntimePolicy)

	// mu guards streamClient and lastPolicy, which the operator server
	// reads from its own goroutine.
	mu           sync.RWMutex
	streamClient *stream.Client
	lastPolicy   models.RuntimePolicy
	streamResult chan stream.Result
}

func NewApp(cfg *config.Config) (*App, error) {
	calendar, err := sessions.LoadCalendar(cfg.CalendarFile)
	if err != nil {
		log.Warnf("no holiday calendar at %s, weekends only: %v", cfg.CalendarFile, err)
		calendar = sessions.NewCalendar(nil)
	}

	clock, err := sessions.NewTSEClock(calendar)
	if err != nil {
		return nil, fmt.Errorf("NewApp: %w", err)
	}

	hub := notify.NewHub()
	if cfg.TelegramBotToken != "" {
		tg := telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err := hub.Subscribe(func(event notify.Event) {
			tg.SendMessage(fmt.Sprintf("[%s] %s", event.Kind, event.Payload))
		}); err != nil {
			return nil, fmt.Errorf("NewApp: failed to subscribe telegram sink: %w", err)
		}
	}

	var dailyStore models.DailyPnLStore
	var tradeLog *tradelog.Store
	if cfg.DatabaseURL != "" {
		tradeLog, err = tradelog.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("NewApp: %w", err)
		}
		dailyStore = tradeLog
	} else {
		log.Warn("DATABASE_URL not set, daily pnl will not survive restarts")
		dailyStore = &memoryDailyStore{}
	}

	riskMgr, err := risk.NewManager(risk.Config{
		StartingCapital:     cfg.StartingCapital,
		DailyMaxLossPercent: cfg.DailyMaxLossPercent,
		ApiErrorMax:         cfg.ApiErrorMax,
		ApiErrorWindow:      cfg.ApiErrorWindow,
	}, risk.FileKillSignal{Path: cfg.KillSwitchFile}, hub, dailyStore, time.Now)
	if err != nil {
		return nil, fmt.Errorf("NewApp: %w", err)
	}

	machine := runtime.NewStateMachine(runtime.Config{
		StaleThreshold:    cfg.WsStaleThreshold,
		StartupGrace:      cfg.WsStartupGrace,
		MinNormalDwell:    cfg.WsMinNormalDwell,
		MinDegradedDwell:  cfg.WsMinDegradedDwell,
		RecoverStableFor:  cfg.WsRecoverStableFor,
		RecoverConsecBars: cfg.WsRecoverConsecBars,
		RecoveryPolicy:    cfg.WsRecoveryPolicy,

		DefaultFeed:       cfg.DefaultFeed,
		StreamOffSession:  cfg.StreamOffSession,
		AuctionAllowExits: cfg.AuctionAllowExits,

		InSessionInterval:  cfg.InSessionInterval,
		PreopenInterval:    cfg.PreopenInterval,
		OffSessionInterval: cfg.OffSessionInterval,
	}, hub, time.Now())

	broker := services.NewKabusBroker(cfg.KabusBaseURL, cfg.KabusPassword)
	positionStore := positions.NewFileStore(cfg.PositionFile)

	targetSymbol := models.Symbol("")
	if len(cfg.Symbols) > 0 {
		targetSymbol = cfg.Symbols[0]
	}

	app := &App{
		cfg:        cfg,
		clock:      clock,
		hub:        hub,
		riskMgr:    riskMgr,
		machine:    machine,
		broker:     broker,
		positions:  positionStore,
		reconciler: reconcile.NewReconciler(cfg.TradeMode, targetSymbol, broker, positionStore, hub, time.Now),
		tradeLog:   tradeLog,
		aggregator: marketdata.NewBarAggregator(),
		gate:       marketdata.NewSymbolBarGate(),

		streamResult: make(chan stream.Result, 1),
	}

	app.OnBar = app.logBar

	return app, nil
}

// logBar is the default strategy hook. Signal generation is plugged in by
// assigning OnBar before Run; every order it places must pass CheckOrder.
func (a *App) logBar(bar *models.CompletedBar, policy models.RuntimePolicy) {
	log.WithFields(log.Fields{
		"symbol":  bar.Symbol,
		"start":   bar.Start.Format("15:04"),
		"close":   bar.Close,
		"volume":  bar.Volume,
		"entries": policy.AllowNewEntries,
	}).Info("bar ready for strategy")
}

func (a *App) Risk() *risk.Manager               { return a.riskMgr }
func (a *App) Reconciler() *reconcile.Reconciler { return a.reconciler }
func (a *App) TradeLog() *tradelog.Store         { return a.tradeLog }
func (a *App) Broker() *services.KabusBroker     { return a.broker }

// Run performs the startup reconciliation, starts the operator server and
// then blocks in the evaluation loop until ctx is cancelled or the risk
// manager demands a process halt.
func (a *App) Run(ctx context.Context) error {
	result, err := a.reconciler.SynchronizeOnStartup()
	if err != nil {
		return fmt.Errorf("Run: startup reconciliation failed: %w", err)
	}
	log.Infof("startup reconciliation: %s", result.Outcome)

	opsServer := ops.NewServer(a.statusSnapshot, a.riskMgr, a.reconciler)
	go func() {
		if err := opsServer.ListenAndServe(a.cfg.OpsListenAddr); err != nil && err != http.ErrServerClosed {
			log.Errorf("operator server stopped: %v", err)
		}
	}()

	defer a.hub.Wait()
	defer a.stopStream()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("operator server shutdown: %v", err)
		}
	}()

	for {
		now := time.Now()
		phase, phaseName := a.clock.CurrentPhase(now)

		policy := a.machine.Evaluate(now, phase, a.feedStatus(), a.riskMgr.RiskStop())

		a.mu.Lock()
		a.lastPolicy = policy
		a.mu.Unlock()

		log.WithFields(log.Fields{
			"phase":   phaseName,
			"overlay": policy.Overlay,
			"feed":    policy.FeedMode,
		}).Debug("evaluated runtime policy")

		a.applyStreamPolicy(policy)
		a.drainTicks(policy)

		if halt := a.checkStreamResult(); halt {
			return fmt.Errorf("Run: stream terminated with abort policy")
		}

		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case <-time.After(policy.Sleep):
		}
	}
}

// CheckOrder is the strategy-facing order gate.
func (a *App) CheckOrder(isClosingPosition bool) risk.CheckResult {
	return a.riskMgr.CheckOrderAllowed(isClosingPosition)
}

func (a *App) feedStatus() models.FeedStatus {
	a.mu.RLock()
	client := a.streamClient
	a.mu.RUnlock()

	status := models.FeedStatus{}
	if client != nil {
		status = client.Status()
	}
	status.Enabled = a.cfg.DefaultFeed == models.FeedModeWs

	return status
}

func (a *App) statusSnapshot() ops.StatusSnapshot {
	now := time.Now()
	phase, _ := a.clock.CurrentPhase(now)
	feed := a.feedStatus()
	killSwitch := a.riskMgr.KillSwitch()

	a.mu.RLock()
	policy := a.lastPolicy
	a.mu.RUnlock()

	return ops.StatusSnapshot{
		Overlay: policy.Overlay,
		Phase:   phase,
		Policy: ops.PolicyView{
			AllowNewEntries: policy.AllowNewEntries,
			AllowExits:      policy.AllowExits,
			RunStrategy:     policy.RunStrategy,
			FeedMode:        string(policy.FeedMode),
			Reason:          policy.Reason,
		},
		Feed: ops.FeedView{
			Connected:     feed.Connected,
			LastMessageAt: feed.LastMessageAt,
			LastBarAt:     feed.LastBarAt,
		},
		Daily: a.riskMgr.Daily(),
		KillSwitch: ops.KillSwitchView{
			Active: killSwitch.Active,
			Reason: killSwitch.Reason,
		},
	}
}

type memoryDailyStore struct {
	days map[string]models.DailyPnL
}

func (s *memoryDailyStore) LoadDay(date string) (*models.DailyPnL, error) {
	if day, ok := s.days[date]; ok {
		return &day, nil
	}
	return nil, nil
}

func (s *memoryDailyStore) SaveDay(day *models.DailyPnL) error {
	if s.days == nil {
		s.days = make(map[string]models.DailyPnL)
	}
	s.days[day.Date] = *day
	return nil
}
