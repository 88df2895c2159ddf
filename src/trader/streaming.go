package trader

import (
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/telegram-trading/src/models"
	"github.com/jiaming2012/telegram-trading/src/stream"
)

// applyStreamPolicy reconciles the stream goroutine with what the current
// policy wants. A stopped client cannot be restarted, so every start builds
// a fresh one.
func (a *App) applyStreamPolicy(policy models.RuntimePolicy) {
	wantStream := policy.KeepStreamRunning || policy.FeedMode == models.FeedModeWs

	if wantStream {
		a.ensureStream()
	} else {
		// ticks that arrived before the policy flipped still belong to the
		// session; fold them into bars before the client goes away
		a.drainTicks(policy)
		a.stopStream()
	}
}

func (a *App) ensureStream() {
	a.mu.RLock()
	current := a.streamClient
	a.mu.RUnlock()

	if current != nil && current.State() != stream.StateTerminated {
		return
	}

	failurePolicy := stream.FailurePolicyFallbackToRest
	if a.cfg.TradeMode == models.TradeModeReal && a.cfg.DefaultFeed == models.FeedModeWs {
		failurePolicy = stream.FailurePolicyAbortProcess
	}

	client := stream.NewClient(stream.Config{
		URL:                  a.cfg.KabusWsURL,
		Symbols:              a.cfg.Symbols,
		MaxReconnectAttempts: a.cfg.WsMaxReconnectAttempts,
		ReconnectBaseDelay:   a.cfg.WsReconnectBaseDelay,
		ReadTimeout:          a.cfg.WsReadTimeout,
		OnFailure:            failurePolicy,
	}, nil, a.broker)

	a.mu.Lock()
	a.streamClient = client
	a.mu.Unlock()

	log.Info("starting market data stream")

	go func() {
		result := client.Run()
		if !result.Success {
			select {
			case a.streamResult <- result:
			default:
			}
		}
	}()
}

func (a *App) stopStream() {
	a.mu.Lock()
	client := a.streamClient
	a.streamClient = nil
	a.mu.Unlock()

	if client == nil {
		return
	}

	log.Info("stopping market data stream")
	client.Stop()
}

// checkStreamResult handles a terminal stream failure. Fallback means the
// state machine will see a dead feed and degrade on its own; abort means the
// process must come down.
func (a *App) checkStreamResult() bool {
	select {
	case result := <-a.streamResult:
		a.riskMgr.RecordApiError(result.Reason)
		a.hub.Notify(models.NotificationStreamTerminated, result.Reason)

		if result.Policy == stream.FailurePolicyAbortProcess {
			log.Errorf("stream terminated, abort requested: %s", result.Reason)
			return true
		}

		log.Errorf("stream terminated, falling back to rest polling: %s", result.Reason)
		a.mu.Lock()
		a.streamClient = nil
		a.mu.Unlock()
		return false
	default:
		return false
	}
}

// drainTicks folds every buffered tick into bars and fires the strategy hook
// once per newly completed bar. It never blocks on the tick channel.
func (a *App) drainTicks(policy models.RuntimePolicy) {
	a.mu.RLock()
	client := a.streamClient
	a.mu.RUnlock()

	if client == nil {
		return
	}

	for {
		select {
		case tick := <-client.Ticks():
			bar := a.aggregator.AddTick(tick)
			if bar == nil {
				continue
			}

			client.MarkBar(bar.Start)
			a.handleBar(bar, policy)
		default:
			return
		}
	}
}

func (a *App) handleBar(bar *models.CompletedBar, policy models.RuntimePolicy) {
	if !a.gate.ShouldRun(bar.Symbol, bar.Start) {
		log.WithFields(log.Fields{
			"symbol": bar.Symbol,
			"start":  bar.Start,
		}).Debug("bar already processed, skipping")
		return
	}

	log.WithFields(log.Fields{
		"symbol": bar.Symbol,
		"start":  bar.Start.Format("15:04"),
		"close":  bar.Close,
		"volume": bar.Volume,
	}).Info("completed bar")

	if policy.RunStrategy && a.OnBar != nil {
		a.OnBar(bar, policy)
	}

	a.gate.MarkProcessed(bar.Symbol, bar.Start)
}
