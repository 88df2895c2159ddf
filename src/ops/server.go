package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/telegram-trading/src/models"
)

// StatusSnapshot is the operator-facing view of the runtime, assembled by the
// main loop on each request.
type StatusSnapshot struct {
	Overlay    models.RuntimeOverlay `json:"overlay"`
	Phase      models.SessionPhase   `json:"phase"`
	Policy     PolicyView            `json:"policy"`
	Feed       FeedView              `json:"feed"`
	Daily      models.DailyPnL       `json:"daily_pnl"`
	KillSwitch KillSwitchView        `json:"kill_switch"`
}

type PolicyView struct {
	AllowNewEntries bool   `json:"allow_new_entries"`
	AllowExits      bool   `json:"allow_exits"`
	RunStrategy     bool   `json:"run_strategy"`
	FeedMode        string `json:"feed_mode"`
	Reason          string `json:"reason"`
}

type FeedView struct {
	Connected     bool      `json:"connected"`
	LastMessageAt time.Time `json:"last_message_at"`
	LastBarAt     time.Time `json:"last_bar_at"`
}

type KillSwitchView struct {
	Active bool   `json:"active"`
	Reason string `json:"reason,omitempty"`
}

type StatusProvider func() StatusSnapshot

// KillSwitchController is the slice of the risk manager the operator
// endpoints need.
type KillSwitchController interface {
	ActivateKillSwitch(reason string) error
	DeactivateKillSwitch() error
}

type Synchronizer interface {
	ForceSyncFromApi() (models.ReconciliationResult, error)
}

type Server struct {
	status     StatusProvider
	killSwitch KillSwitchController
	syncer     Synchronizer

	mu         sync.Mutex
	httpServer *http.Server
}

func NewServer(status StatusProvider, killSwitch KillSwitchController, syncer Synchronizer) *Server {
	return &Server{
		status:     status,
		killSwitch: killSwitch,
		syncer:     syncer,
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/status", s.handleStatus).Methods("GET")
	router.HandleFunc("/killswitch", s.handleKillSwitch).Methods("POST")
	router.HandleFunc("/sync", s.handleSync).Methods("POST")
	return router
}

// ListenAndServe blocks serving the operator endpoints until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	if s.httpServer == nil {
		s.httpServer = &http.Server{Addr: addr, Handler: s.Router()}
	}
	srv := s.httpServer
	s.mu.Unlock()

	log.Infof("operator server listening on %s", addr)
	return srv.ListenAndServe()
}

// Shutdown stops the listener and waits for in-flight requests, bounded by
// ctx. Calling it before ListenAndServe is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

type killSwitchRequestDTO struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

func (s *Server) handleKillSwitch(w http.ResponseWriter, r *http.Request) {
	var dto killSwitchRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("handleKillSwitch: failed to decode request: %w", err))
		return
	}

	switch dto.Action {
	case "activate":
		if dto.Reason == "" {
			dto.Reason = "manual operator request"
		}
		if err := s.killSwitch.ActivateKillSwitch(dto.Reason); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	case "deactivate":
		if err := s.killSwitch.DeactivateKillSwitch(); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("handleKillSwitch: unknown action %q", dto.Action))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "action": dto.Action})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncer.ForceSyncFromApi()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcome":    result.Outcome,
		"recoveries": result.Recoveries,
		"position":   result.Position,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Errorf("writeJSON: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Error(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
