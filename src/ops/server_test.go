package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/telegram-trading/src/models"
)

type fakeKillSwitch struct {
	activated   bool
	deactivated bool
	reason      string
}

func (f *fakeKillSwitch) ActivateKillSwitch(reason string) error {
	f.activated = true
	f.reason = reason
	return nil
}

func (f *fakeKillSwitch) DeactivateKillSwitch() error {
	f.deactivated = true
	return nil
}

type fakeSynchronizer struct {
	result models.ReconciliationResult
	calls  int
}

func (f *fakeSynchronizer) ForceSyncFromApi() (models.ReconciliationResult, error) {
	f.calls++
	return f.result, nil
}

func newTestServer() (*Server, *fakeKillSwitch, *fakeSynchronizer) {
	ks := &fakeKillSwitch{}
	sync := &fakeSynchronizer{
		result: models.ReconciliationResult{
			Success: true,
			Outcome: models.ReconciliationSynced,
		},
	}
	status := func() StatusSnapshot {
		return StatusSnapshot{
			Overlay: models.OverlayNormal,
			Phase:   models.SessionPhaseInSession,
			Daily:   models.DailyPnL{Date: "2026-08-28", StartingCapital: 10_000_000},
		}
	}
	return NewServer(status, ks, sync), ks, sync
}

func TestHandleStatus(t *testing.T) {
	server, _, _ := newTestServer()

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot StatusSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, models.OverlayNormal, snapshot.Overlay)
	assert.Equal(t, "2026-08-28", snapshot.Daily.Date)
}

func TestHandleKillSwitch(t *testing.T) {
	t.Run("activate passes reason through", func(t *testing.T) {
		server, ks, _ := newTestServer()

		req := httptest.NewRequest("POST", "/killswitch", strings.NewReader(`{"action":"activate","reason":"fat finger"}`))
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, ks.activated)
		assert.Equal(t, "fat finger", ks.reason)
	})

	t.Run("deactivate", func(t *testing.T) {
		server, ks, _ := newTestServer()

		req := httptest.NewRequest("POST", "/killswitch", strings.NewReader(`{"action":"deactivate"}`))
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, ks.deactivated)
	})

	t.Run("unknown action is a bad request", func(t *testing.T) {
		server, ks, _ := newTestServer()

		req := httptest.NewRequest("POST", "/killswitch", strings.NewReader(`{"action":"pause"}`))
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, ks.activated)
	})
}

func TestHandleSync(t *testing.T) {
	server, _, sync := newTestServer()

	req := httptest.NewRequest("POST", "/sync", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sync.calls)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(models.ReconciliationSynced), body["outcome"])
}

func TestShutdown(t *testing.T) {
	t.Run("before serving is a no-op", func(t *testing.T) {
		server, _, _ := newTestServer()
		assert.NoError(t, server.Shutdown(context.Background()))
	})

	t.Run("unblocks ListenAndServe", func(t *testing.T) {
		server, _, _ := newTestServer()

		done := make(chan error, 1)
		go func() { done <- server.ListenAndServe("127.0.0.1:0") }()

		require.Eventually(t, func() bool {
			server.mu.Lock()
			defer server.mu.Unlock()
			return server.httpServer != nil
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, server.Shutdown(context.Background()))

		select {
		case err := <-done:
			assert.ErrorIs(t, err, http.ErrServerClosed)
		case <-time.After(time.Second):
			t.Fatal("ListenAndServe did not return after Shutdown")
		}
	})
}
