package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/antenna.report/internal/sweep"
	"github.com/banshee-data/antenna.report/internal/testutil"
	"github.com/banshee-data/antenna.report/internal/timeutil"
)

func muteLogf(t *testing.T) {
	t.Helper()
	orig := Logf
	SetLogger(nil)
	t.Cleanup(func() { Logf = orig })
}

func TestTracker_Phases(t *testing.T) {
	muteLogf(t)
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	tr := NewTracker(clock)

	s := tr.Status()
	assert.Equal(t, PhaseStarting, s.Phase)
	assert.Equal(t, start, s.Since)
	assert.Nil(t, s.Sweep)
	assert.Equal(t, "starting instrument", tr.Summary())

	clock.Advance(3 * time.Second)
	tr.SetPhase(PhaseConnecting)
	assert.Equal(t, start.Add(3*time.Second), tr.Status().Since)

	// Repeating the current phase keeps the original timestamp.
	clock.Advance(time.Second)
	tr.SetPhase(PhaseConnecting)
	assert.Equal(t, start.Add(3*time.Second), tr.Status().Since)

	tr.Bind(func() sweep.State {
		return sweep.State{Status: sweep.StatusRunning, Total: 36, Done: 12, Target: 4800}
	})
	tr.SetPhase(PhaseSweeping)
	s = tr.Status()
	require.NotNil(t, s.Sweep)
	assert.Equal(t, 12, s.Sweep.Done)
	assert.Equal(t, "sweeping, 12/36 angles", tr.Summary())

	tr.Done("run-1")
	s = tr.Status()
	assert.Equal(t, PhaseDone, s.Phase)
	assert.Equal(t, "run-1", s.RunID)
	assert.Empty(t, s.Error)
}

func TestTracker_Fail(t *testing.T) {
	muteLogf(t)
	tr := NewTracker(nil)
	tr.Fail(errors.New("motor controller not ready"))

	s := tr.Status()
	assert.Equal(t, PhaseFailed, s.Phase)
	assert.Equal(t, "motor controller not ready", s.Error)
}

func TestTracker_LogsTransitions(t *testing.T) {
	var lines []string
	orig := Logf
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, format)
	})
	defer func() { Logf = orig }()

	tr := NewTracker(nil)
	tr.SetPhase(PhaseConnecting)
	tr.SetPhase(PhaseConnecting)
	tr.SetPhase(PhaseSweeping)
	assert.Len(t, lines, 2)
}

func TestTracker_AttachAdminRoutes(t *testing.T) {
	muteLogf(t)
	tr := NewTracker(nil)
	tr.Bind(func() sweep.State { return sweep.State{Status: sweep.StatusRunning, Total: 4, Done: 1} })
	tr.SetPhase(PhaseSweeping)

	mux := http.NewServeMux()
	tr.AttachAdminRoutes(mux)

	t.Run("json status", func(t *testing.T) {
		w := testutil.ServeDebug(mux, http.MethodGet, "/debug/sweep")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var got Status
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, PhaseSweeping, got.Phase)
		require.NotNil(t, got.Sweep)
		assert.Equal(t, sweep.StatusRunning, got.Sweep.Status)
		assert.Equal(t, 4, got.Sweep.Total)
		assert.Equal(t, "dev", got.Version)
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := testutil.ServeDebug(mux, http.MethodPost, "/debug/sweep")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Contains(t, w.Body.String(), "method not allowed")
	})

	t.Run("index shows progress", func(t *testing.T) {
		w := testutil.ServeDebug(mux, http.MethodGet, "/debug/")
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.True(t, strings.Contains(body, "sweeping, 1/4 angles"), "index should show the run summary")
		assert.Contains(t, body, "sweep")
	})
}
