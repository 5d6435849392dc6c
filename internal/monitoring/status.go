package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/antenna.report/internal/sweep"
	"github.com/banshee-data/antenna.report/internal/timeutil"
	"github.com/banshee-data/antenna.report/internal/version"
)

// Phase names the step of a run outside the sweep itself.
type Phase string

const (
	PhaseStarting   Phase = "starting instrument"
	PhaseConnecting Phase = "connecting"
	PhaseSweeping   Phase = "sweeping"
	PhaseSaving     Phase = "saving"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Status is the JSON body served at /debug/sweep.
type Status struct {
	Phase   Phase        `json:"phase"`
	Since   time.Time    `json:"since"`
	Sweep   *sweep.State `json:"sweep,omitempty"`
	RunID   string       `json:"run_id,omitempty"`
	Error   string       `json:"error,omitempty"`
	Version string       `json:"version"`
}

// Tracker follows a run from process start to archive. It is safe for
// concurrent use; the debug server reads it while the run writes it.
type Tracker struct {
	clock timeutil.Clock

	mu    sync.RWMutex
	phase Phase
	since time.Time
	state func() sweep.State
	runID string
	err   error
}

// NewTracker returns a tracker in PhaseStarting.
func NewTracker(clock timeutil.Clock) *Tracker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Tracker{clock: clock, phase: PhaseStarting, since: clock.Now()}
}

// SetPhase records a phase transition.
func (t *Tracker) SetPhase(p Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p == t.phase {
		return
	}
	t.phase = p
	t.since = t.clock.Now()
	Logf("run phase: %s", p)
}

// Bind attaches the sweep state source once the sequencer exists.
func (t *Tracker) Bind(state func() sweep.State) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

// Fail moves the tracker to PhaseFailed and keeps err for the status page.
func (t *Tracker) Fail(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	t.SetPhase(PhaseFailed)
}

// Done records the archived run id, if any, and moves to PhaseDone.
func (t *Tracker) Done(runID string) {
	t.mu.Lock()
	t.runID = runID
	t.mu.Unlock()
	t.SetPhase(PhaseDone)
}

// Status returns a snapshot.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Status{
		Phase:   t.phase,
		Since:   t.since,
		RunID:   t.runID,
		Version: version.Version,
	}
	if t.state != nil {
		st := t.state()
		s.Sweep = &st
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	return s
}

// Summary is the one-line progress shown on the /debug/ index.
func (t *Tracker) Summary() string {
	s := t.Status()
	if s.Sweep == nil {
		return string(s.Phase)
	}
	return fmt.Sprintf("%s, %d/%d angles", s.Phase, s.Sweep.Done, s.Sweep.Total)
}

// AttachAdminRoutes mounts the run status under /debug/.
func (t *Tracker) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.KV("Version", version.String())
	debug.KVFunc("Run", func() any { return t.Summary() })
	debug.HandleFunc("sweep", "Current run status as JSON", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, t.Status())
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		Logf("failed to encode json response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
