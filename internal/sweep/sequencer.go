// Package sweep runs the acquisition: it walks the positioner through the
// angle schedule, takes one instrument sweep per angle and assembles the
// measurement matrix.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/antenna.report/internal/config"
	"github.com/banshee-data/antenna.report/internal/timeutil"
)

// ErrMotorNotReady is returned when the controller fails its readiness probe.
var ErrMotorNotReady = errors.New("motor controller not ready")

// Positioner moves the device under test.
type Positioner interface {
	CheckReady(ctx context.Context) bool
	MoveTo(ctx context.Context, motorID int, target int64) error
}

// Acquirer takes one frequency sweep at the current angle.
type Acquirer interface {
	Acquire(ctx context.Context) ([]complex128, error)
}

// Status is the lifecycle state of a run.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Progress is reported after each angle is stored.
type Progress struct {
	Done   int   `json:"done"`
	Total  int   `json:"total"`
	Target int64 `json:"target"`
}

// State is a snapshot of a run.
type State struct {
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Total       int        `json:"total"`
	Done        int        `json:"done"`
	Target      int64      `json:"target"`
	Error       string     `json:"error,omitempty"`
}

// Options configures a Sequencer.
type Options struct {
	MotorID      int
	StepsPerRev  int64
	NAngles      int
	InitPosition int64
	Points       int

	Clock timeutil.Clock
	// OnProgress, when set, is called after each stored row.
	OnProgress func(Progress)
}

// OptionsFromConfig extracts the sequencer options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MotorID:      cfg.MotorID,
		StepsPerRev:  cfg.StepsPerRev,
		NAngles:      cfg.NAngles,
		InitPosition: cfg.InitMotorPos,
		Points:       cfg.Points,
	}
}

// Sequencer owns the measurement matrix for one run.
type Sequencer struct {
	motor    Positioner
	vna      Acquirer
	opts     Options
	schedule []int64

	mu    sync.RWMutex
	state State
}

// NewSequencer validates opts and precomputes the angle schedule.
func NewSequencer(motor Positioner, vna Acquirer, opts Options) (*Sequencer, error) {
	if motor == nil || vna == nil {
		return nil, errors.New("sequencer needs a positioner and an acquirer")
	}
	if opts.Points < 1 {
		return nil, fmt.Errorf("point count must be positive, got %d", opts.Points)
	}
	schedule, err := Schedule(opts.NAngles, opts.StepsPerRev)
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Sequencer{
		motor:    motor,
		vna:      vna,
		opts:     opts,
		schedule: schedule,
		state:    State{Status: StatusIdle, Total: len(schedule)},
	}, nil
}

// Schedule returns a copy of the angle schedule.
func (s *Sequencer) Schedule() []int64 {
	return append([]int64(nil), s.schedule...)
}

// State returns a snapshot of the run state.
func (s *Sequencer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Sequencer) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
}

// Run performs the whole acquisition. The matrix is returned only when every
// angle has been measured; any failure discards it.
func (s *Sequencer) Run(ctx context.Context) (*Matrix, error) {
	started := s.opts.Clock.Now()
	s.update(func(st *State) {
		st.Status = StatusRunning
		st.StartedAt = &started
		st.Done = 0
		st.Error = ""
	})

	m, err := s.run(ctx)
	finished := s.opts.Clock.Now()
	s.update(func(st *State) {
		st.CompletedAt = &finished
		if err != nil {
			st.Status = StatusError
			st.Error = err.Error()
			return
		}
		st.Status = StatusComplete
	})
	if err != nil {
		opsf("run failed: %v", err)
		return nil, err
	}
	opsf("run complete: %d angles in %v", len(s.schedule), finished.Sub(started).Round(time.Millisecond))
	return m, nil
}

func (s *Sequencer) run(ctx context.Context) (*Matrix, error) {
	if !s.motor.CheckReady(ctx) {
		return nil, ErrMotorNotReady
	}
	if err := s.motor.MoveTo(ctx, s.opts.MotorID, s.opts.InitPosition); err != nil {
		return nil, fmt.Errorf("move to initial position %d: %w", s.opts.InitPosition, err)
	}
	diagf("motor %d at initial position %d", s.opts.MotorID, s.opts.InitPosition)

	total := len(s.schedule)
	m := NewMatrix(total, s.opts.Points)
	for i, target := range s.schedule {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.update(func(st *State) { st.Target = target })

		t0 := s.opts.Clock.Now()
		if err := s.motor.MoveTo(ctx, s.opts.MotorID, target); err != nil {
			return nil, fmt.Errorf("angle %d/%d: move to %d: %w", i+1, total, target, err)
		}
		moved := s.opts.Clock.Since(t0)

		row, err := s.vna.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("angle %d/%d: acquire: %w", i+1, total, err)
		}
		if err := m.SetRow(i, row); err != nil {
			return nil, fmt.Errorf("angle %d/%d: %w", i+1, total, err)
		}
		tracef("angle %d: move %v, sweep %v", i, moved, s.opts.Clock.Since(t0)-moved)

		p := Progress{Done: i + 1, Total: total, Target: target}
		s.update(func(st *State) { st.Done = p.Done })
		opsf("Swept %d/%d", p.Done, p.Total)
		if s.opts.OnProgress != nil {
			s.opts.OnProgress(p)
		}
	}
	return m, nil
}
