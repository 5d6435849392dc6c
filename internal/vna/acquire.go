package vna

import (
	"context"
	"fmt"

	"github.com/banshee-data/antenna.report/internal/config"
	"github.com/banshee-data/antenna.report/internal/poll"
	"github.com/banshee-data/antenna.report/internal/timeutil"
)

// Acquisition status replies to :VNA:ACQ:FIN?.
const (
	finishedTrue  = "TRUE"
	finishedFalse = "FALSE"
)

// Commander is the part of Client the acquisition sequence needs.
type Commander interface {
	Cmd(ctx context.Context, cmd string) error
	Query(ctx context.Context, q string) (string, error)
}

// Settings are the instrument parameters applied before every sweep.
type Settings struct {
	Window        config.FrequencyWindow
	StimulusDBm   int
	IFBandwidthHz int
	AverageCount  int
	Points        int
}

// SettingsFromConfig extracts the sweep settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Window:        cfg.Window,
		StimulusDBm:   cfg.StimulusDBm,
		IFBandwidthHz: cfg.IFBandwidthHz,
		AverageCount:  cfg.AverageCount,
		Points:        cfg.Points,
	}
}

// Commands returns the setup sequence for s, ending with the single-sweep
// trigger. Mode and sweep type precede the frequency window.
func (s Settings) Commands() []string {
	cmds := []string{
		":DEV:MODE VNA",
		":VNA:SWEEP FREQUENCY",
		fmt.Sprintf(":VNA:STIM:LVL %d", s.StimulusDBm),
		fmt.Sprintf(":VNA:ACQ:IFBW %d", s.IFBandwidthHz),
		fmt.Sprintf(":VNA:ACQ:AVG %d", s.AverageCount),
		fmt.Sprintf(":VNA:ACQ:POINTS %d", s.Points),
	}
	switch s.Window.Kind {
	case config.WindowStartStop:
		cmds = append(cmds,
			fmt.Sprintf(":VNA:FREQ:START %d", s.Window.Start),
			fmt.Sprintf(":VNA:FREQ:STOP %d", s.Window.Stop))
	default:
		cmds = append(cmds,
			fmt.Sprintf(":VNA:FREQ:CENT %d", s.Window.Center),
			":VNA:FREQ:ZERO")
	}
	return append(cmds, ":VNA:ACQ:SINGLE TRUE")
}

// Acquirer takes one S21 sweep per call.
type Acquirer struct {
	conn     Commander
	settings Settings
	policy   poll.Policy
	clock    timeutil.Clock
}

// NewAcquirer returns an Acquirer issuing s over conn. policy bounds the wait
// for sweep completion.
func NewAcquirer(conn Commander, s Settings, policy poll.Policy, clock timeutil.Clock) *Acquirer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Acquirer{conn: conn, settings: s, policy: policy, clock: clock}
}

// Acquire configures the instrument, triggers a single sweep, waits for it to
// finish and returns the S21 values in point order.
func (a *Acquirer) Acquire(ctx context.Context) ([]complex128, error) {
	for _, cmd := range a.settings.Commands() {
		if err := a.conn.Cmd(ctx, cmd); err != nil {
			return nil, fmt.Errorf("configure sweep: %w", err)
		}
	}

	err := poll.Until(ctx, a.clock, a.policy, "wait for sweep", func(attempt int) (bool, error) {
		resp, err := a.conn.Query(ctx, ":VNA:ACQ:FIN?")
		if err != nil {
			return false, err
		}
		switch resp {
		case finishedTrue:
			return true, nil
		case finishedFalse:
			return false, nil
		default:
			return false, fmt.Errorf("unexpected acquisition status %q", resp)
		}
	})
	if err != nil {
		return nil, err
	}

	data, err := a.conn.Query(ctx, ":VNA:TRACE:DATA? S21")
	if err != nil {
		return nil, fmt.Errorf("read S21 trace: %w", err)
	}
	points, err := ParseTraceData(data)
	if err != nil {
		return nil, err
	}
	diagf("sweep complete: %d points", len(points))
	return Values(points), nil
}
