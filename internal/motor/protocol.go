// Package motor speaks the ASCII protocol of the stepper rotator controller:
// a readiness probe, absolute position queries and absolute moves that keep
// the controller's revolution count.
package motor

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/antenna.report/internal/poll"
	"github.com/banshee-data/antenna.report/internal/serialio"
	"github.com/banshee-data/antenna.report/internal/timeutil"
)

// Controller commands.
const (
	CmdVerify = "V"
	CmdKill   = "K"

	StatusReady = "R"
	StatusBusy  = "B"
)

// ErrInvalidMotor is returned for motor IDs outside 1..4.
var ErrInvalidMotor = errors.New("motor ID must be 1, 2, 3 or 4")

var axes = [...]string{1: "X", 2: "Y", 3: "Z", 4: "T"}

// Axis returns the position query letter for motorID.
func Axis(motorID int) (string, error) {
	if motorID < 1 || motorID >= len(axes) {
		return "", fmt.Errorf("%w: got %d", ErrInvalidMotor, motorID)
	}
	return axes[motorID], nil
}

// MoveCommand formats an absolute move of motorID to position followed by a
// run instruction.
func MoveCommand(motorID int, position int64) string {
	return fmt.Sprintf("C E IA%dM%d,R", motorID, position)
}

// Mod returns a modulo m in [0, m). m must be positive.
func Mod(a, m int64) int64 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// NextPosition keeps the revolution count of current and replaces its
// within-revolution remainder with that of target.
func NextPosition(current, target, stepsPerRev int64) int64 {
	return current - Mod(current, stepsPerRev) + Mod(target, stepsPerRev)
}

// Options configures a Link.
type Options struct {
	StepsPerRev int64
	// Policy bounds the convergence wait in MoveTo.
	Policy poll.Policy
	Clock  timeutil.Clock
}

// Link drives one rotator controller over a line-framed serial connection.
type Link struct {
	conn        *serialio.LineConn
	stepsPerRev int64
	policy      poll.Policy
	clock       timeutil.Clock
}

// NewLink returns a Link over conn.
func NewLink(conn *serialio.LineConn, opts Options) (*Link, error) {
	if opts.StepsPerRev < 1 {
		return nil, fmt.Errorf("steps per revolution must be positive, got %d", opts.StepsPerRev)
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Link{
		conn:        conn,
		stepsPerRev: opts.StepsPerRev,
		policy:      opts.Policy,
		clock:       clock,
	}, nil
}

// StepsPerRev returns the revolution modulus.
func (l *Link) StepsPerRev() int64 { return l.stepsPerRev }

// CheckReady probes the controller. A busy controller is sent a kill and
// probed once more. Any I/O error or unexpected reply reports not ready.
func (l *Link) CheckReady(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	status, err := l.conn.Exchange(CmdVerify)
	if err != nil {
		opsf("readiness probe failed: %v", err)
		return false
	}
	switch status {
	case StatusReady:
		return true
	case StatusBusy:
		diagf("controller busy, sending kill")
		if err := l.conn.WriteCommand(CmdKill); err != nil {
			opsf("kill failed: %v", err)
			return false
		}
		status, err = l.conn.Exchange(CmdVerify)
		if err != nil {
			opsf("readiness probe after kill failed: %v", err)
			return false
		}
		if status == StatusReady {
			return true
		}
	}
	opsf("controller not ready: status %q", status)
	return false
}

// Position queries the absolute step counter of motorID.
func (l *Link) Position(ctx context.Context, motorID int) (int64, error) {
	axis, err := Axis(motorID)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	resp, err := l.conn.Exchange(axis)
	if err != nil {
		return 0, fmt.Errorf("query %s position: %w", axis, err)
	}
	pos, err := ParsePosition(resp)
	if err != nil {
		return 0, fmt.Errorf("query %s position: %w", axis, err)
	}
	return pos, nil
}

// MoveTo moves motorID so that its position is congruent to target modulo
// the steps per revolution, then waits for the controller to report it.
func (l *Link) MoveTo(ctx context.Context, motorID int, target int64) error {
	current, err := l.Position(ctx, motorID)
	if err != nil {
		return err
	}
	next := NextPosition(current, target, l.stepsPerRev)
	diagf("motor %d: %d -> %d (target %d)", motorID, current, next, target)

	if _, err := l.conn.Exchange(MoveCommand(motorID, next)); err != nil {
		return fmt.Errorf("move motor %d: %w", motorID, err)
	}

	want := Mod(target, l.stepsPerRev)
	op := fmt.Sprintf("move motor %d to %d", motorID, next)
	return poll.Until(ctx, l.clock, l.policy, op, func(attempt int) (bool, error) {
		pos, err := l.Position(ctx, motorID)
		if err != nil {
			return false, err
		}
		tracef("motor %d poll %d: at %d", motorID, attempt, pos)
		return Mod(pos, l.stepsPerRev) == want, nil
	})
}

// Close closes the serial connection.
func (l *Link) Close() error {
	return l.conn.Close()
}
