package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/antenna.report/internal/config"
	"github.com/banshee-data/antenna.report/internal/motor"
	"github.com/banshee-data/antenna.report/internal/poll"
	"github.com/banshee-data/antenna.report/internal/serialio"
	"github.com/banshee-data/antenna.report/internal/timeutil"
	"github.com/banshee-data/antenna.report/internal/vna"
)

// stubMotor reaches any commanded position instantly.
type stubMotor struct {
	ready   bool
	moves   []int64
	failAt  int64
	failErr error
	pos     int64
}

func (m *stubMotor) CheckReady(context.Context) bool { return m.ready }

func (m *stubMotor) MoveTo(_ context.Context, _ int, target int64) error {
	if m.failErr != nil && target == m.failAt {
		return m.failErr
	}
	m.moves = append(m.moves, target)
	m.pos = target
	return nil
}

// stubVNA returns a fixed vector and records where the motor was.
type stubVNA struct {
	row   []complex128
	motor *stubMotor
	seen  []int64
	err   error
}

func (v *stubVNA) Acquire(context.Context) ([]complex128, error) {
	if v.err != nil {
		return nil, v.err
	}
	v.seen = append(v.seen, v.motor.pos)
	return append([]complex128(nil), v.row...), nil
}

func newStubs() (*stubMotor, *stubVNA) {
	m := &stubMotor{ready: true}
	return m, &stubVNA{row: []complex128{1 + 1i, 0.5 - 2i, -3}, motor: m}
}

func testOptions() Options {
	return Options{
		MotorID:     1,
		StepsPerRev: 14400,
		NAngles:     4,
		Points:      3,
		Clock:       timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
}

func TestRun_EndToEnd(t *testing.T) {
	m, v := newStubs()
	var progress []Progress
	opts := testOptions()
	opts.OnProgress = func(p Progress) { progress = append(progress, p) }

	seq, err := NewSequencer(m, v, opts)
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, seq.State().Status)

	mat, err := seq.Run(context.Background())
	require.NoError(t, err)

	r, c := mat.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
	for i := 0; i < r; i++ {
		assert.Equal(t, v.row, mat.Row(i), "row %d", i)
	}

	// initial position, then the schedule in order
	assert.Equal(t, []int64{0, 0, 3600, 7200, 10800}, m.moves)
	assert.Equal(t, []int64{0, 3600, 7200, 10800}, v.seen)

	want := []Progress{
		{Done: 1, Total: 4, Target: 0},
		{Done: 2, Total: 4, Target: 3600},
		{Done: 3, Total: 4, Target: 7200},
		{Done: 4, Total: 4, Target: 10800},
	}
	if diff := cmp.Diff(want, progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}

	st := seq.State()
	assert.Equal(t, StatusComplete, st.Status)
	assert.Equal(t, 4, st.Done)
	assert.NotNil(t, st.StartedAt)
	assert.NotNil(t, st.CompletedAt)
}

func TestRun_InitialPosition(t *testing.T) {
	m, v := newStubs()
	opts := testOptions()
	opts.InitPosition = 1200
	seq, err := NewSequencer(m, v, opts)
	require.NoError(t, err)

	_, err = seq.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1200), m.moves[0])
}

func TestRun_MotorNotReady(t *testing.T) {
	m, v := newStubs()
	m.ready = false
	seq, err := NewSequencer(m, v, testOptions())
	require.NoError(t, err)

	mat, err := seq.Run(context.Background())
	assert.Nil(t, mat)
	assert.ErrorIs(t, err, ErrMotorNotReady)
	assert.Empty(t, m.moves)
	assert.Equal(t, StatusError, seq.State().Status)
}

func TestRun_FailuresDiscardMatrix(t *testing.T) {
	stall := &poll.TimeoutError{Op: "move", Attempts: 10}
	tests := []struct {
		name  string
		setup func(*stubMotor, *stubVNA)
		is    error
	}{
		{"move stalls", func(m *stubMotor, _ *stubVNA) { m.failAt, m.failErr = 7200, stall }, poll.ErrTimeout},
		{"parse error", func(m *stubMotor, _ *stubVNA) {
			m.failAt, m.failErr = 3600, &motor.ParseError{Response: "?", Err: motor.ErrNoPosition}
		}, motor.ErrNoPosition},
		{"not connected", func(_ *stubMotor, v *stubVNA) { v.err = vna.ErrNotConnected }, vna.ErrNotConnected},
		{"short sweep", func(_ *stubMotor, v *stubVNA) { v.row = v.row[:2] }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, v := newStubs()
			tt.setup(m, v)
			seq, err := NewSequencer(m, v, testOptions())
			require.NoError(t, err)

			mat, err := seq.Run(context.Background())
			assert.Nil(t, mat)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			st := seq.State()
			assert.Equal(t, StatusError, st.Status)
			assert.NotEmpty(t, st.Error)
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	m, v := newStubs()
	ctx, cancel := context.WithCancel(context.Background())
	opts := testOptions()
	opts.OnProgress = func(p Progress) {
		if p.Done == 2 {
			cancel()
		}
	}
	seq, err := NewSequencer(m, v, opts)
	require.NoError(t, err)

	mat, err := seq.Run(ctx)
	assert.Nil(t, mat)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, v.seen, 2)
}

func TestNewSequencer_Invalid(t *testing.T) {
	m, v := newStubs()
	opts := testOptions()
	opts.NAngles = 0
	_, err := NewSequencer(m, v, opts)
	assert.Error(t, err)

	opts = testOptions()
	opts.Points = 0
	_, err = NewSequencer(m, v, opts)
	assert.Error(t, err)

	_, err = NewSequencer(nil, v, testOptions())
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.InitMotorPos = 25
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, cfg.MotorID, opts.MotorID)
	assert.Equal(t, cfg.StepsPerRev, opts.StepsPerRev)
	assert.Equal(t, cfg.NAngles, opts.NAngles)
	assert.Equal(t, int64(25), opts.InitPosition)
	assert.Equal(t, cfg.Points, opts.Points)
}

// The real protocol stack against both simulators: the positioner advances
// in increments, the instrument needs a few polls, and each row records the
// angle the rotator was at.
func TestRun_Simulators(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	rotator := motor.NewSimulator(2, 3*14400+17)
	rotator.Increment = 500
	link, err := motor.NewLink(serialio.NewLineConn(rotator, serialio.EOLLF), motor.Options{
		StepsPerRev: 14400,
		Policy:      poll.Policy{Interval: 100 * time.Millisecond, MaxAttempts: 100},
		Clock:       clock,
	})
	require.NoError(t, err)

	instrument := vna.NewSimulator("206830535532")
	instrument.PendingPolls = 2
	instrument.Trace = func(_ int, freqs []float64) []complex128 {
		out := make([]complex128, len(freqs))
		angle := float64(motor.Mod(rotator.Position(), 14400))
		for i := range out {
			out[i] = complex(angle, float64(i))
		}
		return out
	}
	require.NoError(t, instrument.Listen("127.0.0.1:0"))
	defer instrument.Close()
	client, err := vna.Dial(context.Background(), instrument.Addr())
	require.NoError(t, err)
	defer client.Close()

	settings := vna.Settings{
		Window:        config.StartStopWindow(914_980_000, 915_020_000),
		StimulusDBm:   -10,
		IFBandwidthHz: 100,
		AverageCount:  1,
		Points:        3,
	}
	acq := vna.NewAcquirer(client, settings, poll.Policy{Interval: 100 * time.Millisecond, MaxAttempts: 50}, clock)

	seq, err := NewSequencer(link, acq, Options{
		MotorID:     2,
		StepsPerRev: 14400,
		NAngles:     8,
		Points:      3,
		Clock:       clock,
	})
	require.NoError(t, err)

	mat, err := seq.Run(context.Background())
	require.NoError(t, err)

	for i, target := range seq.Schedule() {
		assert.Equal(t, []complex128{complex(float64(target), 0), complex(float64(target), 1), complex(float64(target), 2)}, mat.Row(i))
	}
	assert.Equal(t, 8, instrument.Sweeps())
	assert.Equal(t, seq.Schedule()[7], motor.Mod(rotator.Position(), 14400))
	// the controller's revolution count is kept
	assert.Equal(t, int64(3*14400), rotator.Position()-motor.Mod(rotator.Position(), 14400))
}
