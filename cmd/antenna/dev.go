package main

import (
	"math"
	"math/cmplx"

	"github.com/banshee-data/antenna.report/internal/config"
	"github.com/banshee-data/antenna.report/internal/motor"
	"github.com/banshee-data/antenna.report/internal/vna"
)

// devRig is a simulated rotator and VNA. The instrument reports a dipole-like
// pattern at whatever angle the rotator is at when a sweep completes.
type devRig struct {
	rotator    *motor.Simulator
	instrument *vna.Simulator
}

// newDevRig builds the rig used by -dev.
var newDevRig = startDevRig

func startDevRig(cfg *config.Config) (*devRig, error) {
	rotator := motor.NewSimulator(cfg.MotorID, 0)
	rotator.Modulus = cfg.StepsPerRev

	instrument := vna.NewSimulator("SIM-0001")
	instrument.Trace = func(_ int, freqs []float64) []complex128 {
		theta := 2 * math.Pi * float64(motor.Mod(rotator.Position(), cfg.StepsPerRev)) / float64(cfg.StepsPerRev)
		return dipoleTrace(theta, freqs)
	}
	if err := instrument.Listen("127.0.0.1:0"); err != nil {
		return nil, err
	}
	return &devRig{rotator: rotator, instrument: instrument}, nil
}

// dipoleTrace returns a figure-eight gain with a small floor so the nulls
// stay finite in dB, and a phase that advances with frequency.
func dipoleTrace(theta float64, freqs []float64) []complex128 {
	gain := 0.01 + math.Abs(math.Cos(theta))
	out := make([]complex128, len(freqs))
	for i, f := range freqs {
		out[i] = cmplx.Rect(gain, math.Mod(f/1e6, 2*math.Pi))
	}
	return out
}

func (d *devRig) Close() error {
	d.rotator.Close()
	return d.instrument.Close()
}
