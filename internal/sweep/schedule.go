package sweep

import "fmt"

// Schedule returns n evenly spaced absolute step targets starting at zero,
// spaced by floor(stepsPerRev/n). When n does not divide stepsPerRev the
// final gap is wider than the others.
func Schedule(n int, stepsPerRev int64) ([]int64, error) {
	if stepsPerRev < 1 {
		return nil, fmt.Errorf("steps per revolution must be positive, got %d", stepsPerRev)
	}
	if n < 1 || int64(n) > stepsPerRev {
		return nil, fmt.Errorf("angle count must be between 1 and %d, got %d", stepsPerRev, n)
	}
	step := stepsPerRev / int64(n)
	targets := make([]int64, n)
	for i := range targets {
		targets[i] = int64(i) * step
	}
	return targets, nil
}

// Angle converts a step target to degrees in [0, 360).
func Angle(target, stepsPerRev int64) float64 {
	return 360 * float64(target%stepsPerRev) / float64(stepsPerRev)
}
