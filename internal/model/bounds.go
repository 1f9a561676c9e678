package model

import "github.com/byuccl/coast/internal/clock"

// BoundsState is the adaptive sleep-interval window from spec.md §3: a
// geometric spacing of StepSpace between an initial upper and lower
// bound, narrowed from both ends as the campaign overshoots into the
// post-workload breakpoint or undershoots to zero elapsed cycles.
//
// Invariant: 0 <= StepIndexTop <= StepIndexBottom < len(StepSpace);
// Upper() >= Lower().
type BoundsState struct {
	StepSpace    []float64
	StepIndexTop int
	StepIndexBot int
}

// NewBoundsState builds the geometric step table between upper and
// lower with n points (n≈30 per spec.md), indices starting saturated at
// the two ends.
func NewBoundsState(upper, lower float64, n int) BoundsState {
	return BoundsState{
		StepSpace:    clock.GeomSpace(upper, lower, n),
		StepIndexTop: 0,
		StepIndexBot: n - 1,
	}
}

// Upper returns the current upper sleep bound.
func (b BoundsState) Upper() float64 { return b.StepSpace[b.StepIndexTop] }

// Lower returns the current lower sleep bound.
func (b BoundsState) Lower() float64 { return b.StepSpace[b.StepIndexBot] }

// ChangeBounds steps the requested bound inward by one index, or
// returns the state unchanged (saturated) once the two indices are
// adjacent or have met. down=true narrows the upper bound (shrinks toward the
// middle from above); down=false narrows the lower bound (grows toward
// the middle from below). Mirrors change_bounds in spec.md §4.F.
func (b BoundsState) ChangeBounds(down bool) BoundsState {
	if b.StepIndexTop+1 >= b.StepIndexBot {
		return b // saturated
	}
	if down {
		b.StepIndexTop++
	} else {
		b.StepIndexBot--
	}
	return b
}
