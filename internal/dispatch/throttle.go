package dispatch

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Throttle decides when a moving target warrants a new request: no more than
// once per interval, and only after the target moved past the threshold.
type Throttle struct {
	minInterval   time.Duration
	moveThreshold float64

	last       time.Time
	lastTarget orb.Point
	primed     bool
}

func NewThrottle(minInterval time.Duration, moveThreshold float64) *Throttle {
	return &Throttle{minInterval: minInterval, moveThreshold: moveThreshold}
}

// ShouldReplan reports whether a request for target should be submitted at
// now, and records it if so. The first call always replans.
func (t *Throttle) ShouldReplan(now time.Time, target orb.Point) bool {
	if !t.primed {
		t.primed = true
		t.last, t.lastTarget = now, target
		return true
	}
	if now.Sub(t.last) < t.minInterval {
		return false
	}
	if planar.DistanceSquared(target, t.lastTarget) <= t.moveThreshold*t.moveThreshold {
		return false
	}
	t.last, t.lastTarget = now, target
	return true
}
