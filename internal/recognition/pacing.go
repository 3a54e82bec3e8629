package recognition

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// interval converts a sampling interval in seconds to a duration.
func interval(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// pace returns the delay until the next waypoint. With velocity-adjusted
// pacing the nominal interval is stretched or shrunk by the ratio of recorded
// to live speed, clamped to [min, max] times the interval. A stationary
// player gets the maximum; a missing recorded velocity keeps the nominal pace.
func pace(nominal time.Duration, recorded *r3.Vec, live r3.Vec, opts Options) time.Duration {
	if !opts.VelocityAdjustedPacing || recorded == nil {
		return nominal
	}

	factor := opts.MaxPaceFactor
	if liveSpeed := r3.Norm(live); liveSpeed > 0 {
		factor = r3.Norm(*recorded) / liveSpeed
		factor = max(opts.MinPaceFactor, min(opts.MaxPaceFactor, factor))
	}
	return time.Duration(float64(nominal) * factor)
}
