// Package gesture provides the gesture data model and the similarity metrics
// used to compare live motion against recorded gestures.
package gesture

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Threshold scale factors applied to pattern length times sampling interval.
const (
	EuclideanThresholdFactor = 0.654
	DTWThresholdFactor       = 1.230
)

// Track holds the recorded sequences of a single channel.
type Track struct {
	Local             []r3.Vec      `json:"local"`
	World             []r3.Vec      `json:"world,omitempty"`
	Velocity          []r3.Vec      `json:"velocity,omitempty"`
	Orientation       []quat.Number `json:"orientation,omitempty"`
	OrientationOffset quat.Number   `json:"orientation_offset"`
}

// Gesture is a recorded reference gesture.
type Gesture struct {
	ID               string             `json:"id,omitempty"`
	Name             string             `json:"name"`
	Tier             int                `json:"tier"`
	Tolerance        float64            `json:"tolerance"`
	SamplingInterval float64            `json:"sampling_interval"`
	Tracks           map[Channel]*Track `json:"tracks"`
}

// Track returns the track for c, or nil.
func (g *Gesture) Track(c Channel) *Track {
	if g.Tracks == nil {
		return nil
	}
	return g.Tracks[c]
}

// Local returns the local waypoints of c; empty when the channel is unused.
func (g *Gesture) Local(c Channel) []r3.Vec {
	if t := g.Track(c); t != nil {
		return t.Local
	}
	return nil
}

// PatternLength returns the number of local waypoints per channel. Left arm
// is authoritative; otherwise the first non-empty channel is used.
func (g *Gesture) PatternLength() int {
	if n := len(g.Local(LeftArm)); n > 0 {
		return n
	}
	for _, c := range AllChannels {
		if n := len(g.Local(c)); n > 0 {
			return n
		}
	}
	return 0
}

// EuclideanThreshold is the elimination threshold for cumulative Euclidean error.
func (g *Gesture) EuclideanThreshold() float64 {
	return EuclideanThresholdFactor * float64(g.PatternLength()) * g.SamplingInterval
}

// DTWThreshold is the elimination threshold for DTW cost.
func (g *Gesture) DTWThreshold() float64 {
	return DTWThresholdFactor * float64(g.PatternLength()) * g.SamplingInterval
}

// AverageRecordedSpeed returns the mean magnitude of all recorded velocities.
func (g *Gesture) AverageRecordedSpeed() float64 {
	var sum float64
	var n int
	for _, c := range AllChannels {
		t := g.Track(c)
		if t == nil {
			continue
		}
		for _, v := range t.Velocity {
			sum += r3.Norm(v)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// TotalReferenceDistance sums the local path lengths of every channel except Waist.
func (g *Gesture) TotalReferenceDistance() float64 {
	return g.ReferenceDistance(AllChannels)
}

// ReferenceDistance is TotalReferenceDistance restricted to channels.
func (g *Gesture) ReferenceDistance(channels []Channel) float64 {
	var total float64
	for _, c := range channels {
		if c == Waist {
			continue
		}
		total += PathLength(g.Local(c))
	}
	return total
}

// Validate checks the invariants every catalog entry must hold.
func (g *Gesture) Validate() error {
	if g.Name == "" {
		return errors.New("gesture name is required")
	}
	if g.SamplingInterval <= 0 {
		return fmt.Errorf("gesture %q: sampling interval must be positive", g.Name)
	}
	if g.Tolerance < 0 {
		return fmt.Errorf("gesture %q: tolerance must not be negative", g.Name)
	}
	n := g.PatternLength()
	if n == 0 {
		return fmt.Errorf("gesture %q: no waypoints", g.Name)
	}
	for c, t := range g.Tracks {
		if t != nil && len(t.Local) > 0 && len(t.Local) != n {
			return fmt.Errorf("gesture %q: channel %s has %d waypoints, expected %d", g.Name, c, len(t.Local), n)
		}
	}
	return nil
}

// Clone returns a deep copy of g.
func (g *Gesture) Clone() *Gesture {
	if g == nil {
		return nil
	}
	c := *g
	if g.Tracks != nil {
		c.Tracks = make(map[Channel]*Track, len(g.Tracks))
		for ch, t := range g.Tracks {
			if t == nil {
				c.Tracks[ch] = nil
				continue
			}
			c.Tracks[ch] = &Track{
				Local:             append([]r3.Vec(nil), t.Local...),
				World:             append([]r3.Vec(nil), t.World...),
				Velocity:          append([]r3.Vec(nil), t.Velocity...),
				Orientation:       append([]quat.Number(nil), t.Orientation...),
				OrientationOffset: t.OrientationOffset,
			}
		}
	}
	return &c
}

// Scale multiplies the local waypoints of each listed channel by its factor.
// Waist is the anchor and is never scaled.
func (g *Gesture) Scale(factors map[Channel]float64) {
	for c, f := range factors {
		if c == Waist || f == 1 {
			continue
		}
		t := g.Track(c)
		if t == nil {
			continue
		}
		for i, p := range t.Local {
			t.Local[i] = r3.Scale(f, p)
		}
	}
}

// PathLength returns the summed distance between consecutive points.
func PathLength(points []r3.Vec) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += r3.Norm(r3.Sub(points[i], points[i-1]))
	}
	return total
}
