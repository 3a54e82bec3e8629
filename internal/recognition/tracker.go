package recognition

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/natya/internal/gesture"
)

// Sample is one timestamped reading from a channel.
type Sample struct {
	Channel   gesture.Channel `json:"channel"`
	Position  r3.Vec          `json:"position"`
	Velocity  r3.Vec          `json:"velocity"`
	Timestamp time.Time       `json:"timestamp"`
}

type velocityEntry struct {
	at time.Time
	v  r3.Vec
}

type channelHistory struct {
	latest     Sample
	seen       bool
	velocities []velocityEntry
}

// MotionTracker keeps the latest sample and a bounded velocity history per
// channel. It is safe for concurrent use.
type MotionTracker struct {
	mu       sync.Mutex
	history  time.Duration
	channels map[gesture.Channel]*channelHistory
	now      time.Time
}

// NewMotionTracker returns a tracker that retains velocities for history.
func NewMotionTracker(history time.Duration) *MotionTracker {
	return &MotionTracker{
		history:  history,
		channels: make(map[gesture.Channel]*channelHistory),
	}
}

// Observe records s. It returns false, leaving the tracker untouched, when s
// is older than the latest sample already seen on its channel.
func (t *MotionTracker) Observe(s Sample) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.channels[s.Channel]
	if h == nil {
		h = &channelHistory{}
		t.channels[s.Channel] = h
	}
	if h.seen && s.Timestamp.Before(h.latest.Timestamp) {
		return false
	}
	h.latest = s
	h.seen = true
	h.velocities = append(h.velocities, velocityEntry{at: s.Timestamp, v: s.Velocity})

	cutoff := s.Timestamp.Add(-t.history)
	drop := 0
	for drop < len(h.velocities) && h.velocities[drop].at.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		h.velocities = append(h.velocities[:0], h.velocities[drop:]...)
	}

	if s.Timestamp.After(t.now) {
		t.now = s.Timestamp
	}
	return true
}

// Latest returns the most recent sample seen on c.
func (t *MotionTracker) Latest(c gesture.Channel) (Sample, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.channels[c]
	if h == nil || !h.seen {
		return Sample{}, false
	}
	return h.latest, true
}

// Now returns the newest timestamp observed on any channel.
func (t *MotionTracker) Now() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

// AverageVelocity averages the velocities of c recorded at or after from.
func (t *MotionTracker) AverageVelocity(c gesture.Channel, from time.Time) r3.Vec {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.averageVelocity(c, from)
}

func (t *MotionTracker) averageVelocity(c gesture.Channel, from time.Time) r3.Vec {
	h := t.channels[c]
	if h == nil {
		return r3.Vec{}
	}
	var sum r3.Vec
	n := 0
	for _, e := range h.velocities {
		if e.at.Before(from) {
			continue
		}
		sum = r3.Add(sum, e.v)
		n++
	}
	if n == 0 {
		return r3.Vec{}
	}
	d := float64(n)
	return r3.Vec{X: sum.X / d, Y: sum.Y / d, Z: sum.Z / d}
}

// AverageSpeed is the mean, over channels, of the magnitude of each
// channel's average velocity since from.
func (t *MotionTracker) AverageSpeed(channels []gesture.Channel, from time.Time) float64 {
	if len(channels) == 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var total float64
	for _, c := range channels {
		total += r3.Norm(t.averageVelocity(c, from))
	}
	return total / float64(len(channels))
}

// RecentSpeed is AverageSpeed over the trailing window ending at Now.
func (t *MotionTracker) RecentSpeed(channels []gesture.Channel, window time.Duration) float64 {
	return t.AverageSpeed(channels, t.Now().Add(-window))
}
