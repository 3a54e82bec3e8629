package recognition

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/natya/internal/gesture"
)

// Metric selects the similarity measure used for elimination.
type Metric int

const (
	Euclidean Metric = iota
	DTW
)

func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "euclidean"
	case DTW:
		return "dtw"
	default:
		return fmt.Sprintf("Metric(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	switch string(text) {
	case "euclidean":
		*m = Euclidean
	case "dtw":
		*m = DTW
	default:
		return fmt.Errorf("unknown metric %q", text)
	}
	return nil
}

// MatchState is the per-episode score sheet of one candidate gesture.
type MatchState struct {
	gesture *gesture.Gesture
	order   int

	scores     [2]map[gesture.Channel]float64
	aggregate  [2]float64
	thresholds [2]float64
	paths      map[gesture.Channel][]r3.Vec

	eliminated bool
}

func newMatchState(g *gesture.Gesture, order int) *MatchState {
	return &MatchState{
		gesture: g,
		order:   order,
		scores: [2]map[gesture.Channel]float64{
			make(map[gesture.Channel]float64),
			make(map[gesture.Channel]float64),
		},
		thresholds: [2]float64{g.EuclideanThreshold(), g.DTWThreshold()},
		paths:      make(map[gesture.Channel][]r3.Vec),
	}
}

// Name returns the candidate gesture's name.
func (s *MatchState) Name() string { return s.gesture.Name }

// Aggregate returns the last aggregate computed for m.
func (s *MatchState) Aggregate(m Metric) float64 { return s.aggregate[m] }

// Threshold returns the elimination threshold for m.
func (s *MatchState) Threshold(m Metric) float64 { return s.thresholds[m] }

// Score returns the per-channel score for m.
func (s *MatchState) Score(m Metric, c gesture.Channel) float64 { return s.scores[m][c] }

// Eliminated reports whether the candidate has been dropped.
func (s *MatchState) Eliminated() bool { return s.eliminated }

// recompute sets the aggregate of m to the mean score over channels, in order.
// Channels without a score yet count as zero.
func (s *MatchState) recompute(m Metric, channels []gesture.Channel) float64 {
	if len(channels) == 0 {
		s.aggregate[m] = 0
		return 0
	}
	vals := make([]float64, len(channels))
	for i, c := range channels {
		vals[i] = s.scores[m][c]
	}
	s.aggregate[m] = stat.Mean(vals, nil)
	return s.aggregate[m]
}

func (s *MatchState) snapshot(m Metric) map[gesture.Channel]float64 {
	out := make(map[gesture.Channel]float64, len(s.scores[m]))
	for c, v := range s.scores[m] {
		out[c] = v
	}
	return out
}

// playerDistance sums the path the player traced on each channel at the
// candidate's ticks, ignoring Waist.
func (s *MatchState) playerDistance(channels []gesture.Channel) float64 {
	var total float64
	for _, c := range channels {
		if c == gesture.Waist {
			continue
		}
		total += gesture.PathLength(s.paths[c])
	}
	return total
}
