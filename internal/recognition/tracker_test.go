package recognition

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/natya/internal/gesture"
)

func TestMotionTracker_RejectsOlderSamples(t *testing.T) {
	tr := NewMotionTracker(10 * time.Second)
	t0 := time.Unix(100, 0)

	assert.True(t, tr.Observe(Sample{Channel: gesture.LeftArm, Position: unitX, Timestamp: t0}))
	assert.True(t, tr.Observe(Sample{Channel: gesture.LeftArm, Position: unitY, Timestamp: t0}))
	assert.False(t, tr.Observe(Sample{Channel: gesture.LeftArm, Position: unitZ, Timestamp: t0.Add(-time.Millisecond)}))
	assert.True(t, tr.Observe(Sample{Channel: gesture.RightArm, Timestamp: t0.Add(-time.Second)}))

	latest, ok := tr.Latest(gesture.LeftArm)
	require.True(t, ok)
	assert.Equal(t, unitY, latest.Position)
	assert.Equal(t, t0, tr.Now())

	_, ok = tr.Latest(gesture.Head)
	assert.False(t, ok)
}

func TestMotionTracker_AverageVelocityWindow(t *testing.T) {
	tr := NewMotionTracker(10 * time.Second)
	t0 := time.Unix(100, 0)

	tr.Observe(Sample{Channel: gesture.LeftArm, Velocity: r3.Vec{X: 4}, Timestamp: t0})
	tr.Observe(Sample{Channel: gesture.LeftArm, Velocity: r3.Vec{X: 2}, Timestamp: t0.Add(time.Second)})
	tr.Observe(Sample{Channel: gesture.LeftArm, Velocity: r3.Vec{X: 0}, Timestamp: t0.Add(2 * time.Second)})

	assert.Equal(t, r3.Vec{X: 2}, tr.AverageVelocity(gesture.LeftArm, t0))
	assert.Equal(t, r3.Vec{X: 1}, tr.AverageVelocity(gesture.LeftArm, t0.Add(time.Second)))
	assert.Equal(t, r3.Vec{}, tr.AverageVelocity(gesture.LeftArm, t0.Add(time.Hour)))
	assert.Equal(t, r3.Vec{}, tr.AverageVelocity(gesture.RightArm, t0))
}

func TestMotionTracker_AverageSpeedCountsMissingChannelsAsStill(t *testing.T) {
	tr := NewMotionTracker(10 * time.Second)
	t0 := time.Unix(100, 0)

	tr.Observe(Sample{Channel: gesture.LeftArm, Velocity: r3.Vec{Y: 3}, Timestamp: t0})
	tr.Observe(Sample{Channel: gesture.RightArm, Velocity: r3.Vec{X: 1}, Timestamp: t0})

	speed := tr.AverageSpeed([]gesture.Channel{gesture.LeftArm, gesture.RightArm, gesture.LeftLeg}, t0)
	assert.InDelta(t, 4.0/3, speed, 1e-12)
	assert.Zero(t, tr.AverageSpeed(nil, t0))
}

func TestMotionTracker_PrunesHistory(t *testing.T) {
	tr := NewMotionTracker(time.Second)
	t0 := time.Unix(100, 0)

	tr.Observe(Sample{Channel: gesture.LeftArm, Velocity: r3.Vec{X: 100}, Timestamp: t0})
	tr.Observe(Sample{Channel: gesture.LeftArm, Velocity: r3.Vec{X: 1}, Timestamp: t0.Add(5 * time.Second)})

	assert.Equal(t, r3.Vec{X: 1}, tr.AverageVelocity(gesture.LeftArm, time.Time{}))
}

func TestMotionTracker_RecentSpeed(t *testing.T) {
	tr := NewMotionTracker(10 * time.Second)
	t0 := time.Unix(100, 0)

	tr.Observe(Sample{Channel: gesture.LeftArm, Velocity: r3.Vec{X: 5}, Timestamp: t0})
	tr.Observe(Sample{Channel: gesture.LeftArm, Velocity: r3.Vec{X: 0.05}, Timestamp: t0.Add(time.Second)})

	assert.InDelta(t, 0.05, tr.RecentSpeed([]gesture.Channel{gesture.LeftArm}, 250*time.Millisecond), 1e-12)
}

func TestPace(t *testing.T) {
	opts := Options{VelocityAdjustedPacing: true, MinPaceFactor: 0.8, MaxPaceFactor: 1.2}
	nominal := 100 * time.Millisecond
	recorded := r3.Vec{X: 1}

	tests := []struct {
		name     string
		opts     Options
		recorded *r3.Vec
		live     r3.Vec
		want     time.Duration
	}{
		{"disabled", Options{MinPaceFactor: 0.8, MaxPaceFactor: 1.2}, &recorded, r3.Vec{X: 2}, nominal},
		{"no recorded velocity", opts, nil, r3.Vec{X: 2}, nominal},
		{"same speed", opts, &recorded, r3.Vec{Y: 1}, nominal},
		{"stationary player", opts, &recorded, r3.Vec{}, 120 * time.Millisecond},
		{"fast player clamps", opts, &recorded, r3.Vec{X: 10}, 80 * time.Millisecond},
		{"slow player clamps", opts, &recorded, r3.Vec{X: 0.1}, 120 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pace(nominal, tt.recorded, tt.live, tt.opts))
		})
	}
}

func TestMatchState_RecomputeUsesChannelOrder(t *testing.T) {
	ms := newMatchState(line("sweep", 5, unitX, 0.1), 0)
	ms.scores[Euclidean][gesture.LeftArm] = 3
	ms.scores[Euclidean][gesture.Head] = 100

	got := ms.recompute(Euclidean, []gesture.Channel{gesture.LeftArm, gesture.RightArm})
	assert.InDelta(t, 1.5, got, 1e-12)
	assert.InDelta(t, 1.5, ms.Aggregate(Euclidean), 1e-12)
	assert.Zero(t, ms.Aggregate(DTW))
	assert.InDelta(t, 0.654*5*0.1, ms.Threshold(Euclidean), 1e-12)
	assert.InDelta(t, 1.230*5*0.1, ms.Threshold(DTW), 1e-12)
}

func TestEventJSON(t *testing.T) {
	e := Event{
		Kind:      CandidateEliminated,
		EpisodeID: "ep",
		Elimination: &Elimination{
			Gesture: "up",
			Metric:  DTW,
		},
	}
	data, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "candidate_eliminated", decoded["kind"])
	assert.Equal(t, "dtw", decoded["elimination"].(map[string]any)["metric"])

	var m Metric
	require.NoError(t, m.UnmarshalText([]byte("dtw")))
	assert.Equal(t, DTW, m)
	assert.Error(t, m.UnmarshalText([]byte("cosine")))

	var back Event
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, CandidateEliminated, back.Kind)
	assert.Equal(t, "up", back.Elimination.Gesture)

	var k EventKind
	assert.Error(t, k.UnmarshalText([]byte("exploded")))
}
