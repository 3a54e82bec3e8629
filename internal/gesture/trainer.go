package gesture

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Trainer averages recorded takes of a gesture into a single set of tracks.
type Trainer struct{}

// NewTrainer creates a new Trainer instance.
func NewTrainer() *Trainer {
	return &Trainer{}
}

// Recording is one recorded take of a gesture, sampled at a fixed interval.
type Recording struct {
	SamplingInterval float64            `json:"sampling_interval,omitempty"`
	Tracks           map[Channel]*Track `json:"tracks"`
}

// Train parses raw recordings and averages them channel by channel.
// Every take is resampled to the length of the first take before
// averaging. Orientations are taken from the first take.
func (t *Trainer) Train(samples []json.RawMessage) (map[Channel]*Track, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples provided")
	}

	recordings := make([]Recording, 0, len(samples))
	for i, raw := range samples {
		var rec Recording
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse sample %d: %w", i, err)
		}
		if len(rec.Tracks) == 0 {
			return nil, fmt.Errorf("sample %d has no tracks", i)
		}
		recordings = append(recordings, rec)
	}

	reference := recordings[0]
	tracks := make(map[Channel]*Track, len(reference.Tracks))

	for c, first := range reference.Tracks {
		if first == nil || len(first.Local) < 2 {
			return nil, fmt.Errorf("sample 0 channel %s has insufficient waypoints", c)
		}
		n := len(first.Local)

		var local, world, velocity [][]r3.Vec
		for i, rec := range recordings {
			tr := rec.Tracks[c]
			if tr == nil || len(tr.Local) < 2 {
				return nil, fmt.Errorf("sample %d channel %s has insufficient waypoints", i, c)
			}
			local = append(local, resample(tr.Local, n))
			if len(first.World) > 0 && len(tr.World) > 0 {
				world = append(world, resample(tr.World, len(first.World)))
			}
			if len(first.Velocity) > 0 && len(tr.Velocity) > 0 {
				velocity = append(velocity, resample(tr.Velocity, len(first.Velocity)))
			}
		}

		tracks[c] = &Track{
			Local:             average(local),
			World:             average(world),
			Velocity:          average(velocity),
			Orientation:       first.Orientation,
			OrientationOffset: first.OrientationOffset,
		}
	}

	return tracks, nil
}

// average returns the element-wise mean of equally long paths.
func average(paths [][]r3.Vec) []r3.Vec {
	if len(paths) == 0 {
		return nil
	}
	out := make([]r3.Vec, len(paths[0]))
	for _, p := range paths {
		for i := range out {
			out[i] = r3.Add(out[i], p[i])
		}
	}
	k := 1 / float64(len(paths))
	for i := range out {
		out[i] = r3.Scale(k, out[i])
	}
	return out
}

// resample resamples a path to have exactly targetLength points using
// linear interpolation.
func resample(path []r3.Vec, targetLength int) []r3.Vec {
	if len(path) == 0 {
		return nil
	}
	if len(path) == targetLength {
		return append([]r3.Vec(nil), path...)
	}
	if len(path) == 1 || targetLength <= 1 {
		return []r3.Vec{path[0]}
	}

	result := make([]r3.Vec, targetLength)
	for i := 0; i < targetLength; i++ {
		pos := float64(i) / float64(targetLength-1) * float64(len(path)-1)

		idx := int(pos)
		if idx >= len(path)-1 {
			idx = len(path) - 2
		}
		frac := pos - float64(idx)

		p1 := path[idx]
		p2 := path[idx+1]
		result[i] = r3.Add(p1, r3.Scale(frac, r3.Sub(p2, p1)))
	}
	return result
}
