package recognition

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/logger"
)

// recentSpeedWindow is the window used for the speed reported with a result.
const recentSpeedWindow = time.Second

// evaluateLocked recomputes the aggregate of ms for m, tracks the leader and
// eliminates ms when it exceeds its threshold. Episodes that started with a
// single candidate never eliminate.
func (c *Coordinator) evaluateLocked(ctx context.Context, ms *MatchState, m Metric) {
	ep := c.ep
	agg := ms.recompute(m, c.opts.Channels)
	// Decided on the count at episode start, not the live set.
	if ep.initial == 1 {
		return
	}

	if leader := ep.leader[m]; leader == nil || (leader != ms && agg < leader.aggregate[m]) {
		ep.leader[m] = ms
	}
	if agg > ms.thresholds[m] {
		c.eliminateLocked(ctx, ms, m)
	}
}

func (c *Coordinator) eliminateLocked(ctx context.Context, ms *MatchState, m Metric) {
	ep := c.ep
	ms.eliminated = true

	remaining := ep.candidates[:0]
	for _, cand := range ep.candidates {
		if cand != ms {
			remaining = append(remaining, cand)
		}
	}
	ep.candidates = remaining

	for metric, leader := range ep.leader {
		if leader == ms {
			ep.leader[metric] = c.rescanLocked(Metric(metric))
		}
	}

	c.metrics.CandidateEliminated(m.String(), len(ep.candidates))
	c.log.Debug(ctx, "candidate eliminated",
		logger.String("gesture", ms.Name()),
		logger.String("metric", m.String()),
		logger.Float64("aggregate", ms.aggregate[m]),
		logger.Float64("threshold", ms.thresholds[m]),
		logger.Int("remaining", len(ep.candidates)))
	c.emitLocked(Event{
		Kind:      CandidateEliminated,
		EpisodeID: ep.id,
		Elimination: &Elimination{
			Gesture:   ms.Name(),
			Metric:    m,
			Aggregate: ms.aggregate[m],
			Threshold: ms.thresholds[m],
			Remaining: len(ep.candidates),
		},
	})

	if len(ep.candidates) == 0 {
		c.failLocked(ctx, &Failure{Reason: AllEliminated})
	}
}

// rescanLocked picks the surviving candidate with the lowest aggregate for m.
// Ties go to the earlier catalog entry.
func (c *Coordinator) rescanLocked(m Metric) *MatchState {
	var best *MatchState
	for _, cand := range c.ep.candidates {
		if best == nil || cand.aggregate[m] < best.aggregate[m] {
			best = cand
		}
	}
	return best
}

func (c *Coordinator) activeMetric() Metric {
	if c.opts.UseDTW {
		return DTW
	}
	return Euclidean
}

func (c *Coordinator) proposeLocked(ctx context.Context, ch gesture.Channel, name string) {
	ep := c.ep
	ms := ep.states[name]
	if ms == nil || ms.eliminated {
		c.log.Debug(ctx, "ignoring proposal for eliminated gesture",
			logger.String("channel", ch.String()),
			logger.String("gesture", name))
		return
	}
	if prev, ok := ep.proposals[ch]; ok && prev != name {
		c.log.Warn(ctx, "channel proposed twice",
			logger.String("channel", ch.String()),
			logger.String("previous", prev),
			logger.String("gesture", name))
	}
	ep.proposals[ch] = name

	if len(ep.proposals) < len(c.opts.Channels) {
		return
	}
	c.decideLocked(ctx)
}

// decideLocked resolves the episode once every channel has proposed.
func (c *Coordinator) decideLocked(ctx context.Context) {
	ep := c.ep

	agreed := ep.proposals[c.opts.Channels[0]]
	for _, ch := range c.opts.Channels[1:] {
		if ep.proposals[ch] != agreed {
			proposals := make(map[gesture.Channel]string, len(ep.proposals))
			for k, v := range ep.proposals {
				proposals[k] = v
			}
			c.failLocked(ctx, &Failure{Reason: Disagreement, Proposals: proposals})
			return
		}
	}

	ms := ep.states[agreed]
	if c.opts.CheckMotionDistance {
		reference := ms.gesture.ReferenceDistance(c.opts.Channels)
		player := ms.playerDistance(c.opts.Channels)
		if player < c.opts.MinMotionRatio*reference {
			c.log.Info(ctx, "insufficient motion",
				logger.String("gesture", agreed),
				logger.Float64("player_distance", player),
				logger.Float64("reference_distance", reference))
			c.failLocked(ctx, &Failure{Reason: InsufficientMotion, Gesture: agreed})
			return
		}
	}
	c.succeedLocked(ctx, ms)
}

func (c *Coordinator) succeedLocked(ctx context.Context, ms *MatchState) {
	ep := c.ep
	m := c.activeMetric()
	ms.recompute(m, c.opts.Channels)

	res := &Result{
		GestureID:    ms.gesture.ID,
		Gesture:      ms.Name(),
		Tier:         ms.gesture.Tier,
		Metric:       m,
		Aggregate:    ms.aggregate[m],
		Euclidean:    ms.snapshot(Euclidean),
		AverageSpeed: c.tracker.RecentSpeed(c.opts.Channels, recentSpeedWindow),
		Duration:     time.Since(ep.startedAt),
	}
	if c.opts.UseDTW {
		res.DTW = ms.snapshot(DTW)
	}

	c.metrics.EpisodeResolved("success", "")
	c.log.Info(ctx, "gesture recognized",
		logger.String("episode_id", ep.id),
		logger.String("gesture", res.Gesture),
		logger.Int("tier", res.Tier),
		logger.Float64("aggregate", res.Aggregate))
	c.emitLocked(Event{Kind: RecognitionSucceeded, EpisodeID: ep.id, Result: res})
	c.resetLocked(ctx, ep.id)
}

func (c *Coordinator) failLocked(ctx context.Context, f *Failure) {
	ep := c.ep

	c.metrics.EpisodeResolved("failure", string(f.Reason))
	c.log.Info(ctx, "recognition failed",
		logger.String("episode_id", ep.id),
		logger.String("reason", string(f.Reason)))
	c.emitLocked(Event{Kind: RecognitionFailed, EpisodeID: ep.id, Failure: f})
	c.resetLocked(ctx, ep.id)
}

// resetLocked ends the episode, clears readiness and reloads the catalog so
// the next episode starts from pristine gestures.
func (c *Coordinator) resetLocked(ctx context.Context, episodeID string) {
	c.ep = nil
	clear(c.ready)

	gestures, err := c.loader.Load(c.baseCtx)
	switch {
	case err == nil:
		c.gestures = gestures
	case gestures != nil:
		c.log.Warn(ctx, "catalog reloaded with errors", logger.Error(err))
		c.gestures = gestures
	case errors.Is(err, context.Canceled):
		c.log.Debug(ctx, "catalog reload canceled")
	default:
		c.log.Error(ctx, "catalog reload failed, keeping previous gestures", logger.Error(err))
	}

	c.emitLocked(Event{Kind: EpisodeReset, EpisodeID: episodeID})
}

// idleGuardLocked forces a DTW elimination pass over all candidates and, when
// the player moved enough during the episode, proposes the DTW leader on
// every channel.
func (c *Coordinator) idleGuardLocked(ctx context.Context) {
	if !c.opts.UseDTW {
		return
	}
	ep := c.ep
	for _, ms := range append([]*MatchState(nil), ep.candidates...) {
		if c.ep != ep {
			return
		}
		if !ms.eliminated {
			c.evaluateLocked(ctx, ms, DTW)
		}
	}
	if c.ep != ep {
		return
	}

	leader := ep.leader[DTW]
	if leader == nil || leader.eliminated {
		leader = c.rescanLocked(DTW)
	}
	if leader == nil {
		return
	}

	speed := c.tracker.AverageSpeed(c.opts.Channels, ep.clock)
	required := c.opts.MinSpeedRatio * leader.gesture.AverageRecordedSpeed()
	if speed < required {
		c.log.Debug(ctx, "idle guard: too little motion to propose",
			logger.String("leader", leader.Name()),
			logger.Float64("speed", speed),
			logger.Float64("required", required))
		return
	}

	for _, ch := range c.opts.Channels {
		c.proposeLocked(ctx, ch, leader.Name())
		if c.ep != ep {
			return
		}
	}
}

// CandidateStatus is a snapshot of one candidate.
type CandidateStatus struct {
	Gesture            string                      `json:"gesture"`
	Eliminated         bool                        `json:"eliminated"`
	Euclidean          map[gesture.Channel]float64 `json:"euclidean"`
	DTW                map[gesture.Channel]float64 `json:"dtw"`
	EuclideanAggregate float64                     `json:"euclidean_aggregate"`
	DTWAggregate       float64                     `json:"dtw_aggregate"`
	EuclideanThreshold float64                     `json:"euclidean_threshold"`
	DTWThreshold       float64                     `json:"dtw_threshold"`
}

// Status is a snapshot of the coordinator.
type Status struct {
	Phase      Phase                      `json:"phase"`
	EpisodeID  string                     `json:"episode_id,omitempty"`
	Metric     Metric                     `json:"metric"`
	Gestures   int                        `json:"gestures"`
	Ready      map[gesture.Channel]bool   `json:"ready"`
	Candidates []CandidateStatus          `json:"candidates,omitempty"`
	Proposals  map[gesture.Channel]string `json:"proposals,omitempty"`
	Leader     string                     `json:"leader,omitempty"`
}

// Status returns a snapshot of the current phase and, during an episode,
// every candidate's scores in catalog order.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Phase:    Armed,
		Metric:   c.activeMetric(),
		Gestures: len(c.gestures),
		Ready:    make(map[gesture.Channel]bool, len(c.opts.Channels)),
	}
	for _, ch := range c.opts.Channels {
		st.Ready[ch] = c.ready[ch]
	}

	ep := c.ep
	if ep == nil {
		return st
	}
	st.Phase = Active
	st.EpisodeID = ep.id
	st.Proposals = make(map[gesture.Channel]string, len(ep.proposals))
	for ch, name := range ep.proposals {
		st.Proposals[ch] = name
	}
	if leader := ep.leader[st.Metric]; leader != nil {
		st.Leader = leader.Name()
	}

	for _, ms := range ep.all {
		st.Candidates = append(st.Candidates, CandidateStatus{
			Gesture:            ms.Name(),
			Eliminated:         ms.eliminated,
			Euclidean:          ms.snapshot(Euclidean),
			DTW:                ms.snapshot(DTW),
			EuclideanAggregate: ms.aggregate[Euclidean],
			DTWAggregate:       ms.aggregate[DTW],
			EuclideanThreshold: ms.thresholds[Euclidean],
			DTWThreshold:       ms.thresholds[DTW],
		})
	}
	return st
}
