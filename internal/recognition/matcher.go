package recognition

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/natya/internal/gesture"
)

// matcherSpec is what a channel worker needs to follow one candidate on one
// channel. reference is already offset by the episode anchor.
type matcherSpec struct {
	gesture   string
	reference []r3.Vec
	velocity  []r3.Vec
	tolerance float64
	interval  time.Duration
}

// tick is the outcome of one matcher step.
type tick struct {
	gesture   string
	step      float64
	dtw       float64
	dtwReady  bool
	completed bool
}

// channelMatcher walks one candidate's waypoints on one channel.
type channelMatcher struct {
	spec     matcherSpec
	index    int
	started  bool
	nextTick time.Time
	buffer   []r3.Vec
	dtwStart int
	done     bool
}

func newChannelMatcher(spec matcherSpec, opts Options) *channelMatcher {
	return &channelMatcher{
		spec:     spec,
		dtwStart: int(math.Ceil(opts.DTWStartRatio * float64(len(spec.reference)))),
	}
}

func (m *channelMatcher) due(at time.Time) bool {
	return !m.done && (!m.started || !at.Before(m.nextTick))
}

// step scores s against the current waypoint and schedules the next one.
func (m *channelMatcher) step(s Sample, opts Options, observeDTW func(time.Duration)) tick {
	t := tick{gesture: m.spec.gesture}
	t.step = gesture.EuclideanStep(s.Position, m.spec.reference[m.index], m.spec.tolerance)

	if opts.UseDTW {
		m.buffer = append(m.buffer, s.Position)
		if len(m.buffer) >= m.dtwStart {
			start := time.Now()
			t.dtw = gesture.DTWCost(m.buffer, m.spec.reference)
			t.dtwReady = true
			observeDTW(time.Since(start))
		}
	}

	m.index++
	m.started = true
	if m.index >= len(m.spec.reference) {
		t.completed = true
		m.done = true
		return t
	}

	var recorded *r3.Vec
	if m.index < len(m.spec.velocity) {
		recorded = &m.spec.velocity[m.index]
	}
	m.nextTick = s.Timestamp.Add(pace(m.spec.interval, recorded, s.Velocity, opts))
	return t
}

type sampleRequest struct {
	sample Sample
	done   chan struct{}
}

// channelWorker owns the matchers of one channel. Matchers are rebuilt
// whenever the coordinator's episode generation changes, so no matcher state
// crosses an episode boundary.
type channelWorker struct {
	channel  gesture.Channel
	coord    *Coordinator
	inbox    chan *sampleRequest
	gen      uint64
	matchers []*channelMatcher
}

func newChannelWorker(ch gesture.Channel, c *Coordinator) *channelWorker {
	return &channelWorker{
		channel: ch,
		coord:   c,
		inbox:   make(chan *sampleRequest, 64),
	}
}

func (w *channelWorker) run(stop <-chan struct{}) {
	for {
		select {
		case req := <-w.inbox:
			w.process(req.sample)
			close(req.done)
		case <-stop:
			return
		}
	}
}

func (w *channelWorker) process(s Sample) {
	c := w.coord
	gen, specs, active := c.assignment(w.channel, w.gen)
	if gen != w.gen {
		w.gen = gen
		w.matchers = w.matchers[:0]
		for _, spec := range specs {
			w.matchers = append(w.matchers, newChannelMatcher(spec, c.opts))
		}
	}
	if !active {
		return
	}

	evaluated := false
	for _, m := range w.matchers {
		if !m.due(s.Timestamp) {
			continue
		}
		t := m.step(s, c.opts, c.metrics.DTWEvaluated)
		if !c.report(gen, w.channel, t, s.Position) {
			m.done = true
			continue
		}
		evaluated = evaluated || t.dtwReady
		if t.completed {
			c.propose(gen, w.channel, t.gesture)
		}
	}

	live := w.matchers[:0]
	for _, m := range w.matchers {
		if !m.done {
			live = append(live, m)
		}
	}
	w.matchers = live

	if evaluated && c.opts.UseDTW {
		c.checkIdle(gen)
	}
}
