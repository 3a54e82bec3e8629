// Package recognition runs recognition episodes: it follows every candidate
// gesture on every channel, eliminates candidates that drift too far from the
// player's motion and declares a result once all channels agree.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/logger"
	"github.com/ayusman/natya/internal/metrics"
)

var (
	ErrChannelsNotReady = errors.New("not all channels are ready")
	ErrEpisodeActive    = errors.New("an episode is already active")
	ErrEmptyCatalog     = errors.New("no gestures to recognize")
	ErrClosed           = errors.New("coordinator is closed")
)

// Loader supplies a fresh catalog for each episode. Returned gestures are
// treated as read-only.
type Loader interface {
	Load(ctx context.Context) ([]*gesture.Gesture, error)
}

// Phase is the coordinator's lifecycle state.
type Phase int

const (
	Armed Phase = iota
	Active
)

func (p Phase) String() string {
	if p == Active {
		return "active"
	}
	return "armed"
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

type episode struct {
	id        string
	gen       uint64
	startedAt time.Time
	clock     time.Time
	anchor    r3.Vec

	all        []*MatchState
	candidates []*MatchState
	states     map[string]*MatchState
	initial    int
	specs      map[gesture.Channel][]matcherSpec
	proposals  map[gesture.Channel]string
	leader     [2]*MatchState
}

// Coordinator owns the episode lifecycle. All rule evaluation happens under
// a single mutex; events are queued under that mutex and delivered in order
// by a dispatcher goroutine.
type Coordinator struct {
	opts    Options
	loader  Loader
	log     logger.Logger
	metrics *metrics.Manager
	tracker *MotionTracker
	baseCtx context.Context

	mu       sync.Mutex
	gen      uint64
	ep       *episode
	ready    map[gesture.Channel]bool
	gestures []*gesture.Gesture

	workers map[gesture.Channel]*channelWorker
	queue   *eventQueue

	handlersMu sync.RWMutex
	handlers   []EventHandler

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New loads the catalog and starts one worker per configured channel plus the
// event dispatcher. ctx is kept for catalog reloads between episodes.
func New(ctx context.Context, loader Loader, options Options, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		opts:    options.withDefaults(),
		loader:  loader,
		log:     logger.Named("recognition"),
		baseCtx: context.WithoutCancel(ctx),
		ready:   make(map[gesture.Channel]bool),
		workers: make(map[gesture.Channel]*channelWorker),
		queue:   newEventQueue(),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tracker = NewMotionTracker(c.opts.VelocityHistory)

	seen := make(map[gesture.Channel]bool)
	for _, ch := range c.opts.Channels {
		if !ch.Valid() {
			return nil, fmt.Errorf("%w: %d", gesture.ErrUnknownChannel, int(ch))
		}
		if seen[ch] {
			return nil, fmt.Errorf("channel %s listed twice", ch)
		}
		seen[ch] = true
	}

	gestures, err := loader.Load(ctx)
	if err != nil {
		if gestures == nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		c.log.Warn(ctx, "catalog loaded with errors", logger.Error(err))
	}
	c.gestures = gestures

	for _, ch := range c.opts.Channels {
		w := newChannelWorker(ch, c)
		c.workers[ch] = w
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			w.run(c.stop)
		}()
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.dispatch()
	}()

	c.log.Info(ctx, "coordinator started",
		logger.Int("gestures", len(gestures)),
		logger.Int("channels", len(c.opts.Channels)),
		logger.Bool("dtw", c.opts.UseDTW))
	return c, nil
}

// Close stops the workers and the dispatcher after delivering queued events.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
	return nil
}

// Tracker exposes the motion tracker fed by SubmitSample.
func (c *Coordinator) Tracker() *MotionTracker {
	return c.tracker
}

// Channels returns the configured channels in consensus order.
func (c *Coordinator) Channels() []gesture.Channel {
	return append([]gesture.Channel(nil), c.opts.Channels...)
}

// OnEvent registers fn for every subsequent event.
func (c *Coordinator) OnEvent(fn EventHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers = append(c.handlers, fn)
}

func (c *Coordinator) dispatch() {
	deliver := func() {
		batch := c.queue.drain()
		if len(batch) == 0 {
			return
		}
		c.handlersMu.RLock()
		handlers := append([]EventHandler(nil), c.handlers...)
		c.handlersMu.RUnlock()
		for _, e := range batch {
			for _, h := range handlers {
				h(e)
			}
		}
	}

	for {
		select {
		case <-c.queue.notify:
			deliver()
		case <-c.stop:
			deliver()
			return
		}
	}
}

func (c *Coordinator) emitLocked(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	c.queue.push(e)
}

// SubmitSample records s and runs it through the matchers of its channel. It
// returns once the sample has been processed. Samples older than the latest
// one seen on the same channel are dropped.
func (c *Coordinator) SubmitSample(ctx context.Context, s Sample) error {
	if !s.Channel.Valid() {
		return fmt.Errorf("%w: %d", gesture.ErrUnknownChannel, int(s.Channel))
	}
	select {
	case <-c.stop:
		return ErrClosed
	default:
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	if !c.tracker.Observe(s) {
		c.metrics.SampleDropped()
		c.log.Debug(ctx, "dropped out-of-order sample", logger.String("channel", s.Channel.String()))
		return nil
	}
	c.metrics.SampleObserved(s.Channel.String())

	w := c.workers[s.Channel]
	if w == nil {
		return nil
	}
	req := &sampleRequest{sample: s, done: make(chan struct{})}
	select {
	case w.inbox <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stop:
		return ErrClosed
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stop:
		return ErrClosed
	}
}

// MarkReady records a channel's readiness. When every configured channel is
// ready and no episode is active, an episode starts.
func (c *Coordinator) MarkReady(ctx context.Context, ch gesture.Channel, ready bool) error {
	if _, ok := c.workers[ch]; !ok {
		return fmt.Errorf("%w: %s is not configured", gesture.ErrUnknownChannel, ch)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.ready[ch] = ready
	if c.ep != nil || !c.allReadyLocked() {
		return nil
	}
	return c.startLocked(ctx)
}

// StartEpisode starts an episode over the current catalog.
func (c *Coordinator) StartEpisode(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ep != nil {
		return "", ErrEpisodeActive
	}
	if !c.allReadyLocked() {
		return "", ErrChannelsNotReady
	}
	if err := c.startLocked(ctx); err != nil {
		return "", err
	}
	return c.ep.id, nil
}

// Abandon fails the episode with the given ID. It is a no-op when that
// episode is no longer active.
func (c *Coordinator) Abandon(ctx context.Context, episodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ep == nil || c.ep.id != episodeID {
		return
	}
	c.failLocked(ctx, &Failure{Reason: Abandoned})
}

// Reset abandons any active episode, clears readiness and reloads the catalog.
func (c *Coordinator) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ep != nil {
		c.failLocked(ctx, &Failure{Reason: Abandoned})
		return
	}
	c.resetLocked(ctx, "")
}

// PlayerStopped signals that the player has stopped moving. With DTW enabled
// it forces an elimination pass and may declare the leader.
func (c *Coordinator) PlayerStopped(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ep == nil {
		return
	}
	c.idleGuardLocked(ctx)
}

func (c *Coordinator) allReadyLocked() bool {
	for _, ch := range c.opts.Channels {
		if !c.ready[ch] {
			return false
		}
	}
	return true
}

func (c *Coordinator) startLocked(ctx context.Context) error {
	if len(c.gestures) == 0 {
		return ErrEmptyCatalog
	}

	c.gen++
	ep := &episode{
		id:        uuid.New().String(),
		gen:       c.gen,
		startedAt: time.Now(),
		clock:     c.tracker.Now(),
		states:    make(map[string]*MatchState, len(c.gestures)),
		specs:     make(map[gesture.Channel][]matcherSpec, len(c.opts.Channels)),
		proposals: make(map[gesture.Channel]string, len(c.opts.Channels)),
	}
	if s, ok := c.tracker.Latest(c.opts.AnchorChannel); ok {
		ep.anchor = s.Position
	}

	names := make([]string, 0, len(c.gestures))
	for i, g := range c.gestures {
		ms := newMatchState(g, i)
		ep.all = append(ep.all, ms)
		ep.candidates = append(ep.candidates, ms)
		ep.states[g.Name] = ms
		names = append(names, g.Name)

		for _, ch := range c.opts.Channels {
			local := g.Local(ch)
			if len(local) == 0 {
				continue
			}
			ref := make([]r3.Vec, len(local))
			for k, p := range local {
				ref[k] = r3.Add(ep.anchor, p)
			}
			var velocity []r3.Vec
			if t := g.Track(ch); t != nil {
				velocity = t.Velocity
			}
			ep.specs[ch] = append(ep.specs[ch], matcherSpec{
				gesture:   g.Name,
				reference: ref,
				velocity:  velocity,
				tolerance: g.Tolerance,
				interval:  interval(g.SamplingInterval),
			})
		}
	}
	ep.initial = len(ep.candidates)
	c.ep = ep

	c.metrics.EpisodeStarted(ep.initial)
	c.log.Info(ctx, "episode started",
		logger.String("episode_id", ep.id),
		logger.Int("candidates", ep.initial))
	c.emitLocked(Event{Kind: EpisodeStarted, EpisodeID: ep.id, Candidates: names})
	return nil
}

// assignment returns the matchers a worker holding generation have should
// run. An unchanged generation returns no specs. With no active episode the
// generation is zero.
func (c *Coordinator) assignment(ch gesture.Channel, have uint64) (uint64, []matcherSpec, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ep == nil {
		return 0, nil, false
	}
	if c.ep.gen == have {
		return have, nil, true
	}
	return c.ep.gen, c.ep.specs[ch], true
}

func (c *Coordinator) current(gen uint64) *episode {
	if c.ep == nil || c.ep.gen != gen {
		return nil
	}
	return c.ep
}

// report applies a matcher tick. It returns false when the matcher should
// stop: its candidate is gone or its episode has ended.
func (c *Coordinator) report(gen uint64, ch gesture.Channel, t tick, pos r3.Vec) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ep := c.current(gen)
	if ep == nil {
		return false
	}
	ms := ep.states[t.gesture]
	if ms == nil || ms.eliminated {
		return false
	}

	ms.scores[Euclidean][ch] += t.step
	ms.paths[ch] = append(ms.paths[ch], pos)
	if !c.opts.UseDTW {
		c.evaluateLocked(c.baseCtx, ms, Euclidean)
	} else if t.dtwReady {
		ms.scores[DTW][ch] = t.dtw
		c.evaluateLocked(c.baseCtx, ms, DTW)
	}

	return c.current(gen) != nil && !ms.eliminated
}

// propose records a completed matcher's vote.
func (c *Coordinator) propose(gen uint64, ch gesture.Channel, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current(gen) == nil {
		return
	}
	c.proposeLocked(c.baseCtx, ch, name)
}

// checkIdle runs the idle guard when the player has been still for the idle
// window.
func (c *Coordinator) checkIdle(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current(gen) == nil {
		return
	}
	speed := c.tracker.RecentSpeed(c.opts.Channels, c.opts.IdleWindow)
	if speed >= c.opts.IdleSpeedThreshold {
		return
	}
	c.log.Debug(c.baseCtx, "player idle", logger.Float64("speed", speed))
	c.idleGuardLocked(c.baseCtx)
}
