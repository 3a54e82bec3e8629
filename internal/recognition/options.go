package recognition

import (
	"time"

	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/logger"
	"github.com/ayusman/natya/internal/metrics"
)

// Options tunes the recognition rules. Zero values are replaced by the
// defaults from DefaultOptions where a zero would be meaningless.
type Options struct {
	UseDTW                 bool
	VelocityAdjustedPacing bool
	MinPaceFactor          float64
	MaxPaceFactor          float64
	CheckMotionDistance    bool

	// Channels take part in matching and consensus, in this order.
	Channels      []gesture.Channel
	AnchorChannel gesture.Channel

	IdleSpeedThreshold float64
	IdleWindow         time.Duration

	// MinSpeedRatio scales the leader's recorded speed into the minimum
	// average speed required before the idle guard may propose.
	MinSpeedRatio float64
	// MinMotionRatio is the share of the reference distance the player must cover.
	MinMotionRatio float64
	// DTWStartRatio is the buffer fill, relative to pattern length, at which
	// DTW cost is first computed.
	DTWStartRatio float64
	// VelocityHistory bounds the velocity samples kept per channel.
	VelocityHistory time.Duration
}

// DefaultOptions returns the stock recognition rules.
func DefaultOptions() Options {
	return Options{
		UseDTW:              true,
		MinPaceFactor:       0.8,
		MaxPaceFactor:       1.2,
		CheckMotionDistance: true,
		Channels:            append([]gesture.Channel(nil), gesture.LimbChannels...),
		AnchorChannel:       gesture.Waist,
		IdleSpeedThreshold:  0.1,
		IdleWindow:          250 * time.Millisecond,
		MinSpeedRatio:       0.001,
		MinMotionRatio:      0.3,
		DTWStartRatio:       0.75,
		VelocityHistory:     10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.Channels) == 0 {
		o.Channels = d.Channels
	}
	if o.MinPaceFactor <= 0 {
		o.MinPaceFactor = d.MinPaceFactor
	}
	if o.MaxPaceFactor <= 0 {
		o.MaxPaceFactor = d.MaxPaceFactor
	}
	if o.MaxPaceFactor < o.MinPaceFactor {
		o.MaxPaceFactor = o.MinPaceFactor
	}
	if o.IdleWindow <= 0 {
		o.IdleWindow = d.IdleWindow
	}
	if o.MinSpeedRatio <= 0 {
		o.MinSpeedRatio = d.MinSpeedRatio
	}
	if o.MinMotionRatio <= 0 {
		o.MinMotionRatio = d.MinMotionRatio
	}
	if o.DTWStartRatio <= 0 {
		o.DTWStartRatio = d.DTWStartRatio
	}
	if o.VelocityHistory <= 0 {
		o.VelocityHistory = d.VelocityHistory
	}
	return o
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used by the coordinator.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// WithMetrics records recognition metrics on m.
func WithMetrics(m *metrics.Manager) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}
