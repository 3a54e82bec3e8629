// Package catalog loads the set of reference gestures available for recognition.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/logger"
)

// ErrGestureNotFound is returned when a named gesture is not in the catalog.
var ErrGestureNotFound = errors.New("gesture not found in catalog")

// Source supplies gesture records from persistent storage.
type Source interface {
	LoadGestures(ctx context.Context) ([]*gesture.Gesture, error)
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithRestrictTo limits the catalog to the gesture with the given name.
func WithRestrictTo(name string) Option {
	return func(c *Catalog) { c.restrictTo = name }
}

// WithScale multiplies local waypoints of every loaded gesture per channel.
func WithScale(factors map[gesture.Channel]float64) Option {
	return func(c *Catalog) { c.scale = factors }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Catalog) { c.log = l }
}

// Catalog keeps the last successfully loaded gesture set. Every Load reads
// the source again, so callers always get pristine records.
type Catalog struct {
	source     Source
	restrictTo string
	scale      map[gesture.Channel]float64
	log        logger.Logger

	mu       sync.RWMutex
	gestures []*gesture.Gesture
}

// New creates a Catalog reading from source.
func New(source Source, opts ...Option) *Catalog {
	c := &Catalog{source: source}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("catalog")
	}
	return c
}

// Load reads, validates and filters the gestures and returns deep copies.
// When the restricted gesture is missing, the full set is returned together
// with an error wrapping ErrGestureNotFound.
func (c *Catalog) Load(ctx context.Context) ([]*gesture.Gesture, error) {
	loaded, err := c.source.LoadGestures(ctx)
	if err != nil {
		return nil, fmt.Errorf("load gestures: %w", err)
	}

	seen := make(map[string]bool, len(loaded))
	valid := make([]*gesture.Gesture, 0, len(loaded))
	for _, g := range loaded {
		if err := g.Validate(); err != nil {
			c.log.Warn(ctx, "skipping invalid gesture", logger.Error(err))
			continue
		}
		if seen[g.Name] {
			c.log.Warn(ctx, "skipping duplicate gesture", logger.String("gesture", g.Name))
			continue
		}
		seen[g.Name] = true
		g = g.Clone()
		if len(c.scale) > 0 {
			g.Scale(c.scale)
		}
		valid = append(valid, g)
	}

	var filterErr error
	if c.restrictTo != "" {
		filtered := valid[:0:0]
		for _, g := range valid {
			if g.Name == c.restrictTo {
				filtered = append(filtered, g)
			}
		}
		if len(filtered) == 0 {
			filterErr = fmt.Errorf("%w: %q", ErrGestureNotFound, c.restrictTo)
			c.log.Warn(ctx, "restricted gesture not found, using full catalog",
				logger.String("gesture", c.restrictTo))
		} else {
			valid = filtered
		}
	}

	c.mu.Lock()
	c.gestures = valid
	c.mu.Unlock()

	return cloneAll(valid), filterErr
}

// Gestures returns copies of the last loaded set.
func (c *Catalog) Gestures() []*gesture.Gesture {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.gestures)
}

// Lookup returns a copy of the named gesture from the last loaded set.
func (c *Catalog) Lookup(name string) (*gesture.Gesture, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, g := range c.gestures {
		if g.Name == name {
			return g.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrGestureNotFound, name)
}

func cloneAll(gestures []*gesture.Gesture) []*gesture.Gesture {
	out := make([]*gesture.Gesture, len(gestures))
	for i, g := range gestures {
		out[i] = g.Clone()
	}
	return out
}
