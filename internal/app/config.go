package app

import (
	"github.com/ayusman/natya/internal/config"
	"github.com/ayusman/natya/internal/metrics"
	"github.com/ayusman/natya/internal/recognition"
	"github.com/ayusman/natya/internal/store"
)

// ConfigFrom maps process configuration onto an app Config. Recognition
// tuning not exposed by cfg keeps its defaults.
func ConfigFrom(cfg *config.Config, st *store.Store, m *metrics.Manager) (Config, error) {
	channels, err := cfg.ChannelSet()
	if err != nil {
		return Config{}, err
	}
	anchor, err := cfg.Anchor()
	if err != nil {
		return Config{}, err
	}
	scale, err := cfg.Scale()
	if err != nil {
		return Config{}, err
	}

	opts := recognition.DefaultOptions()
	opts.UseDTW = cfg.UseDTW
	opts.VelocityAdjustedPacing = cfg.VelocityAdjustedPacing
	opts.MinPaceFactor = cfg.MinPaceFactor
	opts.MaxPaceFactor = cfg.MaxPaceFactor
	opts.CheckMotionDistance = cfg.CheckMotionDistance
	opts.Channels = channels
	opts.AnchorChannel = anchor
	opts.IdleSpeedThreshold = cfg.IdleSpeedThreshold
	opts.IdleWindow = cfg.IdleWindow

	return Config{
		Store:          st,
		CatalogFile:    cfg.CatalogFile,
		RestrictTo:     cfg.RestrictToGesture,
		Scale:          scale,
		Recognition:    opts,
		PluginDir:      cfg.PluginDir,
		PluginTimeout:  cfg.PluginTimeout,
		EpisodeTimeout: cfg.EpisodeTimeout,
		Metrics:        m,
	}, nil
}
