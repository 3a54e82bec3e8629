// Package config defines process configuration and its loading from
// defaults, an optional YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/natya/internal/gesture"
)

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the sqlite database file. Empty means ~/.natya/natya.db.
	DBPath string `koanf:"db_path"`

	PluginDir string `koanf:"plugin_dir"`
	StaticDir string `koanf:"static_dir"`

	// CatalogFile, when set, is a JSON gesture catalog used instead of the database.
	CatalogFile string `koanf:"catalog_file"`

	// Recognition options.
	UseDTW                 bool    `koanf:"use_dtw"`
	VelocityAdjustedPacing bool    `koanf:"velocity_adjusted_pacing"`
	MinPaceFactor          float64 `koanf:"min_pace_factor"`
	MaxPaceFactor          float64 `koanf:"max_pace_factor"`
	RestrictToGesture      string  `koanf:"restrict_to_gesture"`
	CheckMotionDistance    bool    `koanf:"check_motion_distance"`

	// Channels lists the channels that must agree for a recognition.
	Channels      []string `koanf:"channels"`
	AnchorChannel string   `koanf:"anchor_channel"`

	// LimbScale multiplies recorded local waypoints per channel name.
	LimbScale map[string]float64 `koanf:"limb_scale"`

	IdleSpeedThreshold float64       `koanf:"idle_speed_threshold"`
	IdleWindow         time.Duration `koanf:"idle_window"`

	// EpisodeTimeout abandons an active episode after this long; zero disables it.
	EpisodeTimeout time.Duration `koanf:"episode_timeout"`
	PluginTimeout  time.Duration `koanf:"plugin_timeout"`

	// Tray shows the system tray icon.
	Tray bool `koanf:"tray"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":8080",
		UseDTW:                 true,
		VelocityAdjustedPacing: false,
		MinPaceFactor:          0.8,
		MaxPaceFactor:          1.2,
		CheckMotionDistance:    true,
		Channels:               []string{"LeftArm", "RightArm", "LeftLeg", "RightLeg"},
		AnchorChannel:          "Waist",
		LimbScale:              map[string]float64{},
		IdleSpeedThreshold:     0.1,
		IdleWindow:             250 * time.Millisecond,
		PluginTimeout:          5 * time.Second,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.MinPaceFactor <= 0 || c.MaxPaceFactor <= 0 {
		return fmt.Errorf("%w: pace factors must be positive", ErrInvalidConfig)
	}
	if c.MinPaceFactor > c.MaxPaceFactor {
		return fmt.Errorf("%w: min_pace_factor %.2f exceeds max_pace_factor %.2f",
			ErrInvalidConfig, c.MinPaceFactor, c.MaxPaceFactor)
	}
	if _, err := c.ChannelSet(); err != nil {
		return err
	}
	if _, err := c.Anchor(); err != nil {
		return err
	}
	if _, err := c.Scale(); err != nil {
		return err
	}
	if c.IdleWindow <= 0 {
		return fmt.Errorf("%w: idle_window must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChannelSet parses the configured consensus channels.
func (c *Config) ChannelSet() ([]gesture.Channel, error) {
	if len(c.Channels) == 0 {
		return nil, fmt.Errorf("%w: at least one channel is required", ErrInvalidConfig)
	}
	channels, err := gesture.ParseChannels(c.Channels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return channels, nil
}

// Anchor parses the anchor channel.
func (c *Config) Anchor() (gesture.Channel, error) {
	ch, err := gesture.ParseChannel(c.AnchorChannel)
	if err != nil {
		return 0, fmt.Errorf("%w: anchor_channel: %w", ErrInvalidConfig, err)
	}
	return ch, nil
}

// Scale parses the per-channel limb scale factors.
func (c *Config) Scale() (map[gesture.Channel]float64, error) {
	factors := make(map[gesture.Channel]float64, len(c.LimbScale))
	for name, f := range c.LimbScale {
		ch, err := gesture.ParseChannel(name)
		if err != nil {
			return nil, fmt.Errorf("%w: limb_scale: %w", ErrInvalidConfig, err)
		}
		if f <= 0 {
			return nil, fmt.Errorf("%w: limb_scale %s must be positive", ErrInvalidConfig, ch)
		}
		factors[ch] = f
	}
	return factors, nil
}
