// Package plugin discovers and runs the external programs bound to recognized
// gestures. A plugin lives in its own directory with a plugin.json manifest and
// exchanges one JSON request and response over stdin and stdout.
package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Validate checks that the manifest names a plugin and a local executable.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return errors.New("manifest name is required")
	}
	if m.Executable == "" {
		return fmt.Errorf("plugin %q: executable is required", m.Name)
	}
	if filepath.IsAbs(m.Executable) || !filepath.IsLocal(m.Executable) {
		return fmt.Errorf("plugin %q: executable must be inside the plugin directory", m.Name)
	}
	return nil
}

// Supports reports whether action is listed in the manifest. A manifest
// without actions accepts any.
func (m *Manifest) Supports(action string) bool {
	return len(m.Actions) == 0 || slices.Contains(m.Actions, action)
}

// Request is sent to a plugin when a bound gesture is recognized.
type Request struct {
	Action    string             `json:"action"`
	Gesture   string             `json:"gesture"`
	Tier      int                `json:"tier"`
	Metric    string             `json:"metric,omitempty"`
	Aggregate float64            `json:"aggregate"`
	Scores    map[string]float64 `json:"scores,omitempty"`
	Config    json.RawMessage    `json:"config"`
	Params    json.RawMessage    `json:"params"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
