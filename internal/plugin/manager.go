package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/ayusman/natya/internal/logger"
)

// ErrPluginNotFound is returned when a requested plugin cannot be found.
var ErrPluginNotFound = errors.New("plugin not found")

const manifestFile = "plugin.json"

// Manager discovers plugins under a directory and serves them by name.
type Manager struct {
	pluginDir string
	log       logger.Logger

	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewManager creates a Manager for pluginDir. Nothing is loaded until
// Discover.
func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		log:       logger.Named("plugin"),
		plugins:   make(map[string]*Plugin),
	}
}

// Discover rescans the plugin directory and replaces the known set. Each
// subdirectory with a valid manifest becomes a plugin; broken ones are
// skipped with a warning and the first of two same-named plugins wins. A
// missing directory yields no plugins.
func (m *Manager) Discover(ctx context.Context) error {
	var entries []os.DirEntry
	info, err := os.Stat(m.pluginDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("scan plugins: %w", err)
	case info.IsDir():
		if entries, err = os.ReadDir(m.pluginDir); err != nil {
			return fmt.Errorf("scan plugins: %w", err)
		}
	}

	found := make(map[string]*Plugin)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.pluginDir, entry.Name())
		p, err := loadPlugin(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			m.log.Warn(ctx, "skipping plugin", logger.String("path", dir), logger.Error(err))
			continue
		}
		if prev, dup := found[p.Manifest.Name]; dup {
			m.log.Warn(ctx, "duplicate plugin name",
				logger.String("name", p.Manifest.Name),
				logger.String("kept", prev.Path),
				logger.String("path", dir))
			continue
		}
		found[p.Manifest.Name] = p
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	m.log.Info(ctx, "plugins discovered", logger.Int("count", len(found)), logger.String("dir", m.pluginDir))
	return nil
}

// loadPlugin reads and validates the manifest in dir. A missing manifest
// is reported as fs.ErrNotExist.
func loadPlugin(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

// Get returns the plugin called name, or an error wrapping
// ErrPluginNotFound.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.plugins[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.SortedFunc(maps.Values(m.plugins), func(a, b *Plugin) int {
		return strings.Compare(a.Manifest.Name, b.Manifest.Name)
	})
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
