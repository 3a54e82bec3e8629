// Package tray provides the system tray menu: a recognition toggle, the last
// recognized gesture and shortcuts to the settings page and quit.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Handlers are invoked from the tray's event goroutine. Nil handlers are
// skipped.
type Handlers struct {
	Toggle   func(enabled bool)
	Settings func()
	Quit     func()
}

// Tray is the menu bar presence of the running service.
type Tray struct {
	handlers Handlers

	mu       sync.Mutex
	enabled  bool
	last     string
	toggle   *systray.MenuItem
	lastItem *systray.MenuItem
}

// New creates a Tray showing recognition as enabled.
func New(h Handlers) *Tray {
	return &Tray{handlers: h, enabled: true}
}

// Run shows the tray and blocks until Quit. It must be called from the
// main goroutine.
func (t *Tray) Run() {
	systray.Run(t.build, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) build() {
	systray.SetTitle("Natya")
	systray.SetTooltip("Natya Motion Recognition")

	t.mu.Lock()
	t.toggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gesture recognition")
	systray.AddSeparator()
	t.lastItem = systray.AddMenuItem(lastTitle(t.last), "Last recognized gesture")
	t.lastItem.Disable()
	toggle := t.toggle
	t.mu.Unlock()

	systray.AddSeparator()
	settings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Quit Natya")

	go func() {
		for {
			select {
			case <-toggle.ClickedCh:
				enabled := !t.IsEnabled()
				t.SetEnabled(enabled)
				if t.handlers.Toggle != nil {
					t.handlers.Toggle(enabled)
				}
			case <-settings.ClickedCh:
				if t.handlers.Settings != nil {
					t.handlers.Settings()
				}
			case <-quit.ClickedCh:
				if t.handlers.Quit != nil {
					t.handlers.Quit()
				}
				systray.Quit()
				return
			}
		}
	}()
}

// SetEnabled updates the toggle without invoking the Toggle handler.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = enabled
	if t.toggle != nil {
		t.toggle.SetTitle(toggleTitle(enabled))
	}
}

// IsEnabled returns the state shown by the toggle.
func (t *Tray) IsEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// SetLastGesture updates the last gesture shown in the menu.
func (t *Tray) SetLastGesture(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = name
	if t.lastItem != nil {
		t.lastItem.SetTitle(lastTitle(name))
	}
}

// LastGesture returns the gesture name currently shown.
func (t *Tray) LastGesture() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func lastTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}
