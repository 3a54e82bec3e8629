package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/natya/internal/plugin"
)

func request(t *testing.T, req plugin.Request) *strings.Reader {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return strings.NewReader(string(data))
}

func TestHandle_VolumeScalesWithTier(t *testing.T) {
	var scripts []string
	run := func(s string) error {
		scripts = append(scripts, s)
		return nil
	}

	resp := handle(request(t, plugin.Request{Action: "volume-up", Tier: 3, Config: json.RawMessage(`{"step":5}`)}), run)
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if len(scripts) != 1 || !strings.Contains(scripts[0], "+ 15)") {
		t.Errorf("unexpected scripts %q", scripts)
	}

	scripts = nil
	handle(request(t, plugin.Request{Action: "volume-down"}), run)
	if len(scripts) != 1 || !strings.Contains(scripts[0], "+ -10)") {
		t.Errorf("unexpected scripts %q", scripts)
	}
}

func TestHandle_KeyRepeats(t *testing.T) {
	count := 0
	resp := handle(request(t, plugin.Request{Action: "brightness-up", Tier: 2}), func(s string) error {
		if !strings.Contains(s, "key code 144") {
			t.Errorf("unexpected script %q", s)
		}
		count++
		return nil
	})
	if !resp.Success || count != 2 {
		t.Errorf("expected 2 key presses, got %d (%+v)", count, resp)
	}
}

func TestHandle_Errors(t *testing.T) {
	noop := func(string) error { return nil }

	if resp := handle(strings.NewReader("{"), noop); resp.Success || resp.Error == "" {
		t.Errorf("expected decode error, got %+v", resp)
	}
	if resp := handle(request(t, plugin.Request{Action: "launch"}), noop); resp.Success {
		t.Errorf("expected unknown action error, got %+v", resp)
	}
	if resp := handle(request(t, plugin.Request{Action: "volume-up", Config: json.RawMessage(`"loud"`)}), noop); resp.Success {
		t.Errorf("expected config error, got %+v", resp)
	}

	resp := handle(request(t, plugin.Request{Action: "media-next"}), func(string) error { return errors.New("denied") })
	if resp.Success || !strings.Contains(resp.Error, "denied") {
		t.Errorf("expected script error, got %+v", resp)
	}
}

func TestManifest_ListsEveryAction(t *testing.T) {
	data, err := os.ReadFile(filepath.Join(".", "plugin.json"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var m plugin.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	for name := range actions {
		if !m.Supports(name) {
			t.Errorf("manifest is missing action %q", name)
		}
	}
	if len(m.Actions) != len(actions) {
		t.Errorf("manifest lists %d actions, plugin handles %d", len(m.Actions), len(actions))
	}
}
