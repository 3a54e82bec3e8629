// Package main is a system control plugin for macOS. It adjusts volume and
// brightness and drives media playback through AppleScript, scaling
// stepped actions by the tier of the recognized gesture.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/ayusman/natya/internal/plugin"
)

// settings is the per-binding config accepted by stepped actions.
type settings struct {
	Step int `json:"step"`
}

type action func(req *plugin.Request, s settings) []string

var actions = map[string]action{
	"volume-up":        volume(+1),
	"volume-down":      volume(-1),
	"volume-mute":      fixed(`set volume output muted (not (output muted of (get volume settings)))`),
	"brightness-up":    keyCode(144),
	"brightness-down":  keyCode(145),
	"media-play-pause": fixed(keyScript(100)),
	"media-next":       fixed(keyScript(101)),
	"media-prev":       fixed(keyScript(98)),
}

func main() {
	resp := handle(os.Stdin, runAppleScript)
	json.NewEncoder(os.Stdout).Encode(resp)
}

// handle decodes one request, builds its scripts and runs them in order.
func handle(r io.Reader, run func(script string) error) plugin.Response {
	var req plugin.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return plugin.Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	scripts, err := scriptsFor(&req)
	if err != nil {
		return plugin.Response{Error: err.Error()}
	}
	for _, script := range scripts {
		if err := run(script); err != nil {
			return plugin.Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)}
		}
	}
	return plugin.Response{Success: true}
}

func scriptsFor(req *plugin.Request) ([]string, error) {
	fn, ok := actions[req.Action]
	if !ok {
		return nil, fmt.Errorf("unknown action: %s", req.Action)
	}
	var s settings
	if len(req.Config) > 0 && string(req.Config) != "null" {
		if err := json.Unmarshal(req.Config, &s); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	return fn(req, s), nil
}

// repeats is one step per tier above zero, at least one.
func repeats(req *plugin.Request) int {
	return max(req.Tier, 1)
}

func volume(sign int) action {
	return func(req *plugin.Request, s settings) []string {
		step := s.Step
		if step <= 0 {
			step = 10
		}
		delta := sign * step * repeats(req)
		return []string{fmt.Sprintf(`set volume output volume ((output volume of (get volume settings)) + %d)`, delta)}
	}
}

func keyCode(code int) action {
	return func(req *plugin.Request, _ settings) []string {
		scripts := make([]string, repeats(req))
		for i := range scripts {
			scripts[i] = keyScript(code)
		}
		return scripts
	}
}

func fixed(script string) action {
	return func(*plugin.Request, settings) []string {
		return []string{script}
	}
}

func keyScript(code int) string {
	return fmt.Sprintf("tell application \"System Events\"\n\tkey code %d\nend tell", code)
}

func runAppleScript(script string) error {
	output, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
