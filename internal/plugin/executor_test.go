package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// scriptPlugin writes a shell script plugin into a temporary directory.
func scriptPlugin(t *testing.T, script string, actions ...string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "plugin.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return &Plugin{
		Manifest: Manifest{
			Name:       "test-plugin",
			Version:    "1.0.0",
			Executable: "plugin.sh",
			Actions:    actions,
		},
		Path:       dir,
		Executable: path,
	}
}

func TestExecutor_Execute(t *testing.T) {
	plugin := scriptPlugin(t, "echo '{\"success\":true,\"data\":{\"message\":\"hello world\"}}'\n", "announce")

	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{
		Action:  "announce",
		Gesture: "spiral",
		Config:  json.RawMessage(`{"key":"value"}`),
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if !response.Success {
		t.Errorf("expected success=true, got false")
	}

	var data map[string]any
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["message"] != "hello world" {
		t.Errorf("expected message 'hello world', got %v", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	plugin := scriptPlugin(t, "INPUT=$(cat)\necho \"{\\\"success\\\":true,\\\"data\\\":{\\\"received\\\":$INPUT}}\"\n")

	request := &Request{
		Action:    "echo",
		Gesture:   "spiral",
		Tier:      2,
		Metric:    "dtw",
		Aggregate: 0.25,
		Scores:    map[string]float64{"LeftArm": 0.5},
		Config:    json.RawMessage(`{"setting":"enabled"}`),
		Params:    json.RawMessage(`{"count":42}`),
	}
	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, request)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var data struct {
		Received Request `json:"received"`
	}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	got := data.Received
	if got.Gesture != "spiral" || got.Tier != 2 || got.Metric != "dtw" || got.Aggregate != 0.25 {
		t.Errorf("unexpected request echoed: %+v", got)
	}
	if got.Scores["LeftArm"] != 0.5 {
		t.Errorf("expected scores to be forwarded, got %v", got.Scores)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	plugin := scriptPlugin(t, "exec sleep 5\n")

	start := time.Now()
	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), plugin, &Request{Action: "slow"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout was not enforced")
	}
}

func TestExecutor_Execute_ErrorResponse(t *testing.T) {
	plugin := scriptPlugin(t, "echo '{\"success\":false,\"error\":\"something went wrong\"}'\n")

	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{Action: "fail"})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if response.Success {
		t.Error("expected success=false")
	}
	if response.Error != "something went wrong" {
		t.Errorf("unexpected error message %q", response.Error)
	}
}

func TestExecutor_Execute_InvalidJSON(t *testing.T) {
	plugin := scriptPlugin(t, "echo 'not json'\n")

	_, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{Action: "x"})
	if err == nil || !strings.Contains(err.Error(), "failed to parse plugin response") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestExecutor_Execute_NonZeroExit(t *testing.T) {
	plugin := scriptPlugin(t, "echo 'boom' >&2\nexit 1\n")

	_, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{Action: "x"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestExecutor_Execute_UnsupportedAction(t *testing.T) {
	plugin := scriptPlugin(t, "echo '{\"success\":true}'\n", "announce")

	if _, err := NewExecutor(time.Second).Execute(context.Background(), plugin, &Request{Action: "delete"}); err == nil {
		t.Fatal("expected error for unsupported action")
	}
}

func TestNewExecutor_DefaultTimeout(t *testing.T) {
	if got := NewExecutor(0).Timeout(); got != 5*time.Second {
		t.Errorf("expected default timeout 5s, got %s", got)
	}
	if got := NewExecutor(time.Second).Timeout(); got != time.Second {
		t.Errorf("expected timeout 1s, got %s", got)
	}
}
