package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/natya/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func createStoredGesture(t *testing.T, s *store.Store, id, name string) {
	t.Helper()
	g := &store.Gesture{ID: id, Name: name, Tier: 1, Tolerance: 0.15, SamplingInterval: 0.1}
	if err := s.Gestures().Create(g); err != nil {
		t.Fatalf("failed to create gesture: %v", err)
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGestureHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewGestureHandler(s)
	createStoredGesture(t, s, "test-gesture-1", "namaste")

	rec := doJSON(t, handler, http.MethodGet, "/api/gestures", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response listGesturesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Gestures) != 1 {
		t.Fatalf("expected 1 gesture, got %d", len(response.Gestures))
	}
	got := response.Gestures[0]
	if got.ID != "test-gesture-1" || got.Name != "namaste" || got.Tier != 1 {
		t.Errorf("unexpected gesture %+v", got)
	}
}

func TestGestureHandler_ListEmpty(t *testing.T) {
	handler := NewGestureHandler(newTestStore(t))

	rec := doJSON(t, handler, http.MethodGet, "/api/gestures", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var response listGesturesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Gestures == nil || len(response.Gestures) != 0 {
		t.Errorf("expected empty gestures array, got %v", response.Gestures)
	}
}

func TestGestureHandler_CreateDefaults(t *testing.T) {
	s := newTestStore(t)
	handler := NewGestureHandler(s)

	rec := doJSON(t, handler, http.MethodPost, "/api/gestures", map[string]any{"name": "pataka"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var response gestureResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ID == "" {
		t.Error("expected an ID to be assigned")
	}
	if response.Tolerance != defaultTolerance || response.SamplingInterval != defaultSamplingInterval {
		t.Errorf("expected defaults, got tolerance %v interval %v", response.Tolerance, response.SamplingInterval)
	}

	stored, err := s.Gestures().GetByID(response.ID)
	if err != nil {
		t.Fatalf("gesture not stored: %v", err)
	}
	if stored.Name != "pataka" {
		t.Errorf("expected stored name pataka, got %s", stored.Name)
	}
}

func TestGestureHandler_CreateWithTracks(t *testing.T) {
	s := newTestStore(t)
	handler := NewGestureHandler(s)

	body := map[string]any{
		"name":              "tripataka",
		"tier":              2,
		"tolerance":         0.2,
		"sampling_interval": 0.05,
		"tracks": map[string]any{
			"LeftArm": map[string]any{
				"local": []map[string]float64{{"X": 0}, {"X": 0.5}, {"X": 1}},
			},
		},
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/gestures", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var created gestureResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/gestures/"+created.ID+"?tracks=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var fetched gestureResponse
	if err := json.NewDecoder(rec.Body).Decode(&fetched); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(fetched.Tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(fetched.Tracks))
	}
	for _, tr := range fetched.Tracks {
		if len(tr.Local) != 3 || tr.Local[2].X != 1 {
			t.Errorf("unexpected track %+v", tr.Local)
		}
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/gestures/"+created.ID, nil)
	var plain gestureResponse
	if err := json.NewDecoder(rec.Body).Decode(&plain); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if plain.Tracks != nil {
		t.Error("expected tracks to be omitted without ?tracks=1")
	}
}

func TestGestureHandler_CreateValidation(t *testing.T) {
	s := newTestStore(t)
	handler := NewGestureHandler(s)
	createStoredGesture(t, s, "g1", "taken")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing name", map[string]any{"tier": 1}, http.StatusBadRequest},
		{"negative tier", map[string]any{"name": "a", "tier": -1}, http.StatusBadRequest},
		{"negative tolerance", map[string]any{"name": "a", "tolerance": -0.1}, http.StatusBadRequest},
		{"duplicate name", map[string]any{"name": "taken"}, http.StatusConflict},
		{"ragged tracks", map[string]any{
			"name": "ragged",
			"tracks": map[string]any{
				"LeftArm":  map[string]any{"local": []map[string]float64{{"X": 0}, {"X": 1}}},
				"RightArm": map[string]any{"local": []map[string]float64{{"X": 0}, {"X": 1}, {"X": 2}}},
			},
		}, http.StatusBadRequest},
		{"unknown channel", map[string]any{
			"name":   "alien",
			"tracks": map[string]any{"Tail": map[string]any{"local": []map[string]float64{{"X": 0}}}},
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/gestures", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGestureHandler_CreateInvalidJSON(t *testing.T) {
	handler := NewGestureHandler(newTestStore(t))

	req := httptest.NewRequest(http.MethodPost, "/api/gestures", bytes.NewBufferString("{bad"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	var response errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Error != "Invalid JSON" {
		t.Errorf("unexpected error %q", response.Error)
	}
}

func TestGestureHandler_Update(t *testing.T) {
	s := newTestStore(t)
	handler := NewGestureHandler(s)
	createStoredGesture(t, s, "g1", "alapadma")

	rec := doJSON(t, handler, http.MethodPut, "/api/gestures/g1", map[string]any{"tier": 0, "tolerance": 0.3})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	stored, err := s.Gestures().GetByID("g1")
	if err != nil {
		t.Fatalf("failed to get gesture: %v", err)
	}
	if stored.Tier != 0 || stored.Tolerance != 0.3 || stored.Name != "alapadma" {
		t.Errorf("unexpected stored gesture %+v", stored)
	}
}

func TestGestureHandler_NotFound(t *testing.T) {
	handler := NewGestureHandler(newTestStore(t))

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := doJSON(t, handler, method, "/api/gestures/missing", map[string]any{})
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", method, http.StatusNotFound, rec.Code)
		}
	}
}

func TestGestureHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	handler := NewGestureHandler(s)
	createStoredGesture(t, s, "g1", "mushti")

	rec := doJSON(t, handler, http.MethodDelete, "/api/gestures/g1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if _, err := s.Gestures().GetByID("g1"); err != store.ErrNotFound {
		t.Errorf("expected gesture to be deleted, got %v", err)
	}
}

func TestGestureHandler_MethodNotAllowed(t *testing.T) {
	handler := NewGestureHandler(newTestStore(t))

	rec := doJSON(t, handler, http.MethodPatch, "/api/gestures", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
