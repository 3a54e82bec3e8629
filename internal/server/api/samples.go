package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/store"
)

// SamplesHandler handles the recorded takes of a gesture. Posting takes
// retrains the gesture's tracks from every take recorded so far.
type SamplesHandler struct {
	store   *store.Store
	trainer *gesture.Trainer
}

// NewSamplesHandler creates a new SamplesHandler with the given store.
func NewSamplesHandler(s *store.Store) *SamplesHandler {
	return &SamplesHandler{store: s, trainer: gesture.NewTrainer()}
}

// ServeHTTP routes /api/gestures/{id}/samples.
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := segments(r, "/api/gestures")
	if len(parts) != 2 || parts[1] != "samples" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	gestureID := parts[0]

	switch r.Method {
	case http.MethodGet:
		h.list(w, r, gestureID)
	case http.MethodPost:
		h.create(w, r, gestureID)
	case http.MethodDelete:
		h.clear(w, r, gestureID)
	default:
		methodNotAllowed(w)
	}
}

type createSamplesRequest struct {
	Samples []json.RawMessage `json:"samples"`
}

type sampleResponse struct {
	ID          int64           `json:"id"`
	GestureID   string          `json:"gesture_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   string          `json:"created_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

type trainResponse struct {
	Samples  int               `json:"samples"`
	Channels []gesture.Channel `json:"channels"`
	Length   int               `json:"length"`
}

// list handles GET /api/gestures/{id}/samples.
func (h *SamplesHandler) list(w http.ResponseWriter, r *http.Request, gestureID string) {
	if !h.exists(w, gestureID) {
		return
	}

	samples, err := h.store.Samples().GetByGestureID(gestureID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{
		Samples: make([]sampleResponse, 0, len(samples)),
	}
	for _, s := range samples {
		response.Samples = append(response.Samples, sampleResponse{
			ID:          s.ID,
			GestureID:   s.GestureID,
			SampleIndex: s.SampleIndex,
			Data:        s.Data,
			CreatedAt:   formatTime(s.CreatedAt),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/gestures/{id}/samples. The new takes are only
// stored when training over all takes succeeds.
func (h *SamplesHandler) create(w http.ResponseWriter, r *http.Request, gestureID string) {
	if !h.exists(w, gestureID) {
		return
	}

	var req createSamplesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "At least one sample is required")
		return
	}

	existing, err := h.store.Samples().Data(gestureID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load samples")
		return
	}
	all := append(existing, req.Samples...)

	tracks, err := h.trainer.Train(all)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Samples().Add(gestureID, req.Samples); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save samples")
		return
	}
	if err := h.store.Gestures().SaveTracks(gestureID, tracks); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save tracks")
		return
	}

	response := trainResponse{Samples: len(all)}
	for _, c := range gesture.AllChannels {
		if t, ok := tracks[c]; ok && t != nil {
			response.Channels = append(response.Channels, c)
			response.Length = len(t.Local)
		}
	}

	writeJSON(w, http.StatusCreated, response)
}

// clear handles DELETE /api/gestures/{id}/samples. Trained tracks are kept.
func (h *SamplesHandler) clear(w http.ResponseWriter, r *http.Request, gestureID string) {
	if !h.exists(w, gestureID) {
		return
	}
	if err := h.store.Samples().DeleteByGestureID(gestureID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete samples")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SamplesHandler) exists(w http.ResponseWriter, gestureID string) bool {
	if _, err := h.store.Gestures().GetByID(gestureID); err != nil {
		writeStoreError(w, err, "Gesture", "verify gesture")
		return false
	}
	return true
}
