package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/store"
)

// Defaults applied to gestures created without explicit values.
const (
	defaultTolerance        = 0.15
	defaultSamplingInterval = 0.1
)

// GestureHandler handles HTTP requests for gesture resources.
type GestureHandler struct {
	store *store.Store
}

// NewGestureHandler creates a new GestureHandler with the given store.
func NewGestureHandler(s *store.Store) *GestureHandler {
	return &GestureHandler{store: s}
}

// ServeHTTP routes /api/gestures and /api/gestures/{id}.
func (h *GestureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := segments(r, "/api/gestures")

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		h.list(w, r)
	case len(parts) == 0 && r.Method == http.MethodPost:
		h.create(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.get(w, r, parts[0])
	case len(parts) == 1 && r.Method == http.MethodPut:
		h.update(w, r, parts[0])
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := h.store.Gestures().Delete(parts[0]); err != nil {
			writeStoreError(w, err, "Gesture", "delete gesture")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case len(parts) > 1:
		writeError(w, http.StatusNotFound, "Not found")
	default:
		methodNotAllowed(w)
	}
}

type createGestureRequest struct {
	Name             string                             `json:"name"`
	Tier             int                                `json:"tier"`
	Tolerance        float64                            `json:"tolerance"`
	SamplingInterval float64                            `json:"sampling_interval"`
	Tracks           map[gesture.Channel]*gesture.Track `json:"tracks,omitempty"`
}

type updateGestureRequest struct {
	Name             string  `json:"name"`
	Tier             *int    `json:"tier"`
	Tolerance        float64 `json:"tolerance"`
	SamplingInterval float64 `json:"sampling_interval"`
}

type gestureResponse struct {
	ID               string                             `json:"id"`
	Name             string                             `json:"name"`
	Tier             int                                `json:"tier"`
	Tolerance        float64                            `json:"tolerance"`
	SamplingInterval float64                            `json:"sampling_interval"`
	Samples          int                                `json:"samples"`
	Tracks           map[gesture.Channel]*gesture.Track `json:"tracks,omitempty"`
	CreatedAt        string                             `json:"created_at"`
	UpdatedAt        string                             `json:"updated_at"`
}

type listGesturesResponse struct {
	Gestures []gestureResponse `json:"gestures"`
}

func toResponse(g *store.Gesture) gestureResponse {
	return gestureResponse{
		ID:               g.ID,
		Name:             g.Name,
		Tier:             g.Tier,
		Tolerance:        g.Tolerance,
		SamplingInterval: g.SamplingInterval,
		Samples:          g.Samples,
		CreatedAt:        formatTime(g.CreatedAt),
		UpdatedAt:        formatTime(g.UpdatedAt),
	}
}

// list handles GET /api/gestures.
func (h *GestureHandler) list(w http.ResponseWriter, r *http.Request) {
	gestures, err := h.store.Gestures().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list gestures")
		return
	}

	response := listGesturesResponse{
		Gestures: make([]gestureResponse, 0, len(gestures)),
	}
	for _, g := range gestures {
		response.Gestures = append(response.Gestures, toResponse(g))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/gestures/{id}. With ?tracks=1 the trained tracks are
// included.
func (h *GestureHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	g, err := h.store.Gestures().GetByID(id)
	if err != nil {
		writeStoreError(w, err, "Gesture", "get gesture")
		return
	}

	response := toResponse(g)
	if r.URL.Query().Get("tracks") == "1" {
		tracks, err := h.store.Gestures().LoadTracks(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load tracks")
			return
		}
		response.Tracks = tracks
	}

	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/gestures. Tracks supplied in the body are stored
// as the gesture's trained reference.
func (h *GestureHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createGestureRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if req.Tier < 0 {
		writeError(w, http.StatusBadRequest, "Tier must not be negative")
		return
	}
	if req.Tolerance < 0 || req.SamplingInterval < 0 {
		writeError(w, http.StatusBadRequest, "Tolerance and sampling interval must not be negative")
		return
	}

	tolerance := req.Tolerance
	if tolerance == 0 {
		tolerance = defaultTolerance
	}
	interval := req.SamplingInterval
	if interval == 0 {
		interval = defaultSamplingInterval
	}

	g := &store.Gesture{
		ID:               uuid.New().String(),
		Name:             req.Name,
		Tier:             req.Tier,
		Tolerance:        tolerance,
		SamplingInterval: interval,
	}

	if len(req.Tracks) > 0 {
		candidate := &gesture.Gesture{
			Name:             g.Name,
			Tier:             g.Tier,
			Tolerance:        g.Tolerance,
			SamplingInterval: g.SamplingInterval,
			Tracks:           req.Tracks,
		}
		if err := candidate.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if _, err := h.store.Gestures().GetByName(req.Name); err == nil {
		writeError(w, http.StatusConflict, "Gesture name already exists")
		return
	}

	if err := h.store.Gestures().Create(g); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create gesture")
		return
	}

	response := toResponse(g)
	if len(req.Tracks) > 0 {
		if err := h.store.Gestures().SaveTracks(g.ID, req.Tracks); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save tracks")
			return
		}
		response.Tracks = req.Tracks
	}

	writeJSON(w, http.StatusCreated, response)
}

// update handles PUT /api/gestures/{id}.
func (h *GestureHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	g, err := h.store.Gestures().GetByID(id)
	if err != nil {
		writeStoreError(w, err, "Gesture", "get gesture")
		return
	}

	var req updateGestureRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Name != "" {
		g.Name = req.Name
	}
	if req.Tier != nil {
		if *req.Tier < 0 {
			writeError(w, http.StatusBadRequest, "Tier must not be negative")
			return
		}
		g.Tier = *req.Tier
	}
	if req.Tolerance > 0 {
		g.Tolerance = req.Tolerance
	}
	if req.SamplingInterval > 0 {
		g.SamplingInterval = req.SamplingInterval
	}

	if err := h.store.Gestures().Update(g); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update gesture")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(g))
}
