package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/recognition"
)

// Recognizer is the recognition surface driven over HTTP and the live socket.
type Recognizer interface {
	SubmitSample(ctx context.Context, s recognition.Sample) error
	MarkReady(ctx context.Context, ch gesture.Channel, ready bool) error
	StartEpisode(ctx context.Context) (string, error)
	Reset(ctx context.Context)
	PlayerStopped(ctx context.Context)
	Status() recognition.Status
	OnEvent(fn recognition.EventHandler)
}

// EpisodeHandler exposes episode control under /api/episode.
type EpisodeHandler struct {
	recognizer Recognizer
}

// NewEpisodeHandler creates a new EpisodeHandler.
func NewEpisodeHandler(r Recognizer) *EpisodeHandler {
	return &EpisodeHandler{recognizer: r}
}

type readyRequest struct {
	Channel string `json:"channel"`
	Ready   *bool  `json:"ready"`
}

type startResponse struct {
	EpisodeID string `json:"episode_id"`
}

// ServeHTTP routes /api/episode and /api/episode/{start,reset,ready,stopped}.
func (h *EpisodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := segments(r, "/api/episode")
	if len(parts) == 0 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		writeJSON(w, http.StatusOK, h.recognizer.Status())
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if len(parts) > 1 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch parts[0] {
	case "start":
		h.start(w, r)
	case "reset":
		h.recognizer.Reset(r.Context())
		writeJSON(w, http.StatusOK, h.recognizer.Status())
	case "ready":
		h.ready(w, r)
	case "stopped":
		h.recognizer.PlayerStopped(r.Context())
		w.WriteHeader(http.StatusAccepted)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *EpisodeHandler) start(w http.ResponseWriter, r *http.Request) {
	id, err := h.recognizer.StartEpisode(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{EpisodeID: id})
}

func (h *EpisodeHandler) ready(w http.ResponseWriter, r *http.Request) {
	var req readyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ch, err := gesture.ParseChannel(req.Channel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ready := true
	if req.Ready != nil {
		ready = *req.Ready
	}
	if err := h.recognizer.MarkReady(r.Context(), ch, ready); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.recognizer.Status())
}

// statusFor maps recognition errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, recognition.ErrChannelsNotReady),
		errors.Is(err, recognition.ErrEpisodeActive),
		errors.Is(err, recognition.ErrEmptyCatalog):
		return http.StatusConflict
	case errors.Is(err, recognition.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
