package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/natya/internal/store"
)

// ResultHandler serves the history of recognition outcomes.
type ResultHandler struct {
	store *store.Store
}

// NewResultHandler creates a new ResultHandler with the given store.
func NewResultHandler(s *store.Store) *ResultHandler {
	return &ResultHandler{store: s}
}

type resultResponse struct {
	ID        string                        `json:"id"`
	EpisodeID string                        `json:"episode_id"`
	Outcome   string                        `json:"outcome"`
	Reason    string                        `json:"reason,omitempty"`
	Gesture   string                        `json:"gesture,omitempty"`
	Tier      int                           `json:"tier"`
	Metric    string                        `json:"metric,omitempty"`
	Aggregate float64                       `json:"aggregate"`
	Scores    map[string]map[string]float64 `json:"scores,omitempty"`
	CreatedAt string                        `json:"created_at"`
}

type listResultsResponse struct {
	Results []resultResponse `json:"results"`
}

// ServeHTTP handles GET /api/results?limit=N, newest first.
func (h *ResultHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := h.store.Results().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list results")
		return
	}

	response := listResultsResponse{
		Results: make([]resultResponse, 0, len(results)),
	}
	for _, res := range results {
		response.Results = append(response.Results, resultResponse{
			ID:        res.ID,
			EpisodeID: res.EpisodeID,
			Outcome:   res.Outcome,
			Reason:    res.Reason,
			Gesture:   res.GestureName,
			Tier:      res.Tier,
			Metric:    res.Metric,
			Aggregate: res.Aggregate,
			Scores:    res.Scores,
			CreatedAt: formatTime(res.CreatedAt),
		})
	}

	writeJSON(w, http.StatusOK, response)
}
