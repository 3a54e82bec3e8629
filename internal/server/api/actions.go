package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ayusman/natya/internal/plugin"
	"github.com/ayusman/natya/internal/store"
)

// PluginLookup resolves installed plugins by name.
type PluginLookup interface {
	Get(name string) (*plugin.Plugin, error)
}

// ActionHandler serves the bindings between gestures and plugin actions. A
// gesture may carry several bindings; every enabled one runs when it is
// recognized.
type ActionHandler struct {
	store   *store.Store
	plugins PluginLookup
}

// NewActionHandler creates an ActionHandler. When plugins is non-nil,
// bindings must name an installed plugin and one of its actions.
func NewActionHandler(s *store.Store, plugins PluginLookup) *ActionHandler {
	return &ActionHandler{store: s, plugins: plugins}
}

// ServeHTTP routes /api/actions and /api/actions/{id}.
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := segments(r, "/api/actions")

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		h.list(w)
	case len(parts) == 0 && r.Method == http.MethodPost:
		h.create(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		if a, ok := h.load(w, parts[0]); ok {
			writeJSON(w, http.StatusOK, newBinding(a))
		}
	case len(parts) == 1 && r.Method == http.MethodPut:
		h.update(w, r, parts[0])
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := h.store.Actions().Delete(parts[0]); err != nil {
			writeStoreError(w, err, "Action", "delete action")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case len(parts) > 1:
		writeError(w, http.StatusNotFound, "Not found")
	default:
		methodNotAllowed(w)
	}
}

// bindingRequest is the body of POST and PUT. On PUT empty fields keep
// their stored value.
type bindingRequest struct {
	GestureID  string          `json:"gesture_id"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

type binding struct {
	ID         string          `json:"id"`
	GestureID  string          `json:"gesture_id"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

func newBinding(a *store.Action) binding {
	b := binding{
		ID:         a.ID,
		GestureID:  a.GestureID,
		PluginName: a.PluginName,
		ActionName: a.ActionName,
		Config:     a.Config,
		Enabled:    a.Enabled,
		CreatedAt:  formatTime(a.CreatedAt),
	}
	if len(b.Config) == 0 {
		b.Config = json.RawMessage("{}")
	}
	return b
}

func (h *ActionHandler) list(w http.ResponseWriter) {
	actions, err := h.store.Actions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}

	out := make([]binding, len(actions))
	for i, a := range actions {
		out[i] = newBinding(a)
	}
	writeJSON(w, http.StatusOK, map[string][]binding{"actions": out})
}

func (h *ActionHandler) load(w http.ResponseWriter, id string) (*store.Action, bool) {
	a, err := h.store.Actions().GetByID(id)
	if err != nil {
		writeStoreError(w, err, "Action", "get action")
		return nil, false
	}
	return a, true
}

func (h *ActionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req bindingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	for _, f := range [...]struct{ name, value string }{
		{"gesture_id", req.GestureID},
		{"plugin_name", req.PluginName},
		{"action_name", req.ActionName},
	} {
		if f.value == "" {
			writeError(w, http.StatusBadRequest, f.name+" is required")
			return
		}
	}

	a := &store.Action{
		ID:      uuid.New().String(),
		Enabled: req.Enabled == nil || *req.Enabled,
	}
	if !h.apply(w, a, &req) {
		return
	}
	if err := h.store.Actions().Create(a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create action")
		return
	}
	writeJSON(w, http.StatusCreated, newBinding(a))
}

func (h *ActionHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	a, ok := h.load(w, id)
	if !ok {
		return
	}
	var req bindingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	if !h.apply(w, a, &req) {
		return
	}
	if err := h.store.Actions().Update(a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update action")
		return
	}
	writeJSON(w, http.StatusOK, newBinding(a))
}

// apply copies the non-empty fields of req onto a and checks that the
// gesture exists and the plugin offers the action.
func (h *ActionHandler) apply(w http.ResponseWriter, a *store.Action, req *bindingRequest) bool {
	if req.GestureID != "" {
		if _, err := h.store.Gestures().GetByID(req.GestureID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusBadRequest, "Gesture not found")
			} else {
				writeError(w, http.StatusInternalServerError, "Failed to verify gesture")
			}
			return false
		}
		a.GestureID = req.GestureID
	}
	if req.Config != nil {
		a.Config = req.Config
	}
	if req.PluginName == "" && req.ActionName == "" {
		return true
	}
	if req.PluginName != "" {
		a.PluginName = req.PluginName
	}
	if req.ActionName != "" {
		a.ActionName = req.ActionName
	}
	if h.plugins == nil {
		return true
	}

	p, err := h.plugins.Get(a.PluginName)
	switch {
	case err != nil:
		writeError(w, http.StatusBadRequest, "Plugin not found")
	case !p.Manifest.Supports(a.ActionName):
		writeError(w, http.StatusBadRequest, "Plugin does not support action")
	default:
		return true
	}
	return false
}
