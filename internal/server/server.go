// Package server provides the HTTP server for the Natya motion recognition system.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/natya/internal/logger"
	"github.com/ayusman/natya/internal/metrics"
	"github.com/ayusman/natya/internal/plugin"
	"github.com/ayusman/natya/internal/server/api"
	"github.com/ayusman/natya/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Config holds the server configuration. Every dependency is optional; the
// routes that need a missing one are not registered.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Recognizer api.Recognizer
	Plugins    *plugin.Manager
	Metrics    *metrics.Manager
	Logger     logger.Logger
}

// Server represents the HTTP server for the Natya application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    logger.Logger
	live   *LiveHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Logger
	if log == nil {
		log = logger.Named("server")
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics.Handler())
	}

	if s.config.Store != nil {
		gestureHandler := api.NewGestureHandler(s.config.Store)
		samplesHandler := api.NewSamplesHandler(s.config.Store)

		// /api/gestures/{id}/samples goes to the samples handler.
		gestureRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/samples") {
				samplesHandler.ServeHTTP(w, r)
				return
			}
			gestureHandler.ServeHTTP(w, r)
		})
		s.mux.Handle("/api/gestures", gestureRouter)
		s.mux.Handle("/api/gestures/", gestureRouter)

		var plugins api.PluginLookup
		if s.config.Plugins != nil {
			plugins = s.config.Plugins
		}
		actionHandler := api.NewActionHandler(s.config.Store, plugins)
		s.mux.Handle("/api/actions", actionHandler)
		s.mux.Handle("/api/actions/", actionHandler)

		s.mux.Handle("/api/results", api.NewResultHandler(s.config.Store))
	}

	if s.config.Plugins != nil {
		s.mux.HandleFunc("/api/plugins", s.handlePlugins)
	}

	if s.config.Recognizer != nil {
		episodeHandler := api.NewEpisodeHandler(s.config.Recognizer)
		s.mux.Handle("/api/episode", episodeHandler)
		s.mux.Handle("/api/episode/", episodeHandler)

		s.live = NewLiveHandler(s.config.Recognizer, s.log)
		s.mux.Handle("/api/live", s.live)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.live != nil {
		response["live_clients"] = s.live.Clients()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

type pluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

// handlePlugins handles GET /api/plugins.
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plugins := s.config.Plugins.List()
	response := make([]pluginResponse, 0, len(plugins))
	for _, p := range plugins {
		response = append(response, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Actions:     p.Manifest.Actions,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"plugins": response})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http server listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
