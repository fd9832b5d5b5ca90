/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the engine's introspection and control surface
// over HTTP: playback status, audio session control, health, and metrics.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/friendsincode/versefeed/internal/config"
	"github.com/friendsincode/versefeed/internal/registry"
	"github.com/friendsincode/versefeed/internal/session"
	"github.com/friendsincode/versefeed/internal/telemetry"
)

// Server bundles the HTTP introspection surface.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server

	registry *registry.Registry
	session  *session.Manager
}

// New creates the introspection server.
func New(cfg *config.Config, reg *registry.Registry, sessionMgr *session.Manager, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		session:  sessionMgr,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.MetricsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/playback", s.handlePlayback)
		r.Post("/playback/pause-all", s.handlePauseAll)
		r.Get("/session", s.handleSession)
		r.Post("/session/mute", s.handleMute(true))
		r.Post("/session/unmute", s.handleMute(false))
		r.Post("/session/global-mute", s.handleGlobalMute)
		r.Post("/session/volume", s.handleVolume)
	})

	s.router = r
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           otelhttp.NewHandler(r, "http.server"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// HTTPServer returns the underlying http.Server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type playbackStateDTO struct {
	IsPlaying      bool    `json:"is_playing"`
	Muted          bool    `json:"muted"`
	Progress       float64 `json:"progress"`
	OverlayVisible bool    `json:"overlay_visible"`
	Failed         bool    `json:"failed"`
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	states := s.registry.States()
	dto := make(map[string]playbackStateDTO, len(states))
	for key, state := range states {
		dto[string(key)] = playbackStateDTO{
			IsPlaying:      state.IsPlaying,
			Muted:          state.Muted,
			Progress:       state.Progress,
			OverlayVisible: state.OverlayVisible,
			Failed:         state.Failed,
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"active_key": string(s.registry.ActiveKey()),
		"states":     dto,
	})
}

func (s *Server) handlePauseAll(w http.ResponseWriter, r *http.Request) {
	s.registry.PauseAll()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleMute(muted bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.session.SetMute(muted)
		s.writeJSON(w, http.StatusOK, s.session.State())
	}
}

func (s *Server) handleGlobalMute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.session.SetGlobalMute(body.Enabled)
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Volume float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Volume < 0 || body.Volume > 1 {
		s.writeError(w, http.StatusBadRequest, "volume must be in [0, 1]")
		return
	}

	s.session.SetVolume(body.Volume)
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
