/*
Package handler provides the HTTP handlers and routing setup for the room chat server.

This file defines the main Router, applying middleware like logging, CORS, security headers
and IP-based rate limiting before delegating requests to the health, WebSocket and static handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/samber/lo"

	"roomchat/internal/pkg/logx"
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It configures CORS and applies global and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := lo.SliceToMap(deps.Config.AllowedOrigins, func(origin string) (string, struct{}) {
		return origin, struct{}{}
	})

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients send no Origin header
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)

	r.Get("/health", HandleLiveness())

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", HandleHealth(deps))
	})

	r.With(deps.ConnectLimiter.Middleware).Get("/ws", HandleWebSocket(wsUpgrader, deps))

	if deps.Config.StaticDir != "" {
		logx.Info("Serving static files", "dir", deps.Config.StaticDir)
		r.Handle("/*", http.FileServer(http.Dir(deps.Config.StaticDir)))
	}

	return r
}
