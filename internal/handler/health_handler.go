/*
Package handler provides HTTP handler functions for liveness and occupancy checks.
*/
package handler

import (
	"net/http"
	"time"

	"roomchat/internal/app/chat"
	"roomchat/internal/pkg/resp"
)

// HealthStatus is the payload of GET /api/health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	chat.Stats
}

// HandleLiveness answers GET /health with a static body for load balancer probes.
func HandleLiveness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "Room Chat Server",
		})
	}
}

// HandleHealth reports the room catalog and current occupancy.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Stats:     deps.Coordinator.Stats(),
		})
	}
}
