/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which upgrades the HTTP connection to WebSocket,
registers the new anonymous connection with the Coordinator and runs the client lifecycle.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"roomchat/internal/app/chat"
	"roomchat/internal/pkg/limiter"
	"roomchat/internal/pkg/logx"
	"roomchat/internal/pkg/randx"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// Identity and room are not part of the handshake; they arrive later as a joinRoom event.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		connectionID := randx.ConnectionID()
		client := chat.NewClient(connectionID, deps.Coordinator, conn)

		go client.WritePump()

		if err := deps.Coordinator.Register(connectionID, client); err != nil {
			logx.Warn("WebSocket connection refused by coordinator.", "connection_id", connectionID, "error", err.Error())
			_ = client.Close(websocket.CloseTryAgainLater, err.Error())
			return
		}

		logx.Info("WebSocket connection established and client registered",
			"connection_id", connectionID,
			"remote_ip", logx.AnonymizeIP(limiter.ClientIP(r)),
		)

		client.ReadPump()
	}
}
