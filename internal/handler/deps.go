package handler

import (
	"roomchat/internal/app/chat"
	"roomchat/internal/configs"
	"roomchat/internal/pkg/limiter"
)

// AppDeps carries the long-lived services shared by every handler.
type AppDeps struct {
	Coordinator *chat.Coordinator
	Config      *configs.AppConfig

	// ConnectLimiter throttles WebSocket upgrades per client IP.
	ConnectLimiter *limiter.KeyedLimiter
}
