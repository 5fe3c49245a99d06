package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"ENVIRONMENT", "PORT", "STATIC_DIR", "ALLOWED_ORIGINS", "ROOMS",
		"STALE_THRESHOLD", "SWEEP_INTERVAL", "MESSAGE_RATE", "MESSAGE_BURST",
		"CONNECT_RATE", "CONNECT_BURST", "SHUTDOWN_TIMEOUT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 3000, cfg.Port)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, []string{"General", "Sports", "Tech", "Music", "Gaming"}, cfg.Rooms)
	assert.Equal(t, 5*time.Minute, cfg.StaleThreshold)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 5.0, cfg.MessageRate)
	assert.Equal(t, 10, cfg.MessageBurst)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.LogLevel)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PORT", "8443")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com, ,https://www.example.com")
	t.Setenv("ROOMS", " Lobby ,Ops,Lobby")
	t.Setenv("STALE_THRESHOLD", "90s")
	t.Setenv("SWEEP_INTERVAL", "15s")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 8443, cfg.Port)
	assert.Equal(t, []string{"https://chat.example.com", "https://www.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"Lobby", "Ops"}, cfg.Rooms)
	assert.Equal(t, 90*time.Second, cfg.StaleThreshold)
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "privileged port", key: "PORT", value: "80"},
		{name: "non numeric port", key: "PORT", value: "abc"},
		{name: "zero threshold", key: "STALE_THRESHOLD", value: "0s"},
		{name: "negative sweep", key: "SWEEP_INTERVAL", value: "-1s"},
		{name: "blank rooms", key: "ROOMS", value: " , "},
		{name: "zero burst", key: "MESSAGE_BURST", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
