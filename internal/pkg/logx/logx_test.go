package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// logBuffer is a bytes.Buffer safe for a server goroutine to write while the test reads.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// captureLogs points the global logger at a buffer for the duration of the test.
func captureLogs(t *testing.T, level string) *logBuffer {
	t.Helper()
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })

	buf := &logBuffer{}
	require.NoError(t, Init(Options{Output: buf, Level: level}))
	return buf
}

func decodeLines(t *testing.T, buf *logBuffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestInit_Levels(t *testing.T) {
	buf := captureLogs(t, "warn")
	assert.Equal(t, zerolog.WarnLevel, Logger().GetLevel())

	Info("dropped")
	Warn("kept", "room", "General")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["message"])
	assert.Equal(t, "General", lines[0]["room"])
}

func TestInit_DefaultLevelFollowsEnvironment(t *testing.T) {
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })

	require.NoError(t, Init(Options{Output: &bytes.Buffer{}}))
	assert.Equal(t, zerolog.InfoLevel, Logger().GetLevel())

	require.NoError(t, Init(Options{Output: &bytes.Buffer{}, Development: true}))
	assert.Equal(t, zerolog.DebugLevel, Logger().GetLevel())
}

func TestInit_UnknownLevel(t *testing.T) {
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })

	assert.Error(t, Init(Options{Level: "loud"}))
}

func TestHelpers_OddFieldsAreDropped(t *testing.T) {
	buf := captureLogs(t, "info")

	Error(errors.New("boom"), "write failed", "connection_id")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "Error", lines[0]["log_level"])
	assert.Equal(t, "write failed", lines[1]["message"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.NotContains(t, lines[1], "connection_id")
}

func TestComponent_TagsLogger(t *testing.T) {
	buf := captureLogs(t, "info")

	logger := Component("Reaper")
	logger.Info().Msg("Sweep finished.")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "Reaper", lines[0]["component"])
}

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "203.0.113.77:5123", want: "203.0.113.0"},
		{in: "203.0.113.77", want: "203.0.113.0"},
		{in: "[::1]:80", want: "127.0.0.1"},
		{in: "2001:db8:85a3:8d3:1319:8a2e:370:7348", want: "2001:db8:85a3:8d3::"},
		{in: "not-an-ip", want: "unknown_ip"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AnonymizeIP(tt.in), tt.in)
	}
}

func TestRequestLogger_StatusLevels(t *testing.T) {
	buf := captureLogs(t, "info")

	handler := RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/health", "/missing"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "198.51.100.23:4000"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, float64(http.StatusOK), lines[0]["status"])
	assert.Equal(t, "198.51.100.0", lines[0]["remote_ip"])
	assert.Equal(t, "warn", lines[1]["level"])
	assert.Equal(t, float64(http.StatusNotFound), lines[1]["status"])
}

func TestRequestLogger_WebSocketSession(t *testing.T) {
	buf := captureLogs(t, "info")

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	})))
	defer server.Close()

	conn, res, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	_ = res.Body.Close()
	_ = conn.Close()

	require.Eventually(t, func() bool { return strings.Contains(buf.String(), "WebSocket session closed") }, time.Second, 5*time.Millisecond)
}
