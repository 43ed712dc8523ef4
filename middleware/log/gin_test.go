package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadup/squadup/config"
)

func newCaptureLogger(t *testing.T) (*Logger, string) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "request-log-*.log")
	require.NoError(t, err)
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	cfg := &config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: tmpFile.Name(),
	}
	log, err := NewLogger(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	return log, tmpFile.Name()
}

func lastLogEntry(t *testing.T, path string) map[string]any {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(content), []byte("\n"))
	require.NotEmpty(t, lines)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("logs completed request with trace ID", func(t *testing.T) {
		log, path := newCaptureLogger(t)

		r := gin.New()
		r.Use(RequestLogger(log))
		r.GET("/groups/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"code": 0})
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/groups/g1", nil)
		r.ServeHTTP(w, req)

		require.NoError(t, log.Sync())
		entry := lastLogEntry(t, path)
		assert.Equal(t, "request completed", entry["message"])
		assert.Equal(t, "GET", entry["method"])
		assert.Equal(t, "/groups/:id", entry["path"])
		assert.Equal(t, float64(http.StatusOK), entry["status"])
		assert.NotEmpty(t, entry["trace_id"])
		assert.Equal(t, entry["trace_id"], w.Header().Get(TraceIDHeader))
	})

	t.Run("propagates caller trace ID", func(t *testing.T) {
		log, path := newCaptureLogger(t)

		r := gin.New()
		r.Use(RequestLogger(log))
		r.GET("/health", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(TraceIDHeader, "trace-abc")
		r.ServeHTTP(w, req)

		require.NoError(t, log.Sync())
		entry := lastLogEntry(t, path)
		assert.Equal(t, "trace-abc", entry["trace_id"])
		assert.Equal(t, "trace-abc", w.Header().Get(TraceIDHeader))
	})

	t.Run("logs rejected request at warn with uid", func(t *testing.T) {
		log, path := newCaptureLogger(t)

		r := gin.New()
		r.Use(RequestLogger(log))
		r.POST("/groups", func(c *gin.Context) {
			c.Set("uid", "amy")
			c.JSON(http.StatusForbidden, gin.H{"error": "only the leader can do that"})
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/groups", nil)
		r.ServeHTTP(w, req)

		require.NoError(t, log.Sync())
		entry := lastLogEntry(t, path)
		assert.Equal(t, "request rejected", entry["message"])
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "amy", entry["uid"])
	})
}
