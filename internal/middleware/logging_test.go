package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/stripe-wallet/internal/logging"
)

func TestLogging(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		logged bool
		level  string
	}{
		{name: "success at info", path: "/api/wallet/balance", status: http.StatusOK, logged: true, level: "INFO"},
		{name: "client error at warn", path: "/api/wallet/balance", status: http.StatusForbidden, logged: true, level: "WARN"},
		{name: "server error at error", path: "/api/webhook/stripe", status: http.StatusInternalServerError, logged: true, level: "ERROR"},
		{name: "health check skipped", path: "/health/ready", status: http.StatusOK},
		{name: "docs skipped", path: "/docs", status: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			prev := slog.Default()
			slog.SetDefault(logging.New(&buf, "test", "debug", "test"))
			t.Cleanup(func() { slog.SetDefault(prev) })

			h := Logging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte("hello"))
			}))

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.status, rr.Code)

			if !tc.logged {
				assert.Empty(t, buf.String())
				return
			}

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tc.level, line["level"])
			assert.Equal(t, tc.path, line["path"])
			assert.EqualValues(t, tc.status, line["status"])
			assert.EqualValues(t, 5, line["bytes"])
			assert.Contains(t, line, "request_id")
		})
	}
}
