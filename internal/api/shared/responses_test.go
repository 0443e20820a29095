package shared

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/fileserver-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLoggedRequest returns a request whose context carries a trace ID and a
// debug-level text logger writing to the returned buffer.
func newLoggedRequest(t *testing.T) (*http.Request, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	ctx := logger.WithLogger(WithTraceID(req.Context(), "test-trace-id"), l)
	return req.WithContext(ctx), &buf
}

func TestRespondWithJSON(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusCreated, map[string]any{"message": "ok", "n": 3})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"ok","n":3}`, w.Body.String())
}

func TestRespondWithJSONEncodingError(t *testing.T) {
	t.Parallel()

	req, logs := newLoggedRequest(t)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusOK, map[string]any{"ch": make(chan int)})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, logs.String(), "failed to encode JSON response")
}

func TestRespondWithError(t *testing.T) {
	t.Parallel()

	req, _ := newLoggedRequest(t)
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusUnauthorized, "Could not validate credentials",
		WithHeader("WWW-Authenticate", "Bearer"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Could not validate credentials", resp.Detail)
	assert.Equal(t, "test-trace-id", resp.TraceID)
}

func TestRespondWithErrorNoTraceID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusNotFound, "Task not found")

	assert.JSONEq(t, `{"detail":"Task not found"}`, w.Body.String())
}

func TestRespondWithErrorAndLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		message       string
		err           error
		elevate       bool
		expectedLevel string
	}{
		{
			name:          "server error",
			status:        http.StatusInternalServerError,
			message:       "Internal server error",
			err:           errors.New("dial postgres://app:hunter2@db:5432/files: refused"),
			expectedLevel: "level=ERROR",
		},
		{
			name:          "client error",
			status:        http.StatusBadRequest,
			message:       "Invalid paging parameters",
			err:           errors.New("skip must not be negative"),
			expectedLevel: "level=DEBUG",
		},
		{
			name:          "elevated client error",
			status:        http.StatusUnauthorized,
			message:       "Incorrect username or password",
			err:           errors.New("password mismatch"),
			elevate:       true,
			expectedLevel: "level=WARN",
		},
		{
			name:          "rate limited",
			status:        http.StatusTooManyRequests,
			message:       "Too many requests",
			expectedLevel: "level=WARN",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req, logs := newLoggedRequest(t)
			w := httptest.NewRecorder()

			var opts []ResponseOption
			if tc.elevate {
				opts = append(opts, WithElevatedLogLevel())
			}
			RespondWithErrorAndLog(w, req, tc.status, tc.message, tc.err, opts...)

			assert.Equal(t, tc.status, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.message, resp.Detail)
			assert.Equal(t, "test-trace-id", resp.TraceID)

			out := logs.String()
			assert.Contains(t, out, tc.expectedLevel)
			assert.Contains(t, out, "trace_id=test-trace-id")
			if tc.err != nil {
				assert.Contains(t, out, "error_type=")
				assert.NotContains(t, w.Body.String(), tc.err.Error())
			}
		})
	}
}

func TestRespondWithErrorAndLogRedactsError(t *testing.T) {
	t.Parallel()

	req, logs := newLoggedRequest(t)
	w := httptest.NewRecorder()

	RespondWithErrorAndLog(w, req, http.StatusInternalServerError, "Internal server error",
		errors.New("dial postgres://app:hunter2@db:5432/files: refused"))

	assert.NotContains(t, logs.String(), "hunter2")
	assert.Contains(t, logs.String(), "[REDACTED_CREDENTIAL]")
	assert.NotContains(t, w.Body.String(), "postgres")
}
