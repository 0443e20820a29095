package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		files          []formFile
		uploadErr      error
		expectedStatus int
		expectedDetail string
	}{
		{
			name:           "single file",
			files:          []formFile{{field: "file", name: "report.txt", content: "hello"}},
			expectedStatus: http.StatusOK,
		},
		{
			name: "other fields are ignored",
			files: []formFile{
				{field: "note", content: "ignored"},
				{field: "file", name: "report.txt", content: "hello"},
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing file part",
			files:          []formFile{{field: "note", content: "no file"}},
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "file is required",
		},
		{
			name:           "file too large",
			files:          []formFile{{field: "file", name: "big.bin", content: "x"}},
			uploadErr:      fmt.Errorf("%w: limit is %d bytes", service.ErrFileTooLarge, testMaxSize),
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedDetail: fmt.Sprintf("File size exceeds the limit of %d bytes", testMaxSize),
		},
		{
			name:           "storage failure",
			files:          []formFile{{field: "file", name: "report.txt", content: "hello"}},
			uploadErr:      errors.New("write /srv/uploads/ab: no space left on device"),
			expectedStatus: http.StatusInternalServerError,
			expectedDetail: "Error uploading file",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.uploads.uploadErr = tc.uploadErr
			alice := env.seedUser(t, "alice", false, true)

			req := authorized(newMultipartRequest(t, "/files/upload", tc.files...), env.accessToken(t, alice))
			w := env.do(req)
			require.Equal(t, tc.expectedStatus, w.Code, w.Body.String())

			if tc.expectedDetail != "" {
				assert.Equal(t, tc.expectedDetail, decodeDetail(t, w))
				return
			}

			var resp service.UploadResult
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "task-1", resp.TaskID)
			assert.Equal(t, "processing", resp.Status)
			require.Len(t, env.uploads.received, 1)
			assert.Equal(t, receivedFile{name: "report.txt", content: "hello"}, env.uploads.received[0])
		})
	}
}

func TestUploadRejectsNonMultipart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	alice := env.seedUser(t, "alice", false, true)

	req := httptest.NewRequest(http.MethodPost, "/files/upload", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := env.do(authorized(req, env.accessToken(t, alice)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request format", decodeDetail(t, w))
}

func TestUploadRequiresAuthentication(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	w := env.do(newMultipartRequest(t, "/files/upload", formFile{field: "file", name: "a.txt", content: "a"}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, env.uploads.received)
}

func TestUploadMultiple(t *testing.T) {
	t.Parallel()

	t.Run("every file shares the batch task", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice", false, true)

		req := newMultipartRequest(t, "/files/upload-multiple",
			formFile{field: "files", name: "a.txt", content: "alpha"},
			formFile{field: "other", name: "skip.txt", content: "skipped"},
			formFile{field: "files", name: "b.txt", content: "beta"},
		)
		w := env.do(authorized(req, env.accessToken(t, alice)))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp []service.UploadResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp, 2)
		for _, r := range resp {
			assert.Equal(t, "batch-1", r.TaskID)
			assert.Equal(t, "processing", r.Status)
		}
		assert.Equal(t, []receivedFile{
			{name: "a.txt", content: "alpha"},
			{name: "b.txt", content: "beta"},
		}, env.uploads.received)
	})

	t.Run("no files", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice", false, true)

		req := newMultipartRequest(t, "/files/upload-multiple", formFile{field: "note", content: "empty"})
		w := env.do(authorized(req, env.accessToken(t, alice)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "No files uploaded", decodeDetail(t, w))
	})

	t.Run("oversize file", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.uploads.uploadErr = service.ErrFileTooLarge
		alice := env.seedUser(t, "alice", false, true)

		req := newMultipartRequest(t, "/files/upload-multiple", formFile{field: "files", name: "a.txt", content: "a"})
		w := env.do(authorized(req, env.accessToken(t, alice)))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestTaskStatus(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	alice := env.seedUser(t, "alice", false, true)
	env.statuses["task-1"] = &domain.TaskStatus{
		TaskID: "task-1",
		Status: domain.TaskStatusCompleted,
		Result: json.RawMessage(`{"status":"success","file_hash":"abc"}`),
	}
	env.statuses["task-2"] = &domain.TaskStatus{TaskID: "task-2", Status: domain.TaskStatusPending}
	token := env.accessToken(t, alice)

	t.Run("completed task with result", func(t *testing.T) {
		w := env.do(authorized(httptest.NewRequest(http.MethodGet, "/files/task-status/task-1", nil), token))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t,
			`{"task_id":"task-1","status":"completed","result":{"status":"success","file_hash":"abc"}}`,
			w.Body.String())
	})

	t.Run("pending task omits result", func(t *testing.T) {
		w := env.do(authorized(httptest.NewRequest(http.MethodGet, "/files/task-status/task-2", nil), token))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"task_id":"task-2","status":"pending"}`, w.Body.String())
	})

	t.Run("unknown task", func(t *testing.T) {
		w := env.do(authorized(httptest.NewRequest(http.MethodGet, "/files/task-status/missing", nil), token))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Task not found", decodeDetail(t, w))
	})
}

func TestListFiles(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	listed := []*domain.File{{
		FileHash:         strings.Repeat("b", 64),
		OriginalFilename: "quarterly report.pdf",
		Status:           domain.FileStatusProcessed,
		CreatedAt:        created,
		UpdatedAt:        created,
	}}

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedSkip   int
		expectedLimit  int
	}{
		{name: "defaults", query: "", expectedStatus: http.StatusOK, expectedSkip: 0, expectedLimit: 100},
		{name: "explicit paging", query: "?skip=5&limit=10", expectedStatus: http.StatusOK, expectedSkip: 5, expectedLimit: 10},
		{name: "non-numeric limit", query: "?limit=abc", expectedStatus: http.StatusBadRequest},
		{name: "zero limit", query: "?limit=0", expectedStatus: http.StatusBadRequest, expectedLimit: 0},
		{name: "negative skip", query: "?skip=-1", expectedStatus: http.StatusBadRequest, expectedSkip: -1, expectedLimit: 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.uploads.listed = listed
			alice := env.seedUser(t, "alice", false, true)

			w := env.do(authorized(httptest.NewRequest(http.MethodGet, "/files"+tc.query, nil), env.accessToken(t, alice)))
			require.Equal(t, tc.expectedStatus, w.Code, w.Body.String())

			if tc.expectedStatus != http.StatusOK {
				assert.Equal(t, "Invalid paging parameters", decodeDetail(t, w))
				return
			}

			assert.Equal(t, tc.expectedSkip, env.uploads.lastSkip)
			assert.Equal(t, tc.expectedLimit, env.uploads.lastLimit)

			var resp []FileResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Len(t, resp, 1)
			assert.Equal(t, "quarterly report.pdf", resp[0].OriginalFilename)
			assert.Equal(t, "processed", resp[0].Status)
			assert.False(t, resp[0].IsDeleted)
		})
	}
}
