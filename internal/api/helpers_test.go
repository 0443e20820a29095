package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/api/middleware"
	"github.com/phrazzld/fileserver-api/internal/api/shared"
	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/mocks"
	"github.com/phrazzld/fileserver-api/internal/service"
	"github.com/stretchr/testify/require"
)

const (
	testMaxSize  = 1024
	testPassword = "password1"
)

// uploadStub records what the handlers pass to the upload service.
type uploadStub struct {
	received  []receivedFile
	uploadErr error
	listed    []*domain.File
	lastSkip  int
	lastLimit int
}

type receivedFile struct {
	name    string
	content string
}

var _ service.UploadService = (*uploadStub)(nil)

func (s *uploadStub) UploadFile(_ context.Context, _ uuid.UUID, filename string, content io.Reader) (*service.UploadResult, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	s.received = append(s.received, receivedFile{name: filename, content: string(data)})
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return &service.UploadResult{
		TaskID:   "task-1",
		FileHash: strings.Repeat("a", 64),
		Status:   service.UploadStatusProcessing,
	}, nil
}

func (s *uploadStub) UploadFiles(_ context.Context, _ uuid.UUID, src service.FileSource) ([]service.UploadResult, error) {
	var results []service.UploadResult
	for i := 0; ; i++ {
		name, content, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(content)
		if err != nil {
			return nil, err
		}
		s.received = append(s.received, receivedFile{name: name, content: string(data)})
		results = append(results, service.UploadResult{
			TaskID:   "batch-1",
			FileHash: strings.Repeat(fmt.Sprint(i%10), 64),
			Status:   service.UploadStatusProcessing,
		})
	}
	if len(results) == 0 {
		return nil, service.ErrNoFiles
	}
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return results, nil
}

func (s *uploadStub) ListFiles(_ context.Context, _ uuid.UUID, skip, limit int) ([]*domain.File, error) {
	s.lastSkip, s.lastLimit = skip, limit
	if skip < 0 || limit < 1 || limit > service.MaxListLimit {
		return nil, service.ErrInvalidPaging
	}
	return s.listed, nil
}

type resolverStub map[string]*domain.TaskStatus

func (r resolverStub) Resolve(_ context.Context, taskID string) (*domain.TaskStatus, error) {
	ts, ok := r[taskID]
	if !ok {
		return nil, service.ErrTaskNotFound
	}
	return ts, nil
}

type testEnv struct {
	users    *mocks.MockUserStore
	jwt      *mocks.MockJWTService
	uploads  *uploadStub
	statuses resolverStub
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:    mocks.NewMockUserStore(),
		jwt:      mocks.NewMockJWTService(),
		uploads:  &uploadStub{},
		statuses: resolverStub{},
	}
	userService := service.NewUserService(env.users, &mocks.MockPasswordVerifier{}, nil)
	env.handler = Routes(
		NewAuthHandler(userService, env.jwt, nil),
		NewFileHandler(env.uploads, env.statuses, testMaxSize),
		middleware.NewAuthMiddleware(env.jwt, userService),
	)
	return env
}

// seedUser stores an account whose password is testPassword.
func (e *testEnv) seedUser(t *testing.T, username string, staff, active bool) *domain.User {
	t.Helper()
	u, err := domain.NewUser(username, username+"@example.com", testPassword, staff)
	require.NoError(t, err)
	u.HashedPassword = testPassword
	u.Password = ""
	u.IsActive = active
	e.users.Users[u.ID] = u
	return u
}

func (e *testEnv) accessToken(t *testing.T, u *domain.User) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(context.Background(), u.ID)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func authorized(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

type formFile struct {
	field   string
	name    string
	content string
}

func newMultipartRequest(t *testing.T, target string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		if f.name == "" {
			require.NoError(t, mw.WriteField(f.field, f.content))
			continue
		}
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Detail
}
