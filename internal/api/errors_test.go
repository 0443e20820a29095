package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/fileserver-api/internal/api/shared"
	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/service"
	"github.com/phrazzld/fileserver-api/internal/service/auth"
	"github.com/phrazzld/fileserver-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedMessage string
	}{
		{"nil error", nil, http.StatusInternalServerError, MsgUnexpected},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized, "Could not validate credentials"},
		{
			"wrapped expired token",
			fmt.Errorf("validate: %w", auth.ErrExpiredToken),
			http.StatusUnauthorized,
			"Could not validate credentials",
		},
		{"invalid refresh token", auth.ErrInvalidRefreshToken, http.StatusUnauthorized, "Invalid refresh token"},
		{"wrong token type", auth.ErrWrongTokenType, http.StatusUnauthorized, "Invalid refresh token"},
		{
			"bad credentials",
			service.ErrInvalidCredentials,
			http.StatusUnauthorized,
			"Incorrect username or password",
		},
		{"inactive user", service.ErrInactiveUser, http.StatusBadRequest, "Inactive user"},
		{
			"username taken",
			fmt.Errorf("failed to register user: %w", store.ErrUsernameExists),
			http.StatusBadRequest,
			"Username already registered",
		},
		{"email taken", store.ErrEmailExists, http.StatusBadRequest, "Email already registered"},
		{"task not found", service.ErrTaskNotFound, http.StatusNotFound, "Task not found"},
		{"user not found", store.ErrUserNotFound, http.StatusNotFound, "User not found"},
		{"file not found", store.ErrFileNotFound, http.StatusNotFound, "File not found"},
		{
			"file too large",
			fmt.Errorf("%w: limit is 10 bytes", service.ErrFileTooLarge),
			http.StatusRequestEntityTooLarge,
			"File size exceeds the upload limit",
		},
		{"no files", service.ErrNoFiles, http.StatusBadRequest, "No files uploaded"},
		{"bad paging", service.ErrInvalidPaging, http.StatusBadRequest, "Invalid paging parameters"},
		{
			"domain validation error",
			domain.NewValidationError("file", "is required", nil),
			http.StatusBadRequest,
			"file is required",
		},
		{"short password", domain.ErrPasswordTooShort, http.StatusBadRequest, domain.ErrPasswordTooShort.Error()},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest, "Invalid entity data"},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, MsgUnexpected},
		{
			"unknown error",
			errors.New("dial tcp 10.0.0.5:5432: connection refused"),
			http.StatusInternalServerError,
			MsgUnexpected,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expectedStatus, MapErrorToStatusCode(tc.err))
			assert.Equal(t, tc.expectedMessage, GetSafeErrorMessage(tc.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := validator.New().Struct(&RegisterRequest{Username: "alice", Email: "not-an-email", Password: "secret1"})
	require.Error(t, err)

	assert.Equal(t, "Invalid email: invalid email format", SanitizeValidationError(err))
	assert.Equal(t, http.StatusBadRequest, MapErrorToStatusCode(err))
	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("other")))
}

func TestHandleAPIError(t *testing.T) {
	t.Parallel()

	t.Run("unauthorized sets challenge header", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		HandleAPIError(w, httptest.NewRequest(http.MethodGet, "/", nil), auth.ErrInvalidToken, "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	})

	t.Run("message override", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		HandleAPIError(w, httptest.NewRequest(http.MethodPost, "/", nil),
			errors.New("disk full at /srv/uploads/x"), "Error uploading file")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var resp shared.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Error uploading file", resp.Detail)
		assert.NotContains(t, w.Body.String(), "/srv/uploads")
	})
}
