package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/fileserver-api/internal/api/shared"
	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/service"
	"github.com/phrazzld/fileserver-api/internal/service/auth"
	"github.com/phrazzld/fileserver-api/internal/store"
)

// MsgUnexpected is returned for every error without a safe mapping.
const MsgUnexpected = "An unexpected error occurred"

// domainValidationErrors have messages that are safe to show as-is.
var domainValidationErrors = []error{
	domain.ErrInvalidUsername,
	domain.ErrEmptyEmail,
	domain.ErrInvalidEmail,
	domain.ErrPasswordTooShort,
	domain.ErrPasswordTooLong,
	domain.ErrEmptyPassword,
	domain.ErrEmptyFilename,
	domain.ErrFilenameTooLong,
}

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	var verrs validator.ValidationErrors
	var domainErr *domain.ValidationError

	switch {
	case err == nil:
		return http.StatusInternalServerError

	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge

	// Bad request errors
	case errors.Is(err, store.ErrUsernameExists),
		errors.Is(err, store.ErrEmailExists),
		errors.Is(err, service.ErrInactiveUser),
		errors.Is(err, service.ErrNoFiles),
		errors.Is(err, service.ErrInvalidPaging),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.As(err, &domainErr),
		errors.As(err, &verrs),
		isDomainValidationError(err):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return MsgUnexpected
	}

	var verrs validator.ValidationErrors
	var domainErr *domain.ValidationError

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Incorrect username or password"

	case errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid refresh token"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Could not validate credentials"

	case errors.Is(err, service.ErrInactiveUser):
		return "Inactive user"

	case errors.Is(err, store.ErrUsernameExists):
		return "Username already registered"

	case errors.Is(err, store.ErrEmailExists):
		return "Email already registered"

	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, store.ErrFileNotFound):
		return "File not found"

	case errors.Is(err, service.ErrFileTooLarge):
		return "File size exceeds the upload limit"

	case errors.Is(err, service.ErrNoFiles):
		return "No files uploaded"

	case errors.Is(err, service.ErrInvalidPaging):
		return "Invalid paging parameters"

	case errors.As(err, &verrs):
		return SanitizeValidationError(err)

	case errors.As(err, &domainErr):
		return domainErr.Error()

	case errors.Is(err, store.ErrInvalidEntity), errors.Is(err, domain.ErrValidation):
		return "Invalid entity data"
	}

	for _, target := range domainValidationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return MsgUnexpected
}

func isDomainValidationError(err error) bool {
	for _, target := range domainValidationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HandleAPIError writes the mapped status and safe message for err. A
// non-empty message overrides the safe message. The raw error is only logged.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}

	var opts []shared.ResponseOption
	if status == http.StatusUnauthorized {
		opts = append(opts, shared.WithHeader("WWW-Authenticate", "Bearer"))
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// SanitizeValidationError turns validator errors into a short message naming
// the first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), getValidationTagMessage(fe.Tag()))
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
