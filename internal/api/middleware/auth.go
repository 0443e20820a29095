package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/api/shared"
	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/platform/logger"
	"github.com/phrazzld/fileserver-api/internal/service/auth"
	"github.com/phrazzld/fileserver-api/internal/store"
)

// Messages returned by Authenticate.
const (
	MsgNotAuthenticated   = "Not authenticated"
	MsgInvalidCredentials = "Could not validate credentials"
	MsgInactiveUser       = "Inactive user"
)

// UserLookup loads the account a token was issued to. service.UserService
// satisfies it.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// AuthMiddleware provides bearer token authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
	users      UserLookup
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService, users UserLookup) *AuthMiddleware {
	if jwtService == nil {
		panic("jwtService cannot be nil")
	}
	if users == nil {
		panic("users cannot be nil")
	}
	return &AuthMiddleware{jwtService: jwtService, users: users}
}

// Authenticate validates the access token in the Authorization header, loads
// its user and stores the user in the request context.
//
// Missing or invalid tokens and unknown users get 401, inactive users get 400.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		challenge := shared.WithHeader("WWW-Authenticate", "Bearer")

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, MsgNotAuthenticated, challenge)
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, MsgInvalidCredentials, err, challenge)
			return
		}

		user, err := m.users.GetUser(r.Context(), claims.UserID)
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, MsgInvalidCredentials, err, challenge)
			return
		case err != nil:
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
			return
		}

		if !user.IsActive {
			shared.RespondWithError(w, r, http.StatusBadRequest, MsgInactiveUser)
			return
		}

		ctx := shared.WithUser(r.Context(), user)
		ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With(slog.String("user_id", user.ID.String())))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetUser extracts the authenticated user from the request context.
func GetUser(r *http.Request) (*domain.User, bool) {
	return shared.UserFromContext(r.Context())
}
