package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/api/shared"
	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/platform/logger"
	"github.com/phrazzld/fileserver-api/internal/service"
	"github.com/phrazzld/fileserver-api/internal/service/auth"
	"github.com/phrazzld/fileserver-api/internal/store"
)

// AuthHandler handles registration and token requests.
type AuthHandler struct {
	users      service.UserService
	jwtService auth.JWTService
	logger     *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(users service.UserService, jwtService auth.JWTService, logger *slog.Logger) *AuthHandler {
	if users == nil {
		panic("users cannot be nil")
	}
	if jwtService == nil {
		panic("jwtService cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		users:      users,
		jwtService: jwtService,
		logger:     logger.With(slog.String("component", "auth_handler")),
	}
}

// Register handles POST /register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	user, err := h.users.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IsStaff:  req.IsStaff,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, newUserResponse(user))
}

// Token handles POST /token. Credentials arrive as the form fields username
// and password.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	req := LoginRequest{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, GetSafeErrorMessage(err), err,
				shared.WithElevatedLogLevel(), shared.WithHeader("WWW-Authenticate", "Bearer"))
			return
		}
		HandleAPIError(w, r, err, "")
		return
	}

	h.respondWithTokens(w, r, user.ID)
}

// Refresh handles POST /token/refresh. The refresh token may be sent as a
// form field or in a JSON body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if shared.IsJSON(r) {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
			return
		}
		req.RefreshToken = r.PostForm.Get("refresh_token")
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	user, err := h.users.GetUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			HandleAPIError(w, r, auth.ErrInvalidRefreshToken, "")
			return
		}
		HandleAPIError(w, r, err, "")
		return
	}
	if !user.IsActive {
		HandleAPIError(w, r, service.ErrInactiveUser, "")
		return
	}

	h.respondWithTokens(w, r, user.ID)
}

func (h *AuthHandler) respondWithTokens(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	access, err := h.jwtService.GenerateToken(r.Context(), userID)
	if err != nil {
		log.Error("failed to generate access token", slog.String("user_id", userID.String()))
		HandleAPIError(w, r, err, "Failed to generate authentication token")
		return
	}
	refresh, err := h.jwtService.GenerateRefreshToken(r.Context(), userID)
	if err != nil {
		log.Error("failed to generate refresh token", slog.String("user_id", userID.String()))
		HandleAPIError(w, r, err, "Failed to generate authentication token")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
	})
}

// ListUsers handles GET /users. Staff see every account, everyone else only
// their own.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.UserFromContext(r.Context())
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "Not authenticated")
		return
	}

	users, err := h.users.VisibleUsers(r.Context(), user)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, newUserResponse(u))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
