package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/domain"
)

// TokenTypeBearer is the token_type of every token response.
const TokenTypeBearer = "bearer"

// RegisterRequest defines the payload for the registration endpoint.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	IsStaff  bool   `json:"is_staff"`
}

// LoginRequest is read from the form fields of the token endpoint.
type LoginRequest struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse is returned by the token and refresh endpoints.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	IsStaff   bool      `json:"is_staff"`
	CreatedAt time.Time `json:"created_at"`
}

// FileResponse is one entry of the file listing.
type FileResponse struct {
	OriginalFilename string    `json:"original_filename"`
	FileHash         string    `json:"file_hash"`
	Status           string    `json:"status"`
	IsDeleted        bool      `json:"is_deleted"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TaskStatusResponse reports the progress of a processing job.
type TaskStatusResponse struct {
	TaskID string          `json:"task_id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
}

// MessageResponse carries a single human readable message.
type MessageResponse struct {
	Message string `json:"message"`
}

func newUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsActive:  u.IsActive,
		IsStaff:   u.IsStaff,
		CreatedAt: u.CreatedAt,
	}
}

func newFileResponse(f *domain.File) FileResponse {
	return FileResponse{
		OriginalFilename: f.OriginalFilename,
		FileHash:         f.FileHash,
		Status:           string(f.Status),
		IsDeleted:        f.IsDeleted,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

func newTaskStatusResponse(ts *domain.TaskStatus) TaskStatusResponse {
	return TaskStatusResponse{
		TaskID: ts.TaskID,
		Status: ts.Status,
		Result: ts.Result,
	}
}
