package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/service/auth"
)

// MockJWTService implements auth.JWTService. By default it issues opaque
// tokens ("access-<uuid>", "refresh-<uuid>") and validates only tokens it issued, with
// the same type checks as the real service.
type MockJWTService struct {
	mu     sync.Mutex
	issued map[string]auth.Claims

	GenerateTokenFn        func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateTokenFn        func(ctx context.Context, tokenString string) (*auth.Claims, error)
	GenerateRefreshTokenFn func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateRefreshTokenFn func(ctx context.Context, tokenString string) (*auth.Claims, error)
}

var _ auth.JWTService = (*MockJWTService)(nil)

// NewMockJWTService creates an empty MockJWTService.
func NewMockJWTService() *MockJWTService {
	return &MockJWTService{issued: make(map[string]auth.Claims)}
}

func (m *MockJWTService) issue(userID uuid.UUID, tokenType string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issued == nil {
		m.issued = make(map[string]auth.Claims)
	}
	token := tokenType + "-" + uuid.NewString()
	m.issued[token] = auth.Claims{UserID: userID, TokenType: tokenType, Subject: userID.String()}
	return token
}

func (m *MockJWTService) lookup(token, tokenType string, invalid error) (*auth.Claims, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.issued[token]
	if !ok {
		return nil, invalid
	}
	if c.TokenType != tokenType {
		return nil, auth.ErrWrongTokenType
	}
	return &c, nil
}

// GenerateToken implements auth.JWTService.
func (m *MockJWTService) GenerateToken(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.GenerateTokenFn != nil {
		return m.GenerateTokenFn(ctx, userID)
	}
	return m.issue(userID, auth.TokenTypeAccess), nil
}

// ValidateToken implements auth.JWTService.
func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(ctx, tokenString)
	}
	return m.lookup(tokenString, auth.TokenTypeAccess, auth.ErrInvalidToken)
}

// GenerateRefreshToken implements auth.JWTService.
func (m *MockJWTService) GenerateRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.GenerateRefreshTokenFn != nil {
		return m.GenerateRefreshTokenFn(ctx, userID)
	}
	return m.issue(userID, auth.TokenTypeRefresh), nil
}

// ValidateRefreshToken implements auth.JWTService.
func (m *MockJWTService) ValidateRefreshToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	if m.ValidateRefreshTokenFn != nil {
		return m.ValidateRefreshTokenFn(ctx, tokenString)
	}
	return m.lookup(tokenString, auth.TokenTypeRefresh, auth.ErrInvalidRefreshToken)
}
