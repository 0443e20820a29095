package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/mocks"
	"github.com/phrazzld/fileserver-api/internal/service"
	"github.com/phrazzld/fileserver-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(users *mocks.MockUserStore) *service.UserServiceImpl {
	return service.NewUserService(users, &mocks.MockPasswordVerifier{}, nil)
}

func TestUserService_Register(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   service.RegisterInput
		wantErr error
	}{
		{
			name:  "valid",
			input: service.RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"},
		},
		{
			name:    "username taken",
			input:   service.RegisterInput{Username: "taken", Email: "new@example.com", Password: "secret1"},
			wantErr: store.ErrUsernameExists,
		},
		{
			name:    "email taken",
			input:   service.RegisterInput{Username: "bob", Email: "taken@example.com", Password: "secret1"},
			wantErr: store.ErrEmailExists,
		},
		{
			name:    "short password",
			input:   service.RegisterInput{Username: "carol", Email: "carol@example.com", Password: "123"},
			wantErr: domain.ErrPasswordTooShort,
		},
		{
			name:    "bad email",
			input:   service.RegisterInput{Username: "dave", Email: "not-an-email", Password: "secret1"},
			wantErr: domain.ErrInvalidEmail,
		},
		{
			name:    "short username",
			input:   service.RegisterInput{Username: "ab", Email: "ab@example.com", Password: "secret1"},
			wantErr: domain.ErrInvalidUsername,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			existing, err := domain.NewUser("taken", "taken@example.com", "secret1", false)
			require.NoError(t, err)
			users := mocks.NewMockUserStore()
			require.NoError(t, users.Create(context.Background(), existing))

			user, err := newUserService(users).Register(context.Background(), tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input.Username, user.Username)
			assert.True(t, user.IsActive)
			assert.Empty(t, user.Password, "plaintext is cleared after create")
		})
	}
}

func TestUserService_Authenticate(t *testing.T) {
	t.Parallel()

	active, err := domain.NewUser("alice", "alice@example.com", "secret1", false)
	require.NoError(t, err)
	inactive, err := domain.NewUser("idle", "idle@example.com", "secret1", false)
	require.NoError(t, err)

	users := mocks.NewMockUserStore()
	require.NoError(t, users.Create(context.Background(), active))
	require.NoError(t, users.Create(context.Background(), inactive))
	users.Users[inactive.ID].IsActive = false

	svc := newUserService(users)

	got, err := svc.Authenticate(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)

	_, err = svc.Authenticate(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody", "secret1")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "idle", "secret1")
	assert.ErrorIs(t, err, service.ErrInactiveUser)

	users.GetByUsernameFn = func(context.Context, string) (*domain.User, error) {
		return nil, errors.New("connection reset")
	}
	_, err = svc.Authenticate(context.Background(), "alice", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestUserService_VisibleUsers(t *testing.T) {
	t.Parallel()

	staff := &domain.User{ID: uuid.New(), Username: "admin", IsStaff: true, CreatedAt: time.Unix(1, 0)}
	plain := &domain.User{ID: uuid.New(), Username: "alice", CreatedAt: time.Unix(2, 0)}
	svc := newUserService(mocks.NewMockUserStore(staff, plain))

	all, err := svc.VisibleUsers(context.Background(), staff)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "admin", all[0].Username)

	self, err := svc.VisibleUsers(context.Background(), plain)
	require.NoError(t, err)
	require.Len(t, self, 1)
	assert.Equal(t, plain.ID, self[0].ID)
}

func TestUserService_GetUser(t *testing.T) {
	t.Parallel()

	u := &domain.User{ID: uuid.New(), Username: "alice"}
	svc := newUserService(mocks.NewMockUserStore(u))

	got, err := svc.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = svc.GetUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}
