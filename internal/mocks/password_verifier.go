package mocks

import "github.com/phrazzld/fileserver-api/internal/service/auth"

// MockPasswordVerifier implements auth.PasswordVerifier. By default it
// treats the hash as the plaintext, matching MockUserStore.
type MockPasswordVerifier struct {
	CompareFn func(hashedPassword, password string) error

	// CompareCallCount tracks how many times Compare was called
	CompareCallCount int
}

// Compare implements auth.PasswordVerifier.
func (m *MockPasswordVerifier) Compare(hashedPassword, password string) error {
	m.CompareCallCount++
	if m.CompareFn != nil {
		return m.CompareFn(hashedPassword, password)
	}
	if hashedPassword != password {
		return auth.ErrPasswordMismatch
	}
	return nil
}
