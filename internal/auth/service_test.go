package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantdesk/backend/internal/storage/models"
	"github.com/grantdesk/backend/internal/storage/sqlite"
)

func testService(t *testing.T, ttl time.Duration) (*Service, *sqlite.Client) {
	t.Helper()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	return NewService(store, ttl), store
}

func seedUser(t *testing.T, store *sqlite.Client, email, password, role string) *models.User {
	t.Helper()

	hash, err := HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		ID:           uuid.New().String(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, store.CreateUser(user))
	return user
}

func TestLogin(t *testing.T) {
	s, store := testService(t, time.Hour)
	seedUser(t, store, "pm@example.org", "correct horse", models.RoleUser)

	t.Run("valid credentials", func(t *testing.T) {
		user, session, err := s.Login("pm@example.org", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, "pm@example.org", user.Email)
		assert.NotEmpty(t, session.Token)
		assert.True(t, session.ExpiresAt.After(time.Now()))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := s.Login("pm@example.org", "wrong")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := s.Login("nobody@example.org", "correct horse")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, _, err := s.Login("", "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestGenerateToken(t *testing.T) {
	token, err := generateToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)

	other, err := generateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestResolve(t *testing.T) {
	s, store := testService(t, time.Hour)
	user := seedUser(t, store, "pm@example.org", "pw", models.RoleUser)

	_, session, err := s.Login("pm@example.org", "pw")
	require.NoError(t, err)

	resolved, err := s.Resolve(session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	_, err = s.Resolve("")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = s.Resolve("no-such-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolveExpiredSession(t *testing.T) {
	s, store := testService(t, -time.Minute)
	seedUser(t, store, "pm@example.org", "pw", models.RoleUser)

	_, session, err := s.Login("pm@example.org", "pw")
	require.NoError(t, err)

	_, err = s.Resolve(session.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// The expired session row is deleted on first use.
	_, err = store.GetSession(session.Token)
	assert.Error(t, err)
}

func TestLogout(t *testing.T) {
	s, store := testService(t, time.Hour)
	seedUser(t, store, "pm@example.org", "pw", models.RoleUser)

	_, session, err := s.Login("pm@example.org", "pw")
	require.NoError(t, err)

	require.NoError(t, s.Logout(session.Token))

	_, err = s.Resolve(session.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Logging out without a token is a no-op.
	assert.NoError(t, s.Logout(""))
}

func TestUpdateSettings(t *testing.T) {
	s, store := testService(t, time.Hour)
	user := seedUser(t, store, "pm@example.org", "old-password", models.RoleUser)

	t.Run("rejects empty update", func(t *testing.T) {
		_, err := s.UpdateSettings(user.ID, "", "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("renames", func(t *testing.T) {
		updated, err := s.UpdateSettings(user.ID, "New Name", "")
		require.NoError(t, err)
		assert.Equal(t, "New Name", updated.Name)
	})

	t.Run("changes password", func(t *testing.T) {
		_, err := s.UpdateSettings(user.ID, "", "new-password")
		require.NoError(t, err)

		_, _, err = s.Login("pm@example.org", "old-password")
		assert.ErrorIs(t, err, ErrUnauthenticated)

		_, _, err = s.Login("pm@example.org", "new-password")
		assert.NoError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := s.UpdateSettings(uuid.New().String(), "x", "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
