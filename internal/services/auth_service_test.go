package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adivish/quickmeet/internal/models"
	"github.com/adivish/quickmeet/internal/repositories"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserRepo is an in-memory UserRepository so auth flows run without a
// Postgres instance.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo, repositories.PresenceRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	userRepo := newFakeUserRepo()
	sessionRepo := repositories.NewRedisSessionRepository(client)
	presenceRepo := repositories.NewRedisPresenceRepository(client)

	return NewAuthService(userRepo, sessionRepo, presenceRepo, "test-secret", time.Hour), userRepo, presenceRepo
}

const testPassword = "correct-horse-battery"

func TestRegister_CreatesUserAndProfile(t *testing.T) {
	svc, userRepo, presenceRepo := newTestAuthService(t)
	ctx := context.Background()

	err := svc.Register(ctx, "alice@example.com", testPassword, "Female")
	require.NoError(t, err)

	user, err := userRepo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Female", user.Gender)
	assert.NotEqual(t, testPassword, user.PasswordHash, "password must be hashed")

	// Presence profile is seeded, not yet available
	record, err := presenceRepo.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, record.IsAvailable)
	assert.Equal(t, "alice@example.com", record.Email)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice@example.com", testPassword, "Female"))
	err := svc.Register(ctx, "alice@example.com", testPassword, "Female")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestLogin_And_VerifyToken(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice@example.com", testPassword, "Female"))

	resp, err := svc.Login(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice@example.com", resp.Email)

	claims, err := svc.VerifyToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.NotEmpty(t, claims.SessionID)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice@example.com", testPassword, "Female"))

	_, err := svc.Login(ctx, "alice@example.com", "not-the-password!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyToken_Garbage(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, err := svc.VerifyToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogout_DeletesSessionAndMarksUnavailable(t *testing.T) {
	svc, _, presenceRepo := newTestAuthService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice@example.com", testPassword, "Female"))
	resp, err := svc.Login(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	// Simulate a dashboard visit before logging out
	require.NoError(t, presenceRepo.SetAvailability(ctx, resp.UserID, true))

	require.NoError(t, svc.Logout(ctx, resp.Token))

	record, err := presenceRepo.Get(ctx, resp.UserID)
	require.NoError(t, err)
	assert.False(t, record.IsAvailable, "logout flips availability off")

	// The session is gone: logging out again fails at session deletion
	err = svc.Logout(ctx, resp.Token)
	assert.Error(t, err)
}
