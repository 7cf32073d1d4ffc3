package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagehost/service/internal/config"
	"github.com/imagehost/service/internal/user"
)

// fakeUserRepo is an in-memory user.Repository.
type fakeUserRepo struct {
	nextID int64
	users  map[int64]*user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int64]*user.User{}}
}

func (f *fakeUserRepo) Create(_ context.Context, username, email, passwordHash string) (*user.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return nil, user.ErrUsernameTaken
		}
		if u.Email == email {
			return nil, user.ErrEmailTaken
		}
	}
	f.nextID++
	u := &user.User{
		ID:           f.nextID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByIdentifier(_ context.Context, identifier string) (*user.User, error) {
	for _, u := range f.users {
		if u.Username == identifier || u.Email == identifier {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeUserRepo) List(_ context.Context, skip, limit int) ([]*user.User, error) {
	var out []*user.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func newTestService(ttl time.Duration) (*Service, *fakeUserRepo) {
	repo := newFakeUserRepo()
	cfg := &config.Config{JWTSecret: "test-secret", JWTTTL: ttl}
	return NewService(user.NewService(repo), cfg), repo
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, repo := newTestService(time.Hour)

	u, err := svc.Register(context.Background(), "alice", "alice@example.com", "hunter22secret")
	require.NoError(t, err)

	assert.NotZero(t, u.ID)
	assert.NotEqual(t, "hunter22secret", repo.users[u.ID].PasswordHash)
	assert.False(t, u.IsAdmin)
}

func TestRegisterDuplicates(t *testing.T) {
	svc, _ := newTestService(time.Hour)

	_, err := svc.Register(context.Background(), "alice", "alice@example.com", "hunter22secret")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "alice", "other@example.com", "hunter22secret")
	assert.ErrorIs(t, err, user.ErrUsernameTaken)

	_, err = svc.Register(context.Background(), "bob", "alice@example.com", "hunter22secret")
	assert.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(time.Hour)

	registered, err := svc.Register(context.Background(), "alice", "alice@example.com", "hunter22secret")
	require.NoError(t, err)

	// By username.
	token, u, err := svc.Login(context.Background(), "alice", "hunter22secret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, registered.ID, u.ID)

	// By email.
	_, u, err = svc.Login(context.Background(), "alice@example.com", "hunter22secret")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)

	// The issued token decodes back to the same account.
	userID, err := svc.DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, userID)
}

func TestLoginRejections(t *testing.T) {
	svc, _ := newTestService(time.Hour)

	_, err := svc.Register(context.Background(), "alice", "alice@example.com", "hunter22secret")
	require.NoError(t, err)

	// Wrong password and unknown user yield the same error.
	_, _, err = svc.Login(context.Background(), "alice", "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody", "hunter22secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDecodeTokenRejections(t *testing.T) {
	svc, _ := newTestService(time.Hour)

	_, err := svc.DecodeToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Signed with a different secret.
	other := NewService(nil, &config.Config{JWTSecret: "other-secret", JWTTTL: time.Hour})
	forged, err := other.IssueToken(1)
	require.NoError(t, err)

	_, err = svc.DecodeToken(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeTokenExpired(t *testing.T) {
	svc, _ := newTestService(-time.Minute)

	token, err := svc.IssueToken(1)
	require.NoError(t, err)

	_, err = svc.DecodeToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
