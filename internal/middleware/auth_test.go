package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagehost/service/internal/user"
)

type stubDecoder struct {
	userID int64
	err    error
}

func (s stubDecoder) DecodeToken(string) (int64, error) {
	return s.userID, s.err
}

type stubResolver struct {
	users map[int64]*user.User
}

func (s stubResolver) GetByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func authedHandler(t *testing.T, captured **user.User) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		require.True(t, ok)
		*captured = u
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	alice := &user.User{ID: 1, Username: "alice"}
	resolver := stubResolver{users: map[int64]*user.User{1: alice}}

	var got *user.User
	handler := RequireAuth(stubDecoder{userID: 1}, resolver)(authedHandler(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alice, got)
}

func TestRequireAuthRejections(t *testing.T) {
	alice := &user.User{ID: 1}
	resolver := stubResolver{users: map[int64]*user.User{1: alice}}

	tests := []struct {
		name    string
		header  string
		decoder stubDecoder
	}{
		{"missing header", "", stubDecoder{userID: 1}},
		{"wrong scheme", "Basic abc", stubDecoder{userID: 1}},
		{"no token", "Bearer", stubDecoder{userID: 1}},
		{"invalid token", "Bearer bad", stubDecoder{err: errors.New("invalid or expired token")}},
		{"deleted account", "Bearer valid", stubDecoder{userID: 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := RequireAuth(tt.decoder, resolver)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called, "protected handler must not run")
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	admin := &user.User{ID: 1, IsAdmin: true}
	plain := &user.User{ID: 2}
	resolver := stubResolver{users: map[int64]*user.User{1: admin, 2: plain}}

	run := func(userID int64) *httptest.ResponseRecorder {
		handler := RequireAuth(stubDecoder{userID: userID}, resolver)(
			RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, run(1).Code)
	assert.Equal(t, http.StatusForbidden, run(2).Code)
}

func TestRequireAdminWithoutAuth(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
