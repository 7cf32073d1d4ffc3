package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagehost/service/internal/config"
	"github.com/imagehost/service/internal/image"
	"github.com/imagehost/service/internal/middleware"
	"github.com/imagehost/service/internal/storage"
	"github.com/imagehost/service/internal/user"
)

type fakeImageRepo struct {
	byID   map[int64]*image.Image
	aggErr error
}

func (f *fakeImageRepo) Create(_ context.Context, img *image.Image) (*image.Image, error) {
	return nil, errors.New("not used")
}

func (f *fakeImageRepo) GetByKey(_ context.Context, key string) (*image.Image, error) {
	return nil, image.ErrNotFound
}

func (f *fakeImageRepo) GetByID(_ context.Context, id int64) (*image.Image, error) {
	img, ok := f.byID[id]
	if !ok {
		return nil, image.ErrNotFound
	}
	return img, nil
}

func (f *fakeImageRepo) GetByIDAndOwner(_ context.Context, id, ownerID int64) (*image.Image, error) {
	img, err := f.GetByID(nil, id)
	if err != nil || img.UserID != ownerID {
		return nil, image.ErrNotFound
	}
	return img, nil
}

func (f *fakeImageRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return image.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeImageRepo) ListByOwner(_ context.Context, ownerID int64, offset, limit int) ([]*image.Image, error) {
	return nil, nil
}

func (f *fakeImageRepo) CountByOwner(_ context.Context, ownerID int64) (int64, error) {
	return 0, nil
}

func (f *fakeImageRepo) ListAll(_ context.Context, offset, limit int) ([]*image.Image, error) {
	var out []*image.Image
	for _, img := range f.byID {
		out = append(out, img)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeImageRepo) CountAll(_ context.Context) (int64, error) {
	return int64(len(f.byID)), nil
}

func (f *fakeImageRepo) AggregateUsage(_ context.Context) (int64, int64, error) {
	if f.aggErr != nil {
		return 0, 0, f.aggErr
	}
	var total int64
	for _, img := range f.byID {
		total += img.SizeBytes
	}
	return total, int64(len(f.byID)), nil
}

type fakeStore struct {
	deleteErr error
	deleted   []string
}

func (f *fakeStore) PresignPut(_ context.Context, key, contentType string, _ time.Duration) (string, error) {
	return "https://upload.test/" + key, nil
}

func (f *fakeStore) Stat(_ context.Context, key string) (*storage.ObjectInfo, error) {
	return nil, storage.ErrObjectNotFound
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) PublicURL(key string) string {
	return "https://img.test/" + key
}

type fakeUserRepo struct {
	users map[int64]*user.User
}

func (f *fakeUserRepo) Create(_ context.Context, username, email, hash string) (*user.User, error) {
	return nil, errors.New("not used")
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByIdentifier(_ context.Context, identifier string) (*user.User, error) {
	return nil, user.ErrNotFound
}

func (f *fakeUserRepo) List(_ context.Context, skip, limit int) ([]*user.User, error) {
	var out []*user.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

type idDecoder struct{}

func (idDecoder) DecodeToken(token string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(token, "%d", &id)
	return id, err
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeImageRepo, *fakeStore) {
	t.Helper()

	imageRepo := &fakeImageRepo{byID: map[int64]*image.Image{}}
	store := &fakeStore{}
	userRepo := &fakeUserRepo{users: map[int64]*user.User{
		1: {ID: 1, Username: "root", IsAdmin: true},
		2: {ID: 2, Username: "alice"},
	}}

	userSvc := user.NewService(userRepo)
	imageSvc := image.NewService(imageRepo, store, &config.Config{UploadURLTTL: time.Hour})
	handler := NewHandler(imageSvc, userSvc)

	r := chi.NewRouter()
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.RequireAuth(idDecoder{}, userSvc))
		r.Use(middleware.RequireAdmin)
		r.Get("/stats", handler.Stats)
		r.Get("/images", handler.ListImages)
		r.Get("/images/{id}", handler.GetImage)
		r.Delete("/images/{id}", handler.DeleteImage)
		r.Get("/users", handler.ListUsers)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, imageRepo, store
}

func do(t *testing.T, method, url string, userID int64) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %d", userID))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNonAdminIs403(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/stats", "/images", "/images/1", "/users"} {
		resp := do(t, http.MethodGet, srv.URL+"/api/v1/admin"+path, 2)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "path %s", path)
	}
}

func TestStats(t *testing.T) {
	srv, repo, _ := newTestServer(t)

	repo.byID[1] = &image.Image{ID: 1, UserID: 2, SizeBytes: 1024 * 1024}

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/admin/stats", 1)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env struct {
		Data image.StorageStats `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, int64(1024*1024), env.Data.TotalSizeBytes)
	assert.Equal(t, int64(1), env.Data.ObjectCount)
}

func TestStatsUnavailableIs503(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	repo.aggErr = errors.New("db down")

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/admin/stats", 1)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAdminDeleteAnyImage(t *testing.T) {
	srv, repo, store := newTestServer(t)

	repo.byID[9] = &image.Image{ID: 9, UserID: 2, StorageKey: "2/a.jpg"}

	resp := do(t, http.MethodDelete, srv.URL+"/api/v1/admin/images/9", 1)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, repo.byID)
	assert.Equal(t, []string{"2/a.jpg"}, store.deleted)
}

func TestAdminDeleteStorageFailureIs500(t *testing.T) {
	srv, repo, store := newTestServer(t)

	repo.byID[9] = &image.Image{ID: 9, UserID: 2, StorageKey: "2/a.jpg"}
	store.deleteErr = errors.New("gateway down")

	resp := do(t, http.MethodDelete, srv.URL+"/api/v1/admin/images/9", 1)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Len(t, repo.byID, 1, "record must be preserved for retry")
}

func TestPaginationValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/admin/images?skip=-1", 1)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/admin/users?limit=101", 1)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/admin/images", 1)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
