package image

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/imagehost/service/internal/config"
	"github.com/imagehost/service/internal/storage"
	"github.com/imagehost/service/internal/user"
)

// MaxSizeBytes is the largest accepted upload (10 MB).
const MaxSizeBytes = 10 * 1024 * 1024

// allowedContentTypes is the upload allow-list. Anything else is rejected
// before the storage gateway is ever called.
var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ErrInvalidFilename is returned when the filename is empty or over 255 characters.
var ErrInvalidFilename = errors.New("filename must be 1-255 characters")

// ErrInvalidContentType is returned for content types outside the allow-list.
var ErrInvalidContentType = errors.New("content type must be image/jpeg, image/png, image/gif, or image/webp")

// ErrInvalidSize is returned for declared sizes outside (0, 10MB].
var ErrInvalidSize = errors.New("size must be between 1 byte and 10MB")

// ErrKeyForbidden is returned when a confirmation names a storage key outside
// the caller's namespace. Distinct from not-found: the caller is reaching into
// another user's prefix.
var ErrKeyForbidden = errors.New("storage key does not belong to caller")

// ErrUploadIncomplete is returned when no object exists at the key being
// confirmed. The client either never uploaded or the upload failed.
var ErrUploadIncomplete = errors.New("file not found in storage, upload may have failed")

// ErrAlreadyConfirmed is returned when the storage key already has a record.
// Confirmation is deliberately not idempotent.
var ErrAlreadyConfirmed = errors.New("image already confirmed")

// ErrStorageUnavailable is returned when the object store fails for a reason
// other than a missing object.
var ErrStorageUnavailable = errors.New("object storage unavailable")

// IsValidation reports whether err is one of the input-validation failures.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidFilename) ||
		errors.Is(err, ErrInvalidContentType) ||
		errors.Is(err, ErrInvalidSize)
}

// UploadTicket is the result of a successful upload-credential request.
type UploadTicket struct {
	UploadURL  string `json:"uploadUrl"`
	StorageKey string `json:"storageKey"`
	PublicURL  string `json:"publicUrl"`
}

// StorageStats summarizes stored bytes against the 10 GB free tier.
type StorageStats struct {
	TotalSizeBytes  int64   `json:"totalSizeBytes"`
	TotalSizeMB     float64 `json:"totalSizeMb"`
	TotalSizeGB     float64 `json:"totalSizeGb"`
	ObjectCount     int64   `json:"objectCount"`
	FreeTierLimitGB int64   `json:"freeTierLimitGb"`
	UsagePercentage float64 `json:"usagePercentage"`
}

const freeTierLimitBytes = 10 * 1024 * 1024 * 1024

// Service orchestrates the upload authorization and confirmation protocol.
type Service struct {
	repo  Repository
	store storage.Storage
	cfg   *config.Config
}

// NewService creates a new image Service.
func NewService(repo Repository, store storage.Storage, cfg *config.Config) *Service {
	return &Service{repo: repo, store: store, cfg: cfg}
}

// RequestUpload validates the declared upload and issues a presigned PUT URL
// for a freshly derived storage key. Nothing is persisted: a record appears
// only once the upload is confirmed.
func (s *Service) RequestUpload(ctx context.Context, u *user.User, filename, contentType string, sizeBytes int64) (*UploadTicket, error) {
	if err := validateUpload(filename, contentType, sizeBytes); err != nil {
		return nil, err
	}

	key := generateKey(u.ID, filename)
	uploadURL, err := s.store.PresignPut(ctx, key, contentType, s.cfg.UploadURLTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return &UploadTicket{
		UploadURL:  uploadURL,
		StorageKey: key,
		PublicURL:  s.store.PublicURL(key),
	}, nil
}

// Confirm registers a metadata record for an upload after verifying the blob
// actually landed in storage. Checks run in order, each one terminal:
// ownership prefix, object existence, duplicate key. The stored size comes
// from the verified object, not the client's declaration.
func (s *Service) Confirm(ctx context.Context, u *user.User, storageKey, filename, contentType string, sizeBytes int64) (*Image, error) {
	if err := validateUpload(filename, contentType, sizeBytes); err != nil {
		return nil, err
	}

	if !strings.HasPrefix(storageKey, fmt.Sprintf("%d/", u.ID)) {
		return nil, ErrKeyForbidden
	}

	info, err := s.store.Stat(ctx, storageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, ErrUploadIncomplete
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if _, err := s.repo.GetByKey(ctx, storageKey); err == nil {
		return nil, ErrAlreadyConfirmed
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check existing record: %w", err)
	}

	created, err := s.repo.Create(ctx, &Image{
		UserID:      u.ID,
		Filename:    filename,
		StorageKey:  storageKey,
		ContentType: contentType,
		SizeBytes:   info.SizeBytes,
		PublicURL:   s.store.PublicURL(storageKey),
	})
	if errors.Is(err, ErrDuplicateKey) {
		// Lost the race against a concurrent confirmation of the same key.
		return nil, ErrAlreadyConfirmed
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns one image, visible only to its owner.
func (s *Service) Get(ctx context.Context, u *user.User, id int64) (*Image, error) {
	return s.repo.GetByIDAndOwner(ctx, id, u.ID)
}

// List returns one page of the owner's images, newest first, with the total count.
func (s *Service) List(ctx context.Context, u *user.User, page, perPage int) ([]*Image, int64, error) {
	total, err := s.repo.CountByOwner(ctx, u.ID)
	if err != nil {
		return nil, 0, err
	}
	images, err := s.repo.ListByOwner(ctx, u.ID, (page-1)*perPage, perPage)
	if err != nil {
		return nil, 0, err
	}
	return images, total, nil
}

// Delete removes the owner's image. The blob delete is best-effort: a storage
// failure is logged and the record is removed anyway, so a dangling blob never
// blocks a user from removing an image from their own view.
func (s *Service) Delete(ctx context.Context, u *user.User, id int64) error {
	img, err := s.repo.GetByIDAndOwner(ctx, id, u.ID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, img.StorageKey); err != nil {
		log.Printf("image: best-effort blob delete failed for %q: %v", img.StorageKey, err)
	}

	return s.repo.Delete(ctx, img.ID)
}

// AdminGet returns any image by id regardless of owner.
func (s *Service) AdminGet(ctx context.Context, id int64) (*Image, error) {
	return s.repo.GetByID(ctx, id)
}

// AdminList returns one page of all users' images, newest first, with the total count.
func (s *Service) AdminList(ctx context.Context, skip, limit int) ([]*Image, int64, error) {
	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	images, err := s.repo.ListAll(ctx, skip, limit)
	if err != nil {
		return nil, 0, err
	}
	return images, total, nil
}

// AdminDelete removes any image by id. Unlike the owner path, a blob-delete
// failure aborts the operation and preserves the record so the delete can be
// retried later.
func (s *Service) AdminDelete(ctx context.Context, id int64) error {
	img, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, img.StorageKey); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return s.repo.Delete(ctx, img.ID)
}

// Stats aggregates stored bytes and record count from the database.
func (s *Service) Stats(ctx context.Context) (*StorageStats, error) {
	totalBytes, count, err := s.repo.AggregateUsage(ctx)
	if err != nil {
		return nil, err
	}
	return &StorageStats{
		TotalSizeBytes:  totalBytes,
		TotalSizeMB:     roundTo2(float64(totalBytes) / (1024 * 1024)),
		TotalSizeGB:     roundTo2(float64(totalBytes) / (1024 * 1024 * 1024)),
		ObjectCount:     count,
		FreeTierLimitGB: 10,
		UsagePercentage: roundTo2(float64(totalBytes) / freeTierLimitBytes * 100),
	}, nil
}

// IsNotFound returns true when the error indicates an image was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func validateUpload(filename, contentType string, sizeBytes int64) error {
	if len(filename) == 0 || len(filename) > 255 {
		return ErrInvalidFilename
	}
	if !allowedContentTypes[contentType] {
		return ErrInvalidContentType
	}
	if sizeBytes <= 0 || sizeBytes > MaxSizeBytes {
		return ErrInvalidSize
	}
	return nil
}

// generateKey derives the storage key for a new upload. The owner-id prefix is
// the sole binding between the blob and its owner until confirmation creates a
// record; the uuid token makes keys unguessable across users.
func generateKey(userID int64, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%d/%s%s", userID, token, ext)
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
