package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
// To switch to Cloudflare R2 or AWS S3, change STORAGE_ENDPOINT and credentials —
// no code changes are needed since both speak the S3 API.
type MinioStorage struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists with a
// public-read policy, and returns a ready-to-use MinioStorage. The client is
// safe for concurrent use by multiple in-flight requests.
func NewMinioStorage(endpoint, accessKey, secretKey, bucket, publicBase string, useSSL bool) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx := context.Background()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		log.Printf("storage: created bucket %q", bucket)
	}

	if err := client.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket)); err != nil {
		return nil, fmt.Errorf("set bucket policy: %w", err)
	}

	return &MinioStorage{
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

// PresignPut returns a presigned URL for a direct PUT of key. The Content-Type
// header is part of the signature, so the client must upload with exactly the
// declared type.
func (s *MinioStorage) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	headers := http.Header{"Content-Type": []string{contentType}}
	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.bucket, key, ttl, url.Values{}, headers)
	if err != nil {
		return "", fmt.Errorf("presign put %q: %w", key, err)
	}
	return u.String(), nil
}

// Stat queries the store for the object at key. A missing object is reported
// as ErrObjectNotFound so callers can tell "upload never happened" apart from
// a misconfigured or unreachable store.
func (s *MinioStorage) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object %q: %w", key, err)
	}
	return &ObjectInfo{
		SizeBytes:   info.Size,
		ContentType: info.ContentType,
	}, nil
}

// Delete removes the object at key from the bucket.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// PublicURL returns the browser-accessible URL for the given key.
// For local MinIO: "http://localhost:9000/images/42/abc.jpg"
// For an R2 custom domain: "https://img.example.com/42/abc.jpg"
func (s *MinioStorage) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
