// audio.go - Lecture audio object storage.
//
// Recorded lecture audio lives in a MinIO/S3 bucket under stable,
// non-guessable keys ("audio/" + transcript UUID). The server issues
// presigned upload and playback URLs instead of proxying audio bytes,
// and removes the object when its transcript is deleted.
package server

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AudioStore abstracts object storage so handler tests can run without
// a MinIO instance.
type AudioStore interface {
	UploadURL(ctx context.Context, objectKey string) (string, error)
	PlaybackURL(ctx context.Context, objectKey string) (string, error)
	Remove(ctx context.Context, objectKey string) error
	Healthy(ctx context.Context) error
}

// minioAudioStore is the production AudioStore.
type minioAudioStore struct {
	client *minio.Client
	bucket string
}

const presignTTL = 15 * time.Minute

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	return raw, false, nil
}

// NewMinioAudioStore connects to the configured bucket and verifies it
// exists before the server starts serving.
func NewMinioAudioStore(cfg AppConfig) (AudioStore, error) {
	endpoint, secure, err := normaliseEndpoint(cfg.MinioEndpoint)
	if err != nil {
		return nil, err
	}
	if cfg.MinioUseSSL {
		secure = true
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(context.Background(), cfg.MinioBucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("bucket does not exist: %s", cfg.MinioBucket)
	}

	return &minioAudioStore{client: client, bucket: cfg.MinioBucket}, nil
}

// audioObjectKey builds the storage key for a transcript's audio.
// UUID-based keys avoid path traversal and enumeration.
func audioObjectKey(transcriptID string) string {
	return "audio/" + transcriptID
}

func (m *minioAudioStore) UploadURL(ctx context.Context, objectKey string) (string, error) {
	u, err := m.client.PresignedPutObject(ctx, m.bucket, objectKey, presignTTL)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (m *minioAudioStore) PlaybackURL(ctx context.Context, objectKey string) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, objectKey, presignTTL, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (m *minioAudioStore) Remove(ctx context.Context, objectKey string) error {
	return m.client.RemoveObject(ctx, m.bucket, objectKey, minio.RemoveObjectOptions{})
}

func (m *minioAudioStore) Healthy(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}

// nullAudioStore is used when object storage is not configured (tests,
// local development without MinIO). URLs are empty; removals succeed.
type nullAudioStore struct{}

// NewNullAudioStore returns an AudioStore that stores nothing.
func NewNullAudioStore() AudioStore { return nullAudioStore{} }

func (nullAudioStore) UploadURL(context.Context, string) (string, error)   { return "", nil }
func (nullAudioStore) PlaybackURL(context.Context, string) (string, error) { return "", nil }
func (nullAudioStore) Remove(context.Context, string) error                { return nil }
func (nullAudioStore) Healthy(context.Context) error                       { return nil }
