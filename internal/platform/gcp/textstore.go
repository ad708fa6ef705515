package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/docquery-backend/internal/docquery/store"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

// MaxTextObjectBytes bounds a single extracted-text read.
const MaxTextObjectBytes = 32 << 20

var ErrTextObjectTooLarge = errors.New("text object exceeds size limit")

type TextStoreConfig struct {
	// Bucket resolves storage paths that are not fully qualified gs:// URLs.
	Bucket  string
	Storage ObjectStorageConfig
}

// TextStore reads extracted document text from Cloud Storage.
type TextStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

func NewTextStore(ctx context.Context, log *logger.Logger, cfg TextStoreConfig) (*TextStore, error) {
	client, err := newStorageClientForMode(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	ts := NewTextStoreWithClient(log, client, cfg.Bucket)
	ts.log.Info(
		"Object storage initialized",
		"mode", cfg.Storage.Mode,
		"mode_source", cfg.Storage.ModeSource(),
		"emulator_host", cfg.Storage.EmulatorHost,
		"bucket", ts.bucket,
	)
	return ts, nil
}

func NewTextStoreWithClient(log *logger.Logger, client *storage.Client, bucket string) *TextStore {
	return &TextStore{
		log:    log.With("service", "TextStore"),
		client: client,
		bucket: strings.TrimSpace(bucket),
	}
}

func newStorageClientForMode(ctx context.Context, cfg ObjectStorageConfig) (*storage.Client, error) {
	switch cfg.Mode {
	case ObjectStorageModeGCS, "":
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadOnly))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		// The storage client reads the emulator endpoint from the environment.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{Reason: "invalid_mode", Mode: string(cfg.Mode)}
	}
}

// ReadObject reads the object at path, which is either gs://bucket/key or a key in the default bucket.
func (s *TextStore) ReadObject(ctx context.Context, path string) ([]byte, error) {
	bucket, key, err := splitObjectPath(path, s.bucket)
	if err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", store.ErrObjectNotFound, bucket, key)
		}
		return nil, fmt.Errorf("open gs://%s/%s: %w", bucket, key, err)
	}
	defer r.Close()

	b, err := io.ReadAll(io.LimitReader(r, MaxTextObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", bucket, key, err)
	}
	if len(b) > MaxTextObjectBytes {
		return nil, fmt.Errorf("%w: gs://%s/%s", ErrTextObjectTooLarge, bucket, key)
	}
	return b, nil
}

// Ping checks that the default bucket is reachable. Without a default bucket there is nothing to check.
func (s *TextStore) Ping(ctx context.Context) error {
	if s.bucket == "" {
		return nil
	}
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *TextStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func splitObjectPath(path, defaultBucket string) (bucket, key string, err error) {
	path = strings.TrimSpace(path)
	if rest, ok := strings.CutPrefix(path, "gs://"); ok {
		bucket, key, _ = strings.Cut(rest, "/")
	} else {
		bucket, key = defaultBucket, strings.TrimLeft(path, "/")
	}
	if bucket == "" {
		return "", "", fmt.Errorf("no bucket for object path %q", path)
	}
	if key == "" {
		return "", "", fmt.Errorf("empty object key in path %q", path)
	}
	return bucket, key, nil
}
