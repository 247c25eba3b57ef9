package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/noah-isme/practicum-api/pkg/config"
)

// OSSStorage uploads objects to an Aliyun OSS bucket with a public-read ACL.
type OSSStorage struct {
	bucket     *oss.Bucket
	publicBase string
}

// NewOSSStorage connects to the configured bucket.
func NewOSSStorage(cfg config.OSSConfig) (*OSSStorage, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("oss endpoint and bucket required")
	}
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("client.Bucket: %w", err)
	}
	return &OSSStorage{bucket: bucket, publicBase: ossPublicBase(cfg)}, nil
}

// PutObject uploads r under key and returns its public URL.
func (s *OSSStorage) PutObject(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ObjectACL(oss.ACLPublicRead),
		oss.ContentDisposition("inline"),
		oss.CacheControl("public, max-age=31536000, immutable"),
	}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
	}
	if err := s.bucket.PutObject(key, r, opts...); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.publicBase + "/" + key, nil
}

// DeleteObject removes key from the bucket.
func (s *OSSStorage) DeleteObject(ctx context.Context, key string) error {
	if err := s.bucket.DeleteObject(strings.TrimLeft(key, "/"), oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func ossPublicBase(cfg config.OSSConfig) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	host := cfg.Endpoint
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	return "https://" + cfg.Bucket + "." + strings.TrimRight(host, "/")
}

// NewObjectStore selects the backend named by cfg.Uploads.Driver.
func NewObjectStore(cfg *config.Config) (ObjectStore, error) {
	switch cfg.Uploads.Driver {
	case config.StorageDriverOSS:
		store, err := NewOSSStorage(cfg.OSS)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "", config.StorageDriverLocal:
		store, err := NewLocalStorage(cfg.Uploads.LocalDir, cfg.Uploads.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Uploads.Driver)
	}
}
