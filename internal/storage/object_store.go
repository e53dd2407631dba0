package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"bybench/internal/config"
	"bybench/internal/ids"
)

// Upload is one file handed to the image host.
type Upload struct {
	Extension   string
	ContentType string
	Size        int64
	Body        io.Reader
}

type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
	scheme string
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	cfg.Endpoint = endpoint
	return &ObjectStore{client: client, cfg: cfg, scheme: scheme}, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
	}
	return nil
}

// UploadImages stores each file under a fresh sortable key and returns their
// public URLs in input order.
func (s *ObjectStore) UploadImages(ctx context.Context, files []Upload) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		key := ObjectKey(time.Now().UTC(), ids.NewSortable(), f.Extension)
		_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, f.Body, f.Size, minio.PutObjectOptions{
			ContentType:  f.ContentType,
			CacheControl: "public, max-age=31536000, immutable",
		})
		if err != nil {
			return nil, fmt.Errorf("put object %s: %w", key, err)
		}
		urls = append(urls, s.PublicURL(key))
	}
	return urls, nil
}

func (s *ObjectStore) PublicURL(key string) string {
	return PublicURL(s.cfg, s.scheme, key)
}

func ObjectKey(now time.Time, id, ext string) string {
	return path.Join("chat", now.Format("2006/01/02"), id+ext)
}

// PublicURL prefers the configured CDN base and falls back to path-style
// addressing on the storage endpoint.
func PublicURL(cfg config.StorageConfig, scheme, key string) string {
	if base := strings.TrimRight(cfg.PublicBaseURL, "/"); base != "" {
		return base + "/" + key
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, cfg.Endpoint, cfg.Bucket, key)
}

func (s *ObjectStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	return err
}
