// Package objstore provides an S3-compatible object store backed by
// Cloudflare R2.
package objstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/openinsure/irdai-harvester/internal/harvest"
)

// Config captures the parameters required to connect to the bucket.
type Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// PublicURLBase overrides the default https://{bucket}.r2.dev base.
	PublicURLBase string
	// Endpoint overrides the default {account}.r2.cloudflarestorage.com
	// host, for S3-compatible gateways and tests.
	Endpoint string
	// Insecure connects to the endpoint over plain HTTP.
	Insecure bool
	// Verify enables a post-upload existence check. Guards against
	// silent upload failures.
	Verify bool
}

// Validate reports missing credentials.
func (c Config) Validate() error {
	if c.AccountID == "" || c.AccessKeyID == "" || c.SecretAccessKey == "" || c.Bucket == "" {
		return fmt.Errorf("object storage requires account id, access key, secret key and bucket")
	}
	return nil
}

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
	".csv":  "text/csv",
	".json": "application/json",
}

// Store implements harvest.ObjectStore against an R2 bucket.
type Store struct {
	client        *minio.Client
	bucket        string
	publicURLBase string
	verify        bool
}

// New connects to the account's R2 endpoint.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s.r2.cloudflarestorage.com", cfg.AccountID)
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: !cfg.Insecure,
		Region: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	base := strings.TrimRight(cfg.PublicURLBase, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.r2.dev", cfg.Bucket)
	}
	return &Store{
		client:        client,
		bucket:        cfg.Bucket,
		publicURLBase: base,
		verify:        cfg.Verify,
	}, nil
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Key derives the deterministic object key for a downloaded file:
// {source_type}/{relative-path-under-downloads}, slash-separated.
func Key(st harvest.SourceType, relativePath string) string {
	key := string(st) + "/" + relativePath
	return strings.TrimLeft(strings.ReplaceAll(key, "\\", "/"), "/")
}

// Upload transfers a local file under key, setting the content type from
// its extension, and returns the public URL. When verification is
// enabled and the object is not observed afterwards, Upload fails with a
// StorageError and the local file is left untouched.
func (s *Store) Upload(ctx context.Context, localPath, key string) (string, error) {
	contentType := contentTypes[strings.ToLower(filepath.Ext(localPath))]
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", &harvest.StorageError{Op: "put", Key: key, Err: err}
	}

	if s.verify {
		exists, err := s.Exists(ctx, key)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", &harvest.StorageError{
				Op:  "verify",
				Key: key,
				Err: fmt.Errorf("object not observed after upload"),
			}
		}
	}
	return s.publicURLBase + "/" + key, nil
}

// Exists performs a HEAD on the object.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return false, nil
		}
		return false, &harvest.StorageError{Op: "head", Key: key, Err: err}
	}
	return true, nil
}

// Delete removes an object.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return &harvest.StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// List returns all object keys under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, &harvest.StorageError{Op: "list", Key: prefix, Err: object.Err}
		}
		keys = append(keys, object.Key)
	}
	return keys, nil
}
