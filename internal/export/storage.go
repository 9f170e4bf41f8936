package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader stores a rendered export and returns a time-limited download URL.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, time.Time, error)
}

// ObjectStore uploads exports to an S3-compatible bucket via minio.
type ObjectStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// ObjectStoreConfig holds the S3-compatible endpoint settings.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration
}

// NewObjectStore connects and creates the bucket if it does not exist.
func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket, expiry: expiry}, nil
}

func (o *ObjectStore) Upload(ctx context.Context, name string, data []byte, contentType string) (string, time.Time, error) {
	_, err := o.client.PutObject(ctx, o.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("upload export %s: %w", name, err)
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", pathBase(name)))
	presigned, err := o.client.PresignedGetObject(ctx, o.bucket, name, o.expiry, params)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign export %s: %w", name, err)
	}
	return presigned.String(), time.Now().Add(o.expiry).UTC(), nil
}

func pathBase(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[i+1:]
		}
	}
	return name
}
