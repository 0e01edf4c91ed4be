package assets

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreConfig configures the S3-compatible object store.
type ObjectStoreConfig struct {
	Endpoint  string `koanf:"endpoint"` // e.g. https://minio.internal:9000
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Region    string `koanf:"region"`
}

// S3Fetcher reads s3://bucket/key locations.
type S3Fetcher struct {
	client *minio.Client
}

// NewS3Fetcher connects a minio client from cfg. The endpoint scheme
// selects TLS.
func NewS3Fetcher(cfg ObjectStoreConfig) (*S3Fetcher, error) {
	parsed, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse object store endpoint: %w", err)
	}
	host := parsed.Host
	if host == "" {
		host = cfg.Endpoint
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: parsed.Scheme == "https",
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &S3Fetcher{client: client}, nil
}

// ParseS3Location splits s3://bucket/key.
func ParseS3Location(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%s: not an s3:// location", location)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%s: want s3://bucket/key", location)
	}
	return bucket, key, nil
}

// Open implements Fetcher. The object is stat'ed first so a missing key
// fails here rather than on the first read.
func (f *S3Fetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3Location(location)
	if err != nil {
		return nil, err
	}
	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateError(location, err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, translateError(location, err)
	}
	return obj, nil
}

func translateError(location string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%s: %w", location, fs.ErrNotExist)
	default:
		return fmt.Errorf("%s: %w", location, err)
	}
}
