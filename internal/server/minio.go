// minio.go - S3-compatible object storage for file contents.
package server

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"minidrive/internal/config"
)

// Resource kinds categorise stored objects. The kind is recorded at upload
// time and needed again to rebuild the object key for deletion.
const (
	KindImage = "image"
	KindVideo = "video"
	KindRaw   = "raw"
)

const objectPrefix = "minidrive"

// resourceKindFor maps a MIME type to a resource kind. PDFs are always
// stored as raw, matching how they must be fetched back byte-for-byte.
func resourceKindFor(contentType string) string {
	switch {
	case contentType == "application/pdf":
		return KindRaw
	case strings.HasPrefix(contentType, "image/"):
		return KindImage
	case strings.HasPrefix(contentType, "video/"):
		return KindVideo
	default:
		return KindRaw
	}
}

// objectKey builds the bucket key for an object: minidrive/<kind>/<id>.
// Both halves are required, which is why the kind is persisted per file.
func objectKey(kind, objectID string) string {
	return objectPrefix + "/" + kind + "/" + objectID
}

// StoredObject describes an object after a successful upload.
type StoredObject struct {
	URL      string
	ObjectID string
	Kind     string
	Size     int64
}

// ObjectStore wraps the MinIO client with the bucket and URL conventions of
// this service.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

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
		secure = (u.Scheme == "https")
		return u.Host, secure, nil
	}

	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

// NewObjectStore connects to the configured S3-compatible endpoint and
// verifies the bucket exists.
func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(context.Background(), cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("bucket does not exist: %s", cfg.Bucket)
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// Upload streams content into the bucket under a fresh object id and returns
// its location. The caller supplies size -1 when the length is unknown.
func (o *ObjectStore) Upload(ctx context.Context, content io.Reader, size int64, contentType string) (StoredObject, error) {
	kind := resourceKindFor(contentType)
	objectID := uuid.New().String()
	key := objectKey(kind, objectID)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	info, err := o.client.PutObject(ctx, o.bucket, key, content, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return StoredObject{}, err
	}

	return StoredObject{
		URL:      o.objectURL(key),
		ObjectID: objectID,
		Kind:     kind,
		Size:     info.Size,
	}, nil
}

// Remove deletes the object identified by (objectID, kind). The kind selects
// the key prefix the object was stored under.
func (o *ObjectStore) Remove(ctx context.Context, objectID, kind string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return o.client.RemoveObject(ctx, o.bucket, objectKey(kind, objectID),
		minio.RemoveObjectOptions{})
}

// Fetch opens the object for reading. The returned reader must be closed.
func (o *ObjectStore) Fetch(ctx context.Context, objectID, kind string) (io.ReadCloser, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, objectKey(kind, objectID),
		minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// Force an early error for missing object / auth issues.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, err
	}
	return obj, nil
}

// Healthy reports whether the bucket is reachable.
func (o *ObjectStore) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	exists, err := o.client.BucketExists(ctx, o.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket does not exist: %s", o.bucket)
	}
	return nil
}

func (o *ObjectStore) objectURL(key string) string {
	return o.client.EndpointURL().String() + "/" + o.bucket + "/" + key
}
