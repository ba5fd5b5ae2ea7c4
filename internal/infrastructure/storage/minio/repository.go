package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeObjectNotFound, "object not found")
	ErrInvalidRequest = errors.New(errors.ErrCodeValidation, "invalid request")
)

// ObjectStore keeps blobs under keys in the model bucket.  Checkpoints and
// environment models both live here.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string, meta map[string]string) (*ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type minioRepository struct {
	client *MinIOClient
	bucket string
	logger logging.Logger
}

func NewObjectStore(client *MinIOClient, log logging.Logger) ObjectStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &minioRepository{
		client: client,
		bucket: client.ModelBucket(),
		logger: log.Named("object_store"),
	}
}

// ObjectKey joins key parts with "/" and strips leading slashes.
func ObjectKey(parts ...string) string {
	return strings.TrimPrefix(path.Join(parts...), "/")
}

func (r *minioRepository) Put(ctx context.Context, key string, data []byte, contentType string, meta map[string]string) (*ObjectInfo, error) {
	if key == "" {
		return nil, ErrInvalidRequest.WithDetail("empty object key")
	}
	api, err := r.client.API()
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := api.PutObject(ctx, r.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "upload failed").WithDetail(key)
	}
	r.logger.Debug("Object stored", logging.String("key", key), logging.Int64("size", info.Size))
	return &ObjectInfo{Key: key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

func (r *minioRepository) Get(ctx context.Context, key string) ([]byte, error) {
	api, err := r.client.API()
	if err != nil {
		return nil, err
	}
	obj, err := api.GetObject(ctx, r.bucket, key)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrObjectNotFound.WithDetail(key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "download failed").WithDetail(key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "download failed").WithDetail(key)
	}
	return data, nil
}

func (r *minioRepository) Exists(ctx context.Context, key string) (bool, error) {
	api, err := r.client.API()
	if err != nil {
		return false, err
	}
	if _, err := api.StatObject(ctx, r.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorage, "stat failed").WithDetail(key)
	}
	return true, nil
}

func (r *minioRepository) Delete(ctx context.Context, key string) error {
	api, err := r.client.API()
	if err != nil {
		return err
	}
	if err := api.RemoveObject(ctx, r.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "delete failed").WithDetail(key)
	}
	return nil
}

// List returns the objects under prefix sorted by key.
func (r *minioRepository) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	api, err := r.client.API()
	if err != nil {
		return nil, err
	}
	var out []ObjectInfo
	for obj := range api.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorage, "list failed").WithDetail(prefix)
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

//Personal.AI order the ending
