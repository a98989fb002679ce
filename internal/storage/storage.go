package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrBucketNotFound = errors.New("bucket not found")
	ErrBucketExists   = errors.New("bucket already exists")
)

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type BucketInfo struct {
	Name      string
	CreatedAt time.Time
}

type PutOptions struct {
	ContentType string
}

// ObjectStore reads and writes objects inside one configured bucket.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	// List returns every object under prefix with keys relative to the
	// store, sorted by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// BucketAdmin manages buckets across the account.
type BucketAdmin interface {
	ListBuckets(ctx context.Context) ([]BucketInfo, error)
	CreateBucket(ctx context.Context, name string) error
	DeleteBucket(ctx context.Context, name string) error
	UploadFile(ctx context.Context, bucket, filePath string) (ObjectInfo, error)
}
