package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clipstats/clipstats/internal/storage"
)

func TestPutUsesPrefixAndNormalizedKey(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "clipstats/prod", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	_, err = store.Put(context.Background(), "/datasets/clips/file.parquet", bytes.NewBufferString("abc"), 3, storage.PutOptions{ContentType: "application/octet-stream"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastPutBucket != "bucket-a" {
		t.Fatalf("bucket = %q", fake.lastPutBucket)
	}
	if fake.lastPutKey != "clipstats/prod/datasets/clips/file.parquet" {
		t.Fatalf("key = %q", fake.lastPutKey)
	}
}

func TestPutRejectsPathTraversal(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	_, err = store.Put(context.Background(), "../secrets.txt", bytes.NewBufferString("x"), 1, storage.PutOptions{})
	if err == nil {
		t.Fatal("expected path traversal validation error")
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeClient{bucketExists: false}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if !fake.createBucketCalled {
		t.Fatal("expected CreateBucket to be called")
	}
}

func TestDeleteIgnoresMissingObject(t *testing.T) {
	fake := &fakeClient{deleteErr: storage.ErrObjectNotFound}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if err := store.Delete(context.Background(), "missing/file.parquet"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestParseEndpoint(t *testing.T) {
	endpoint, secure, err := parseEndpoint("https://minio.example.com", false)
	if err != nil {
		t.Fatalf("parseEndpoint() error = %v", err)
	}
	if endpoint != "minio.example.com" || !secure {
		t.Fatalf("endpoint/secure = %q/%v", endpoint, secure)
	}
}

func TestListStripsStorePrefix(t *testing.T) {
	fake := &fakeClient{objects: []storage.ObjectInfo{
		{Key: "root/datasets/clips/b.parquet", Size: 2},
		{Key: "root/datasets/clips/a.parquet", Size: 1},
	}}
	store, err := NewWithClient("bucket-a", "root", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	objects, err := store.List(context.Background(), "datasets/clips")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if fake.lastListPrefix != "root/datasets/clips/" {
		t.Fatalf("list prefix = %q", fake.lastListPrefix)
	}
	if len(objects) != 2 || objects[0].Key != "datasets/clips/a.parquet" || objects[1].Key != "datasets/clips/b.parquet" {
		t.Fatalf("List() = %+v", objects)
	}
}

func TestListBucketsReturnsNames(t *testing.T) {
	fake := &fakeClient{buckets: []storage.BucketInfo{{Name: "boto3fun"}, {Name: "oren-clips-output"}}}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	buckets, err := store.ListBuckets(context.Background())
	if err != nil {
		t.Fatalf("ListBuckets() error = %v", err)
	}
	if len(buckets) != 2 || buckets[1].Name != "oren-clips-output" {
		t.Fatalf("ListBuckets() = %+v", buckets)
	}
}

func TestCreateBucketRejectsEmptyName(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if err := store.CreateBucket(context.Background(), "  "); err == nil {
		t.Fatal("expected empty bucket name error")
	}
	if fake.createBucketCalled {
		t.Fatal("CreateBucket should not reach the client")
	}
}

func TestCreateBucketSkipsExistingBucket(t *testing.T) {
	fake := &fakeClient{bucketExists: true}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if err := store.CreateBucket(context.Background(), "boto3fun"); err != nil {
		t.Fatalf("CreateBucket() error = %v", err)
	}
	if fake.createBucketCalled {
		t.Fatal("CreateBucket should not recreate an existing bucket")
	}
}

func TestCreateBucketCreatesMissingBucket(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if err := store.CreateBucket(context.Background(), "boto3fun"); err != nil {
		t.Fatalf("CreateBucket() error = %v", err)
	}
	if !fake.createBucketCalled || fake.lastBucket != "boto3fun" {
		t.Fatalf("CreateBucket() called = %v bucket = %q", fake.createBucketCalled, fake.lastBucket)
	}
}

func TestDeleteBucketReportsMissingBucket(t *testing.T) {
	fake := &fakeClient{removeErr: storage.ErrBucketNotFound}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	err = store.DeleteBucket(context.Background(), "boto3fun")
	if !errors.Is(err, storage.ErrBucketNotFound) {
		t.Fatalf("DeleteBucket() error = %v, want ErrBucketNotFound", err)
	}
	if !strings.Contains(err.Error(), "boto3fun") {
		t.Fatalf("DeleteBucket() error = %v, want bucket name", err)
	}
}

func TestUploadFileUsesPathAsKey(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "s3.parquet")
	if err := os.WriteFile(filePath, []byte("parquet"), 0o600); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}

	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "root", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	info, err := store.UploadFile(context.Background(), "boto3fun", filePath)
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	wantKey := strings.TrimPrefix(filepath.ToSlash(filePath), "/")
	if fake.lastBucket != "boto3fun" || fake.lastPutKey != wantKey {
		t.Fatalf("upload bucket/key = %q/%q, want boto3fun/%q", fake.lastBucket, fake.lastPutKey, wantKey)
	}
	if info.Size != int64(len("parquet")) {
		t.Fatalf("UploadFile().Size = %d", info.Size)
	}

	if _, err := store.UploadFile(context.Background(), "", filePath); err != nil {
		t.Fatalf("UploadFile() default bucket error = %v", err)
	}
	if fake.lastBucket != "bucket-a" || fake.lastPutKey != "root/"+wantKey {
		t.Fatalf("default upload bucket/key = %q/%q", fake.lastBucket, fake.lastPutKey)
	}
}

func TestUploadFileRejectsMissingFile(t *testing.T) {
	store, err := NewWithClient("bucket-a", "", &fakeClient{})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.UploadFile(context.Background(), "", filepath.Join(t.TempDir(), "missing.parquet")); err == nil {
		t.Fatal("expected missing file error")
	}
}

type fakeClient struct {
	lastPutBucket      string
	lastPutKey         string
	lastBucket         string
	bucketExists       bool
	createBucketCalled bool
	deleteErr          error
	removeErr          error
	buckets            []storage.BucketInfo
	objects            []storage.ObjectInfo
	lastListPrefix     string
}

func (f *fakeClient) Put(_ context.Context, bucket, key string, reader io.Reader, size int64, _ string) (storage.ObjectInfo, error) {
	f.lastPutBucket = bucket
	f.lastPutKey = key
	_, _ = io.Copy(io.Discard, reader)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeClient) Get(_ context.Context, _, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(key)), nil
}

func (f *fakeClient) Stat(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{Key: key, Size: 10, LastModified: time.Now().UTC()}, nil
}

func (f *fakeClient) Delete(_ context.Context, _, _ string) error {
	return f.deleteErr
}

func (f *fakeClient) List(_ context.Context, _, prefix string) ([]storage.ObjectInfo, error) {
	f.lastListPrefix = prefix
	return append([]storage.ObjectInfo(nil), f.objects...), nil
}

func (f *fakeClient) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeClient) CreateBucket(_ context.Context, bucket, _ string) error {
	f.createBucketCalled = true
	f.lastBucket = bucket
	return nil
}

func (f *fakeClient) ListBuckets(_ context.Context) ([]storage.BucketInfo, error) {
	return f.buckets, nil
}

func (f *fakeClient) RemoveBucket(_ context.Context, bucket string) error {
	f.lastBucket = bucket
	return f.removeErr
}

func (f *fakeClient) PutFile(_ context.Context, bucket, key, filePath, _ string) (storage.ObjectInfo, error) {
	f.lastBucket = bucket
	f.lastPutKey = key
	info, err := os.Stat(filePath)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	return storage.ObjectInfo{Key: key, Size: info.Size()}, nil
}
