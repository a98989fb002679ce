package dataset

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/clipstats/clipstats/internal/observability"
	"github.com/clipstats/clipstats/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

type Stager struct {
	Store  storage.ObjectStore
	Prefix string
	Logger *slog.Logger
	Clock  func() time.Time
}

type StageResult struct {
	Key         string
	Dir         string
	RecordCount int64
	SizeBytes   int64
}

// Stage writes rows as one new parquet file under the dataset directory.
// Files already present are kept, so the dataset grows by one part per call.
func (s *Stager) Stage(ctx context.Context, name string, rows []Detection) (StageResult, error) {
	if s.Store == nil {
		return StageResult{}, fmt.Errorf("object store is required")
	}
	dir, err := storage.DatasetDir(s.Prefix, name)
	if err != nil {
		return StageResult{}, err
	}
	encoded, err := EncodeParquet(rows)
	if err != nil {
		return StageResult{}, err
	}

	existing, err := s.Store.List(ctx, dir)
	if err != nil {
		return StageResult{}, fmt.Errorf("list dataset %q: %w", dir, err)
	}
	sequence := 0
	for _, object := range existing {
		if path.Ext(object.Key) == ".parquet" {
			sequence++
		}
	}

	key, err := storage.BuildDatasetFilePath(s.Prefix, name, s.now(), sequence)
	if err != nil {
		return StageResult{}, err
	}
	if _, err := s.Store.Put(ctx, key, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{ContentType: parquetContentType}); err != nil {
		return StageResult{}, fmt.Errorf("stage dataset %q: %w", name, err)
	}
	observability.ObserveObjectUpload(int64(len(encoded.Data)))
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "dataset staged",
			slog.String("dataset", name),
			slog.String("key", key),
			slog.Int64("records", encoded.RecordCount),
			slog.Float64("min_distance", encoded.MinDistance),
			slog.Float64("max_distance", encoded.MaxDistance),
		)
	}
	return StageResult{
		Key:         key,
		Dir:         dir,
		RecordCount: encoded.RecordCount,
		SizeBytes:   int64(len(encoded.Data)),
	}, nil
}

func (s *Stager) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}
