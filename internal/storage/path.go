package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// URI is a parsed s3://bucket/prefix location.
type URI struct {
	Bucket string
	Prefix string
}

func (u URI) String() string {
	if u.Prefix == "" {
		return "s3://" + u.Bucket + "/"
	}
	return "s3://" + u.Bucket + "/" + u.Prefix + "/"
}

// ParseURI splits an s3:// location such as a query output location.
func ParseURI(raw string) (URI, error) {
	raw = strings.TrimSpace(raw)
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return URI{}, fmt.Errorf("invalid s3 uri %q: scheme must be s3://", raw)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if err := validatePathComponent(bucket, "bucket"); err != nil {
		return URI{}, err
	}
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix = path.Clean(prefix)
		if prefix == ".." || strings.HasPrefix(prefix, "../") {
			return URI{}, fmt.Errorf("invalid s3 uri %q: prefix escapes bucket", raw)
		}
	}
	return URI{Bucket: bucket, Prefix: prefix}, nil
}

// BuildDatasetFilePath lays out staged parquet files per dataset and day so
// the query engine can read one table per dataset directory.
func BuildDatasetFilePath(prefix, dataset string, stagedAt time.Time, sequence int) (string, error) {
	if err := validatePathComponent(dataset, "dataset"); err != nil {
		return "", err
	}
	if sequence < 0 {
		return "", fmt.Errorf("sequence must be >= 0")
	}
	ts := stagedAt.UTC()
	return path.Join(
		strings.Trim(prefix, "/"),
		dataset,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("part-%d-%05d.parquet", ts.Unix(), sequence),
	), nil
}

// DatasetDir is the directory holding every staged file of dataset.
func DatasetDir(prefix, dataset string) (string, error) {
	if err := validatePathComponent(dataset, "dataset"); err != nil {
		return "", err
	}
	return path.Join(strings.Trim(prefix, "/"), dataset), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
