package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Backend string

const (
	BackendAthena   Backend = "athena"
	BackendDuckDB   Backend = "duckdb"
	BackendPostgres Backend = "postgres"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	Query         QueryConfig
	AWS           AWSConfig
	ObjectStore   ObjectStoreConfig
	Dataset       DatasetConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type QueryConfig struct {
	Backend         Backend
	Database        string
	OutputLocation  string
	WorkGroup       string
	Table           string
	RetryLimit      int
	PollDelay       time.Duration
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type AWSConfig struct {
	Region   string
	Endpoint string
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type DatasetConfig struct {
	Prefix string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("CLIPSTATS_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid CLIPSTATS_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	var backend string
	if err := applyString(lookup, "CLIPSTATS_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_QUERY_BACKEND", &backend); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_QUERY_DATABASE", &cfg.Query.Database); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_QUERY_OUTPUT_LOCATION", &cfg.Query.OutputLocation); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_QUERY_WORKGROUP", &cfg.Query.WorkGroup); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_QUERY_TABLE", &cfg.Query.Table); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "CLIPSTATS_QUERY_RETRY_LIMIT", &cfg.Query.RetryLimit); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "CLIPSTATS_QUERY_POLL_DELAY", &cfg.Query.PollDelay); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_QUERY_DSN", &cfg.Query.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "CLIPSTATS_QUERY_MAX_OPEN_CONNS", &cfg.Query.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "CLIPSTATS_QUERY_CONN_MAX_LIFETIME", &cfg.Query.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_AWS_REGION", &cfg.AWS.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_AWS_ENDPOINT", &cfg.AWS.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "CLIPSTATS_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "CLIPSTATS_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "CLIPSTATS_DATASET_PREFIX", &cfg.Dataset.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "CLIPSTATS_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "CLIPSTATS_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	if backend != "" {
		cfg.Query.Backend = Backend(strings.ToLower(backend))
	}
	if !isValidBackend(cfg.Query.Backend) {
		return Config{}, fmt.Errorf("invalid CLIPSTATS_QUERY_BACKEND: %q", cfg.Query.Backend)
	}
	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.Query.RetryLimit <= 0 {
		return Config{}, fmt.Errorf("query retry limit must be > 0")
	}
	if cfg.Query.PollDelay <= 0 {
		return Config{}, fmt.Errorf("query poll delay must be > 0")
	}
	if cfg.Query.Backend == BackendAthena && !strings.HasPrefix(cfg.Query.OutputLocation, "s3://") {
		return Config{}, fmt.Errorf("athena output location must be an s3:// URI, got %q", cfg.Query.OutputLocation)
	}
	if cfg.Query.Backend == BackendPostgres && cfg.Query.DSN == "" {
		return Config{}, fmt.Errorf("postgres backend requires CLIPSTATS_QUERY_DSN")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "clipstatsctl"},
		Query: QueryConfig{
			Backend:         BackendAthena,
			Database:        "clips",
			OutputLocation:  "s3://clipstats-query-results/",
			WorkGroup:       "primary",
			Table:           "clips",
			RetryLimit:      100,
			PollDelay:       2 * time.Second,
			MaxOpenConns:    4,
			ConnMaxLifetime: 30 * time.Minute,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "clipstats",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Dataset: DatasetConfig{
			Prefix: "datasets",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.Query.Backend = BackendDuckDB
		cfg.Query.Database = "main"
		cfg.Query.PollDelay = 10 * time.Millisecond
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.ObjectStore.Endpoint = "s3.amazonaws.com"
		cfg.ObjectStore.AccessKeyID = ""
		cfg.ObjectStore.SecretAccessKey = ""
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func isValidBackend(backend Backend) bool {
	switch backend {
	case BackendAthena, BackendDuckDB, BackendPostgres:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
