package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("clipstatsctl", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.Query.Backend != BackendAthena {
		t.Fatalf("Query.Backend = %q", cfg.Query.Backend)
	}
	if cfg.Query.RetryLimit != 100 {
		t.Fatalf("Query.RetryLimit = %d", cfg.Query.RetryLimit)
	}
	if cfg.Query.PollDelay != 2*time.Second {
		t.Fatalf("Query.PollDelay = %s", cfg.Query.PollDelay)
	}
	if cfg.Query.OutputLocation != "s3://clipstats-query-results/" {
		t.Fatalf("Query.OutputLocation = %q", cfg.Query.OutputLocation)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.ObjectStore.Endpoint != "localhost:9000" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.Dataset.Prefix != "datasets" {
		t.Fatalf("Dataset.Prefix = %q", cfg.Dataset.Prefix)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"CLIPSTATS_PROFILE": "prod"})
	cfg, err := Load("clipstatsctl", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
	if cfg.ObjectStore.AccessKeyID != "" {
		t.Fatalf("ObjectStore.AccessKeyID = %q, want empty in prod", cfg.ObjectStore.AccessKeyID)
	}
}

func TestLoadTestProfileUsesDuckDB(t *testing.T) {
	cfg, err := Load("clipstatsctl", mapLookup(map[string]string{"CLIPSTATS_PROFILE": "test"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Query.Backend != BackendDuckDB {
		t.Fatalf("Query.Backend = %q", cfg.Query.Backend)
	}
	if cfg.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"CLIPSTATS_PROFILE":                        "test",
		"CLIPSTATS_SERVICE_NAME":                   "clipstats-custom",
		"CLIPSTATS_QUERY_BACKEND":                  "POSTGRES",
		"CLIPSTATS_QUERY_DATABASE":                 "oren-clips-output",
		"CLIPSTATS_QUERY_OUTPUT_LOCATION":          "s3://oren-output-location/",
		"CLIPSTATS_QUERY_WORKGROUP":                "analytics",
		"CLIPSTATS_QUERY_TABLE":                    "oren_parqs",
		"CLIPSTATS_QUERY_RETRY_LIMIT":              "7",
		"CLIPSTATS_QUERY_POLL_DELAY":               "500ms",
		"CLIPSTATS_QUERY_DSN":                      "postgres://example",
		"CLIPSTATS_QUERY_MAX_OPEN_CONNS":           "9",
		"CLIPSTATS_QUERY_CONN_MAX_LIFETIME":        "5m",
		"CLIPSTATS_AWS_REGION":                     "eu-west-1",
		"CLIPSTATS_AWS_ENDPOINT":                   "http://localhost:4566",
		"CLIPSTATS_OBJECTSTORE_ENDPOINT":           "s3.example.com",
		"CLIPSTATS_OBJECTSTORE_BUCKET":             "clips-prod",
		"CLIPSTATS_OBJECTSTORE_REGION":             "us-west-2",
		"CLIPSTATS_OBJECTSTORE_ACCESS_KEY":         "abc",
		"CLIPSTATS_OBJECTSTORE_SECRET_KEY":         "def",
		"CLIPSTATS_OBJECTSTORE_USE_SSL":            "true",
		"CLIPSTATS_OBJECTSTORE_PREFIX":             "root",
		"CLIPSTATS_OBJECTSTORE_AUTO_CREATE_BUCKET": "false",
		"CLIPSTATS_DATASET_PREFIX":                 "parquet",
		"CLIPSTATS_LOG_LEVEL":                      "error",
		"CLIPSTATS_LOG_JSON":                       "false",
	})
	cfg, err := Load("clipstatsctl", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "clipstats-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.Query.Backend != BackendPostgres {
		t.Fatalf("Query.Backend = %q", cfg.Query.Backend)
	}
	if cfg.Query.Database != "oren-clips-output" || cfg.Query.Table != "oren_parqs" {
		t.Fatalf("Query = %+v", cfg.Query)
	}
	if cfg.Query.OutputLocation != "s3://oren-output-location/" || cfg.Query.WorkGroup != "analytics" {
		t.Fatalf("Query = %+v", cfg.Query)
	}
	if cfg.Query.RetryLimit != 7 || cfg.Query.PollDelay != 500*time.Millisecond {
		t.Fatalf("Query retry = %d delay = %s", cfg.Query.RetryLimit, cfg.Query.PollDelay)
	}
	if cfg.Query.DSN != "postgres://example" || cfg.Query.MaxOpenConns != 9 || cfg.Query.ConnMaxLifetime != 5*time.Minute {
		t.Fatalf("Query = %+v", cfg.Query)
	}
	if cfg.AWS.Region != "eu-west-1" || cfg.AWS.Endpoint != "http://localhost:4566" {
		t.Fatalf("AWS = %+v", cfg.AWS)
	}
	if cfg.ObjectStore.Endpoint != "s3.example.com" || cfg.ObjectStore.Bucket != "clips-prod" {
		t.Fatalf("ObjectStore = %+v", cfg.ObjectStore)
	}
	if !cfg.ObjectStore.UseSSL || cfg.ObjectStore.AutoCreateBucket || cfg.ObjectStore.Prefix != "root" {
		t.Fatalf("ObjectStore = %+v", cfg.ObjectStore)
	}
	if cfg.Dataset.Prefix != "parquet" {
		t.Fatalf("Dataset.Prefix = %q", cfg.Dataset.Prefix)
	}
	if cfg.Observability.LogLevel != slog.LevelError || cfg.Observability.LogJSON {
		t.Fatalf("Observability = %+v", cfg.Observability)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"CLIPSTATS_PROFILE": "oops"},
		{"CLIPSTATS_QUERY_BACKEND": "bigquery"},
		{"CLIPSTATS_QUERY_RETRY_LIMIT": "oops"},
		{"CLIPSTATS_QUERY_RETRY_LIMIT": "0"},
		{"CLIPSTATS_QUERY_POLL_DELAY": "NaN"},
		{"CLIPSTATS_QUERY_POLL_DELAY": "0s"},
		{"CLIPSTATS_QUERY_OUTPUT_LOCATION": "/tmp/out"},
		{"CLIPSTATS_QUERY_BACKEND": "postgres"},
		{"CLIPSTATS_OBJECTSTORE_USE_SSL": "not-bool"},
		{"CLIPSTATS_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("clipstatsctl", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
