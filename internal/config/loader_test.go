package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STRATAMEM_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ingest.PollIntervalSeconds != 30 {
		t.Errorf("poll interval default = %d, want 30", cfg.Ingest.PollIntervalSeconds)
	}
	if cfg.Ingest.ErrorBackoffSeconds != 60 {
		t.Errorf("error backoff default = %d, want 60", cfg.Ingest.ErrorBackoffSeconds)
	}
	if cfg.Dedup.Permutations != 128 {
		t.Errorf("permutations default = %d, want 128", cfg.Dedup.Permutations)
	}
	if cfg.Dedup.Threshold != 0.8 {
		t.Errorf("threshold default = %f, want 0.8", cfg.Dedup.Threshold)
	}
}

func TestLoadFileAndEnvPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	file := map[string]any{
		"storage": map[string]any{"bucket": "from-file", "prefix": "p/"},
		"ingest":  map[string]any{"pollIntervalSeconds": 10},
	}
	data, _ := json.Marshal(file)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("STRATAMEM_CONFIG", path)
	t.Setenv("STRATAMEM_STORAGE_BUCKET", "from-env")
	t.Setenv("STRATAMEM_INGEST_ERROR_BACKOFF_SECONDS", "90")
	// A section name repeated in the key is not a valid override.
	t.Setenv("STRATAMEM_STORAGE_STORAGE_BUCKET", "doubled")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Bucket != "from-env" {
		t.Errorf("env should override file: bucket = %q", cfg.Storage.Bucket)
	}
	if cfg.Storage.Prefix != "p/" {
		t.Errorf("file value lost: prefix = %q", cfg.Storage.Prefix)
	}
	if cfg.Ingest.PollIntervalSeconds != 10 {
		t.Errorf("file should override default: poll = %d", cfg.Ingest.PollIntervalSeconds)
	}
	if cfg.Ingest.ErrorBackoffSeconds != 90 {
		t.Errorf("multi-word env override lost: backoff = %d", cfg.Ingest.ErrorBackoffSeconds)
	}
	if cfg.Ingest.MaxAttempts != 5 {
		t.Errorf("untouched default lost: max attempts = %d", cfg.Ingest.MaxAttempts)
	}
}

func TestDatabasePathExpansion(t *testing.T) {
	t.Setenv("STRATAMEM_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("STRATAMEM_DATABASE_PATH", "~/custom/warm.db")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	home, _ := os.UserHomeDir()
	want := filepath.Join(home, "custom", "warm.db")
	if cfg.Database.Path != want {
		t.Errorf("path = %q, want %q", cfg.Database.Path, want)
	}
}
