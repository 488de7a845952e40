package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/jpl-au/runlog"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runlog.yaml")
	yaml := `
files:
  - data/*.jsonl
  - archive/*.jsonl.zst
query:
  plan_name: count
  scan_id:
    $gte: 10
handlers:
  AD_HDF5: areadetector.handlers.AreaDetectorHDF5Handler
partition_size: 50
hash: fnv1a
log_level: debug
reject_duplicates: true
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !slices.Equal(cfg.Files, []string{"data/*.jsonl", "archive/*.jsonl.zst"}) {
		t.Errorf("Files = %v", cfg.Files)
	}
	if cfg.PartitionSize != 50 || cfg.Hash != "fnv1a" || cfg.LogLevel != "debug" || !cfg.RejectDuplicates {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Handlers["AD_HDF5"] != "areadetector.handlers.AreaDetectorHDF5Handler" {
		t.Errorf("Handlers = %v", cfg.Handlers)
	}

	// The YAML query compiles like one built in code.
	q, err := runlog.Compile(cfg.Query)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !q.Match(map[string]any{"plan_name": "count", "scan_id": 12}) {
		t.Error("query rejected a matching start document")
	}
	if q.Match(map[string]any{"plan_name": "count", "scan_id": 3}) {
		t.Error("query accepted scan_id 3")
	}

	config, err := cfg.catalogConfig(slog.Default())
	if err != nil {
		t.Fatalf("catalogConfig: %v", err)
	}
	if config.HashAlgorithm != runlog.AlgFNV1a || config.PartitionSize != 50 || !config.RejectDuplicates {
		t.Errorf("config = %+v", config)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if cfg, err := loadConfig(""); err != nil || len(cfg.Files) != 0 {
		t.Errorf("loadConfig(\"\") = %+v, %v", cfg, err)
	}
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("files: [unclosed"), 0644)
	if _, err := loadConfig(path); err == nil {
		t.Error("bad YAML accepted")
	}
}

func TestConfigFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jsonl", "a.jsonl", "c.txt"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0644)
	}
	cfg := &fileConfig{Files: []string{
		filepath.Join(dir, "*.jsonl"),
		filepath.Join(dir, "a.jsonl"),
		filepath.Join(dir, "*.txt"),
		filepath.Join(dir, "*.none"),
	}}

	got, err := cfg.files()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.jsonl"), filepath.Join(dir, "b.jsonl"), filepath.Join(dir, "c.txt")}
	if !slices.Equal(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}

	cfg.Files = []string{"[bad"}
	if _, err := cfg.files(); err == nil {
		t.Error("bad pattern accepted")
	}
}

func TestHashAlgorithm(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"", runlog.AlgXXHash3, true},
		{"xxh3", runlog.AlgXXHash3, true},
		{"FNV1a", runlog.AlgFNV1a, true},
		{"blake2b", runlog.AlgBlake2b, true},
		{"sha1", 0, false},
	}
	for _, tt := range tests {
		got, err := hashAlgorithm(tt.name)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("hashAlgorithm(%q) = %d, %v", tt.name, got, err)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
