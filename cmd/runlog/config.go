// Configuration file for the runlog command.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jpl-au/runlog"
	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML configuration. Flags given on the command
// line override it.
type fileConfig struct {
	Files            []string          `yaml:"files"` // glob patterns
	Query            runlog.Filter     `yaml:"query,omitempty"`
	Handlers         map[string]string `yaml:"handlers,omitempty"`
	PartitionSize    int               `yaml:"partition_size,omitempty"`
	Hash             string            `yaml:"hash,omitempty"` // xxh3, fnv1a or blake2b
	LogLevel         string            `yaml:"log_level,omitempty"`
	RejectDuplicates bool              `yaml:"reject_duplicates,omitempty"`
}

// loadConfig reads a configuration file. An empty path returns an empty
// configuration.
func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// files expands the glob patterns in order. Matches of one pattern are
// sorted; a file matched twice is kept at its first position.
func (c *fileConfig) files() ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, pattern := range c.Files {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if matches == nil {
			slog.Warn("pattern matched no files", "pattern", pattern)
		}
		slices.Sort(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// catalogConfig translates the file configuration into library options.
func (c *fileConfig) catalogConfig(logger *slog.Logger) (runlog.Config, error) {
	alg, err := hashAlgorithm(c.Hash)
	if err != nil {
		return runlog.Config{}, err
	}
	return runlog.Config{
		Query:            c.Query,
		Handlers:         c.Handlers,
		HashAlgorithm:    alg,
		PartitionSize:    c.PartitionSize,
		RejectDuplicates: c.RejectDuplicates,
		Logger:           logger,
	}, nil
}

func hashAlgorithm(name string) (int, error) {
	switch strings.ToLower(name) {
	case "", "xxh3", "xxhash3":
		return runlog.AlgXXHash3, nil
	case "fnv1a", "fnv":
		return runlog.AlgFNV1a, nil
	case "blake2b":
		return runlog.AlgBlake2b, nil
	default:
		return 0, fmt.Errorf("unknown hash algorithm %q", name)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
