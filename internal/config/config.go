package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database  DatabaseConfig
	Extractor ExtractorConfig
	Indexing  IndexingConfig
	Search    SearchConfig
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the HNSW index (optional, if empty index is rebuilt on startup)
}

type ExtractorConfig struct {
	URL string // defaults to http://localhost:8000
}

type IndexingConfig struct {
	Extensions         []string `yaml:"extensions"`
	FileTimeoutSeconds int      `yaml:"file_timeout_seconds"`
	ThumbnailSize      int      `yaml:"thumbnail_size"`
}

type SearchConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxResults          int     `yaml:"max_results"`
}

// defaults mirrors the embedded defaults.yaml layout.
type defaults struct {
	Indexing IndexingConfig `yaml:"indexing"`
	Search   SearchConfig   `yaml:"search"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Extractor: ExtractorConfig{
			URL: os.Getenv("EXTRACTOR_URL"),
		},
		Indexing: d.Indexing,
		Search:   d.Search,
	}

	// IMAGE_EXTENSIONS overrides the embedded allow-list, comma separated.
	if s := os.Getenv("IMAGE_EXTENSIONS"); s != "" {
		var exts []string
		for _, e := range strings.Split(s, ",") {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts = append(exts, e)
		}
		if len(exts) > 0 {
			cfg.Indexing.Extensions = exts
		}
	}

	cfg.Indexing.FileTimeoutSeconds = envInt("INDEXING_FILE_TIMEOUT_SECONDS", cfg.Indexing.FileTimeoutSeconds)

	return cfg
}
