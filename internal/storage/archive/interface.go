// Package archive stores finished backtest reports in a blob store.
package archive

import (
	"context"
	"strings"

	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// Storage is a flat key/value blob store with slash-separated keys.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path. A missing path is core.ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Compile-time interface checks.
var _ Storage = (*LocalFS)(nil)
var _ Storage = (*S3Storage)(nil)

// Config selects and configures a backend.
type Config struct {
	// Type is "localfs" or "s3".
	Type string
	// Path is the LocalFS root.
	Path string
	S3   S3Config
}

// New creates the configured backend.
func New(cfg Config) (Storage, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "localfs":
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(cfg.S3)
	}
	return nil, core.Errorf(core.ErrConfigInvalid, "unknown archive type %q", cfg.Type)
}

// cleanKey rejects keys that are empty or would escape the store root.
func cleanKey(path string) (string, error) {
	key := strings.Trim(path, "/")
	if key == "" {
		return "", core.Errorf(core.ErrConfigInvalid, "empty archive path")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return "", core.Errorf(core.ErrConfigInvalid, "invalid archive path %q", path)
		}
	}
	return key, nil
}
