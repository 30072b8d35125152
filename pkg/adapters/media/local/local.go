package local

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Store implements ports.MediaStore on the local filesystem. Objects land
// under the output directory and are served by the HTTP server's /outputs
// static route.
type Store struct {
	outputDir string
	baseURL   string
	logger    *zap.Logger
}

// NewStore creates a local media store rooted at outputDir
func NewStore(outputDir, publicBaseURL string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Store{
		outputDir: outputDir,
		baseURL:   strings.TrimRight(publicBaseURL, "/"),
		logger:    logger,
	}, nil
}

// OutputDir returns the directory the store writes into
func (s *Store) OutputDir() string {
	return s.outputDir
}

// Put writes one object and returns its public URL (ports.MediaStore
// interface). The content type is ignored; the static file server derives
// it from the extension.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	rel, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	full := filepath.Join(s.outputDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write object: %w", err)
	}

	s.logger.Debug("object written",
		zap.String("key", rel),
		zap.Int("bytes", len(data)))

	return s.baseURL + "/outputs/" + rel, nil
}

// cleanKey normalizes an object key and keeps it inside the output root
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}

	// Prefixing with / makes Clean collapse any ".." below the root
	rel := strings.TrimPrefix(path.Clean("/"+key), "/")
	if rel == "" {
		return "", fmt.Errorf("invalid object key: %s", key)
	}

	return rel, nil
}
