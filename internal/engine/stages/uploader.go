package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"listforge/pkg/logger"
)

// LocalArchiveUploader is the reference storage collaborator: it archives
// artifacts into a local directory and returns file URLs. The archive
// directory is deliberately not a managed cache directory, so uploads survive
// cache eviction the way remote storage would.
type LocalArchiveUploader struct {
	Dir    string
	logger *logger.Logger
}

func NewLocalArchiveUploader(dir string) *LocalArchiveUploader {
	return &LocalArchiveUploader{
		Dir:    dir,
		logger: logger.WithField("component", "archive-uploader"),
	}
}

func (u *LocalArchiveUploader) Upload(_ context.Context, path string) (string, error) {
	if err := os.MkdirAll(u.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	dest := filepath.Join(u.Dir, filepath.Base(path))
	if err := copyFile(path, dest); err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", filepath.Base(path), err)
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		abs = dest
	}
	url := "file://" + abs

	u.logger.Debug("artifact archived", "path", path, "url", url)
	return url, nil
}
