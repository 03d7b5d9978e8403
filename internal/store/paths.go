package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/qiflow/internal/constants"
)

// GlobalDir returns the per-user qiflow directory.
// On Unix: ~/.qiflow
// On Windows: %USERPROFILE%\.qiflow
func GlobalDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.ConfigDirName), nil
}

// DefaultDBPath returns the default results database path.
func DefaultDBPath() (string, error) {
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.ResultsDBFileName), nil
}
