package hostabi

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetHostDir returns the directory of the host executable. It will not
// account for symlinks.
func GetHostDir() (string, error) {
	executablePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("error getting executable directory: %w", err)
	}
	return filepath.Dir(executablePath), nil
}
