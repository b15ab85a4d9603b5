package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/zhengda-lu/antiv/internal/utils"
)

// DefaultIDPath returns ~/.local/share/antiv/installation_id.
func DefaultIDPath() string {
	return filepath.Join(utils.DataDir(), "installation_id")
}

// InstallationID returns the id stored at path, creating one if the file
// is missing or does not hold a valid uuid.
func InstallationID(path string) (string, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if id, perr := uuid.Parse(strings.TrimSpace(string(data))); perr == nil {
			return id.String(), nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("failed to read installation id: %w", err)
	}

	id := uuid.NewString()
	if err := utils.WriteFileAtomic(path, []byte(id+"\n")); err != nil {
		return "", fmt.Errorf("failed to store installation id: %w", err)
	}
	return id, nil
}
