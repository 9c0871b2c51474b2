package storage

import (
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// WriteFileAtomic replaces path with data so that readers see either the
// old content or the new content, never a partial file. An existing file
// keeps its permissions; a new file gets perm.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := renameio.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
