package scanner

import (
	"io/fs"
	"path/filepath"
)

// BuildManifest walks root and returns the absolute paths of every regular
// file beneath it, in walk order. Unreadable entries are skipped, and a
// missing root yields an empty manifest. exclude may be nil.
func BuildManifest(root string, exclude func(string) bool) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if exclude != nil && exclude(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
