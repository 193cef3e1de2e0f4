package indexer

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// EnumerateImages walks root and returns all files whose extension is in the
// allow-list. The full list is collected up front so files_total is known
// before processing starts.
func EnumerateImages(root string, extensions map[string]bool) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree; skip it rather than abort the run.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if extensions[ext] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
