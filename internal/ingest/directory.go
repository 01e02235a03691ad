package ingest

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PabloZV/ml-document-system/constants"
)

// ListDocumentFiles walks root and returns the sorted paths of scannable
// images. Hidden files and directories are skipped. limit <= 0 means no
// limit; the cut is applied after sorting so runs are reproducible.
func ListDocumentFiles(root string, includeExts []string, limit int) ([]string, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}

	exts := map[string]struct{}{}
	if len(includeExts) == 0 {
		for e := range constants.AllowedExtensions {
			exts[e] = struct{}{}
		}
	} else {
		for _, e := range includeExts {
			e = constants.NormalizeExt(e)
			if e != "" {
				exts[e] = struct{}{}
			}
		}
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if isHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if _, ok := exts[ext]; !ok {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
