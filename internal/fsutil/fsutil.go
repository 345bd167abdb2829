package fsutil

import (
	"os"
	"path/filepath"
	"strings"
)

var documentExts = map[string]struct{}{
	".pdf": {},
}

// ListDocuments returns all source documents under root, sorted by path.
func ListDocuments(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if IsDocument(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// FirstExisting returns the first path that exists.
func FirstExisting(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// IsDocument checks if a file is a supported source document.
func IsDocument(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := documentExts[ext]
	return ok
}

// Stem returns the file name without its directory or extension,
// used to derive artifact names next to the source document.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
