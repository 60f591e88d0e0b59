// Package archive writes the generated project file set as a zip artifact.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zip"
)

// Write creates a zip archive at path containing every file in files under a
// top-level directory named root. Entries are written in sorted name order
// so identical inputs produce identical archives.
func Write(path, root string, files map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating archive %q: %w", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w, err := zw.Create(root + "/" + name)
		if err != nil {
			zw.Close()
			return fmt.Errorf("adding %q to archive: %w", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			zw.Close()
			return fmt.Errorf("writing %q to archive: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return f.Close()
}
