package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteFiles writes generated files under dir, creating subdirectories as
// needed. Filenames come from the model, so absolute paths and ".." segments
// must not be trusted: any filename that would land outside dir after
// joining is rejected and nothing further is written.
func WriteFiles(files []File, dir string) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("generator: resolving output directory: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("generator: creating output directory: %w", err)
	}

	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f.Filename))
		// Join has cleaned the path, so a contained file is strictly under
		// root. Comparing with the separator appended keeps a sibling like
		// "/out-evil" from passing as inside "/out".
		if path == root || !strings.HasPrefix(path, root+string(filepath.Separator)) {
			return fmt.Errorf("generator: filename %q escapes output directory", f.Filename)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("generator: creating directory for %s: %w", f.Filename, err)
		}
		if err := os.WriteFile(path, []byte(f.Content), 0644); err != nil {
			return fmt.Errorf("generator: writing %s: %w", f.Filename, err)
		}
	}
	return nil
}
