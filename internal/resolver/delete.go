package resolver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Delete removes sourcePath and every derivative generated from it.
// The cache layout never renames the filename stem, only its directory
// and extension, so walking the source's directory tree and matching
// on the stem reconstructs the full derivative set without an index.
func (r *Resolver) Delete(sourcePath string) error {
	dir := filepath.Dir(sourcePath)
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	var removed int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path != dir {
				return nil // deleted underneath us; nothing to do
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) != stem {
			return nil
		}
		if err := r.store.Delete(path); err != nil {
			return fmt.Errorf("delete %s: %w", path, err)
		}
		removed++
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info("cascading delete", "source", sourcePath, "removed", removed)
	return nil
}
