package storage

import (
	"errors"
	"io/fs"
	"path/filepath"
)

// Usage is the size of a directory tree.
type Usage struct {
	Files int
	Bytes int64
}

// DiskUsage sums the regular files under root. A missing root has zero usage.
func DiskUsage(root string) (Usage, error) {
	var u Usage
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		u.Files++
		u.Bytes += info.Size()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return Usage{}, nil
	}
	return u, err
}
