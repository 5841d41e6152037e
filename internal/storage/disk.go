package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Usage is the on-disk footprint of a storage directory.
type Usage struct {
	IndexBytes    int64 `json:"index_bytes"`
	MetadataBytes int64 `json:"metadata_bytes"`
	CatalogBytes  int64 `json:"catalog_bytes"`
	TotalBytes    int64 `json:"total_bytes"`
}

// UsageOf reports the size of the persisted files under storageDir. The catalog
// size includes its WAL and shared-memory files.
func UsageOf(storageDir, indexFile, metadataFile string) (Usage, error) {
	var u Usage
	var err error
	if u.IndexBytes, err = DiskUsageBytes(filepath.Join(storageDir, indexFile)); err != nil {
		return u, err
	}
	if u.MetadataBytes, err = DiskUsageBytes(filepath.Join(storageDir, metadataFile)); err != nil {
		return u, err
	}
	db := filepath.Join(storageDir, CatalogFileName)
	if u.CatalogBytes, err = DiskUsageBytes(db, db+"-wal", db+"-shm"); err != nil {
		return u, err
	}
	u.TotalBytes = u.IndexBytes + u.MetadataBytes + u.CatalogBytes
	return u, nil
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing paths and empty strings contribute 0.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
