package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

type Driver string

const (
	DriverFile   Driver = "file"
	DriverBolt   Driver = "bolt"
	DriverSQLite Driver = "sqlite"
)

func (d Driver) Valid() bool {
	switch d {
	case DriverFile, DriverBolt, DriverSQLite:
		return true
	}
	return false
}

// Open returns a store for the named collection. The file driver treats path
// as a directory and keeps the collection in a subdirectory; the database
// drivers treat path as the database file and use the collection as the
// bucket or table name.
func Open[T ValidatingSpec](driver Driver, path string, collection string) (Storer[T], error) {
	switch driver {
	case DriverFile, "":
		dir := filepath.Join(path, collection)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
		s, err := NewFileStore[T](dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverBolt:
		s, err := NewBoltStore[T](path, collection)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := NewSQLiteStore[T](path, collection)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}
