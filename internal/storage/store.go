package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Storer[T ValidatingSpec] interface {
	Save(string, T) error
	Get(string) T
	GetAll() map[string]T
	Delete(string) error
	// ReplaceAll makes the stored set exactly records.
	ReplaceAll(map[string]T) error
	Reload() error
	Close() error
}

// FileStore keeps one JSON asset file per record in a directory and caches
// every record in memory.
type FileStore[T ValidatingSpec] struct {
	path    string
	records map[string]T

	mu sync.RWMutex
}

func NewFileStore[T ValidatingSpec](path string) (*FileStore[T], error) {
	s := &FileStore[T]{
		path:    path,
		records: map[string]T{},
	}

	err := s.Reload()
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Reload discards the cache and reads every asset from disk. Files that
// cannot be read or decoded are logged and skipped; only a failure to walk
// the directory is returned.
func (s *FileStore[T]) Reload() error {
	records := map[string]T{}

	err := filepath.Walk(s.path, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			skipRecord(filepath.Base(path), fmt.Errorf("reading file: %w", err))
			return nil
		}

		asset, err := decodeAsset[T](data)
		if err != nil {
			skipRecord(filepath.Base(path), err)
			return nil
		}

		if _, ok := records[asset.Id()]; ok {
			skipRecord(filepath.Base(path), fmt.Errorf("duplicate key detected: %s", asset.Id()))
			return nil
		}

		records[asset.Id()] = asset.Spec
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	return nil
}

func (s *FileStore[T]) Save(id string, o T) error {
	data, err := encodeAsset(id, o)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := atomicWrite(s.filePath(id), data, 0644); err != nil {
		return err
	}
	s.records[id] = o

	return nil
}

func (s *FileStore[T]) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)

	err := os.Remove(s.filePath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", id, err)
	}
	return nil
}

func (s *FileStore[T]) ReplaceAll(records map[string]T) error {
	encoded := make(map[string][]byte, len(records))
	for id, o := range records {
		data, err := encodeAsset(id, o)
		if err != nil {
			return err
		}
		encoded[id] = data
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, data := range encoded {
		if err := atomicWrite(s.filePath(id), data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", id, err)
		}
	}

	entries, err := os.ReadDir(s.path)
	if err != nil {
		return fmt.Errorf("listing %s: %w", s.path, err)
	}
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		if _, keep := encoded[id]; keep {
			continue
		}
		if err := os.Remove(filepath.Join(s.path, e.Name())); err != nil {
			return fmt.Errorf("removing stale %s: %w", id, err)
		}
	}

	s.records = make(map[string]T, len(records))
	for id, o := range records {
		s.records[id] = o
	}

	return nil
}

func skipRecord(source string, err error) {
	slog.Error("skipping unreadable record", "source", source, "error", err)
}

// atomicWrite writes data to a temp file then renames it to the target path.
// This prevents partial or empty files if the process is interrupted.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		if removeErr := os.Remove(tmp); removeErr != nil {
			slog.Warn("failed to remove temp file after rename failure", "path", tmp, "error", removeErr)
		}
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (s *FileStore[T]) Get(id string) T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.records[id]
}

func (s *FileStore[T]) GetAll() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vals := make(map[string]T, len(s.records))
	for id, v := range s.records {
		vals[id] = v
	}

	return vals
}

func (s *FileStore[T]) Close() error {
	return nil
}

func (s *FileStore[T]) filePath(id string) string {
	return filepath.Join(s.path, fmt.Sprintf("%s.json", id))
}
