package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// BoltStore keeps assets in a single bucket of a BoltDB file. Reads are served
// from an in-memory copy that is written through on every mutation.
type BoltStore[T ValidatingSpec] struct {
	db      *bbolt.DB
	bucket  []byte
	records map[string]T

	mu sync.RWMutex
}

func NewBoltStore[T ValidatingSpec](path string, bucket string) (*BoltStore[T], error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	s := &BoltStore[T]{
		db:      db,
		bucket:  []byte(bucket),
		records: map[string]T{},
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s bucket: %w", bucket, err)
	}

	if err := s.Reload(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Reload rebuilds the cache from the bucket, skipping records that do not
// decode.
func (s *BoltStore[T]) Reload() error {
	records := map[string]T{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("%s bucket is missing", s.bucket)
		}
		return b.ForEach(func(k, v []byte) error {
			asset, err := decodeAsset[T](v)
			if err != nil {
				skipRecord(string(k), err)
				return nil
			}
			if asset.Id() != string(k) {
				skipRecord(string(k), fmt.Errorf("key %s holds asset %s", k, asset.Id()))
				return nil
			}
			records[asset.Id()] = asset.Spec
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	return nil
}

func (s *BoltStore[T]) Save(id string, o T) error {
	data, err := encodeAsset(id, o)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(id), data)
	})
	if err != nil {
		return fmt.Errorf("saving %s: %w", id, err)
	}
	s.records[id] = o

	return nil
}

func (s *BoltStore[T]) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	delete(s.records, id)

	return nil
}

// ReplaceAll rewrites the bucket in a single transaction.
func (s *BoltStore[T]) ReplaceAll(records map[string]T) error {
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

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(s.bucket)
		if err != nil {
			return err
		}
		for id, data := range encoded {
			if err := b.Put([]byte(id), data); err != nil {
				return fmt.Errorf("writing %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing %s: %w", s.bucket, err)
	}

	s.records = make(map[string]T, len(records))
	for id, o := range records {
		s.records[id] = o
	}

	return nil
}

func (s *BoltStore[T]) Get(id string) T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.records[id]
}

func (s *BoltStore[T]) GetAll() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vals := make(map[string]T, len(s.records))
	for id, v := range s.records {
		vals[id] = v
	}
	return vals
}

func (s *BoltStore[T]) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
