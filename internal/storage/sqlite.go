package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

var tablePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// SQLiteStore keeps assets as rows of (id, version, spec) in one table.
type SQLiteStore[T ValidatingSpec] struct {
	db      *sql.DB
	table   string
	records map[string]T

	mu sync.RWMutex
}

func NewSQLiteStore[T ValidatingSpec](path string, table string) (*SQLiteStore[T], error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if !tablePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &SQLiteStore[T]{
		db:      db,
		table:   table,
		records: map[string]T{},
	}

	_, err = db.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id      TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	asset   TEXT NOT NULL
)`, table))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s table: %w", table, err)
	}

	if err := s.Reload(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore[T]) Reload() error {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT id, asset FROM %s`, s.table))
	if err != nil {
		return fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer func() { _ = rows.Close() }()

	records := map[string]T{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("scanning %s: %w", s.table, err)
		}
		asset, err := decodeAsset[T]([]byte(raw))
		if err != nil {
			skipRecord(id, err)
			continue
		}
		records[asset.Id()] = asset.Spec
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating %s: %w", s.table, err)
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	return nil
}

func (s *SQLiteStore[T]) Save(id string, o T) error {
	data, err := encodeAsset(id, o)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(fmt.Sprintf(`
INSERT INTO %s (id, version, asset) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET version = excluded.version, asset = excluded.asset`, s.table),
		id, assetVersion, string(data))
	if err != nil {
		return fmt.Errorf("saving %s: %w", id, err)
	}
	s.records[id] = o

	return nil
}

func (s *SQLiteStore[T]) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table), id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	delete(s.records, id)

	return nil
}

// ReplaceAll rewrites the table in a single transaction.
func (s *SQLiteStore[T]) ReplaceAll(records map[string]T) (err error) {
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

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
		return fmt.Errorf("clearing %s: %w", s.table, err)
	}
	insert := fmt.Sprintf(`INSERT INTO %s (id, version, asset) VALUES (?, ?, ?)`, s.table)
	for id, data := range encoded {
		if _, err = tx.Exec(insert, id, assetVersion, string(data)); err != nil {
			return fmt.Errorf("writing %s: %w", id, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.records = make(map[string]T, len(records))
	for id, o := range records {
		s.records[id] = o
	}

	return nil
}

func (s *SQLiteStore[T]) Get(id string) T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.records[id]
}

func (s *SQLiteStore[T]) GetAll() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vals := make(map[string]T, len(s.records))
	for id, v := range s.records {
		vals[id] = v
	}
	return vals
}

func (s *SQLiteStore[T]) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
