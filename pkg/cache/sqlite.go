package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rs/zerolog"
)

// SQLite stores bodies in an SQLite table. It satisfies Cache[string, []byte].
// Errors from the database are logged and reported as misses, so the proxy
// falls back to the origin.
//
// Writes are serialized by writeMutex. Reads go through the connection pool
// and, with the default WAL database, never wait on a writer or on each
// other.
type SQLite struct {
	db         *sql.DB
	writeMutex *sync.Mutex
	log        zerolog.Logger
	// dir holds the default database and is removed on Close
	dir string
}

func walDSN(path string) string {
	return "file:" + filepath.ToSlash(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// NewSQLite opens the database at dsn and creates an empty cache table.
// An empty dsn opens a fresh WAL database in a private temp directory that
// lives as long as the store. Entries never outlive the store: the table is
// cleared when an existing database is opened.
func NewSQLite(dsn string, logger zerolog.Logger) (*SQLite, error) {
	var dir string
	if dsn == "" {
		var err error
		dir, err = os.MkdirTemp("", "cacheproxy-")
		if err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		dsn = walDSN(filepath.Join(dir, "cache.db"))
	}
	cleanup := func() {
		if dir != "" {
			os.RemoveAll(dir)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	// pooled connections to a shared-cache memory database fail with
	// SQLITE_LOCKED, so those get a single connection
	if strings.Contains(dsn, "mode=memory") || strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			bytes BLOB NOT NULL
		)`,
		`DELETE FROM cache`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			cleanup()
			return nil, fmt.Errorf("prepare cache table: %w", err)
		}
	}

	return &SQLite{
		db:         db,
		writeMutex: &sync.Mutex{},
		log:        logger.With().Str("store", "sqlite").Logger(),
		dir:        dir,
	}, nil
}

func (s *SQLite) Get(key string) ([]byte, bool) {
	var body []byte
	err := s.db.QueryRow("SELECT bytes FROM cache WHERE key = ?", key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Could not read from cache")
		return nil, false
	}
	if body == nil {
		body = []byte{}
	}
	return body, true
}

func (s *SQLite) Set(key string, value []byte) {
	if value == nil {
		value = []byte{}
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.Exec("INSERT OR REPLACE INTO cache (key, bytes) VALUES (?, ?)", key, value); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Could not write to cache")
	}
}

func (s *SQLite) Delete(key string) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.Exec("DELETE FROM cache WHERE key = ?", key); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Could not purge cache entry")
	}
}

func (s *SQLite) Len() int {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM cache").Scan(&n); err != nil {
		s.log.Error().Err(err).Msg("Could not count cache entries")
		return 0
	}
	return n
}

func (s *SQLite) GetAll() map[string][]byte {
	out := make(map[string][]byte)
	rows, err := s.db.Query("SELECT key, bytes FROM cache")
	if err != nil {
		s.log.Error().Err(err).Msg("Could not list cache entries")
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var body []byte
		if err := rows.Scan(&key, &body); err != nil {
			s.log.Error().Err(err).Msg("Could not scan cache entry")
			return out
		}
		if body == nil {
			body = []byte{}
		}
		out[key] = body
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Int("read", len(out)).Msg("Cache entry listing cut short")
	}
	return out
}

func (s *SQLite) Keys() []string {
	rows, err := s.db.Query("SELECT key FROM cache")
	if err != nil {
		s.log.Error().Err(err).Msg("Could not list cache keys")
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			s.log.Error().Err(err).Msg("Could not scan cache key")
			return keys
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Int("read", len(keys)).Msg("Cache key listing cut short")
	}
	return keys
}

// Close closes the database and removes the default database files.
func (s *SQLite) Close() error {
	err := s.db.Close()
	if s.dir != "" {
		if rerr := os.RemoveAll(s.dir); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}
