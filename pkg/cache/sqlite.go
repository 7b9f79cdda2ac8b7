package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	// DriverModernc is the pure-Go SQLite driver (default)
	DriverModernc = "sqlite"
	// DriverCGO is github.com/mattn/go-sqlite3, available in cgo builds
	DriverCGO = "sqlite3"

	defaultBusyTimeout = 5 * time.Second
)

// cgoDriverAvailable is set by sqlite_cgo.go when the mattn driver is linked in
var cgoDriverAvailable bool

// SQLiteOptions configures a SQLiteStore.
type SQLiteOptions struct {
	// Driver is DriverModernc (default) or DriverCGO
	Driver string

	// TTL expires entries on read; zero keeps entries forever
	TTL time.Duration

	// BusyTimeout is how long a connection waits on a lock held by another process
	BusyTimeout time.Duration
}

// SQLiteStore implements Store on a SQLite file. Several processes may share
// one file: the database runs in WAL mode and every write is a single
// INSERT OR REPLACE, so readers see either the old value or the new one.
type SQLiteStore struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

var (
	_ Store      = (*SQLiteStore)(nil)
	_ Maintainer = (*SQLiteStore)(nil)
)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
`

// NewSQLiteStore opens (and creates if needed) the cache database at dbPath.
// dbPath may be ":memory:" for a private in-process database.
func NewSQLiteStore(dbPath string, opts SQLiteOptions) (*SQLiteStore, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverModernc
	}
	if driver == DriverCGO && !cgoDriverAvailable {
		return nil, fmt.Errorf("sqlite driver %q requires a cgo build", driver)
	}
	if driver != DriverModernc && driver != DriverCGO {
		return nil, fmt.Errorf("unknown sqlite driver %q", driver)
	}

	busy := opts.BusyTimeout
	if busy == 0 {
		busy = defaultBusyTimeout
	}

	db, err := sql.Open(driver, dsn(driver, dbPath, busy))
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, ttl: opts.TTL}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return s, nil
}

func dsn(driver, dbPath string, busy time.Duration) string {
	if dbPath == ":memory:" {
		return dbPath
	}
	ms := busy.Milliseconds()
	if driver == DriverCGO {
		return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", dbPath, ms)
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", dbPath, ms)
}

// initSchema creates the table and applies column migrations for older cache files.
func (s *SQLiteStore) initSchema() error {
	if _, err := s.db.Exec(createCacheTable); err != nil {
		return err
	}

	if !s.columnExists("cache_entries", "ttl_seconds") {
		if _, err := s.db.Exec("ALTER TABLE cache_entries ADD COLUMN ttl_seconds INTEGER NOT NULL DEFAULT 0"); err != nil {
			return fmt.Errorf("add ttl_seconds column: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) columnExists(table, column string) bool {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false
		}
		if strings.EqualFold(name, column) {
			return true
		}
	}
	return false
}

// Get retrieves a stored value. Expired entries are reported as misses.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value      []byte
		createdAt  int64
		ttlSeconds int64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT value, created_at, ttl_seconds FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &createdAt, &ttlSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		s.misses.Add(1)
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	if ttlSeconds > 0 && time.Since(time.Unix(createdAt, 0)) > time.Duration(ttlSeconds)*time.Second {
		s.misses.Add(1)
		return nil, false, nil
	}

	s.hits.Add(1)
	return value, true, nil
}

// Set stores value under key, replacing any previous entry.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (key, value, created_at, ttl_seconds) VALUES (?, ?, ?, ?)`,
		key, value, time.Now().Unix(), int64(s.ttl/time.Second),
	)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Stats returns the entry count and lookup counters.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	return Stats{
		Entries: count,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}, nil
}

// Clear removes entries and returns how many were deleted. With expiredOnly,
// only entries past their TTL are removed.
func (s *SQLiteStore) Clear(ctx context.Context, expiredOnly bool) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if expiredOnly {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE ttl_seconds > 0 AND created_at + ttl_seconds < ?`,
			time.Now().Unix())
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	}
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
