package persist

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"subsetjulia/internal/ir"
)

// SQLStore is a content-hash-keyed cache of compiled bytecode payloads,
// backed by any of the four SQL drivers this module carries. A cache entry
// is addressed by the sha256 of the serialized Program, so recompiling
// identical source never grows the table. Each Open* constructor picks a
// dialect-specific DSN and driver name the same way a multi-database
// connection pool would, one case per supported engine.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQLite opens (and, if needed, creates) a SQLite-backed cache at path.
func OpenSQLite(path string) (*SQLStore, error) {
	return open("sqlite3", path)
}

// OpenMySQL opens a MySQL-backed cache using a go-sql-driver/mysql DSN
// ("user:pass@tcp(host:port)/dbname").
func OpenMySQL(dsn string) (*SQLStore, error) {
	return open("mysql", dsn)
}

// OpenPostgres opens a PostgreSQL-backed cache using a lib/pq DSN
// ("host=... port=... user=... password=... dbname=... sslmode=...").
func OpenPostgres(dsn string) (*SQLStore, error) {
	return open("postgres", dsn)
}

// OpenMSSQL opens a SQL Server-backed cache using a denisenkom/go-mssqldb
// DSN ("server=...;port=...;user id=...;password=...;database=...").
func OpenMSSQL(dsn string) (*SQLStore, error) {
	return open("sqlserver", dsn)
}

func open(driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: opening %s store: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: connecting to %s store: %w", driver, err)
	}
	s := &SQLStore{db: db, driver: driver}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// schemaDDL is identical across dialects for the subset of SQL this store
// needs; TEXT/BLOB/INTEGER are accepted verbatim by all four drivers.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS bytecode_cache (
	entry_id    TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL UNIQUE,
	version     INTEGER NOT NULL,
	flags       INTEGER NOT NULL,
	payload     BLOB NOT NULL,
	byte_size   INTEGER NOT NULL,
	created_at  TEXT NOT NULL
)`

func (s *SQLStore) ensureSchema() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("persist: creating bytecode_cache table: %w", err)
	}
	return nil
}

// rebind rewrites a query written with "?" placeholders into the calling
// driver's native placeholder syntax: lib/pq and go-mssqldb don't accept
// "?" at all (postgres wants $1, $2...; sqlserver accepts @p1, @p2...),
// while mysql and sqlite3 take "?" directly.
func (s *SQLStore) rebind(query string) string {
	switch s.driver {
	case "postgres":
		n := 0
		var b []byte
		for i := 0; i < len(query); i++ {
			if query[i] == '?' {
				n++
				b = append(b, []byte(fmt.Sprintf("$%d", n))...)
				continue
			}
			b = append(b, query[i])
		}
		return string(b)
	case "sqlserver":
		n := 0
		var b []byte
		for i := 0; i < len(query); i++ {
			if query[i] == '?' {
				n++
				b = append(b, []byte(fmt.Sprintf("@p%d", n))...)
				continue
			}
			b = append(b, query[i])
		}
		return string(b)
	default:
		return query
	}
}

// ContentHash returns the cache key for program: the sha256 of its framed
// SaveToBytes encoding at the given flags, so two programs that serialize
// identically always share one cache row regardless of how they were built.
func ContentHash(program *ir.Program, flags uint32) (string, *FormatError) {
	data, err := SaveToBytes(program, flags)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Put stores program under its content hash, returning the existing
// entry's id without writing again if that hash is already cached.
func (s *SQLStore) Put(ctx context.Context, program *ir.Program, flags uint32) (string, error) {
	hash, ferr := ContentHash(program, flags)
	if ferr != nil {
		return "", ferr
	}

	if id, found, err := s.lookupByHash(ctx, hash); err != nil {
		return "", err
	} else if found {
		return id, nil
	}

	data, ferr := SaveToBytes(program, flags)
	if ferr != nil {
		return "", ferr
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO bytecode_cache (entry_id, content_hash, version, flags, payload, byte_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		id, hash, Version, flags, data, len(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("persist: inserting %s bytecode entry (%s): %w",
			humanize.Bytes(uint64(len(data))), s.driver, err)
	}
	return id, nil
}

func (s *SQLStore) lookupByHash(ctx context.Context, hash string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT entry_id FROM bytecode_cache WHERE content_hash = ?`), hash).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("persist: looking up cache entry: %w", err)
	}
	return id, true, nil
}

// GetByHash loads the Program cached under a content hash, if present.
func (s *SQLStore) GetByHash(ctx context.Context, hash string) (*ir.Program, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT payload FROM bytecode_cache WHERE content_hash = ?`), hash).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("persist: fetching cache entry: %w", err)
	}
	program, _, ferr := LoadFromBytes(payload)
	if ferr != nil {
		return nil, false, ferr
	}
	return program, true, nil
}

// GetByID loads the Program cached under a specific entry id.
func (s *SQLStore) GetByID(ctx context.Context, id string) (*ir.Program, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT payload FROM bytecode_cache WHERE entry_id = ?`), id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("persist: fetching cache entry: %w", err)
	}
	program, _, ferr := LoadFromBytes(payload)
	if ferr != nil {
		return nil, false, ferr
	}
	return program, true, nil
}

// Evict removes a cache entry by content hash. A missing hash is not an
// error — eviction is idempotent.
func (s *SQLStore) Evict(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM bytecode_cache WHERE content_hash = ?`), hash)
	if err != nil {
		return fmt.Errorf("persist: evicting cache entry: %w", err)
	}
	return nil
}

// Stats summarizes the cache's current footprint.
type Stats struct {
	Entries   int
	TotalSize int64
}

func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(byte_size), 0) FROM bytecode_cache`).
		Scan(&stats.Entries, &stats.TotalSize)
	if err != nil {
		return Stats{}, fmt.Errorf("persist: computing cache stats: %w", err)
	}
	return stats, nil
}

// String renders stats in human-readable form, e.g. "42 entries, 3.1 MB".
func (st Stats) String() string {
	return fmt.Sprintf("%d entries, %s", st.Entries, humanize.Bytes(uint64(st.TotalSize)))
}

func (s *SQLStore) Close() error { return s.db.Close() }
