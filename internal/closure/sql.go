package closure

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/nix-community/nix-closure-diff/internal/logger"
	"github.com/nix-community/nix-closure-diff/internal/storepath"
)

const (
	closureSizeQuery = `
WITH RECURSIVE graph(p) AS (
  SELECT id FROM ValidPaths WHERE path = ?
  UNION
  SELECT reference FROM Refs JOIN graph ON referrer = p
)
SELECT SUM(narSize) FROM graph JOIN ValidPaths ON p = id;
`

	dependentsQuery = `
WITH RECURSIVE graph(p) AS (
  SELECT id FROM ValidPaths WHERE path = ?
  UNION
  SELECT reference FROM Refs JOIN graph ON referrer = p
)
SELECT path FROM graph JOIN ValidPaths ON p = id;
`

	systemDerivationsQuery = `
WITH
  direct(id) AS (
    SELECT R.reference FROM ValidPaths V JOIN Refs R ON R.referrer = V.id WHERE V.path = ?
  ),
  sys(id) AS (
    SELECT direct.id FROM direct JOIN ValidPaths VP ON VP.id = direct.id WHERE VP.path LIKE '%-system-path'
  )
SELECT VP.path FROM Refs R JOIN sys ON R.referrer = sys.id JOIN ValidPaths VP ON VP.id = R.reference;
`
)

// SQLBackend executes the three Nix store queries above (closure size,
// dependents, system derivations) against a SQLite database, opened
// read-only, via modernc.org/sqlite (C4).
//
// Eager collects every row into a slice before returning; any row
// conversion error fails the whole query. Lazy peeks the first row
// eagerly (to surface query errors immediately) and then logs and skips
// any later row that fails to convert, trading absolute completeness for
// speed. This mirrors the source tool's two streaming disciplines, though
// Go's lack of Rust's borrow-checked self-referencing iterators means both
// variants here still materialize a slice rather than a true lazy stream.
type SQLBackend struct {
	path      string
	log       logger.Logger
	eager     bool
	immutable bool

	mu sync.Mutex
	db *sql.DB
}

// NewSQLBackend opens path lazily on first Connect. When eager is true,
// query results are collected strictly: any malformed row fails the
// entire query. When false, only the first row must be well formed; later
// malformed rows are logged and dropped.
func NewSQLBackend(path string, eager bool, log logger.Logger) *SQLBackend {
	return &SQLBackend{path: path, eager: eager, log: log}
}

// NewSQLBackendImmutable is identical to NewSQLBackend but opens the
// database with SQLite's immutable=1 flag, which skips locking entirely
// by treating the file as a fixed snapshot. This is the second link in
// the Combined backend's default chain (C6): when the primary read-only
// handle returns "database is locked" during a concurrent nixos-rebuild,
// this handle can still serve queries against the pre-rebuild state.
func NewSQLBackendImmutable(path string, eager bool, log logger.Logger) *SQLBackend {
	return &SQLBackend{path: path, eager: eager, log: log, immutable: true}
}

func (s *SQLBackend) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	values := url.Values{
		"mode":    {"ro"},
		"_pragma": {"query_only(1)", "mmap_size(268435456)", "temp_store(2)"},
	}
	if s.immutable {
		values.Set("immutable", "1")
	}

	dsn := fmt.Sprintf("file:%s?%s", s.path, values.Encode())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return wrapf(ErrDatabaseUnavailable, "opening nix store database at %s", s.path)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return wrapf(ErrDatabaseUnavailable, "connecting to nix store database at %s", s.path)
	}

	s.db = db
	return nil
}

func (s *SQLBackend) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db != nil
}

func (s *SQLBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLBackend) QueryClosureSize(ctx context.Context, root storepath.StorePath) (int64, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()

	if db == nil {
		return 0, wrapf(ErrDatabaseUnavailable, "not connected")
	}

	var size sql.NullInt64
	row := db.QueryRowContext(ctx, closureSizeQuery, root.String())
	if err := row.Scan(&size); err != nil {
		return 0, wrapf(ErrDatabaseUnavailable, "querying closure size of %s", root.String())
	}

	return size.Int64, nil
}

func (s *SQLBackend) QueryDependents(ctx context.Context, root storepath.StorePath) ([]storepath.StorePath, error) {
	return s.queryPaths(ctx, dependentsQuery, root)
}

func (s *SQLBackend) QuerySystemDerivations(ctx context.Context, root storepath.StorePath) ([]storepath.StorePath, error) {
	return s.queryPaths(ctx, systemDerivationsQuery, root)
}

func (s *SQLBackend) queryPaths(ctx context.Context, query string, root storepath.StorePath) ([]storepath.StorePath, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()

	if db == nil {
		return nil, wrapf(ErrDatabaseUnavailable, "not connected")
	}

	rows, err := db.QueryContext(ctx, query, root.String())
	if err != nil {
		return nil, wrapf(ErrDatabaseUnavailable, "querying %s", root.String())
	}
	defer func() { _ = rows.Close() }()

	var results []storepath.StorePath
	first := true

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			if s.eager || first {
				return nil, wrapf(ErrMalformedRow, "scanning row for %s", root.String())
			}
			if s.log != nil {
				s.log.Debugf("skipping malformed row while querying %s: %v", root.String(), err)
			}
			continue
		}

		sp, err := storepath.New(raw)
		if err != nil {
			if s.eager || first {
				return nil, wrapf(ErrMalformedRow, "path %q is not a valid store path", raw)
			}
			if s.log != nil {
				s.log.Debugf("skipping malformed store path %q: %v", raw, err)
			}
			continue
		}

		results = append(results, sp)
		first = false
	}

	if err := rows.Err(); err != nil {
		return nil, wrapf(ErrDatabaseUnavailable, "iterating rows for %s", root.String())
	}

	return results, nil
}
