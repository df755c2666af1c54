package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// maxCacheEntries caps the query cache; the oldest entries are evicted
// once the table grows past this.
const maxCacheEntries = 500

// Store wraps a SQLite database holding the query-result cache and the
// tool audit log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "venq.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Query cache ---

// SaveCache stores the serialized result for a query, replacing any prior
// entry, then evicts the oldest entries past the cap.
func (s *Store) SaveCache(query, result string) error {
	_, err := s.db.Exec(`
		INSERT INTO query_cache (query, result, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(query) DO UPDATE SET result = excluded.result, created_at = excluded.created_at`,
		query, result, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving cache entry: %w", err)
	}

	_, err = s.db.Exec(`
		DELETE FROM query_cache WHERE query NOT IN (
			SELECT query FROM query_cache ORDER BY created_at DESC LIMIT ?
		)`, maxCacheEntries)
	if err != nil {
		return fmt.Errorf("evicting cache entries: %w", err)
	}
	return nil
}

// GetCache returns the cached result for a query, or ErrNotFound.
func (s *Store) GetCache(query string) (CacheEntry, error) {
	var e CacheEntry
	var created string
	err := s.db.QueryRow(
		"SELECT query, result, created_at FROM query_cache WHERE query = ?", query,
	).Scan(&e.Query, &e.Result, &created)
	if err == sql.ErrNoRows {
		return CacheEntry{}, ErrNotFound
	}
	if err != nil {
		return CacheEntry{}, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return e, nil
}

// CacheSize returns the number of cached queries.
func (s *Store) CacheSize() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM query_cache").Scan(&n)
	return n, err
}

// --- Audit log ---

// AppendAudit records one tool invocation.
func (s *Store) AppendAudit(r AuditRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO audit_log (id, user_id, tool, query, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Tool, r.Query, r.Outcome, r.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("appending audit record: %w", err)
	}
	return nil
}

// RecentAudit returns the newest audit records for a user, newest first.
func (s *Store) RecentAudit(userID string, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, tool, query, outcome, created_at
		FROM audit_log WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var r AuditRecord
		var created string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Tool, &r.Query, &r.Outcome, &created); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		records = append(records, r)
	}
	return records, rows.Err()
}
