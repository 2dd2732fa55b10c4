package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/openinsure/irdai-harvester/internal/harvest"
	"github.com/openinsure/irdai-harvester/internal/scraper"
)

// SQLiteStore is an alternative RecordStore keeping all source-type
// tables in one SQLite database.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	created map[harvest.SourceType]bool
}

// OpenSQLite opens (or creates) the catalog database in dataDir. Pass
// ":memory:" for an in-memory database (used by tests).
func OpenSQLite(dataDir string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "catalog.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping catalog db: %w", err)
	}

	// Single connection avoids "database is locked" with the pure-Go driver.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	return &SQLiteStore{db: db, created: make(map[harvest.SourceType]bool)}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureTable(ctx context.Context, st harvest.SourceType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created[st] {
		return nil
	}

	columns := tableColumns(st)
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = fmt.Sprintf("%s TEXT NOT NULL DEFAULT ''", col)
	}
	table := scraper.Schemas[st].TableName

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return &harvest.StorageError{Op: "create table", Key: table, Err: err}
	}
	idx := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_document_url ON %s (%s)",
		table, table, scraper.ColDocumentURL,
	)
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		return &harvest.StorageError{Op: "create index", Key: table, Err: err}
	}
	s.created[st] = true
	return nil
}

// Append inserts records in one transaction. appendMode false truncates
// the table first.
func (s *SQLiteStore) Append(ctx context.Context, st harvest.SourceType, records []harvest.Record, appendMode bool) (int, error) {
	if err := s.ensureTable(ctx, st); err != nil {
		return 0, err
	}
	table := scraper.Schemas[st].TableName
	columns := tableColumns(st)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &harvest.StorageError{Op: "begin", Key: table, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if !appendMode {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return 0, &harvest.StorageError{Op: "truncate", Key: table, Err: err}
		}
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(columns)), ",")
	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders,
	)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, &harvest.StorageError{Op: "prepare", Key: table, Err: err}
	}
	defer func() { _ = stmt.Close() }()

	written := 0
	for _, record := range records {
		args := make([]any, len(columns))
		for i, col := range columns {
			args[i] = columnValue(record, col)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, &harvest.StorageError{Op: "insert", Key: table, Err: err}
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, &harvest.StorageError{Op: "commit", Key: table, Err: err}
	}
	return written, nil
}

// ExistingKeys returns the distinct non-empty document_url values.
func (s *SQLiteStore) ExistingKeys(ctx context.Context, st harvest.SourceType) (map[string]bool, error) {
	keys := make(map[string]bool)
	if err := s.ensureTable(ctx, st); err != nil {
		return nil, err
	}
	table := scraper.Schemas[st].TableName

	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s != ''",
		scraper.ColDocumentURL, table, scraper.ColDocumentURL,
	)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &harvest.StorageError{Op: "query keys", Key: table, Err: err}
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, &harvest.StorageError{Op: "scan key", Key: table, Err: err}
		}
		keys[url] = true
	}
	if err := rows.Err(); err != nil {
		return nil, &harvest.StorageError{Op: "iterate keys", Key: table, Err: err}
	}
	return keys, nil
}
