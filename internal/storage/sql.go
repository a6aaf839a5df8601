package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour behind a SQLStorage
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// SQLStorage keeps documents in a single `documents` table.
// Implements the Storage interface.
type SQLStorage struct {
	db      *sql.DB
	dialect Dialect
}

var _ Storage = (*SQLStorage)(nil)

// OpenSQLite opens (or creates) a SQLite database file
func OpenSQLite(dbPath string) (*SQLStorage, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports one writer
	db.SetMaxOpenConns(1)

	return newSQLStorage(db, DialectSQLite)
}

// OpenPostgres connects through the pgx stdlib driver
func OpenPostgres(dsn string) (*SQLStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return newSQLStorage(db, DialectPostgres)
}

// OpenMySQL connects through the go-sql-driver/mysql driver
func OpenMySQL(dsn string) (*SQLStorage, error) {
	if !strings.Contains(dsn, "parseTime=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "parseTime=true&charset=utf8mb4"
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return newSQLStorage(db, DialectMySQL)
}

func newSQLStorage(db *sql.DB, dialect Dialect) (*SQLStorage, error) {
	s := &SQLStorage{db: db, dialect: dialect}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// Dialect returns the SQL flavour in use
func (s *SQLStorage) Dialect() Dialect {
	return s.dialect
}

func (s *SQLStorage) migrate() error {
	var ddl string
	switch s.dialect {
	case DialectPostgres:
		ddl = `CREATE TABLE IF NOT EXISTS documents (
			tenant     TEXT NOT NULL,
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			content    BYTEA NOT NULL,
			version    BIGINT NOT NULL DEFAULT 1,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (tenant, collection, id)
		)`
	case DialectMySQL:
		ddl = `CREATE TABLE IF NOT EXISTS documents (
			tenant     VARCHAR(64)  NOT NULL,
			collection VARCHAR(64)  NOT NULL,
			id         VARCHAR(191) NOT NULL,
			content    LONGBLOB     NOT NULL,
			version    BIGINT       NOT NULL DEFAULT 1,
			updated_at BIGINT       NOT NULL,
			PRIMARY KEY (tenant, collection, id)
		)`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS documents (
			tenant     TEXT NOT NULL,
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			content    BLOB NOT NULL,
			version    INTEGER NOT NULL DEFAULT 1,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (tenant, collection, id)
		)`
	}
	_, err := s.db.Exec(ddl)
	return err
}

// rebind rewrites ? placeholders to $n for postgres
func (s *SQLStorage) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStorage) upsertSQL() string {
	if s.dialect == DialectMySQL {
		return `INSERT INTO documents (tenant, collection, id, content, version, updated_at)
			VALUES (?, ?, ?, ?, 1, ?)
			ON DUPLICATE KEY UPDATE content = VALUES(content), version = version + 1, updated_at = VALUES(updated_at)`
	}
	return s.rebind(`INSERT INTO documents (tenant, collection, id, content, version, updated_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT (tenant, collection, id) DO UPDATE
		SET content = excluded.content, version = documents.version + 1, updated_at = excluded.updated_at`)
}

// CheckConnection pings the database
func (s *SQLStorage) CheckConnection(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot connect to %s database: %w", s.dialect, err)
	}
	return nil
}

// Put upserts a document and bumps its version
func (s *SQLStorage) Put(ctx context.Context, tenant, collection, id string, content []byte) (*Item, error) {
	if id == "" {
		return nil, fmt.Errorf("document id is required")
	}
	now := time.Now().UTC()

	if _, err := s.db.ExecContext(ctx, s.upsertSQL(), tenant, collection, id, content, now.UnixMilli()); err != nil {
		return nil, fmt.Errorf("put document: %w", err)
	}

	var version int64
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT version FROM documents WHERE tenant = ? AND collection = ? AND id = ?`),
		tenant, collection, id,
	).Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("read document version: %w", err)
	}

	return &Item{
		Key:          documentKey(tenant, collection, id),
		Collection:   collection,
		ID:           id,
		Content:      content,
		ContentType:  "application/json",
		VersionID:    strconv.FormatInt(version, 10),
		LastModified: now,
		Size:         int64(len(content)),
	}, nil
}

// Get reads a single document
func (s *SQLStorage) Get(ctx context.Context, tenant, collection, id string) (*Item, error) {
	var (
		content   []byte
		version   int64
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT content, version, updated_at FROM documents WHERE tenant = ? AND collection = ? AND id = ?`),
		tenant, collection, id,
	).Scan(&content, &version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	return &Item{
		Key:          documentKey(tenant, collection, id),
		Collection:   collection,
		ID:           id,
		Content:      content,
		ContentType:  "application/json",
		VersionID:    strconv.FormatInt(version, 10),
		LastModified: time.UnixMilli(updatedAt).UTC(),
		Size:         int64(len(content)),
	}, nil
}

// Delete removes a document
func (s *SQLStorage) Delete(ctx context.Context, tenant, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM documents WHERE tenant = ? AND collection = ? AND id = ?`),
		tenant, collection, id,
	)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// List returns every document of a collection ordered by id
func (s *SQLStorage) List(ctx context.Context, tenant, collection string) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, content, version, updated_at FROM documents WHERE tenant = ? AND collection = ? ORDER BY id`),
		tenant, collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var (
			id        string
			content   []byte
			version   int64
			updatedAt int64
		)
		if err := rows.Scan(&id, &content, &version, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, &Item{
			Key:          documentKey(tenant, collection, id),
			Collection:   collection,
			ID:           id,
			Content:      content,
			ContentType:  "application/json",
			VersionID:    strconv.FormatInt(version, 10),
			LastModified: time.UnixMilli(updatedAt).UTC(),
			Size:         int64(len(content)),
		})
	}
	return items, rows.Err()
}

// Exists checks whether a document is stored
func (s *SQLStorage) Exists(ctx context.Context, tenant, collection, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(*) FROM documents WHERE tenant = ? AND collection = ? AND id = ?`),
		tenant, collection, id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check document: %w", err)
	}
	return n > 0, nil
}

func documentKey(tenant, collection, id string) string {
	return tenant + "/" + collection + "/" + id
}
