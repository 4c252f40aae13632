// SQLite implementation of the FilterStore interface.

package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/models"
)

// SQLiteStore implements FilterStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		modality TEXT NOT NULL,
		source TEXT NOT NULL,
		source_id TEXT,
		year INTEGER,
		method TEXT,
		title TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_year ON documents(year);
	CREATE INDEX IF NOT EXISTS idx_documents_modality ON documents(modality);
	`
	_, err := db.Exec(schema)
	return err
}

// Put inserts or replaces a document row. Used by ingestion tooling and test
// fixtures; the query path never writes.
func (s *SQLiteStore) Put(ctx context.Context, doc *models.DocumentMeta) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, modality, source, source_id, year, method, title)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.DocumentID, doc.Modality, doc.Source, doc.SourceID, doc.Year, doc.Method, doc.Title,
	)
	return err
}

// Filter returns metadata rows for the candidates matching the predicates.
func (s *SQLiteStore) Filter(ctx context.Context, candidates []string, filters *models.SearchFilters) (map[string]*models.DocumentMeta, error) {
	out := make(map[string]*models.DocumentMeta)
	if len(candidates) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(candidates)), ",")
	clauses := []string{fmt.Sprintf("id IN (%s)", placeholders)}
	args := make([]interface{}, 0, len(candidates)+3)
	for _, id := range candidates {
		args = append(args, id)
	}
	if filters != nil {
		if filters.YearFrom != 0 {
			clauses = append(clauses, "COALESCE(year, 0) >= ?")
			args = append(args, filters.YearFrom)
		}
		if filters.YearTo != 0 {
			clauses = append(clauses, "COALESCE(year, 9999) <= ?")
			args = append(args, filters.YearTo)
		}
		if filters.Method != "" {
			clauses = append(clauses, "method = ?")
			args = append(args, filters.Method)
		}
		if filters.Source != "" {
			clauses = append(clauses, "source = ?")
			args = append(args, filters.Source)
		}
	}

	query := `SELECT id, modality, source, COALESCE(source_id, ''), COALESCE(year, 0),
		COALESCE(method, ''), COALESCE(title, '')
		FROM documents WHERE ` + strings.Join(clauses, " AND ")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.DocumentMeta
		if err := rows.Scan(&m.DocumentID, &m.Modality, &m.Source, &m.SourceID, &m.Year, &m.Method, &m.Title); err != nil {
			return nil, err
		}
		out[m.DocumentID] = &m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

// Get returns the metadata row for one document, or nil when unknown.
func (s *SQLiteStore) Get(ctx context.Context, documentID string) (*models.DocumentMeta, error) {
	var m models.DocumentMeta
	err := s.db.QueryRowContext(ctx,
		`SELECT id, modality, source, COALESCE(source_id, ''), COALESCE(year, 0),
		 COALESCE(method, ''), COALESCE(title, '')
		 FROM documents WHERE id = ?`, documentID,
	).Scan(&m.DocumentID, &m.Modality, &m.Source, &m.SourceID, &m.Year, &m.Method, &m.Title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &m, nil
}

// CountDocuments returns the number of documents known to the store.
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
