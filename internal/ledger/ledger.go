// Package ledger provides SQLite persistence for query records and the
// active document.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/maane-ai/maane/internal/apperr"
	"github.com/maane-ai/maane/internal/models"
)

// Ledger stores query records in SQLite.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Ledger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT,
		status TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_queries_created_at ON queries(created_at);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		pages INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Create inserts a pending query record. When id is empty a new UUID is
// assigned. A duplicate id is a conflict.
func (l *Ledger) Create(ctx context.Context, id, question string) (*models.QueryRecord, error) {
	if id == "" {
		id = uuid.New().String()
	}
	rec := &models.QueryRecord{
		ID:        id,
		Question:  question,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO queries (id, question, answer, status, created_at) VALUES (?, ?, '', ?, ?)`,
		rec.ID, rec.Question, string(rec.Status), rec.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, apperr.Newf(apperr.CategoryConflict, "query id already exists", "%s", id)
		}
		return nil, fmt.Errorf("insert query: %w", err)
	}
	return rec, nil
}

// Complete records the answer for a pending query. A record that is not
// pending is a conflict; records never leave a terminal status.
func (l *Ledger) Complete(ctx context.Context, id, answer string) error {
	return l.finish(ctx, id, answer, models.StatusCompleted)
}

// Fail marks a pending query as failed, storing the failure detail as the
// answer.
func (l *Ledger) Fail(ctx context.Context, id, detail string) error {
	return l.finish(ctx, id, detail, models.StatusFailed)
}

func (l *Ledger) finish(ctx context.Context, id, answer string, status models.QueryStatus) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE queries SET answer = ?, status = ? WHERE id = ? AND status = ?`,
		answer, string(status), id, string(models.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("update query: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := l.Get(ctx, id); err != nil {
			return err
		}
		return apperr.Newf(apperr.CategoryConflict, "query is not pending", "%s", id)
	}
	return nil
}

// Get returns a query record by id.
func (l *Ledger) Get(ctx context.Context, id string) (*models.QueryRecord, error) {
	var rec models.QueryRecord
	var status string
	err := l.db.QueryRowContext(ctx,
		`SELECT id, question, answer, status, created_at FROM queries WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Question, &rec.Answer, &status, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.CategoryNotFound, "query not found", "%s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select query: %w", err)
	}
	rec.Status = models.QueryStatus(status)
	return &rec, nil
}

// Count returns the total number of query records.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queries: %w", err)
	}
	return n, nil
}

// SaveDocument records an ingested document, replacing any previous record
// for the same id.
func (l *Ledger) SaveDocument(ctx context.Context, doc *models.Document) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, file_name, pages, chunks, created_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.FileName, len(doc.Pages), len(doc.Chunks), doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// DocumentMeta describes an ingested document.
type DocumentMeta struct {
	ID        string
	FileName  string
	Pages     int
	Chunks    int
	CreatedAt time.Time
}

// ActiveDocument returns the most recently ingested document, or nil when
// nothing has been ingested.
func (l *Ledger) ActiveDocument(ctx context.Context) (*DocumentMeta, error) {
	var meta DocumentMeta
	err := l.db.QueryRowContext(ctx,
		`SELECT id, file_name, pages, chunks, created_at FROM documents ORDER BY created_at DESC, id DESC LIMIT 1`,
	).Scan(&meta.ID, &meta.FileName, &meta.Pages, &meta.Chunks, &meta.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return &meta, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
