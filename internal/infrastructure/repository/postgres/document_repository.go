package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

const documentColumns = `id, name, parent_id, status, model_used, processing_mode, target_language, custom_prompt,
	remove_references, total_pages, processed_pages, pages, saved_text, created_at, updated_at`

// DocumentRepository stores one row per document with the pages kept as a
// single JSONB value, so every save replaces the record as a whole.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	parent_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	model_used TEXT NOT NULL,
	processing_mode TEXT NOT NULL,
	target_language TEXT NOT NULL DEFAULT '',
	custom_prompt TEXT NOT NULL DEFAULT '',
	remove_references BOOLEAN NOT NULL DEFAULT TRUE,
	total_pages INTEGER NOT NULL,
	processed_pages INTEGER NOT NULL DEFAULT 0,
	pages JSONB NOT NULL DEFAULT '[]'::jsonb,
	saved_text TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_parent_id ON documents(parent_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	pagesJSON, err := marshalPages(doc.Pages)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		doc.ID, doc.Name, doc.ParentID, string(doc.Status), doc.Model, string(doc.Mode), doc.TargetLanguage,
		doc.CustomPrompt, doc.RemoveReferences, doc.TotalPages, doc.ProcessedPages, pagesJSON,
		nullableText(doc.SavedText), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) Save(ctx context.Context, doc *domain.Document) error {
	pagesJSON, err := marshalPages(doc.Pages)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET name = $2, parent_id = $3, status = $4, model_used = $5, processing_mode = $6, target_language = $7,
	custom_prompt = $8, remove_references = $9, total_pages = $10, processed_pages = $11, pages = $12,
	saved_text = $13, updated_at = $14
WHERE id = $1
`,
		doc.ID, doc.Name, doc.ParentID, string(doc.Status), doc.Model, string(doc.Mode), doc.TargetLanguage,
		doc.CustomPrompt, doc.RemoveReferences, doc.TotalPages, doc.ProcessedPages, pagesJSON,
		nullableText(doc.SavedText), doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return ensureAffected(result, "save document", doc.ID)
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return ensureAffected(result, "delete document", id)
}

func (r *DocumentRepository) ListByStatus(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE status = $1
ORDER BY created_at ASC
`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc       domain.Document
		status    string
		mode      string
		pagesRaw  []byte
		savedText sql.NullString
	)
	err := row.Scan(
		&doc.ID, &doc.Name, &doc.ParentID, &status, &doc.Model, &mode, &doc.TargetLanguage, &doc.CustomPrompt,
		&doc.RemoveReferences, &doc.TotalPages, &doc.ProcessedPages, &pagesRaw, &savedText, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(pagesRaw, &doc.Pages); err != nil {
		return nil, fmt.Errorf("unmarshal pages: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	doc.Mode = domain.ProcessingMode(mode)
	if savedText.Valid {
		text := savedText.String
		doc.SavedText = &text
	}
	return &doc, nil
}

func marshalPages(pages []domain.Page) ([]byte, error) {
	if pages == nil {
		pages = []domain.Page{}
	}
	raw, err := json.Marshal(pages)
	if err != nil {
		return nil, fmt.Errorf("marshal pages: %w", err)
	}
	return raw, nil
}

func nullableText(text *string) sql.NullString {
	if text == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *text, Valid: true}
}

func ensureAffected(result sql.Result, operation, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
