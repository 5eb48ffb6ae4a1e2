package localfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

const metadataFile = "metadata.json"

// MetadataRepository stores each document as metadata.json next to its
// page images. Writes go through a rename so readers see either the old or
// the new record.
type MetadataRepository struct {
	storage *Storage
	mu      sync.Mutex
}

func NewMetadataRepository(storage *Storage) *MetadataRepository {
	return &MetadataRepository{storage: storage}
}

func (r *MetadataRepository) Create(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, err := r.storage.documentDir(doc.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); err == nil {
		return domain.WrapError(domain.ErrInvalidInput, "create document", fmt.Errorf("id=%s already exists", doc.ID))
	}
	return r.write(dir, doc)
}

func (r *MetadataRepository) GetByID(_ context.Context, id string) (*domain.Document, error) {
	dir, err := r.storage.documentDir(id)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", err)
	}
	return readMetadata(dir, id)
}

func (r *MetadataRepository) Save(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, err := r.storage.documentDir(doc.ID)
	if err != nil {
		return domain.WrapError(domain.ErrDocumentNotFound, "save document", err)
	}
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); errors.Is(err, fs.ErrNotExist) {
		return domain.WrapError(domain.ErrDocumentNotFound, "save document", fmt.Errorf("id=%s", doc.ID))
	}
	return r.write(dir, doc)
}

// Delete removes the metadata file only; page images go with
// Storage.DeleteDocument.
func (r *MetadataRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, err := r.storage.documentDir(id)
	if err != nil {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", err)
	}
	err = os.Remove(filepath.Join(dir, metadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}
	return nil
}

func (r *MetadataRepository) ListByStatus(_ context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	entries, err := os.ReadDir(r.storage.basePath)
	if err != nil {
		return nil, fmt.Errorf("list storage dir: %w", err)
	}

	var docs []domain.Document
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		doc, err := readMetadata(filepath.Join(r.storage.basePath, entry.Name()), entry.Name())
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if doc.Status == status {
			docs = append(docs, *doc)
		}
	}
	slices.SortFunc(docs, func(a, b domain.Document) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return docs, nil
}

func (r *MetadataRepository) write(dir string, doc *domain.Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, metadataFile), bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func readMetadata(dir, id string) (*domain.Document, error) {
	raw, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal metadata %s: %w", id, err)
	}
	return &doc, nil
}
