package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

// Storage keeps every document under <base>/<document id>/: page images as
// page_<n>.<ext> and, when used as the metadata backend, metadata.json.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) SavePageImage(_ context.Context, documentID string, pageNumber int, mimeType string, data io.Reader) (string, error) {
	dir, err := s.documentDir(documentID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create document dir: %w", err)
	}

	name := fmt.Sprintf("page_%d%s", pageNumber, extensionFor(mimeType))
	if err := writeAtomic(filepath.Join(dir, name), data); err != nil {
		return "", fmt.Errorf("write page image: %w", err)
	}
	return documentID + "/" + name, nil
}

func (s *Storage) ReadPageImage(_ context.Context, documentID string, pageNumber int) (*domain.PageImage, error) {
	dir, err := s.documentDir(documentID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrImageNotFound, "read page image", err)
	}

	for _, ext := range imageExtensions {
		path := filepath.Join(dir, fmt.Sprintf("page_%d%s", pageNumber, ext))
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read page image: %w", err)
		}
		return &domain.PageImage{Data: data, MimeType: mimeFor(ext)}, nil
	}
	return nil, domain.WrapError(
		domain.ErrImageNotFound,
		"read page image",
		fmt.Errorf("document %s page %d", documentID, pageNumber),
	)
}

// DeleteDocument removes the document directory. A missing directory is
// not an error.
func (s *Storage) DeleteDocument(_ context.Context, documentID string) error {
	dir, err := s.documentDir(documentID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove document dir: %w", err)
	}
	return nil
}

func (s *Storage) documentDir(documentID string) (string, error) {
	if documentID == "" || documentID == "." || documentID == ".." || strings.ContainsAny(documentID, `/\`) {
		return "", domain.WrapError(domain.ErrInvalidInput, "document path", fmt.Errorf("invalid document id %q", documentID))
	}
	return filepath.Join(s.basePath, documentID), nil
}

// writeAtomic writes through a temp file in the target directory and
// renames it into place.
func writeAtomic(path string, data io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func mimeFor(ext string) string {
	switch ext {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
