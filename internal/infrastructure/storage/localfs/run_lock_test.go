package localfs

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

func TestRunLockExcludesSecondHolder(t *testing.T) {
	ctx := context.Background()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := store.SavePageImage(ctx, "doc-1", 1, "image/png", strings.NewReader("png")); err != nil {
		t.Fatalf("SavePageImage() error = %v", err)
	}
	first, second := NewRunLock(store), NewRunLock(store)

	release, ok, err := first.TryAcquire(ctx, "doc-1")
	if err != nil || !ok {
		t.Fatalf("first TryAcquire() = %v, %v", ok, err)
	}
	if _, ok, err := second.TryAcquire(ctx, "doc-1"); err != nil || ok {
		t.Fatalf("second TryAcquire() while held = %v, %v", ok, err)
	}

	release()
	again, ok, err := second.TryAcquire(ctx, "doc-1")
	if err != nil || !ok {
		t.Fatalf("TryAcquire() after release = %v, %v", ok, err)
	}
	again()
}

func TestRunLockMissingDocument(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	lock := NewRunLock(store)

	if _, _, err := lock.TryAcquire(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if _, _, err := lock.TryAcquire(context.Background(), "../x"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
