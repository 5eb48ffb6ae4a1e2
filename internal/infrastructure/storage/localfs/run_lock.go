package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

const runLockFile = ".run.lock"

// RunLock guards document runs of workers sharing one storage root. The
// lock file sits in the document directory and is released by the kernel
// when its holder exits.
type RunLock struct {
	storage *Storage
}

func NewRunLock(storage *Storage) *RunLock {
	return &RunLock{storage: storage}
}

func (l *RunLock) TryAcquire(_ context.Context, documentID string) (func(), bool, error) {
	dir, err := l.storage.documentDir(documentID)
	if err != nil {
		return nil, false, err
	}
	release, ok, err := tryLockFile(filepath.Join(dir, runLockFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, domain.WrapError(domain.ErrDocumentNotFound, "lock document run", fmt.Errorf("document %s", documentID))
	}
	return release, ok, err
}
