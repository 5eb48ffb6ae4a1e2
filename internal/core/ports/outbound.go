package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

// DocumentRepository persists whole document records. Save replaces the
// stored record atomically.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
	Delete(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error)
}

// PageImageStore keeps the source image of every page.
type PageImageStore interface {
	SavePageImage(ctx context.Context, documentID string, pageNumber int, mimeType string, data io.Reader) (string, error)
	ReadPageImage(ctx context.Context, documentID string, pageNumber int) (*domain.PageImage, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// PageRecognizer extracts labeled text blocks from a page image.
type PageRecognizer interface {
	Recognize(ctx context.Context, image domain.PageImage, cfg domain.ProcessingConfig) ([]domain.TextBlock, error)
}

// MessageQueue carries processing and stop requests between the API and
// the workers.
type MessageQueue interface {
	PublishProcessingRequested(ctx context.Context, documentID string) error
	PublishStopRequested(ctx context.Context, documentID string) error
	SubscribeProcessingRequested(ctx context.Context, handler func(context.Context, string) error) error
	SubscribeStopRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// RunLock serializes document runs across worker processes. When ok is
// false another holder owns the document and release is nil.
type RunLock interface {
	TryAcquire(ctx context.Context, documentID string) (release func(), ok bool, err error)
}

// ProcessingObserver receives run events as they happen.
type ProcessingObserver interface {
	RunStarted(documentID string)
	PageFinished(documentID string, pageNumber int, status domain.PageStatus, elapsed time.Duration)
	RunFinished(documentID string, status domain.DocumentStatus, elapsed time.Duration)
}
