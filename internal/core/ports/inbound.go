package ports

import (
	"context"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

// DocumentIngestor creates, removes and schedules documents.
type DocumentIngestor interface {
	Upload(ctx context.Context, req domain.UploadRequest) (*domain.Document, error)
	Delete(ctx context.Context, id string) error
	RequestProcessing(ctx context.Context, id string) error
	RequestStop(ctx context.Context, id string) error
}

// DocumentReader is the read model for document state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Progress(ctx context.Context, id string) (*domain.Progress, error)
}

// DocumentProcessor drives page recognition for whole documents. Start
// launches a run in the background and Wait blocks until every started run
// has returned.
type DocumentProcessor interface {
	PageReprocessor
	Run(ctx context.Context, documentID string) error
	Start(ctx context.Context, documentID string)
	Stop(documentID string) bool
	Wait()
	ResumeInterrupted(ctx context.Context) (int, error)
}

// PageReprocessor re-runs recognition for a single page.
type PageReprocessor interface {
	ReprocessPage(ctx context.Context, documentID string, pageIndex int, override *domain.ProcessingConfig) ([]domain.TextBlock, error)
}

// DocumentExporter serves reconstructed text and export artifacts.
type DocumentExporter interface {
	DisplayText(ctx context.Context, id string, labels domain.LabelSet) (string, error)
	SaveText(ctx context.Context, id, text string) error
	Export(ctx context.Context, id, format string, labels domain.LabelSet) (*domain.Artifact, error)
	PageMarkdown(ctx context.Context, id string, pageIndex int) (string, error)
}

// FormatConverter turns standalone uploads into e-book or print formats.
type FormatConverter interface {
	MarkdownToEPUB(ctx context.Context, name string, source []byte) (*domain.Artifact, error)
	TextToPDF(ctx context.Context, name string, source []byte) (*domain.Artifact, error)
}
