package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/docuclean/internal/core/domain"
	"github.com/kirillkom/docuclean/internal/core/ports"
)

// DocumentRepository retries document reads of the wrapped repository.
// A worker can receive a processing request before the uploader's record is
// visible, so a missing document is retried too. Writes pass through.
type DocumentRepository struct {
	ports.DocumentRepository
	executor *Executor
}

func NewDocumentRepository(next ports.DocumentRepository, policy RetryPolicy) *DocumentRepository {
	return &DocumentRepository{
		DocumentRepository: next,
		executor:           NewExecutor(Config{Retry: policy}),
	}
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return Do(ctx, r.executor, "metadata.get_document", func(ctx context.Context) (*domain.Document, error) {
		return r.DocumentRepository.GetByID(ctx, id)
	}, classifyMetadataReadError)
}

func classifyMetadataReadError(err error) ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{}
	}
	return ErrorClassification{Retryable: true}
}
