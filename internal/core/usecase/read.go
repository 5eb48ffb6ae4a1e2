package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/docuclean/internal/core/domain"
	"github.com/kirillkom/docuclean/internal/core/ports"
)

type ReadDocumentUseCase struct {
	repo ports.DocumentRepository
}

func NewReadDocumentUseCase(repo ports.DocumentRepository) *ReadDocumentUseCase {
	return &ReadDocumentUseCase{repo: repo}
}

func (uc *ReadDocumentUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ReadDocumentUseCase) Progress(ctx context.Context, id string) (*domain.Progress, error) {
	doc, err := uc.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Runs live in the workers, so the stored status is the only signal here.
	progress := doc.Progress(doc.Status == domain.StatusProcessing)
	return &progress, nil
}
