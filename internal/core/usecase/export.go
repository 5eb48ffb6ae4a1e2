package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/docuclean/internal/core/domain"
	"github.com/kirillkom/docuclean/internal/core/ports"
	"github.com/kirillkom/docuclean/internal/core/reconstruct"
	"github.com/kirillkom/docuclean/internal/core/render"
)

// ExportUseCase serves reconstructed text. The editor view prefers the
// user's saved text while file exports are always rebuilt from the blocks
// with the requested labels.
type ExportUseCase struct {
	repo          ports.DocumentRepository
	defaultLabels domain.LabelSet
	epub          render.EPUBOptions
}

func NewExportUseCase(repo ports.DocumentRepository, defaultLabels domain.LabelSet, epub render.EPUBOptions) *ExportUseCase {
	if defaultLabels == nil {
		defaultLabels = domain.DefaultLabelSet()
	}
	return &ExportUseCase{
		repo:          repo,
		defaultLabels: defaultLabels,
		epub:          epub,
	}
}

// DisplayText returns the saved edit when there is one, otherwise the
// reconstruction. A nil label set means the configured default.
func (uc *ExportUseCase) DisplayText(ctx context.Context, id string, labels domain.LabelSet) (string, error) {
	doc, err := uc.load(ctx, id)
	if err != nil {
		return "", err
	}
	if doc.SavedText != nil {
		return *doc.SavedText, nil
	}
	return reconstruct.Text(doc.Pages, uc.labels(labels)), nil
}

func (uc *ExportUseCase) SaveText(ctx context.Context, id, text string) error {
	doc, err := uc.load(ctx, id)
	if err != nil {
		return err
	}
	doc.SavedText = &text
	doc.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Save(ctx, doc); err != nil {
		return fmt.Errorf("save edited text: %w", err)
	}
	return nil
}

func (uc *ExportUseCase) Export(ctx context.Context, id, format string, labels domain.LabelSet) (*domain.Artifact, error) {
	target, err := render.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	doc, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}

	text := reconstruct.Text(doc.Pages, uc.labels(labels))
	var body []byte
	switch target {
	case render.FormatMarkdown:
		body = render.Markdown(text)
	case render.FormatText:
		body = render.PlainText(text)
	case render.FormatHTML:
		body = render.HTML(text, doc.Name)
	case render.FormatEPUB:
		body, err = render.EPUB(text, doc.Name, uc.epub)
	case render.FormatPDF:
		body, err = render.PDFFromText(text, doc.Name)
	case render.FormatXLSX:
		body, err = render.BlockInventory(doc.Pages)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", target, err)
	}

	return &domain.Artifact{
		Filename:  target.Filename(doc.Name),
		MediaType: target.MediaType(),
		Body:      body,
	}, nil
}

// PageMarkdown is the decorated single-page review view.
func (uc *ExportUseCase) PageMarkdown(ctx context.Context, id string, pageIndex int) (string, error) {
	doc, err := uc.load(ctx, id)
	if err != nil {
		return "", err
	}
	page, ok := doc.Page(pageIndex)
	if !ok {
		return "", pageNotFound("page markdown", pageIndex)
	}
	return reconstruct.DecoratedMarkdown(page.Blocks), nil
}

func (uc *ExportUseCase) load(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ExportUseCase) labels(requested domain.LabelSet) domain.LabelSet {
	if requested == nil {
		return uc.defaultLabels
	}
	return requested
}
