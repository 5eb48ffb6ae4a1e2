package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docuclean/internal/core/domain"
	"github.com/kirillkom/docuclean/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo         ports.DocumentRepository
	images       ports.PageImageStore
	queue        ports.MessageQueue
	defaultModel string
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	images ports.PageImageStore,
	queue ports.MessageQueue,
	defaultModel string,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:         repo,
		images:       images,
		queue:        queue,
		defaultModel: defaultModel,
	}
}

// Upload stores the page images, creates the document record and, when
// requested, schedules processing.
func (uc *IngestDocumentUseCase) Upload(ctx context.Context, req domain.UploadRequest) (*domain.Document, error) {
	if len(req.Pages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("no pages"))
	}
	for i, page := range req.Pages {
		if !strings.HasPrefix(page.MimeType, "image/") {
			return nil, domain.WrapError(
				domain.ErrInvalidInput,
				"upload document",
				fmt.Errorf("page %d has unsupported type %q", i+1, page.MimeType),
			)
		}
	}
	cfg, err := uc.normalizeConfig(req.Config)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:               uuid.NewString(),
		Name:             documentName(req),
		ParentID:         req.ParentID,
		Status:           domain.StatusUploading,
		ProcessingConfig: cfg,
		TotalPages:       len(req.Pages),
		Pages:            make([]domain.Page, len(req.Pages)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for i := range doc.Pages {
		doc.Pages[i] = domain.Page{PageNumber: i + 1, Status: domain.PageStatusPending, Blocks: []domain.TextBlock{}}
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	for i, page := range req.Pages {
		source, err := uc.images.SavePageImage(ctx, doc.ID, i+1, page.MimeType, page.Body)
		if err != nil {
			uc.abortUpload(ctx, doc)
			return nil, fmt.Errorf("save page %d image: %w", i+1, err)
		}
		doc.Pages[i].ImageSource = source
	}

	doc.Status = domain.StatusReady
	if req.StartProcessing {
		doc.Status = domain.StatusProcessing
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document metadata: %w", err)
	}

	if req.StartProcessing {
		if err := uc.queue.PublishProcessingRequested(ctx, doc.ID); err != nil {
			uc.restoreStatus(ctx, doc, domain.StatusReady)
			return nil, fmt.Errorf("publish processing request: %w", err)
		}
	}

	slog.Info("document_uploaded", "document_id", doc.ID, "pages", doc.TotalPages, "status", doc.Status)
	return doc, nil
}

// RequestProcessing marks the document as processing and hands it to the
// workers. Completed pages are skipped by the run.
func (uc *IngestDocumentUseCase) RequestProcessing(ctx context.Context, id string) error {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.Status == domain.StatusUploading {
		return domain.WrapError(domain.ErrInvalidInput, "request processing", errors.New("upload still in progress"))
	}
	previous := doc.Status
	if previous != domain.StatusProcessing {
		doc.Status = domain.StatusProcessing
		doc.UpdatedAt = time.Now().UTC()
		if err := uc.repo.Save(ctx, doc); err != nil {
			return fmt.Errorf("set status=processing: %w", err)
		}
	}
	if err := uc.queue.PublishProcessingRequested(ctx, id); err != nil {
		if previous != domain.StatusProcessing {
			uc.restoreStatus(ctx, doc, previous)
		}
		return fmt.Errorf("publish processing request: %w", err)
	}
	return nil
}

func (uc *IngestDocumentUseCase) RequestStop(ctx context.Context, id string) error {
	if _, err := uc.repo.GetByID(ctx, id); err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if err := uc.queue.PublishStopRequested(ctx, id); err != nil {
		return fmt.Errorf("publish stop request: %w", err)
	}
	return nil
}

// Delete removes the document record and its page images. Any active run is
// asked to stop first.
func (uc *IngestDocumentUseCase) Delete(ctx context.Context, id string) error {
	if err := uc.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document metadata: %w", err)
	}
	if err := uc.queue.PublishStopRequested(ctx, id); err != nil {
		slog.Warn("stop_publish_failed", "document_id", id, "error", err)
	}
	if err := uc.images.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete page images: %w", err)
	}
	slog.Info("document_deleted", "document_id", id)
	return nil
}

func (uc *IngestDocumentUseCase) normalizeConfig(cfg domain.ProcessingConfig) (domain.ProcessingConfig, error) {
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = uc.defaultModel
	}
	cfg.TargetLanguage = strings.TrimSpace(cfg.TargetLanguage)
	cfg.CustomPrompt = strings.TrimSpace(cfg.CustomPrompt)

	switch cfg.Mode {
	case "":
		cfg.Mode = domain.ModeOCR
	case domain.ModeOCR, domain.ModeTranslation, domain.ModeManual:
	default:
		return cfg, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("unknown processing mode %q", cfg.Mode))
	}
	if cfg.Mode == domain.ModeTranslation && cfg.TargetLanguage == "" {
		return cfg, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("translation requires a target language"))
	}
	return cfg, nil
}

func (uc *IngestDocumentUseCase) abortUpload(ctx context.Context, doc *domain.Document) {
	ctx = context.WithoutCancel(ctx)
	doc.Status = domain.StatusError
	doc.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Save(ctx, doc); err != nil {
		slog.Error("mark_failed_error", "document_id", doc.ID, "error", err)
	}
}

// restoreStatus undoes a processing status no worker will pick up because
// the request was never published.
func (uc *IngestDocumentUseCase) restoreStatus(ctx context.Context, doc *domain.Document, status domain.DocumentStatus) {
	doc.Status = status
	doc.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Save(context.WithoutCancel(ctx), doc); err != nil {
		slog.Error("restore_status_error", "document_id", doc.ID, "status", status, "error", err)
	}
}

func documentName(req domain.UploadRequest) string {
	if name := strings.TrimSpace(req.Name); name != "" {
		return name
	}
	if base := filepath.Base(req.Pages[0].Filename); base != "." && base != "/" {
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return "Untitled"
}
