package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kirillkom/docuclean/internal/core/domain"
	"github.com/kirillkom/docuclean/internal/core/ports"
)

// ProcessOptions tunes a ProcessDocumentUseCase. Without a RunLock the
// one-run-per-document guard only covers the current process.
type ProcessOptions struct {
	RunLock ports.RunLock
}

// ProcessDocumentUseCase drives recognition of every page of a document.
// Pages are handled one at a time in page-number order and each outcome is
// persisted before the next page starts. Transient metadata read failures
// are expected to be retried by the injected repository.
type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	images     ports.PageImageStore
	recognizer ports.PageRecognizer
	observer   ports.ProcessingObserver
	lock       ports.RunLock

	runs *runRegistry
	wg   sync.WaitGroup
	now  func() time.Time
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	images ports.PageImageStore,
	recognizer ports.PageRecognizer,
	observer ports.ProcessingObserver,
	opts ProcessOptions,
) *ProcessDocumentUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	lock := opts.RunLock
	if lock == nil {
		lock = processLocalLock{}
	}
	return &ProcessDocumentUseCase{
		repo:       repo,
		images:     images,
		recognizer: recognizer,
		observer:   observer,
		lock:       lock,
		runs:       newRunRegistry(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start launches Run in the background.
func (uc *ProcessDocumentUseCase) Start(ctx context.Context, documentID string) {
	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		if err := uc.Run(ctx, documentID); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("run_failed", "document_id", documentID, "error", err)
		}
	}()
}

// Wait blocks until every run launched by Start has returned.
func (uc *ProcessDocumentUseCase) Wait() {
	uc.wg.Wait()
}

// Run processes the document synchronously. A second call for a document
// that already has an active run, in this process or in any worker sharing
// the run lock, returns nil without doing anything.
func (uc *ProcessDocumentUseCase) Run(ctx context.Context, documentID string) error {
	handle, ok := uc.runs.acquire(documentID)
	if !ok {
		slog.Info("run_skipped_active", "document_id", documentID)
		return nil
	}
	defer uc.runs.release(documentID, handle)

	unlock, locked, err := uc.lock.TryAcquire(ctx, documentID)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		slog.Info("run_skipped_locked", "document_id", documentID)
		return nil
	}
	defer unlock()

	started := time.Now()
	uc.observer.RunStarted(documentID)
	slog.Info("run_started", "document_id", documentID)

	status, err := uc.run(ctx, documentID, handle)
	elapsed := time.Since(started)
	if err != nil {
		if ctx.Err() != nil {
			// Left in processing; the next worker start resumes it.
			slog.Warn("run_interrupted", "document_id", documentID, "error", err)
			uc.observer.RunFinished(documentID, domain.StatusProcessing, elapsed)
			return err
		}
		if failErr := uc.markFailed(context.WithoutCancel(ctx), documentID); failErr != nil {
			slog.Error("mark_failed_error", "document_id", documentID, "error", failErr)
			err = fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		uc.observer.RunFinished(documentID, domain.StatusError, elapsed)
		return err
	}

	slog.Info("run_finished",
		"document_id", documentID,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
	)
	uc.observer.RunFinished(documentID, status, elapsed)
	return nil
}

func (uc *ProcessDocumentUseCase) run(ctx context.Context, documentID string, handle *runHandle) (domain.DocumentStatus, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("fetch document by id: %w", err)
	}

	if doc.Status != domain.StatusProcessing {
		doc.Status = domain.StatusProcessing
		if err := uc.save(ctx, doc); err != nil {
			return "", fmt.Errorf("set status=processing: %w", err)
		}
	}

	for position, index := range pageOrder(doc.Pages) {
		if handle.stopped() {
			slog.Info("run_stopped", "document_id", documentID, "next_page", doc.Pages[index].PageNumber)
			break
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := &doc.Pages[index]
		if page.Status == domain.PageStatusCompleted {
			continue
		}

		pageStarted := time.Now()
		blocks, err := uc.recognize(ctx, doc.ID, page.PageNumber, doc.ProcessingConfig)
		if err != nil && ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err != nil {
			page.Status = domain.PageStatusError
			slog.Warn("page_failed", "document_id", documentID, "page", page.PageNumber, "error", err)
		} else {
			page.Blocks = blocks
			page.Status = domain.PageStatusCompleted
		}
		doc.ProcessedPages = advanceProcessed(doc.ProcessedPages, position+1, doc.TotalPages)

		if err := uc.save(ctx, doc); err != nil {
			return "", fmt.Errorf("persist page %d: %w", page.PageNumber, err)
		}

		elapsed := time.Since(pageStarted)
		uc.observer.PageFinished(documentID, page.PageNumber, page.Status, elapsed)
		slog.Info("page_processed",
			"document_id", documentID,
			"page", page.PageNumber,
			"status", page.Status,
			"blocks", len(page.Blocks),
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	doc.Status = doc.AggregateStatus()
	if err := uc.save(ctx, doc); err != nil {
		return "", fmt.Errorf("set final status: %w", err)
	}
	return doc.Status, nil
}

// Stop asks the active run to halt after its current page. It reports
// whether a run was active.
func (uc *ProcessDocumentUseCase) Stop(documentID string) bool {
	stopped := uc.runs.requestStop(documentID)
	slog.Info("run_stop_requested", "document_id", documentID, "active", stopped)
	return stopped
}

// ResumeInterrupted starts runs for documents left in processing by a
// previous process.
func (uc *ProcessDocumentUseCase) ResumeInterrupted(ctx context.Context) (int, error) {
	docs, err := uc.repo.ListByStatus(ctx, domain.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("list interrupted documents: %w", err)
	}
	for _, doc := range docs {
		slog.Info("run_resumed", "document_id", doc.ID, "processed_pages", doc.ProcessedPages)
		uc.Start(ctx, doc.ID)
	}
	return len(docs), nil
}

// ReprocessPage re-runs recognition for one page using the document's
// configuration, optionally overridden. A failed call leaves the stored
// document untouched.
func (uc *ProcessDocumentUseCase) ReprocessPage(
	ctx context.Context,
	documentID string,
	pageIndex int,
	override *domain.ProcessingConfig,
) ([]domain.TextBlock, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	page, ok := doc.Page(pageIndex)
	if !ok {
		return nil, pageNotFound("reprocess page", pageIndex)
	}

	cfg := mergeConfig(doc.ProcessingConfig, override)
	blocks, err := uc.recognize(ctx, doc.ID, page.PageNumber, cfg)
	if err != nil {
		return nil, fmt.Errorf("reprocess page %d: %w", page.PageNumber, err)
	}

	// Reload so a concurrent run's progress since the first read is kept.
	fresh, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("reload document: %w", err)
	}
	freshPage, ok := fresh.Page(pageIndex)
	if !ok {
		return nil, pageNotFound("reprocess page", pageIndex)
	}
	freshPage.Blocks = blocks
	freshPage.Status = domain.PageStatusCompleted
	if fresh.Status == domain.StatusError {
		fresh.Status = domain.StatusReady
	}
	if err := uc.save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("persist reprocessed page: %w", err)
	}

	slog.Info("page_reprocessed", "document_id", documentID, "page", freshPage.PageNumber, "blocks", len(blocks))
	return blocks, nil
}

func (uc *ProcessDocumentUseCase) recognize(
	ctx context.Context,
	documentID string,
	pageNumber int,
	cfg domain.ProcessingConfig,
) ([]domain.TextBlock, error) {
	image, err := uc.images.ReadPageImage(ctx, documentID, pageNumber)
	if err != nil {
		return nil, fmt.Errorf("read page image: %w", err)
	}
	blocks, err := uc.recognizer.Recognize(ctx, *image, cfg)
	if err != nil {
		return nil, fmt.Errorf("recognize page: %w", err)
	}
	if blocks == nil {
		blocks = []domain.TextBlock{}
	}
	return blocks, nil
}

func (uc *ProcessDocumentUseCase) save(ctx context.Context, doc *domain.Document) error {
	doc.UpdatedAt = uc.now()
	return uc.repo.Save(ctx, doc)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("reload document: %w", err)
	}
	doc.Status = domain.StatusError
	return uc.save(ctx, doc)
}

// pageOrder returns indexes into pages sorted by page number.
func pageOrder(pages []domain.Page) []int {
	order := make([]int, len(pages))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(pages[a].PageNumber, pages[b].PageNumber)
	})
	return order
}

func advanceProcessed(current, attempted, total int) int {
	next := max(current, attempted)
	if total > 0 {
		next = min(next, total)
	}
	return next
}

func mergeConfig(base domain.ProcessingConfig, override *domain.ProcessingConfig) domain.ProcessingConfig {
	if override == nil {
		return base
	}
	merged := *override
	if merged.Model == "" {
		merged.Model = base.Model
	}
	if merged.Mode == "" {
		merged.Mode = base.Mode
	}
	return merged
}

func pageNotFound(operation string, pageIndex int) error {
	return domain.WrapError(domain.ErrPageNotFound, operation, fmt.Errorf("page index %d out of range", pageIndex))
}

type processLocalLock struct{}

func (processLocalLock) TryAcquire(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}

type noopObserver struct{}

func (noopObserver) RunStarted(string) {}

func (noopObserver) PageFinished(string, int, domain.PageStatus, time.Duration) {}

func (noopObserver) RunFinished(string, domain.DocumentStatus, time.Duration) {}
