package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

type memRepoFake struct {
	mu        sync.Mutex
	docs      map[string]*domain.Document
	getErrs   []error
	getCalls  int
	saveCalls int
	failSave  map[int]error
	createErr error
	listErr   error
}

func newMemRepo(docs ...*domain.Document) *memRepoFake {
	repo := &memRepoFake{docs: make(map[string]*domain.Document), failSave: make(map[int]error)}
	for _, doc := range docs {
		repo.docs[doc.ID] = cloneDoc(doc)
	}
	return repo
}

func (f *memRepoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (f *memRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	return cloneDoc(doc), nil
}

func (f *memRepoFake) Save(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if err, ok := f.failSave[f.saveCalls]; ok {
		return err
	}
	if _, ok := f.docs[doc.ID]; !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "save document", errors.New(doc.ID))
	}
	f.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (f *memRepoFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", errors.New(id))
	}
	delete(f.docs, id)
	return nil
}

func (f *memRepoFake) ListByStatus(_ context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.Status == status {
			out = append(out, *cloneDoc(doc))
		}
	}
	return out, nil
}

func (f *memRepoFake) stored(id string) *domain.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil
	}
	return cloneDoc(doc)
}

func cloneDoc(doc *domain.Document) *domain.Document {
	out := *doc
	out.Pages = make([]domain.Page, len(doc.Pages))
	for i, page := range doc.Pages {
		page.Blocks = append([]domain.TextBlock(nil), page.Blocks...)
		out.Pages[i] = page
	}
	if doc.SavedText != nil {
		text := *doc.SavedText
		out.SavedText = &text
	}
	return &out
}

// imageStoreFake serves "page-N" as the image bytes of page N.
type imageStoreFake struct {
	mu      sync.Mutex
	missing map[int]bool
	saved   map[int]string
	saveErr error
	deleted []string
}

func (f *imageStoreFake) SavePageImage(_ context.Context, documentID string, pageNumber int, mimeType string, data io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	if f.saved == nil {
		f.saved = make(map[int]string)
	}
	f.saved[pageNumber] = string(raw)
	return fmt.Sprintf("%s/page_%d.%s", documentID, pageNumber, strings.TrimPrefix(mimeType, "image/")), nil
}

func (f *imageStoreFake) ReadPageImage(_ context.Context, documentID string, pageNumber int) (*domain.PageImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[pageNumber] {
		return nil, domain.WrapError(domain.ErrImageNotFound, "read page image", fmt.Errorf("%s page %d", documentID, pageNumber))
	}
	return &domain.PageImage{Data: []byte("page-" + strconv.Itoa(pageNumber)), MimeType: "image/png"}, nil
}

func (f *imageStoreFake) DeleteDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, documentID)
	return nil
}

type recognizerFake struct {
	mu      sync.Mutex
	calls   []int
	configs []domain.ProcessingConfig
	fn      func(pageNumber int) ([]domain.TextBlock, error)
}

func (f *recognizerFake) Recognize(_ context.Context, image domain.PageImage, cfg domain.ProcessingConfig) ([]domain.TextBlock, error) {
	pageNumber, _ := strconv.Atoi(strings.TrimPrefix(string(image.Data), "page-"))
	f.mu.Lock()
	f.calls = append(f.calls, pageNumber)
	f.configs = append(f.configs, cfg)
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return pageBlocks(pageNumber), nil
	}
	return fn(pageNumber)
}

func (f *recognizerFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func pageBlocks(pageNumber int) []domain.TextBlock {
	return []domain.TextBlock{{
		ID:    fmt.Sprintf("b-%d", pageNumber),
		Text:  fmt.Sprintf("text of page %d", pageNumber),
		Label: domain.LabelMainText,
	}}
}

type queueFake struct {
	mu         sync.Mutex
	processing []string
	stops      []string
	err        error
}

func (f *queueFake) PublishProcessingRequested(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.processing = append(f.processing, documentID)
	return nil
}

func (f *queueFake) PublishStopRequested(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.stops = append(f.stops, documentID)
	return nil
}

func (f *queueFake) SubscribeProcessingRequested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func (f *queueFake) SubscribeStopRequested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

// runLockFake stands in for a lock shared by several worker processes.
type runLockFake struct {
	mu     sync.Mutex
	owners map[string]bool
	err    error
}

func newRunLockFake() *runLockFake {
	return &runLockFake{owners: make(map[string]bool)}
}

func (f *runLockFake) TryAcquire(_ context.Context, documentID string) (func(), bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	if f.owners[documentID] {
		return nil, false, nil
	}
	f.owners[documentID] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.owners, documentID)
	}, true, nil
}

func (f *runLockFake) held(documentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owners[documentID]
}

type observerFake struct {
	mu       sync.Mutex
	started  int
	pages    []domain.PageStatus
	finished []domain.DocumentStatus
}

func (f *observerFake) RunStarted(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *observerFake) PageFinished(_ string, _ int, status domain.PageStatus, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, status)
}

func (f *observerFake) RunFinished(_ string, status domain.DocumentStatus, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, status)
}

func newDoc(id string, status domain.DocumentStatus, pageStatuses ...domain.PageStatus) *domain.Document {
	doc := &domain.Document{
		ID:               id,
		Name:             "Scan " + id,
		Status:           status,
		ProcessingConfig: domain.ProcessingConfig{Model: "vision", Mode: domain.ModeOCR, RemoveReferences: true},
		TotalPages:       len(pageStatuses),
	}
	for i, pageStatus := range pageStatuses {
		page := domain.Page{PageNumber: i + 1, Status: pageStatus, Blocks: []domain.TextBlock{}}
		if pageStatus == domain.PageStatusCompleted {
			page.Blocks = pageBlocks(i + 1)
			doc.ProcessedPages = i + 1
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc
}

func pageStatuses(doc *domain.Document) []domain.PageStatus {
	out := make([]domain.PageStatus, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		out = append(out, page.Status)
	}
	return out
}
