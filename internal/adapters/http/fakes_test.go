package httpadapter

import (
	"context"
	"io"
	"net/http"

	"github.com/kirillkom/docuclean/internal/config"
	"github.com/kirillkom/docuclean/internal/core/domain"
)

type uploadedPage struct {
	filename string
	mimeType string
	body     string
}

// documentsFake implements every inbound port the router needs.
type documentsFake struct {
	err error

	uploadReq   domain.UploadRequest
	uploaded    []uploadedPage
	deleted     string
	processing  string
	stopped     string
	override    *domain.ProcessingConfig
	savedText   string
	labels      domain.LabelSet
	labelsGiven bool
	format      string
	convertName string
	convertSrc  string
}

func (f *documentsFake) Upload(_ context.Context, req domain.UploadRequest) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.uploadReq = req
	for _, page := range req.Pages {
		raw, err := io.ReadAll(page.Body)
		if err != nil {
			return nil, err
		}
		f.uploaded = append(f.uploaded, uploadedPage{filename: page.Filename, mimeType: page.MimeType, body: string(raw)})
	}
	return &domain.Document{ID: "doc-1", Name: req.Name, Status: domain.StatusProcessing, TotalPages: len(req.Pages)}, nil
}

func (f *documentsFake) Delete(_ context.Context, id string) error {
	f.deleted = id
	return f.err
}

func (f *documentsFake) RequestProcessing(_ context.Context, id string) error {
	f.processing = id
	return f.err
}

func (f *documentsFake) RequestStop(_ context.Context, id string) error {
	f.stopped = id
	return f.err
}

func (f *documentsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, Name: "Scan", Status: domain.StatusReady}, nil
}

func (f *documentsFake) Progress(_ context.Context, id string) (*domain.Progress, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Progress{DocumentID: id, Status: domain.StatusProcessing, TotalPages: 3, ProcessedPages: 1, Running: true}, nil
}

func (f *documentsFake) ReprocessPage(_ context.Context, _ string, _ int, override *domain.ProcessingConfig) ([]domain.TextBlock, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.override = override
	return []domain.TextBlock{{ID: "b1", Text: "again", Label: domain.LabelMainText}}, nil
}

func (f *documentsFake) DisplayText(_ context.Context, _ string, labels domain.LabelSet) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.labels, f.labelsGiven = labels, labels != nil
	return "# Title\n\nBody", nil
}

func (f *documentsFake) SaveText(_ context.Context, _ string, text string) error {
	f.savedText = text
	return f.err
}

func (f *documentsFake) Export(_ context.Context, _ string, format string, labels domain.LabelSet) (*domain.Artifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.format, f.labels = format, labels
	return &domain.Artifact{Filename: "Scan.html", MediaType: "text/html; charset=utf-8", Body: []byte("<html></html>")}, nil
}

func (f *documentsFake) PageMarkdown(context.Context, string, int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "# Title\n\n_Header_\n\n", nil
}

func (f *documentsFake) MarkdownToEPUB(_ context.Context, name string, source []byte) (*domain.Artifact, error) {
	return f.convertResult(name, source, "book.epub", "application/epub+zip")
}

func (f *documentsFake) TextToPDF(_ context.Context, name string, source []byte) (*domain.Artifact, error) {
	return f.convertResult(name, source, "book.pdf", "application/pdf")
}

func (f *documentsFake) convertResult(name string, source []byte, filename, mediaType string) (*domain.Artifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.convertName, f.convertSrc = name, string(source)
	return &domain.Artifact{Filename: filename, MediaType: mediaType, Body: []byte("converted")}, nil
}

func newTestHandler(cfg config.Config, fake *documentsFake) http.Handler {
	return NewRouter(cfg, Services{
		Ingestor:    fake,
		Reader:      fake,
		Reprocessor: fake,
		Exporter:    fake,
		Converter:   fake,
	}).Handler()
}
