package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/docuclean/internal/core/domain"
	"github.com/kirillkom/docuclean/internal/core/render"
)

type ConvertUseCase struct {
	epub render.EPUBOptions
}

func NewConvertUseCase(epub render.EPUBOptions) *ConvertUseCase {
	return &ConvertUseCase{epub: epub}
}

func (uc *ConvertUseCase) MarkdownToEPUB(_ context.Context, name string, source []byte) (*domain.Artifact, error) {
	if err := validateSource("convert markdown", source); err != nil {
		return nil, err
	}
	title := titleFromName(name)
	body, err := render.EPUB(render.FromMarkdown(source), title, uc.epub)
	if err != nil {
		return nil, fmt.Errorf("render epub: %w", err)
	}
	return &domain.Artifact{
		Filename:  render.FormatEPUB.Filename(title),
		MediaType: render.FormatEPUB.MediaType(),
		Body:      body,
	}, nil
}

// TextToPDF accepts plain text or simple HTML markup.
func (uc *ConvertUseCase) TextToPDF(_ context.Context, name string, source []byte) (*domain.Artifact, error) {
	if err := validateSource("convert text", source); err != nil {
		return nil, err
	}

	content := string(source)
	var paragraphs []render.Paragraph
	if render.LooksLikeHTML(content) {
		parsed, err := render.FromHTML(bytes.NewReader(source))
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "convert text", err)
		}
		paragraphs = parsed
	} else {
		paragraphs = render.FromPlainText(content)
	}

	title := titleFromName(name)
	body, err := render.PDF(paragraphs, title)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return &domain.Artifact{
		Filename:  render.FormatPDF.Filename(title),
		MediaType: render.FormatPDF.MediaType(),
		Body:      body,
	}, nil
}

func validateSource(operation string, source []byte) error {
	if len(bytes.TrimSpace(source)) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, operation, errors.New("empty input"))
	}
	if !utf8.Valid(source) {
		return domain.WrapError(domain.ErrInvalidInput, operation, errors.New("input is not valid UTF-8"))
	}
	return nil
}

func titleFromName(name string) string {
	base := strings.TrimSpace(filepath.Base(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		return "document"
	}
	return base
}
