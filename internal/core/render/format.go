package render

import (
	"fmt"
	"strings"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

// Format names an export target by its file extension.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatHTML     Format = "html"
	FormatEPUB     Format = "epub"
	FormatPDF      Format = "pdf"
	FormatXLSX     Format = "xlsx"
)

var formats = map[Format]string{
	FormatMarkdown: "text/markdown; charset=utf-8",
	FormatText:     "text/plain; charset=utf-8",
	FormatHTML:     "text/html; charset=utf-8",
	FormatEPUB:     "application/epub+zip",
	FormatPDF:      "application/pdf",
	FormatXLSX:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ParseFormat resolves a requested format name. Empty means Markdown.
func ParseFormat(raw string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch name {
	case "", "markdown":
		return FormatMarkdown, nil
	case "text", "plain":
		return FormatText, nil
	}
	format := Format(name)
	if _, ok := formats[format]; !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "parse format", fmt.Errorf("unsupported format %q", raw))
	}
	return format, nil
}

// MediaType is the Content-Type served for the format.
func (f Format) MediaType() string {
	return formats[f]
}

// Filename builds a download name from the document name.
func (f Format) Filename(name string) string {
	base := strings.TrimSpace(name)
	if base == "" {
		base = "document"
	}
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}
	return base + "." + string(f)
}
