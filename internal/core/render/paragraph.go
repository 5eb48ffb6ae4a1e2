package render

import (
	"strings"

	"github.com/kirillkom/docuclean/internal/core/reconstruct"
)

// ParagraphKind tells renderers how to lay out a paragraph.
type ParagraphKind int

const (
	KindParagraph ParagraphKind = iota
	KindHeading
	KindPageBreak
)

// Paragraph is one blank-line separated unit of reconstructed text. Index
// is the unit's position in the raw split, empty units included, so anchors
// derived from it stay stable.
type Paragraph struct {
	Index int
	Kind  ParagraphKind
	Text  string
}

// SplitParagraphs breaks reconstructed text into units. A unit starting with
// "# " is a heading; blank units are dropped but still consume an index.
func SplitParagraphs(text string) []Paragraph {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n\n")
	out := make([]Paragraph, 0, len(parts))
	for i, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		if heading, ok := strings.CutPrefix(trimmed, reconstruct.HeadingPrefix); ok {
			out = append(out, Paragraph{Index: i, Kind: KindHeading, Text: heading})
			continue
		}
		out = append(out, Paragraph{Index: i, Kind: KindParagraph, Text: trimmed})
	}
	return out
}

// JoinParagraphs is the inverse of SplitParagraphs. Page breaks have no
// representation in the text convention and are dropped.
func JoinParagraphs(paragraphs []Paragraph) string {
	parts := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		switch p.Kind {
		case KindHeading:
			parts = append(parts, reconstruct.HeadingPrefix+text)
		case KindParagraph:
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
