package render

import "strings"

// Markdown returns the reconstructed text unchanged.
func Markdown(text string) []byte {
	return []byte(text)
}

// PlainText drops the heading marker and keeps the paragraph layout.
func PlainText(text string) []byte {
	paragraphs := SplitParagraphs(text)
	parts := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		parts = append(parts, p.Text)
	}
	return []byte(strings.Join(parts, "\n\n"))
}
