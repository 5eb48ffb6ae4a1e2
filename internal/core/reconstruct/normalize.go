package reconstruct

import (
	"regexp"
	"strings"
)

var (
	// A hyphen at a line end, optionally followed by indentation on the
	// continuation line.
	hyphenBreakRe    = regexp.MustCompile(`-\s*[\r\n]+\s*`)
	paragraphBreakRe = regexp.MustCompile(`(?:\r\n|\n|\r){2,}`)
	lineBreakRe      = regexp.MustCompile(`[\r\n]+`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// NormalizeBlock cleans the raw text of one block: it rejoins words split by
// a line-break hyphen, unwraps intra-paragraph line breaks and collapses
// whitespace, keeping blank-line paragraph boundaries as "\n\n".
func NormalizeBlock(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	cleaned := hyphenBreakRe.ReplaceAllString(text, "")

	paragraphs := paragraphBreakRe.Split(cleaned, -1)
	out := make([]string, 0, len(paragraphs))
	for _, paragraph := range paragraphs {
		paragraph = lineBreakRe.ReplaceAllString(paragraph, " ")
		paragraph = strings.TrimSpace(whitespaceRe.ReplaceAllString(paragraph, " "))
		if paragraph == "" {
			continue
		}
		out = append(out, paragraph)
	}
	return strings.Join(out, "\n\n")
}
