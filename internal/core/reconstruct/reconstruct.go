package reconstruct

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

// HeadingPrefix marks a heading paragraph in reconstructed text.
const HeadingPrefix = "# "

var excessNewlinesRe = regexp.MustCompile(`\n{3,}`)

// Text rebuilds continuous text from pages. Paragraphs are separated by a
// blank line and TITLE blocks become "# " headings.
func Text(pages []domain.Page, labels domain.LabelSet) string {
	ordered := slices.Clone(pages)
	slices.SortStableFunc(ordered, func(a, b domain.Page) int {
		return cmp.Compare(a.PageNumber, b.PageNumber)
	})

	include := LabelFilter(labels)
	var sb strings.Builder
	for _, page := range ordered {
		for _, block := range ReadingOrder(page.Blocks) {
			if !include(block) {
				continue
			}
			text := NormalizeBlock(block.Text)
			if text == "" {
				continue
			}
			if block.Label == domain.LabelTitle {
				sb.WriteString("\n\n")
				sb.WriteString(HeadingPrefix)
				sb.WriteString(text)
				sb.WriteString("\n\n")
				continue
			}
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	}

	return strings.TrimSpace(excessNewlinesRe.ReplaceAllString(sb.String(), "\n\n"))
}

// PageText runs the same reconstruction over a single page.
func PageText(page domain.Page, labels domain.LabelSet) string {
	return Text([]domain.Page{page}, labels)
}

// DecoratedMarkdown renders blocks in recognizer order with a per-label
// decoration. It is the per-page review view and ignores label filters.
func DecoratedMarkdown(blocks []domain.TextBlock) string {
	var sb strings.Builder
	for _, block := range blocks {
		switch block.Label {
		case domain.LabelTitle:
			sb.WriteString(HeadingPrefix + block.Text)
		case domain.LabelHeader, domain.LabelFooter:
			sb.WriteString("_" + block.Text + "_")
		case domain.LabelCaption:
			sb.WriteString("*" + block.Text + "*")
		case domain.LabelFootnote:
			sb.WriteString("^ " + block.Text)
		default:
			sb.WriteString(block.Text)
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}
