package reconstruct

import (
	"strings"
	"testing"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

func block(text string, label domain.BlockLabel, ymin, xmin float64) domain.TextBlock {
	return domain.TextBlock{
		Text:  text,
		Label: label,
		Box:   domain.BoundingBox{YMin: ymin, XMin: xmin, YMax: ymin + 20, XMax: xmin + 100},
	}
}

func texts(blocks []domain.TextBlock) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Text)
	}
	return out
}

func TestReadingOrderRowBand(t *testing.T) {
	blocks := []domain.TextBlock{
		block("right", domain.LabelMainText, 110, 500),
		block("left", domain.LabelMainText, 100, 50),
		block("below", domain.LabelMainText, 121, 10),
	}

	got := texts(ReadingOrder(blocks))
	want := []string{"left", "right", "below"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected order: %v", got)
	}
	if blocks[0].Text != "right" {
		t.Fatalf("input slice must not be reordered")
	}
}

func TestReadingOrderBandBoundary(t *testing.T) {
	same := texts(ReadingOrder([]domain.TextBlock{
		block("b", domain.LabelMainText, 110, 200),
		block("a", domain.LabelMainText, 100, 100),
	}))
	if same[0] != "a" {
		t.Fatalf("y difference of 10 should compare by x, got %v", same)
	}

	split := texts(ReadingOrder([]domain.TextBlock{
		block("lower", domain.LabelMainText, 111, 100),
		block("upper", domain.LabelMainText, 100, 200),
	}))
	if split[0] != "upper" {
		t.Fatalf("y difference of 11 should compare by y, got %v", split)
	}
}

func TestReadingOrderStableWithoutBoxes(t *testing.T) {
	blocks := []domain.TextBlock{
		{Text: "first", Label: domain.LabelMainText},
		{Text: "second", Label: domain.LabelMainText},
		{Text: "third", Label: domain.LabelMainText},
	}
	got := strings.Join(texts(ReadingOrder(blocks)), ",")
	if got != "first,second,third" {
		t.Fatalf("zero boxes should keep recognizer order, got %s", got)
	}
}

func TestTextHeadingsAndParagraphs(t *testing.T) {
	pages := []domain.Page{
		{
			PageNumber: 1,
			Blocks: []domain.TextBlock{
				block("Body continues on-\nward", domain.LabelMainText, 200, 50),
				block("Chapter One", domain.LabelTitle, 50, 50),
				block("Page 1", domain.LabelFooter, 950, 50),
			},
		},
	}

	got := Text(pages, domain.DefaultLabelSet())
	want := "# Chapter One\n\nBody continues onward"
	if got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
}

func TestTextPagesInPageNumberOrder(t *testing.T) {
	pages := []domain.Page{
		{PageNumber: 2, Blocks: []domain.TextBlock{block("second page", domain.LabelMainText, 10, 10)}},
		{PageNumber: 1, Blocks: []domain.TextBlock{block("first page", domain.LabelMainText, 10, 10)}},
	}

	got := Text(pages, domain.DefaultLabelSet())
	if got != "first page\n\nsecond page" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestTextEmptyLabelSet(t *testing.T) {
	pages := []domain.Page{
		{PageNumber: 1, Blocks: []domain.TextBlock{block("anything", domain.LabelMainText, 10, 10)}},
	}
	if got := Text(pages, domain.NewLabelSet()); got != "" {
		t.Fatalf("empty allow-set should produce empty text, got %q", got)
	}
}

func TestTextMainTextOnlyDropsTitles(t *testing.T) {
	pages := []domain.Page{
		{PageNumber: 1, Blocks: []domain.TextBlock{
			block("Heading", domain.LabelTitle, 10, 10),
			block("Body", domain.LabelMainText, 40, 10),
		}},
	}
	got := Text(pages, domain.NewLabelSet(domain.LabelMainText))
	if got != "Body" {
		t.Fatalf("unexpected text: %q", got)
	}
	if strings.Contains(got, HeadingPrefix) {
		t.Fatalf("heading marker should not appear without TITLE")
	}
}

func TestTextNoTripleNewlines(t *testing.T) {
	pages := []domain.Page{
		{PageNumber: 1, Blocks: []domain.TextBlock{
			block("A", domain.LabelTitle, 10, 10),
			block("B", domain.LabelTitle, 40, 10),
			block("   ", domain.LabelMainText, 70, 10),
			block("c\n\n\n\nd", domain.LabelMainText, 100, 10),
		}},
	}
	got := Text(pages, domain.DefaultLabelSet())
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("output contains a triple newline: %q", got)
	}
	if got != "# A\n\n# B\n\nc\n\nd" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestPageTextMatchesSinglePageText(t *testing.T) {
	page := domain.Page{PageNumber: 3, Blocks: []domain.TextBlock{
		block("Only", domain.LabelMainText, 10, 10),
	}}
	if PageText(page, domain.DefaultLabelSet()) != Text([]domain.Page{page}, domain.DefaultLabelSet()) {
		t.Fatalf("page and document reconstruction disagree")
	}
}

func TestDecoratedMarkdown(t *testing.T) {
	blocks := []domain.TextBlock{
		{Text: "Title", Label: domain.LabelTitle},
		{Text: "Running head", Label: domain.LabelHeader},
		{Text: "Figure 1", Label: domain.LabelCaption},
		{Text: "1. See above", Label: domain.LabelFootnote},
		{Text: "Body", Label: domain.LabelMainText},
	}
	want := "# Title\n\n_Running head_\n\n*Figure 1*\n\n^ 1. See above\n\nBody\n\n"
	if got := DecoratedMarkdown(blocks); got != want {
		t.Fatalf("DecoratedMarkdown() = %q, want %q", got, want)
	}
}
