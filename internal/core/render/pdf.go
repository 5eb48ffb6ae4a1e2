package render

import (
	"bytes"
	"fmt"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

const (
	pdfMargin     = 18.0
	pdfFont       = "Times"
	pdfBodySize   = 11.0
	pdfHeadSize   = 14.0
	pdfTitleSize  = 18.0
	pdfBodyHeight = 5.5
)

// PDF lays paragraphs out on A4 pages with the core Times font. Text is
// encoded to cp1252 and runes outside it become '?'.
func PDF(paragraphs []Paragraph, title string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	doc.SetAutoPageBreak(true, pdfMargin)
	doc.SetTitle(title, true)
	doc.SetCreator(DefaultEPUBCreator, true)
	doc.AddPage()

	if strings.TrimSpace(title) != "" {
		doc.SetFont(pdfFont, "B", pdfTitleSize)
		doc.MultiCell(0, 9, toCP1252(title), "", "C", false)
		doc.Ln(4)
	}

	breakPending := false
	for _, p := range paragraphs {
		if p.Kind == KindPageBreak {
			breakPending = true
			continue
		}
		if breakPending {
			doc.AddPage()
			breakPending = false
		}
		switch p.Kind {
		case KindHeading:
			doc.SetFont(pdfFont, "B", pdfHeadSize)
			doc.MultiCell(0, 7, toCP1252(p.Text), "", "L", false)
			doc.Ln(2)
		default:
			doc.SetFont(pdfFont, "", pdfBodySize)
			doc.MultiCell(0, pdfBodyHeight, toCP1252(p.Text), "", "J", false)
			doc.Ln(3)
		}
	}

	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("layout pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// PDFFromText renders reconstructed text.
func PDFFromText(text, title string) ([]byte, error) {
	return PDF(SplitParagraphs(text), title)
}

func toCP1252(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return string(out)
}
