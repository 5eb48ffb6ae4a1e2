package render

import (
	"strings"

	"golang.org/x/net/html"
)

const htmlStyle = `    body {
      font-family: Georgia, serif;
      line-height: 1.6;
      max-width: 800px;
      margin: 0 auto;
      padding: 40px;
      color: #333;
    }
    p {
      margin-bottom: 1em;
      font-weight: normal;
    }
    h2 {
      margin-top: 2em;
      margin-bottom: 1em;
      font-weight: bold;
      color: #111;
    }
`

// HTML wraps reconstructed text in a standalone page. Block text and the
// title are escaped; output depends only on the inputs.
func HTML(text, title string) []byte {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n  <meta charset=\"UTF-8\">\n")
	sb.WriteString("  <title>" + html.EscapeString(title) + "</title>\n")
	sb.WriteString("  <style>\n" + htmlStyle + "  </style>\n</head>\n<body>\n")
	for _, p := range SplitParagraphs(text) {
		if p.Kind == KindHeading {
			sb.WriteString("  <h2>" + html.EscapeString(p.Text) + "</h2>\n")
			continue
		}
		sb.WriteString("  <p>" + html.EscapeString(p.Text) + "</p>\n")
	}
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String())
}
