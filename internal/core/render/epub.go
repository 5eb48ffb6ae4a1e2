package render

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"golang.org/x/net/html"
)

const (
	epubMimeType = "application/epub+zip"

	DefaultEPUBLanguage = "en"
	DefaultEPUBCreator  = "DocuClean AI"
)

type EPUBOptions struct {
	Language string
	Creator  string
}

func (o EPUBOptions) withDefaults() EPUBOptions {
	if strings.TrimSpace(o.Language) == "" {
		o.Language = DefaultEPUBLanguage
	}
	if strings.TrimSpace(o.Creator) == "" {
		o.Creator = DefaultEPUBCreator
	}
	return o
}

const containerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
   <rootfiles>
      <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
   </rootfiles>
</container>`

// EPUB packs reconstructed text into an EPUB 2 container with one XHTML
// body and an NCX navigation map built from the headings. Each call gets a
// fresh book identifier.
func EPUB(text, title string, opts EPUBOptions) ([]byte, error) {
	opts = opts.withDefaults()
	bookID := "urn:uuid:" + uuid.NewString()
	safeTitle := xmlText(title)

	var body, nav strings.Builder
	playOrder := 1
	for _, p := range SplitParagraphs(text) {
		content := xmlText(p.Text)
		if p.Kind != KindHeading {
			body.WriteString("  <p>" + content + "</p>\n")
			continue
		}
		anchor := fmt.Sprintf("section-%d", p.Index)
		fmt.Fprintf(&body, "  <h2 id=\"%s\">%s</h2>\n", anchor, content)
		fmt.Fprintf(&nav, `
      <navPoint id="navPoint-%d" playOrder="%d">
        <navLabel><text>%s</text></navLabel>
        <content src="content.xhtml#%s"/>
      </navPoint>`, playOrder, playOrder, content, anchor)
		playOrder++
	}
	navMap := nav.String()
	if navMap == "" {
		navMap = `
      <navPoint id="navPoint-1" playOrder="1"><navLabel><text>Start</text></navLabel><content src="content.xhtml"/></navPoint>`
	}

	opf := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" unique-identifier="BookId" version="2.0">
   <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
      <dc:title>%s</dc:title>
      <dc:language>%s</dc:language>
      <dc:identifier id="BookId" opf:scheme="UUID">%s</dc:identifier>
      <dc:creator opf:role="aut">%s</dc:creator>
   </metadata>
   <manifest>
      <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
      <item id="content" href="content.xhtml" media-type="application/xhtml+xml"/>
   </manifest>
   <spine toc="ncx">
      <itemref idref="content"/>
   </spine>
</package>`, safeTitle, xmlText(opts.Language), bookID, xmlText(opts.Creator))

	ncx := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE ncx PUBLIC "-//NISO//DTD ncx 2005-1//EN" "http://www.daisy.org/z3986/2005/ncx-2005-1.dtd">
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
   <head>
      <meta name="dtb:uid" content="%s"/>
      <meta name="dtb:depth" content="1"/>
      <meta name="dtb:totalPageCount" content="0"/>
      <meta name="dtb:maxPageNumber" content="0"/>
   </head>
   <docTitle><text>%s</text></docTitle>
   <navMap>%s
   </navMap>
</ncx>`, bookID, safeTitle, navMap)

	xhtml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.1//EN" "http://www.w3.org/TR/xhtml11/DTD/xhtml11.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>%s</title>
  <style type="text/css">
    body { font-family: serif; line-height: 1.5; margin: 2em; }
    h2 { font-weight: bold; margin-top: 1.5em; page-break-after: avoid; }
    p { margin-bottom: 1em; text-align: justify; }
  </style>
</head>
<body>
  <h1>%s</h1>
%s</body>
</html>`, safeTitle, safeTitle, body.String())

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := writeStored(zw, "mimetype", []byte(epubMimeType)); err != nil {
		return nil, err
	}
	entries := []struct {
		name string
		body string
	}{
		{name: "META-INF/container.xml", body: containerXML},
		{name: "OEBPS/content.opf", body: opf},
		{name: "OEBPS/toc.ncx", body: ncx},
		{name: "OEBPS/content.xhtml", body: xhtml},
	}
	for _, entry := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: entry.name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("create epub entry %s: %w", entry.name, err)
		}
		if _, err := w.Write([]byte(entry.body)); err != nil {
			return nil, fmt.Errorf("write epub entry %s: %w", entry.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close epub archive: %w", err)
	}
	return buf.Bytes(), nil
}

// xmlText escapes s as XML character data. Runes outside the XML 1.0 Char
// production, such as stray C0 controls in OCR output, are dropped.
func xmlText(s string) string {
	return html.EscapeString(strings.Map(func(r rune) rune {
		if !isXMLChar(r) {
			return -1
		}
		return r
	}, s))
}

func isXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r < 0x20:
		return false
	case r >= 0xD800 && r <= 0xDFFF, r == 0xFFFE, r == 0xFFFF:
		return false
	}
	return r <= 0x10FFFF
}

// writeStored adds an uncompressed entry with sizes in the local header, as
// readers expect for the mimetype entry.
func writeStored(zw *zip.Writer, name string, data []byte) error {
	header := &zip.FileHeader{
		Name:               name,
		Method:             zip.Store,
		CRC32:              crc32.ChecksumIEEE(data),
		CompressedSize64:   uint64(len(data)),
		UncompressedSize64: uint64(len(data)),
	}
	w, err := zw.CreateRaw(header)
	if err != nil {
		return fmt.Errorf("create epub entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write epub entry %s: %w", name, err)
	}
	return nil
}
