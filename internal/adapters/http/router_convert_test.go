package httpadapter

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/docuclean/internal/config"
)

func TestConvertAcceptsRawBody(t *testing.T) {
	fake := &documentsFake{}
	handler := newTestHandler(config.Config{}, fake)

	req := httptest.NewRequest(http.MethodPost, "/v1/convert/md-to-epub?name=notes.md", strings.NewReader("# Notes"))
	req.Header.Set("Content-Type", "text/markdown")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if fake.convertName != "notes.md" || fake.convertSrc != "# Notes" {
		t.Fatalf("unexpected conversion input: %q %q", fake.convertName, fake.convertSrc)
	}
	if res.Header().Get("Content-Type") != "application/epub+zip" {
		t.Fatalf("unexpected content type %q", res.Header().Get("Content-Type"))
	}
}

func TestConvertAcceptsMultipartFile(t *testing.T) {
	fake := &documentsFake{}
	handler := newTestHandler(config.Config{}, fake)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "report.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("[Page 1]\nhello"))
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/convert/txt-to-pdf", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if fake.convertName != "report.txt" || fake.convertSrc != "[Page 1]\nhello" {
		t.Fatalf("unexpected conversion input: %q %q", fake.convertName, fake.convertSrc)
	}
}

func TestConvertRejectsOversizedBody(t *testing.T) {
	handler := newTestHandler(config.Config{UploadMaxBytes: 4}, &documentsFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/convert/txt-to-pdf", strings.NewReader("far too long"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}
