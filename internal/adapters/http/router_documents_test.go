package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/kirillkom/docuclean/internal/config"
	"github.com/kirillkom/docuclean/internal/core/domain"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartUpload(t *testing.T, fields map[string]string, pages map[string][]byte, order []string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, name := range order {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="pages"; filename="`+name+`"`)
		header.Set("Content-Type", "application/octet-stream")
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(pages[name]); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{}, &documentsFake{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUploadDocumentPassesOrderedPagesAndConfig(t *testing.T) {
	fake := &documentsFake{}
	handler := newTestHandler(config.Config{}, fake)

	body, contentType := multipartUpload(t,
		map[string]string{"name": "Scan", "processingMode": "translation", "targetLanguage": "German"},
		map[string][]byte{"b.png": pngHeader, "a.png": pngHeader},
		[]string{"b.png", "a.png"},
	)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(fake.uploaded) != 2 || fake.uploaded[0].filename != "b.png" || fake.uploaded[1].filename != "a.png" {
		t.Fatalf("expected pages in form order, got %+v", fake.uploaded)
	}
	if fake.uploaded[0].mimeType != "image/png" || fake.uploaded[0].body != string(pngHeader) {
		t.Fatalf("expected sniffed png with full body, got %+v", fake.uploaded[0])
	}
	cfg := fake.uploadReq.Config
	if cfg.Mode != domain.ModeTranslation || cfg.TargetLanguage != "German" || !cfg.RemoveReferences {
		t.Fatalf("unexpected processing config: %+v", cfg)
	}
	if !fake.uploadReq.StartProcessing {
		t.Fatalf("expected processing to start by default")
	}
}

func TestUploadDocumentRequiresPages(t *testing.T) {
	handler := newTestHandler(config.Config{}, &documentsFake{})
	body, contentType := multipartUpload(t, map[string]string{"name": "Scan"}, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadDocumentRejectsInvalidBoolean(t *testing.T) {
	handler := newTestHandler(config.Config{}, &documentsFake{})
	body, contentType := multipartUpload(t,
		map[string]string{"removeReferences": "maybe"},
		map[string][]byte{"a.png": pngHeader},
		[]string{"a.png"},
	)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not found", err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing")), status: http.StatusNotFound},
		{name: "page not found", err: domain.WrapError(domain.ErrPageNotFound, "get", errors.New("index 9")), status: http.StatusNotFound},
		{name: "invalid", err: domain.WrapError(domain.ErrInvalidInput, "get", errors.New("bad")), status: http.StatusBadRequest},
		{name: "temporary", err: domain.WrapError(domain.ErrTemporary, "get", errors.New("db down")), status: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(config.Config{}, &documentsFake{err: tc.err})
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil))
			if res.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, res.Code)
			}
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	handler := newTestHandler(config.Config{}, &documentsFake{err: errors.New("dial tcp 10.0.0.5:5432: refused")})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil))

	if strings.Contains(res.Body.String(), "10.0.0.5") {
		t.Fatalf("internal error details leaked: %s", res.Body.String())
	}
}

func TestProgressEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{}, &documentsFake{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/progress", nil))

	var progress domain.Progress
	if err := json.NewDecoder(res.Body).Decode(&progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if progress.DocumentID != "doc-1" || progress.ProcessedPages != 1 || !progress.Running {
		t.Fatalf("unexpected progress: %+v", progress)
	}
}

func TestProcessStopAndDelete(t *testing.T) {
	fake := &documentsFake{}
	handler := newTestHandler(config.Config{}, fake)

	for _, tc := range []struct {
		method string
		path   string
		status int
	}{
		{method: http.MethodPost, path: "/v1/documents/doc-1/process", status: http.StatusAccepted},
		{method: http.MethodPost, path: "/v1/documents/doc-2/stop", status: http.StatusAccepted},
		{method: http.MethodDelete, path: "/v1/documents/doc-3", status: http.StatusNoContent},
	} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(tc.method, tc.path, nil))
		if res.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, res.Code)
		}
	}
	if fake.processing != "doc-1" || fake.stopped != "doc-2" || fake.deleted != "doc-3" {
		t.Fatalf("unexpected calls: %+v", fake)
	}
}

func TestReprocessPageOverride(t *testing.T) {
	fake := &documentsFake{}
	handler := newTestHandler(config.Config{}, fake)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/pages/0/reprocess", nil))
	if res.Code != http.StatusOK || fake.override != nil {
		t.Fatalf("expected reprocess without override, got %d %+v", res.Code, fake.override)
	}

	body := strings.NewReader(`{"modelUsed":"llava","removeReferences":false}`)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/pages/2/reprocess", body))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if fake.override == nil || fake.override.Model != "llava" || fake.override.RemoveReferences {
		t.Fatalf("unexpected override: %+v", fake.override)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/pages/x/reprocess", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad index, got %d", res.Code)
	}
}

func TestTextEndpointsHandleLabels(t *testing.T) {
	fake := &documentsFake{}
	handler := newTestHandler(config.Config{}, fake)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/text", nil))
	if res.Code != http.StatusOK || fake.labelsGiven {
		t.Fatalf("expected default labels, got %d given=%v", res.Code, fake.labelsGiven)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/text?labels=TITLE,FOOTNOTE", nil))
	if !fake.labels.Contains(domain.LabelFootnote) || fake.labels.Contains(domain.LabelMainText) {
		t.Fatalf("unexpected labels: %v", fake.labels)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/text?labels=SIDEBAR", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown label, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPut, "/v1/documents/doc-1/text", strings.NewReader(`{"text":"edited"}`)))
	if res.Code != http.StatusNoContent || fake.savedText != "edited" {
		t.Fatalf("expected saved text, got %d %q", res.Code, fake.savedText)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPut, "/v1/documents/doc-1/text", strings.NewReader(`{}`)))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without text, got %d", res.Code)
	}
}

func TestExportSetsDownloadHeaders(t *testing.T) {
	fake := &documentsFake{}
	handler := newTestHandler(config.Config{}, fake)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/export?format=html", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if fake.format != "html" {
		t.Fatalf("expected html format, got %q", fake.format)
	}
	if got := res.Header().Get("Content-Disposition"); got != `attachment; filename=Scan.html` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if res.Header().Get("Content-Type") != "text/html; charset=utf-8" || res.Body.String() != "<html></html>" {
		t.Fatalf("unexpected artifact response")
	}
}

func TestPageMarkdownEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{}, &documentsFake{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/pages/0/markdown", nil))

	if res.Code != http.StatusOK || !strings.HasPrefix(res.Body.String(), "# Title") {
		t.Fatalf("unexpected markdown response: %d %q", res.Code, res.Body.String())
	}
}

func TestAPIKeyRequiredWhenConfigured(t *testing.T) {
	handler := newTestHandler(config.Config{APIKey: "secret"}, &documentsFake{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("healthz must not require a key, got %d", res.Code)
	}
}
