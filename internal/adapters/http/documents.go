package httpadapter

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

const (
	multipartMemory = 32 << 20
	pagesField      = "pages"
)

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.uploadMaxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, err)
			return
		}
		badRequest(w, r, "upload document", "multipart form is required")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File[pagesField]
	if len(headers) == 0 {
		badRequest(w, r, "upload document", "multipart field 'pages' is required")
		return
	}

	removeReferences, err := formBool(r, "removeReferences", true)
	if err != nil {
		badRequest(w, r, "upload document", err.Error())
		return
	}
	startProcessing, err := formBool(r, "startProcessing", true)
	if err != nil {
		badRequest(w, r, "upload document", err.Error())
		return
	}

	pages := make([]domain.UploadPage, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			writeError(w, r, fmt.Errorf("open uploaded page %s: %w", header.Filename, err))
			return
		}
		defer file.Close()

		mimeType, body, err := sniffImage(header, file)
		if err != nil {
			writeError(w, r, fmt.Errorf("read uploaded page %s: %w", header.Filename, err))
			return
		}
		pages = append(pages, domain.UploadPage{
			Filename: header.Filename,
			MimeType: mimeType,
			Body:     body,
		})
	}

	doc, err := rt.ingestor.Upload(r.Context(), domain.UploadRequest{
		Name:     strings.TrimSpace(r.FormValue("name")),
		ParentID: strings.TrimSpace(r.FormValue("parentId")),
		Config: domain.ProcessingConfig{
			Model:            strings.TrimSpace(r.FormValue("model")),
			Mode:             domain.ProcessingMode(strings.TrimSpace(r.FormValue("processingMode"))),
			TargetLanguage:   strings.TrimSpace(r.FormValue("targetLanguage")),
			CustomPrompt:     r.FormValue("customPrompt"),
			RemoveReferences: removeReferences,
		},
		StartProcessing: startProcessing,
		Pages:           pages,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, len(pages))
	}
	writeJSON(w, http.StatusAccepted, doc)
}

// sniffImage trusts a specific part Content-Type and otherwise detects the
// type from the first bytes. The returned reader still yields the whole
// file.
func sniffImage(header *multipart.FileHeader, file multipart.File) (string, io.Reader, error) {
	declared := header.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		return mediaType, file, nil
	}

	buffered := bufio.NewReaderSize(file, 512)
	head, err := buffered.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", nil, err
	}
	return http.DetectContentType(head), buffered, nil
}

func formBool(r *http.Request, key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return value, nil
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.reader.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.ingestor.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := rt.reader.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (rt *Router) requestProcessing(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := rt.ingestor.RequestProcessing(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"documentId": id, "status": "queued"})
}

func (rt *Router) requestStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := rt.ingestor.RequestStop(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"documentId": id, "status": "stop_requested"})
}

type reprocessRequest struct {
	Model            string `json:"modelUsed"`
	ProcessingMode   string `json:"processingMode"`
	TargetLanguage   string `json:"targetLanguage"`
	CustomPrompt     string `json:"customPrompt"`
	RemoveReferences *bool  `json:"removeReferences"`
}

func (rt *Router) reprocessPage(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(r)
	if !ok {
		badRequest(w, r, "reprocess page", "page index must be a non-negative integer")
		return
	}

	var override *domain.ProcessingConfig
	var req reprocessRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	switch {
	case errors.Is(err, io.EOF):
	case err != nil:
		badRequest(w, r, "reprocess page", "invalid json")
		return
	default:
		removeReferences := true
		if req.RemoveReferences != nil {
			removeReferences = *req.RemoveReferences
		}
		override = &domain.ProcessingConfig{
			Model:            strings.TrimSpace(req.Model),
			Mode:             domain.ProcessingMode(strings.TrimSpace(req.ProcessingMode)),
			TargetLanguage:   strings.TrimSpace(req.TargetLanguage),
			CustomPrompt:     req.CustomPrompt,
			RemoveReferences: removeReferences,
		}
	}

	blocks, err := rt.reprocessor.ReprocessPage(r.Context(), r.PathValue("id"), index, override)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pageIndex": index, "blocks": blocks})
}

func (rt *Router) pageMarkdown(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(r)
	if !ok {
		badRequest(w, r, "page markdown", "page index must be a non-negative integer")
		return
	}
	markdown, err := rt.exporter.PageMarkdown(r.Context(), r.PathValue("id"), index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = io.WriteString(w, markdown)
}

func (rt *Router) getText(w http.ResponseWriter, r *http.Request) {
	labels, err := queryLabels(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	text, err := rt.exporter.DisplayText(r.Context(), id, labels)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"documentId": id, "text": text})
}

func (rt *Router) saveText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text *string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, rt.uploadMaxBytes)).Decode(&req); err != nil || req.Text == nil {
		badRequest(w, r, "save text", "json body with 'text' is required")
		return
	}
	if err := rt.exporter.SaveText(r.Context(), r.PathValue("id"), *req.Text); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) exportDocument(w http.ResponseWriter, r *http.Request) {
	labels, err := queryLabels(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	format := r.URL.Query().Get("format")
	artifact, err := rt.exporter.Export(r.Context(), r.PathValue("id"), format, labels)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordExport(serviceName, strings.TrimPrefix(path.Ext(artifact.Filename), "."), len(artifact.Body))
	}
	writeArtifact(w, artifact)
}

// queryLabels returns nil when the labels parameter is absent so the
// configured default applies. An empty value selects nothing.
func queryLabels(r *http.Request) (domain.LabelSet, error) {
	values, ok := r.URL.Query()["labels"]
	if !ok {
		return nil, nil
	}
	return domain.ParseLabelSet(strings.Join(values, ","))
}

func writeArtifact(w http.ResponseWriter, artifact *domain.Artifact) {
	w.Header().Set("Content-Type", artifact.MediaType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Body)
}
