package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

const convertFileField = "file"

type convertFunc func(ctx context.Context, name string, source []byte) (*domain.Artifact, error)

func (rt *Router) convertMarkdownToEPUB(w http.ResponseWriter, r *http.Request) {
	rt.convert(w, r, "md_to_epub", rt.converter.MarkdownToEPUB)
}

func (rt *Router) convertTextToPDF(w http.ResponseWriter, r *http.Request) {
	rt.convert(w, r, "txt_to_pdf", rt.converter.TextToPDF)
}

// convert accepts either a multipart upload in field "file" or the raw
// document as the request body with an optional ?name=.
func (rt *Router) convert(w http.ResponseWriter, r *http.Request, kind string, fn convertFunc) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.uploadMaxBytes)

	name, source, err := readConvertSource(r)
	if err == nil {
		var artifact *domain.Artifact
		artifact, err = fn(r.Context(), name, source)
		if err == nil {
			if rt.metrics != nil {
				rt.metrics.RecordConversion(serviceName, kind, nil)
			}
			writeArtifact(w, artifact)
			return
		}
	}
	if rt.metrics != nil {
		rt.metrics.RecordConversion(serviceName, kind, err)
	}
	writeError(w, r, err)
}

func readConvertSource(r *http.Request) (string, []byte, error) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return "", nil, wrapBodyError("parse convert form", err)
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()

		file, header, err := r.FormFile(convertFileField)
		if err != nil {
			return "", nil, domain.WrapError(domain.ErrInvalidInput, "convert", errors.New("multipart field 'file' is required"))
		}
		defer file.Close()

		source, err := io.ReadAll(file)
		if err != nil {
			return "", nil, wrapBodyError("read convert upload", err)
		}
		if formName := strings.TrimSpace(r.FormValue("name")); formName != "" {
			name = formName
		} else if name == "" {
			name = filepath.Base(header.Filename)
		}
		return name, source, nil
	}

	source, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, wrapBodyError("read convert body", err)
	}
	return name, source, nil
}

func wrapBodyError(operation string, err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	return domain.WrapError(domain.ErrInvalidInput, operation, err)
}
