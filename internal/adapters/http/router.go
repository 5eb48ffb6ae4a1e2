package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/docuclean/internal/config"
	"github.com/kirillkom/docuclean/internal/core/domain"
	"github.com/kirillkom/docuclean/internal/core/ports"
	"github.com/kirillkom/docuclean/internal/observability/metrics"
)

const serviceName = "api"

// Services are the inbound ports the router dispatches to. Metrics is
// optional.
type Services struct {
	Ingestor    ports.DocumentIngestor
	Reader      ports.DocumentReader
	Reprocessor ports.PageReprocessor
	Exporter    ports.DocumentExporter
	Converter   ports.FormatConverter
	Metrics     *metrics.HTTPServerMetrics
}

type Router struct {
	ingestor    ports.DocumentIngestor
	reader      ports.DocumentReader
	reprocessor ports.PageReprocessor
	exporter    ports.DocumentExporter
	converter   ports.FormatConverter
	metrics     *metrics.HTTPServerMetrics

	apiKey         string
	uploadMaxBytes int64
	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	queueWait      time.Duration
}

func NewRouter(cfg config.Config, services Services) *Router {
	uploadMaxBytes := cfg.UploadMaxBytes
	if uploadMaxBytes <= 0 {
		uploadMaxBytes = 50 << 20
	}
	return &Router{
		ingestor:    services.Ingestor,
		reader:      services.Reader,
		reprocessor: services.Reprocessor,
		exporter:    services.Exporter,
		converter:   services.Converter,
		metrics:     services.Metrics,

		apiKey:         strings.TrimSpace(cfg.APIKey),
		uploadMaxBytes: uploadMaxBytes,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
		queueWait:      cfg.APIQueueWait,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/documents", rt.uploadDocument)
	api.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	api.HandleFunc("DELETE /v1/documents/{id}", rt.deleteDocument)
	api.HandleFunc("GET /v1/documents/{id}/progress", rt.getProgress)
	api.HandleFunc("POST /v1/documents/{id}/process", rt.requestProcessing)
	api.HandleFunc("POST /v1/documents/{id}/stop", rt.requestStop)
	api.HandleFunc("POST /v1/documents/{id}/pages/{index}/reprocess", rt.reprocessPage)
	api.HandleFunc("GET /v1/documents/{id}/pages/{index}/markdown", rt.pageMarkdown)
	api.HandleFunc("GET /v1/documents/{id}/text", rt.getText)
	api.HandleFunc("PUT /v1/documents/{id}/text", rt.saveText)
	api.HandleFunc("GET /v1/documents/{id}/export", rt.exportDocument)
	api.HandleFunc("POST /v1/convert/md-to-epub", rt.convertMarkdownToEPUB)
	api.HandleFunc("POST /v1/convert/txt-to-pdf", rt.convertTextToPDF)

	var guarded http.Handler = api
	guarded = backpressureMiddleware(guarded, rt.maxInFlight, rt.queueWait)
	guarded = rateLimitMiddleware(guarded, rt.rateLimitRPS, rt.rateLimitBurst)
	guarded = apiKeyMiddleware(guarded, rt.apiKey)
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps err to a status code. Server-side failures are logged
// and their details kept out of the response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		status = http.StatusRequestEntityTooLarge
	}

	message := err.Error()
	switch {
	case status == http.StatusServiceUnavailable:
		slog.Warn("request_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		message = "temporarily unavailable, retry later"
	case status >= 500:
		slog.Error("request_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		message = "internal server error"
	}
	writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestIDFromContext(r.Context()),
	})
}

func badRequest(w http.ResponseWriter, r *http.Request, operation, message string) {
	writeError(w, r, domain.WrapError(domain.ErrInvalidInput, operation, errors.New(message)))
}

func pathIndex(r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}
