package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirillkom/docuclean/internal/core/domain"
	"github.com/kirillkom/docuclean/internal/infrastructure/resilience"
)

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

// Recognizer runs page layout analysis on a vision model and returns
// labeled blocks.
type Recognizer struct {
	client *Client
}

func NewRecognizer(client *Client) *Recognizer {
	return &Recognizer{client: client}
}

type generateResponse struct {
	Response string `json:"response"`
}

type layoutResult struct {
	Blocks []layoutBlock `json:"blocks"`
}

type layoutBlock struct {
	Text  string             `json:"text"`
	Label domain.BlockLabel  `json:"label"`
	Box   domain.BoundingBox `json:"box_2d"`
}

func (r *Recognizer) Recognize(ctx context.Context, image domain.PageImage, cfg domain.ProcessingConfig) ([]domain.TextBlock, error) {
	if len(image.Data) == 0 {
		return nil, domain.WrapError(domain.ErrImageNotFound, "recognize page", fmt.Errorf("empty page image"))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = r.client.model
	}
	request := map[string]any{
		"model":  model,
		"prompt": buildLayoutPrompt(cfg),
		"images": []string{base64.StdEncoding.EncodeToString(image.Data)},
		"stream": false,
		"format": layoutSchema,
		"options": map[string]any{
			"temperature": 0.1,
		},
	}

	response, err := resilience.Do(ctx, r.client.executor, "ollama.generate", func(ctx context.Context) (generateResponse, error) {
		var out generateResponse
		err := r.client.postJSON(ctx, "/api/generate", request, &out, "generate")
		return out, err
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ollama generate", err)
	}
	return parseLayout(response.Response)
}

// parseLayout turns the model output into blocks. An empty response means
// the page has no text.
func parseLayout(raw string) ([]domain.TextBlock, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []domain.TextBlock{}, nil
	}

	var result layoutResult
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		return nil, domain.WrapError(domain.ErrProcessing, "parse layout json", err)
	}

	blocks := make([]domain.TextBlock, 0, len(result.Blocks))
	for _, block := range result.Blocks {
		blocks = append(blocks, domain.TextBlock{
			ID:    uuid.NewString(),
			Text:  block.Text,
			Label: domain.ParseBlockLabel(string(block.Label)),
			Box:   scaleBox(block.Box),
		})
	}
	return blocks, nil
}

// scaleBox lifts boxes given in the 0-1 range into 0-1000 space.
func scaleBox(box domain.BoundingBox) domain.BoundingBox {
	if box.IsZero() {
		return box
	}
	for _, v := range []float64{box.YMin, box.XMin, box.YMax, box.XMax} {
		if v < 0 || v > 1 {
			return box
		}
	}
	return domain.BoundingBox{
		YMin: box.YMin * 1000,
		XMin: box.XMin * 1000,
		YMax: box.YMax * 1000,
		XMax: box.XMax * 1000,
	}
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
