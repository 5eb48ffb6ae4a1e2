package domain

import (
	"encoding/json"
	"time"
)

type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusError      DocumentStatus = "error"
)

type PageStatus string

const (
	PageStatusPending    PageStatus = "pending"
	PageStatusProcessing PageStatus = "processing"
	PageStatusCompleted  PageStatus = "completed"
	PageStatusError      PageStatus = "error"
)

type ProcessingMode string

const (
	ModeOCR         ProcessingMode = "ocr"
	ModeTranslation ProcessingMode = "translation"
	ModeManual      ProcessingMode = "manual"
)

// BoundingBox is a block position in the 0-1000 normalized page space.
// It serializes as [ymin, xmin, ymax, xmax].
type BoundingBox struct {
	YMin float64
	XMin float64
	YMax float64
	XMax float64
}

func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.YMin, b.XMin, b.YMax, b.XMax})
}

// UnmarshalJSON accepts anything; values that are not exactly four numbers
// decode to the zero box.
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) != 4 {
		*b = BoundingBox{}
		return nil
	}
	*b = BoundingBox{YMin: raw[0], XMin: raw[1], YMax: raw[2], XMax: raw[3]}
	return nil
}

type TextBlock struct {
	ID    string      `json:"id"`
	Text  string      `json:"text"`
	Label BlockLabel  `json:"label"`
	Box   BoundingBox `json:"box_2d"`
}

type Page struct {
	PageNumber  int         `json:"pageNumber"`
	ImageSource string      `json:"imageSource"`
	Blocks      []TextBlock `json:"blocks"`
	Status      PageStatus  `json:"status"`
}

// ProcessingConfig is captured when a document is created and reused for
// every page and for reprocessing.
type ProcessingConfig struct {
	Model            string         `json:"modelUsed"`
	Mode             ProcessingMode `json:"processingMode"`
	TargetLanguage   string         `json:"targetLanguage,omitempty"`
	CustomPrompt     string         `json:"customPrompt,omitempty"`
	RemoveReferences bool           `json:"removeReferences"`
}

type Document struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`

	Status DocumentStatus `json:"status"`
	ProcessingConfig

	TotalPages     int    `json:"totalPages"`
	ProcessedPages int    `json:"processedPages"`
	Pages          []Page `json:"pages"`

	SavedText *string `json:"savedText,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Page returns the page at a zero-based index.
func (d *Document) Page(index int) (*Page, bool) {
	if index < 0 || index >= len(d.Pages) {
		return nil, false
	}
	return &d.Pages[index], true
}

// AggregateStatus derives the document status after a run: error only when
// every page ended in error.
func (d *Document) AggregateStatus() DocumentStatus {
	if len(d.Pages) == 0 {
		return StatusReady
	}
	for _, page := range d.Pages {
		if page.Status != PageStatusError {
			return StatusReady
		}
	}
	return StatusError
}

type PageImage struct {
	Data     []byte
	MimeType string
}

type PageStatusCount struct {
	PageNumber int        `json:"pageNumber"`
	Status     PageStatus `json:"status"`
}

type Progress struct {
	DocumentID     string            `json:"documentId"`
	Status         DocumentStatus    `json:"status"`
	TotalPages     int               `json:"totalPages"`
	ProcessedPages int               `json:"processedPages"`
	Running        bool              `json:"running"`
	Pages          []PageStatusCount `json:"pages"`
}

// Artifact is a rendered, downloadable export.
type Artifact struct {
	Filename  string `json:"filename"`
	MediaType string `json:"mediaType"`
	Body      []byte `json:"-"`
}

// Progress snapshots processing counters and per-page statuses.
func (d *Document) Progress(running bool) Progress {
	pages := make([]PageStatusCount, 0, len(d.Pages))
	for _, page := range d.Pages {
		pages = append(pages, PageStatusCount{PageNumber: page.PageNumber, Status: page.Status})
	}
	return Progress{
		DocumentID:     d.ID,
		Status:         d.Status,
		TotalPages:     d.TotalPages,
		ProcessedPages: d.ProcessedPages,
		Running:        running,
		Pages:          pages,
	}
}
