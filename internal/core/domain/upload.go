package domain

import "io"

// UploadPage is one page image in upload order.
type UploadPage struct {
	Filename string
	MimeType string
	Body     io.Reader
}

type UploadRequest struct {
	Name            string
	ParentID        string
	Config          ProcessingConfig
	StartProcessing bool
	Pages           []UploadPage
}
