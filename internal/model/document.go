package model

import (
	"time"
	"unicode/utf8"
)

// Document is one uploaded file together with its extracted text.
// Content is set once at upload time and never edited afterwards.
type Document struct {
	FileID           string    `json:"file_id"`
	OriginalFilename string    `json:"filename"`
	Content          string    `json:"-"`
	UploadTime       time.Time `json:"upload_time"`
	StoragePath      string    `json:"-"`
}

// ContentLength is the number of characters (runes) in Content.
func (d *Document) ContentLength() int {
	return utf8.RuneCountInString(d.Content)
}

// Summary returns the listing view of the document.
func (d *Document) Summary() DocumentSummary {
	return DocumentSummary{
		FileID:        d.FileID,
		Filename:      d.OriginalFilename,
		UploadTime:    d.UploadTime,
		ContentLength: d.ContentLength(),
	}
}

// DocumentSummary is what clients see when listing documents.
type DocumentSummary struct {
	FileID        string    `json:"file_id"`
	Filename      string    `json:"filename"`
	UploadTime    time.Time `json:"upload_time"`
	ContentLength int       `json:"content_length"`
}
