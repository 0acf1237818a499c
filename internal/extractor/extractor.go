// Package extractor turns raw uploaded bytes into plain text, one handler per
// file extension. Handlers are independent: a failure in one format never
// falls back to another.
package extractor

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrUnsupported is returned for an extension with no registered handler.
var ErrUnsupported = errors.New("unsupported format")

// Extractor converts document bytes of the declared extension into text.
type Extractor interface {
	Extract(data []byte, ext string) (string, error)
}

// Func extracts text from the raw bytes of a single format.
type Func func(data []byte) (string, error)

// Registry dispatches on the declared extension. The zero value is empty; use New.
type Registry struct {
	formats map[string]Func
}

var _ Extractor = (*Registry)(nil)

// New returns a Registry with the built-in formats: txt, csv, json, pdf and docx.
func New() *Registry {
	r := &Registry{formats: make(map[string]Func)}
	r.Register("txt", extractPlain)
	r.Register("csv", extractPlain)
	r.Register("json", extractJSON)
	r.Register("pdf", extractPDF)
	r.Register("docx", extractDOCX)
	return r
}

// Register adds or replaces the handler for ext.
func (r *Registry) Register(ext string, fn Func) {
	r.formats[normalize(ext)] = fn
}

// Supports reports whether ext has a handler.
func (r *Registry) Supports(ext string) bool {
	_, ok := r.formats[normalize(ext)]
	return ok
}

// Formats lists the registered extensions in sorted order.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.formats))
	for ext := range r.formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract runs the handler registered for ext. On failure no partial text is returned.
func (r *Registry) Extract(data []byte, ext string) (string, error) {
	ext = normalize(ext)
	fn, ok := r.formats[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	text, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", ext, err)
	}
	return text, nil
}

// ExtractFile reads path and extracts it as ext.
func (r *Registry) ExtractFile(path, ext string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return r.Extract(data, ext)
}

func normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
