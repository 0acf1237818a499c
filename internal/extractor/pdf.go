package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF concatenates the plain text of every page in page order, each
// page followed by a newline.
func extractPDF(data []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if !p.V.IsNull() {
			pageText, err := p.GetPlainText(nil)
			if err != nil {
				return "", fmt.Errorf("page %d: %w", i, err)
			}
			b.WriteString(pageText)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
