package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var errNotUTF8 = errors.New("content is not valid UTF-8")

// extractPlain returns the bytes as text. Line endings are normalized to "\n"
// the way text-mode reads do.
func extractPlain(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errNotUTF8
	}
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n"), nil
}

// extractJSON validates the document and re-emits it with two-space indentation.
// Key order and literal spelling of numbers and strings are kept.
func extractJSON(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errNotUTF8
	}
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return "", errors.New("invalid json")
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return "", fmt.Errorf("indent json: %w", err)
	}
	return out.String(), nil
}
