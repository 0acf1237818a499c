package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// fileIDLayout prefixes every file id with the upload second.
const fileIDLayout = "20060102_150405_"

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces a client supplied name to a flat, ASCII-only name that
// is safe to use on disk: compatibility decomposition, non-ASCII dropped, path
// separators and whitespace runs turned into "_", anything outside
// [A-Za-z0-9_.-] removed, leading and trailing "." and "_" trimmed.
// The result may be empty.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	name = strings.ReplaceAll(b.String(), "/", " ")
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// FileID builds the id for the attempt-th candidate of a sanitized name
// uploaded at t. Attempts above 1 get a "_N" suffix before the extension.
func FileID(t time.Time, sanitized string, attempt int) string {
	if sanitized == "" {
		sanitized = "file"
	}
	if attempt > 1 {
		if i := strings.LastIndex(sanitized, "."); i > 0 {
			sanitized = fmt.Sprintf("%s_%d%s", sanitized[:i], attempt, sanitized[i:])
		} else {
			sanitized = fmt.Sprintf("%s_%d", sanitized, attempt)
		}
	}
	return t.Format(fileIDLayout) + sanitized
}

// extensionOf returns the lowercased text after the last "." of name.
func extensionOf(name string) (string, bool) {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return "", false
	}
	return strings.ToLower(name[i+1:]), true
}
