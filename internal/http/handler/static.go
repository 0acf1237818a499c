package handler

import (
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
)

const indexFile = "index.html"

// StaticFiles serves the single page app from dir. A request path naming an
// existing file is served as is; anything else falls back to index.html so
// client side routes resolve. Without an index the response is 404.
func StaticFiles(dir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if p, ok := resolveStatic(dir, c.Params("*")); ok {
			return c.SendFile(p)
		}
		index := filepath.Join(dir, indexFile)
		if isRegularFile(index) {
			return c.SendFile(index)
		}
		return fiber.ErrNotFound
	}
}

// resolveStatic maps a wildcard request path onto a regular file inside dir.
// Cleaning against "/" keeps ".." from climbing out of dir.
func resolveStatic(dir, rel string) (string, bool) {
	if dir == "" || rel == "" {
		return "", false
	}
	if u, err := url.PathUnescape(rel); err == nil {
		rel = u
	}
	clean := path.Clean("/" + rel)
	if clean == "/" {
		return "", false
	}
	p := filepath.Join(dir, filepath.FromSlash(clean))
	if !isRegularFile(p) {
		return "", false
	}
	return p, true
}

func isRegularFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}
