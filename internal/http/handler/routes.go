package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"docqa/internal/service"
)

// RegisterRoutes attaches the API routes and the static catch-all to app.
// Routes that must win over the catch-all (metrics, swagger) have to be
// registered before calling it.
func RegisterRoutes(app *fiber.App, docSvc service.DocumentService, staticDir string) {
	app.Post("/upload", UploadDocument(docSvc))
	app.Post("/ask", AskQuestion(docSvc))
	app.Get("/files", ListFiles(docSvc))
	app.Delete("/delete/:file_id", DeleteFile(docSvc))
	app.Get("/health", HealthCheck())

	// Wrong methods on API paths get 405 instead of the catch-all's index.html.
	app.All("/upload", MethodNotAllowed(fiber.MethodPost))
	app.All("/ask", MethodNotAllowed(fiber.MethodPost))
	app.All("/files", MethodNotAllowed(fiber.MethodGet, fiber.MethodHead))
	app.All("/delete/:file_id", MethodNotAllowed(fiber.MethodDelete))
	app.All("/health", MethodNotAllowed(fiber.MethodGet, fiber.MethodHead))

	app.Get("/*", StaticFiles(staticDir))
}

// MethodNotAllowed answers 405 and advertises the accepted methods in Allow.
func MethodNotAllowed(allowed ...string) fiber.Handler {
	allow := strings.Join(allowed, ", ")
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAllow, allow)
		return fiber.ErrMethodNotAllowed
	}
}

// HealthCheck godoc
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} healthResponse
// @Router /health [get]
func HealthCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(healthResponse{Status: "healthy"})
	}
}

type healthResponse struct {
	Status string `json:"status" example:"healthy"`
}
