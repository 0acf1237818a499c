package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docqa/docs"
	"docqa/internal/config"
	"docqa/internal/extractor"
	handlers "docqa/internal/http/handler"
	"docqa/internal/http/middleware"
	"docqa/internal/llm"
	"docqa/internal/logging"
	"docqa/internal/otel"
	"docqa/internal/repository/memory"
	"docqa/internal/service"
	"docqa/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title Document Q&A API
// @version 1.0
// @description Upload documents and ask questions answered from their text.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.Location())
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return err
	}

	if cfg.OpenAI.APIKey == "" {
		logger.Warn("openai_api_key_missing", "hint", "set OPENAI_API_KEY; /ask will fail until then")
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	completer, err := llm.NewInstrumented(llm.NewOpenAI(cfg.OpenAI), reg)
	if err != nil {
		return err
	}

	docSvc, err := newDocumentService(cfg, store, completer, logger)
	if err != nil {
		return err
	}

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             int(cfg.MaxUploadBytes) + multipartOverhead,
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSAllowOrigins}))
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == middleware.MetricsPath
	})))
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(promMiddleware.Handler())

	app.Get(middleware.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	app.Get("/swagger/*", swaggerHandler())

	handlers.RegisterRoutes(app, docSvc, cfg.StaticDir)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("server_starting", "addr", addr, "storage_backend", cfg.Storage.Backend, "model", cfg.OpenAI.Model)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(
		app.ShutdownWithContext(shutdownCtx),
		shutdownTracing(shutdownCtx),
	)
}

// newDocumentService wires the service from cfg. Every configured extension
// must have an extractor, and ids and timestamps use the configured zone.
func newDocumentService(cfg *config.AppConfig, store storage.Storage, completer llm.Completer, logger *slog.Logger) (service.DocumentService, error) {
	ext := extractor.New()
	for _, e := range cfg.AllowedExtensions {
		if !ext.Supports(e) {
			return nil, fmt.Errorf("ALLOWED_EXTENSIONS: no extractor for %q (supported: %s)", e, strings.Join(ext.Formats(), ","))
		}
	}

	loc := cfg.Location()
	return service.NewDocumentService(store, memory.NewDocumentMemory(), ext, completer,
		service.WithClock(func() time.Time { return time.Now().In(loc) }),
		service.WithLogger(logger),
		service.WithAllowedExtensions(cfg.AllowedExtensions),
		service.WithMaxUploadBytes(cfg.MaxUploadBytes),
		service.WithErrorAnswers(cfg.StrictCompatErrors),
	), nil
}

// swaggerHandler serves the UI with the request's host and scheme. SwaggerInfo
// is shared, so filling it in and rendering happen under one lock.
func swaggerHandler() fiber.Handler {
	var mu sync.Mutex
	return func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}

		mu.Lock()
		defer mu.Unlock()
		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	}
}

// multipartOverhead leaves room for multipart boundaries and headers so the
// service limit, not the transport limit, decides on borderline files.
const multipartOverhead = 64 << 10
