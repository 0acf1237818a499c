package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docqa/internal/extractor"
	"docqa/internal/llm"
	"docqa/internal/logging"
	"docqa/internal/model"
	"docqa/internal/repository"
	"docqa/internal/storage"
)

var (
	ErrReaderNil        = errors.New("reader is nil")
	ErrFilenameRequired = errors.New("filename is required")
	ErrUnsupportedType  = errors.New("file type not allowed")
	ErrTooLarge         = errors.New("file too large")
	ErrExtractionFailed = errors.New("could not extract file")
	ErrQuestionRequired = errors.New("question and file_id are required")
	ErrNotFound         = errors.New("document not found")
	ErrCompletionFailed = errors.New("completion failed")
)

const (
	defaultMaxUploadBytes = 16 << 20
	maxIDAttempts         = 1000
)

// DefaultAllowedExtensions are the formats accepted when none are configured.
var DefaultAllowedExtensions = []string{"txt", "pdf", "docx", "json", "csv"}

// UploadResult is returned after a document has been extracted and stored.
type UploadResult struct {
	FileID        string `json:"file_id"`
	Filename      string `json:"filename"`
	ContentLength int    `json:"content_length"`
}

// AnswerResult carries the answer to one question about a document.
type AnswerResult struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload validates the extension, extracts the text, records the document
	// under a fresh file id and keeps the raw bytes in storage.
	Upload(ctx context.Context, r io.Reader, originalFilename string) (*UploadResult, error)

	// Ask answers question using the full text of the document fileID.
	Ask(ctx context.Context, fileID, question string) (*AnswerResult, error)

	// List returns summaries of every stored document in upload order.
	List(ctx context.Context) ([]model.DocumentSummary, error)

	// Delete forgets the document. Removing the raw file is best effort.
	Delete(ctx context.Context, fileID string) error
}

// Option customizes the document service.
type Option func(*documentService)

// WithClock sets the time source used for file ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *documentService) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *documentService) { s.log = l }
}

// WithAllowedExtensions limits uploads to exts (without dots, any case).
func WithAllowedExtensions(exts []string) Option {
	return func(s *documentService) {
		s.allowed = make(map[string]struct{}, len(exts))
		for _, e := range exts {
			s.allowed[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
		}
	}
}

// WithMaxUploadBytes caps the size of a single upload.
func WithMaxUploadBytes(n int64) Option {
	return func(s *documentService) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithErrorAnswers makes Ask report completion failures as an "Error: ..."
// answer instead of returning ErrCompletionFailed.
func WithErrorAnswers(enabled bool) Option {
	return func(s *documentService) { s.errorAnswers = enabled }
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store        storage.Storage
	repo         repository.DocumentRepository
	extractor    extractor.Extractor
	completer    llm.Completer
	log          *slog.Logger
	now          func() time.Time
	allowed      map[string]struct{}
	maxBytes     int64
	errorAnswers bool
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, ext extractor.Extractor, completer llm.Completer, opts ...Option) DocumentService {
	s := &documentService{
		store:     store,
		repo:      repo,
		extractor: ext,
		completer: completer,
		log:       logging.Discard(),
		now:       time.Now,
		maxBytes:  defaultMaxUploadBytes,
	}
	WithAllowedExtensions(DefaultAllowedExtensions)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, originalFilename string) (*UploadResult, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if strings.TrimSpace(originalFilename) == "" {
		return nil, ErrFilenameRequired
	}
	ext, ok := extensionOf(originalFilename)
	if _, allowed := s.allowed[ext]; !ok || !allowed {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, originalFilename)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}

	content, err := s.extractor.Extract(data, ext)
	if err != nil {
		s.log.Error("extraction_failed", "filename", originalFilename, "error", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	doc, err := s.create(ctx, originalFilename, content)
	if err != nil {
		return nil, err
	}

	// Store the raw file; drop the record again if that fails.
	_, err = s.store.Put(ctx, doc.StoragePath, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: contentType(ext),
		Metadata: map[string]string{
			"original-filename": originalFilename,
		},
	})
	if err != nil {
		if _, delErr := s.repo.Delete(ctx, doc.FileID); delErr != nil {
			return nil, fmt.Errorf("store file failed: %v; rollback failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("store file: %w", err)
	}

	length := doc.ContentLength()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("docqa.file_id", doc.FileID),
		attribute.Int("docqa.content_length", length),
	)
	s.log.Info("document_uploaded", "file_id", doc.FileID, "filename", originalFilename, "content_length", length)

	return &UploadResult{
		FileID:        doc.FileID,
		Filename:      originalFilename,
		ContentLength: length,
	}, nil
}

// create records the document under the first free candidate id.
func (s *documentService) create(ctx context.Context, originalFilename, content string) (*model.Document, error) {
	now := s.now()
	base := SecureFilename(originalFilename)
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id := FileID(now, base, attempt)
		doc := &model.Document{
			FileID:           id,
			OriginalFilename: originalFilename,
			Content:          content,
			UploadTime:       now,
			StoragePath:      id,
		}
		err := s.repo.Create(ctx, doc)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("save document: %w", err)
		}
	}
	return nil, fmt.Errorf("save document: no free file id for %q", base)
}

func (s *documentService) Ask(ctx context.Context, fileID, question string) (*AnswerResult, error) {
	if fileID == "" || strings.TrimSpace(question) == "" {
		return nil, ErrQuestionRequired
	}
	doc, err := s.repo.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("docqa.file_id", fileID))

	answer, err := s.completer.Complete(ctx, question, doc.Content)
	if err != nil {
		s.log.Error("completion_failed", "file_id", fileID, "error", err.Error())
		if !s.errorAnswers {
			return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
		}
		answer = llm.ErrorText(err)
	}

	return &AnswerResult{
		Question:  question,
		Answer:    answer,
		Filename:  doc.OriginalFilename,
		Timestamp: s.now(),
	}, nil
}

func (s *documentService) List(ctx context.Context) ([]model.DocumentSummary, error) {
	return s.repo.List(ctx)
}

func (s *documentService) Delete(ctx context.Context, fileID string) error {
	if fileID == "" {
		return ErrNotFound
	}
	doc, err := s.repo.Delete(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.store.Delete(ctx, doc.StoragePath); err != nil {
		s.log.Error("delete_cleanup_failed", "file_id", fileID, "storage_path", doc.StoragePath, "error", err.Error())
	}
	return nil
}

func contentType(ext string) string {
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
