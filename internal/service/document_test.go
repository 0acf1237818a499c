package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"docqa/internal/extractor"
	"docqa/internal/llm"
	llmMocks "docqa/internal/llm/mocks"
	"docqa/internal/logging"
	"docqa/internal/model"
	"docqa/internal/repository"
	"docqa/internal/repository/memory"
	repoMocks "docqa/internal/repository/mocks"
	"docqa/internal/storage"
	storeMocks "docqa/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name             string
		originalFilename string
		body             io.Reader
		setupMocks       func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository)
		wantErr          error
		wantErrMsg       string
		want             *UploadResult
	}{
		{
			name:             "happy path",
			originalFilename: "notes.txt",
			body:             strings.NewReader("hello world"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Create", ctx, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.FileID == "20240102_150405_notes.txt" &&
						doc.StoragePath == doc.FileID &&
						doc.Content == "hello world" &&
						doc.OriginalFilename == "notes.txt" &&
						doc.UploadTime.Equal(fixedNow)
				})).Return(nil)
				mStore.On("Put", ctx, "20240102_150405_notes.txt", mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
					return opt.Size == 11 && opt.Metadata["original-filename"] == "notes.txt"
				})).Return(storage.ObjectInfo{Key: "20240102_150405_notes.txt", Size: 11}, nil)
			},
			want: &UploadResult{FileID: "20240102_150405_notes.txt", Filename: "notes.txt", ContentLength: 11},
		},
		{
			name:             "sanitized id keeps original filename",
			originalFilename: "../My Notes.TXT",
			body:             strings.NewReader("héllo"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Create", ctx, mock.Anything).Return(nil)
				mStore.On("Put", ctx, "20240102_150405_My_Notes.TXT", mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, nil)
			},
			want: &UploadResult{FileID: "20240102_150405_My_Notes.TXT", Filename: "../My Notes.TXT", ContentLength: 5},
		},
		{
			name:             "collision gets suffix",
			originalFilename: "notes.txt",
			body:             strings.NewReader("x"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Create", ctx, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.FileID == "20240102_150405_notes.txt"
				})).Return(repository.ErrAlreadyExists).Once()
				mRepo.On("Create", ctx, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.FileID == "20240102_150405_notes_2.txt"
				})).Return(nil).Once()
				mStore.On("Put", ctx, "20240102_150405_notes_2.txt", mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, nil)
			},
			want: &UploadResult{FileID: "20240102_150405_notes_2.txt", Filename: "notes.txt", ContentLength: 1},
		},
		{
			name:             "validation error - nil reader",
			originalFilename: "notes.txt",
			setupMocks:       func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:          ErrReaderNil,
		},
		{
			name:             "validation error - blank filename",
			originalFilename: "   ",
			body:             strings.NewReader("x"),
			setupMocks:       func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:          ErrFilenameRequired,
		},
		{
			name:             "disallowed extension",
			originalFilename: "setup.exe",
			body:             strings.NewReader("MZ"),
			setupMocks:       func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:          ErrUnsupportedType,
		},
		{
			name:             "no extension",
			originalFilename: "README",
			body:             strings.NewReader("x"),
			setupMocks:       func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:          ErrUnsupportedType,
		},
		{
			name:             "extraction failure stores nothing",
			originalFilename: "broken.json",
			body:             strings.NewReader(`{"a":`),
			setupMocks:       func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:          ErrExtractionFailed,
		},
		{
			name:             "repository error",
			originalFilename: "notes.txt",
			body:             strings.NewReader("x"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Create", ctx, mock.Anything).Return(errors.New("db fail"))
			},
			wantErrMsg: "save document: db fail",
		},
		{
			name:             "storage error with successful rollback",
			originalFilename: "notes.txt",
			body:             strings.NewReader("x"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Create", ctx, mock.Anything).Return(nil)
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("disk full"))
				mRepo.On("Delete", ctx, "20240102_150405_notes.txt").Return(&model.Document{}, nil)
			},
			wantErrMsg: "store file: disk full",
		},
		{
			name:             "storage error with failed rollback",
			originalFilename: "notes.txt",
			body:             strings.NewReader("x"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Create", ctx, mock.Anything).Return(nil)
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("disk full"))
				mRepo.On("Delete", ctx, mock.Anything).Return(nil, errors.New("gone"))
			},
			wantErrMsg: "rollback failed: gone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockDocumentRepository)
			mLLM := new(llmMocks.MockCompleter)
			svc := NewDocumentService(mStore, mRepo, extractor.New(), mLLM, WithClock(fixedClock))

			tt.setupMocks(mStore, mRepo)

			res, err := svc.Upload(ctx, tt.body, tt.originalFilename)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, res)
			}

			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
			mLLM.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDocumentService_UploadTooLarge(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := NewDocumentService(mStore, mRepo, extractor.New(), nil, WithMaxUploadBytes(4))

	_, err := svc.Upload(context.Background(), strings.NewReader("12345"), "a.txt")
	assert.ErrorIs(t, err, ErrTooLarge)

	mStore.AssertExpectations(t)
	mRepo.AssertExpectations(t)
}

func TestDocumentService_UploadCustomExtensions(t *testing.T) {
	ctx := context.Background()
	svc := NewDocumentService(nil, memory.NewDocumentMemory(), extractor.New(), nil,
		WithAllowedExtensions([]string{".JSON"}))

	_, err := svc.Upload(ctx, strings.NewReader("hello"), "a.txt")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDocumentService_Ask(t *testing.T) {
	ctx := context.Background()
	doc := &model.Document{FileID: "id-1", OriginalFilename: "notes.txt", Content: "hello world"}

	tests := []struct {
		name         string
		fileID       string
		question     string
		errorAnswers bool
		setupMocks   func(mRepo *repoMocks.MockDocumentRepository, mLLM *llmMocks.MockCompleter)
		wantErr      error
		wantAnswer   string
	}{
		{
			name:     "happy path",
			fileID:   "id-1",
			question: "what does it say",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, mLLM *llmMocks.MockCompleter) {
				mRepo.On("FindByID", ctx, "id-1").Return(doc, nil)
				mLLM.On("Complete", ctx, "what does it say", "hello world").Return("TEST_ANSWER", nil)
			},
			wantAnswer: "TEST_ANSWER",
		},
		{
			name:       "missing question",
			fileID:     "id-1",
			question:   "  ",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, mLLM *llmMocks.MockCompleter) {},
			wantErr:    ErrQuestionRequired,
		},
		{
			name:       "missing file id",
			question:   "why",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, mLLM *llmMocks.MockCompleter) {},
			wantErr:    ErrQuestionRequired,
		},
		{
			name:     "unknown file id never calls the completer",
			fileID:   "nope",
			question: "why",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, mLLM *llmMocks.MockCompleter) {
				mRepo.On("FindByID", ctx, "nope").Return(nil, repository.ErrNotFound)
			},
			wantErr: ErrNotFound,
		},
		{
			name:     "completion failure",
			fileID:   "id-1",
			question: "why",
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, mLLM *llmMocks.MockCompleter) {
				mRepo.On("FindByID", ctx, "id-1").Return(doc, nil)
				mLLM.On("Complete", ctx, "why", "hello world").Return("", fmt.Errorf("%w: deadline", llm.ErrTimeout))
			},
			wantErr: ErrCompletionFailed,
		},
		{
			name:         "completion failure as answer text",
			fileID:       "id-1",
			question:     "why",
			errorAnswers: true,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository, mLLM *llmMocks.MockCompleter) {
				mRepo.On("FindByID", ctx, "id-1").Return(doc, nil)
				mLLM.On("Complete", ctx, "why", "hello world").Return("", errors.New("quota exceeded"))
			},
			wantAnswer: "Error: quota exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockDocumentRepository)
			mLLM := new(llmMocks.MockCompleter)
			svc := NewDocumentService(nil, mRepo, extractor.New(), mLLM,
				WithClock(fixedClock), WithErrorAnswers(tt.errorAnswers))

			tt.setupMocks(mRepo, mLLM)

			res, err := svc.Ask(ctx, tt.fileID, tt.question)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantAnswer, res.Answer)
				assert.Equal(t, tt.question, res.Question)
				assert.Equal(t, "notes.txt", res.Filename)
				assert.Equal(t, fixedNow, res.Timestamp)
			}
			mRepo.AssertExpectations(t)
			mLLM.AssertExpectations(t)
		})
	}
}

func TestDocumentService_AskTimeoutKeepsCause(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockDocumentRepository)
	mLLM := new(llmMocks.MockCompleter)
	mRepo.On("FindByID", ctx, "id-1").Return(&model.Document{FileID: "id-1"}, nil)
	mLLM.On("Complete", ctx, "q", "").Return("", fmt.Errorf("%w: slow", llm.ErrTimeout))

	svc := NewDocumentService(nil, mRepo, extractor.New(), mLLM)
	_, err := svc.Ask(ctx, "id-1", "q")

	assert.ErrorIs(t, err, ErrCompletionFailed)
	assert.ErrorIs(t, err, llm.ErrTimeout)
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()

	mRepo := new(repoMocks.MockDocumentRepository)
	mRepo.On("List", ctx).Return([]model.DocumentSummary{{FileID: "1"}, {FileID: "2"}}, nil).Once()
	mRepo.On("List", ctx).Return(nil, errors.New("db fail")).Once()

	svc := NewDocumentService(nil, mRepo, extractor.New(), nil)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = svc.List(ctx)
	assert.Error(t, err)
	mRepo.AssertExpectations(t)
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
		wantLog    string
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Delete", ctx, "valid-id").Return(&model.Document{FileID: "valid-id", StoragePath: "valid-id"}, nil)
				mStore.On("Delete", ctx, "valid-id").Return(nil)
			},
		},
		{
			name:       "empty id",
			id:         "",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrNotFound,
		},
		{
			name: "not found",
			id:   "missing-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Delete", ctx, "missing-id").Return(nil, repository.ErrNotFound)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "storage cleanup failure is logged, not returned",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("Delete", ctx, "valid-id").Return(&model.Document{FileID: "valid-id", StoragePath: "valid-id"}, nil)
				mStore.On("Delete", ctx, "valid-id").Return(os.ErrPermission)
			},
			wantLog: "delete_cleanup_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(mStore, mRepo, extractor.New(), nil,
				WithLogger(logging.New(&logs, time.UTC)))

			tt.setupMocks(mStore, mRepo)

			err := svc.Delete(ctx, tt.id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			if tt.wantLog != "" {
				assert.Contains(t, logs.String(), tt.wantLog)
				assert.Contains(t, logs.String(), `"file_id":"valid-id"`)
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

// newLocalService wires the real store, filesystem storage and extractor.
func newLocalService(t *testing.T, completer llm.Completer, opts ...Option) (DocumentService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	require.NoError(t, err)
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewDocumentService(store, memory.NewDocumentMemory(), extractor.New(), completer, opts...), dir
}

func TestDocumentService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	svc, dir := newLocalService(t, nil)

	res, err := svc.Upload(ctx, strings.NewReader("hello world"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, 11, res.ContentLength)

	onDisk, err := os.ReadFile(filepath.Join(dir, res.FileID))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(onDisk))

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, res.FileID, items[0].FileID)
	assert.Equal(t, "notes.txt", items[0].Filename)
	assert.Equal(t, 11, items[0].ContentLength)
	assert.Equal(t, fixedNow, items[0].UploadTime)

	require.NoError(t, svc.Delete(ctx, res.FileID))
	_, err = os.Stat(filepath.Join(dir, res.FileID))
	assert.ErrorIs(t, err, os.ErrNotExist)

	items, _ = svc.List(ctx)
	assert.Empty(t, items)
	assert.ErrorIs(t, svc.Delete(ctx, res.FileID), ErrNotFound)
}

func TestDocumentService_RejectedUploadLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	svc, dir := newLocalService(t, nil)

	_, err := svc.Upload(ctx, strings.NewReader("MZ\x90\x00"), "setup.exe")
	assert.ErrorIs(t, err, ErrUnsupportedType)
	_, err = svc.Upload(ctx, strings.NewReader("{"), "bad.json")
	assert.ErrorIs(t, err, ErrExtractionFailed)

	items, _ := svc.List(ctx)
	assert.Empty(t, items)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDocumentService_DeleteSurvivesMissingFile(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	svc, dir := newLocalService(t, nil, WithLogger(logging.New(&logs, time.UTC)))

	res, err := svc.Upload(ctx, strings.NewReader("a,b\n1,2\n"), "table.csv")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, res.FileID)))

	assert.NoError(t, svc.Delete(ctx, res.FileID))
	assert.Contains(t, logs.String(), "delete_cleanup_failed")

	items, _ := svc.List(ctx)
	assert.Empty(t, items)
}

func TestDocumentService_ConcurrentUploadsGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	svc, dir := newLocalService(t, nil)

	const n = 50
	ids := make(chan string, 2*n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		// Distinct names, all at the same instant.
		go func(i int) {
			defer wg.Done()
			res, err := svc.Upload(ctx, strings.NewReader("x"), fmt.Sprintf("doc-%d.txt", i))
			if assert.NoError(t, err) {
				ids <- res.FileID
			}
		}(i)
		// The same name every time.
		go func() {
			defer wg.Done()
			res, err := svc.Upload(ctx, strings.NewReader("y"), "same.txt")
			if assert.NoError(t, err) {
				ids <- res.FileID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 2*n)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2*n)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2*n)
}

func TestDocumentService_AskEndToEnd(t *testing.T) {
	ctx := context.Background()
	mLLM := new(llmMocks.MockCompleter)
	svc, _ := newLocalService(t, mLLM)

	res, err := svc.Upload(ctx, strings.NewReader(`{"greeting":"hi"}`), "data.json")
	require.NoError(t, err)

	mLLM.On("Complete", ctx, "what is the greeting", "{\n  \"greeting\": \"hi\"\n}").Return("TEST_ANSWER", nil).Once()

	ans, err := svc.Ask(ctx, res.FileID, "what is the greeting")
	require.NoError(t, err)
	assert.Equal(t, "TEST_ANSWER", ans.Answer)
	assert.Equal(t, "data.json", ans.Filename)
	mLLM.AssertExpectations(t)
}
