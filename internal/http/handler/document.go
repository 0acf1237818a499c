package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"docqa/internal/llm"
	"docqa/internal/model"
	"docqa/internal/service"
)

type uploadResponse struct {
	Message string `json:"message" example:"File uploaded"`
	service.UploadResult
}

type askRequest struct {
	Question string `json:"question" example:"What is this document about?"`
	FileID   string `json:"file_id" example:"20240102_150405_notes.txt"`
}

type filesResponse struct {
	Files []model.DocumentSummary `json:"files"`
}

type messageResponse struct {
	Message string `json:"message" example:"File deleted"`
}

// UploadDocument godoc
// @Summary Upload a document
// @Description Accepts txt, pdf, docx, json and csv files, extracts their text and keeps it for questions.
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document to upload"
// @Success 200 {object} uploadResponse
// @Failure 400 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /upload [post]
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "No file part")
		}
		if strings.TrimSpace(fh.Filename) == "" {
			return writeError(c, fiber.StatusBadRequest, "FILENAME_REQUIRED", "No selected file")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		res, err := docSvc.Upload(c.UserContext(), f, fh.Filename)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrFilenameRequired):
				return writeError(c, fiber.StatusBadRequest, "FILENAME_REQUIRED", "No selected file")
			case errors.Is(err, service.ErrUnsupportedType):
				return writeError(c, fiber.StatusBadRequest, "INVALID_FILE_TYPE", "File type not allowed")
			case errors.Is(err, service.ErrTooLarge):
				return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File too large")
			case errors.Is(err, service.ErrExtractionFailed):
				return writeError(c, fiber.StatusInternalServerError, "EXTRACTION_FAILED", "Could not extract text from file")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.JSON(uploadResponse{Message: "File uploaded", UploadResult: *res})
	}
}

// AskQuestion godoc
// @Summary Ask a question about an uploaded document
// @Tags documents
// @Accept json
// @Produce json
// @Param request body askRequest true "Question and file id"
// @Success 200 {object} service.AnswerResult
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Failure 504 {object} errorPayload
// @Router /ask [post]
func AskQuestion(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req askRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		}
		if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.FileID) == "" {
			return writeError(c, fiber.StatusBadRequest, "MISSING_FIELDS", "Missing question or file_id")
		}

		res, err := docSvc.Ask(c.UserContext(), req.FileID, req.Question)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrQuestionRequired):
				return writeError(c, fiber.StatusBadRequest, "MISSING_FIELDS", "Missing question or file_id")
			case errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "File not found")
			case errors.Is(err, llm.ErrTimeout):
				return writeError(c, fiber.StatusGatewayTimeout, "COMPLETION_TIMEOUT", "completion service timed out")
			case errors.Is(err, service.ErrCompletionFailed):
				return writeError(c, fiber.StatusBadGateway, "COMPLETION_FAILED", "completion service failed")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.JSON(res)
	}
}

// ListFiles godoc
// @Summary List uploaded documents
// @Tags documents
// @Produce json
// @Success 200 {object} filesResponse
// @Failure 500 {object} errorPayload
// @Router /files [get]
func ListFiles(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := docSvc.List(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		if items == nil {
			items = []model.DocumentSummary{}
		}
		return c.JSON(filesResponse{Files: items})
	}
}

// DeleteFile godoc
// @Summary Delete an uploaded document
// @Tags documents
// @Produce json
// @Param file_id path string true "File id returned by upload"
// @Success 200 {object} messageResponse
// @Failure 404 {object} errorPayload
// @Router /delete/{file_id} [delete]
func DeleteFile(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := docSvc.Delete(c.UserContext(), c.Params("file_id")); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "File not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(messageResponse{Message: "File deleted"})
	}
}
