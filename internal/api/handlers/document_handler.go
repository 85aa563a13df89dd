package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/grantdesk/backend/internal/auth"
	"github.com/grantdesk/backend/internal/chat"
	"github.com/grantdesk/backend/internal/ingestion"
	"github.com/grantdesk/backend/internal/metrics"
	"github.com/grantdesk/backend/pkg/logger"
)

type DocumentHandler struct {
	processor    *ingestion.Processor
	orchestrator *chat.Orchestrator
}

func NewDocumentHandler(processor *ingestion.Processor, orchestrator *chat.Orchestrator) *DocumentHandler {
	return &DocumentHandler{
		processor:    processor,
		orchestrator: orchestrator,
	}
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)

	docs, err := h.orchestrator.ListDocuments(user.ID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	chatRow, err := h.orchestrator.GetChat(user.ID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"documents":         docs,
		"activeDocumentIds": chatRow.ActiveDocumentIDs,
	})
}

// UpdateActiveDocuments replaces the chat's active list wholesale.
func (h *DocumentHandler) UpdateActiveDocuments(c *fiber.Ctx) error {
	var req struct {
		DocumentIDs []string `json:"documentIds"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user := auth.CurrentUser(c)
	active, err := h.orchestrator.ActivateDocuments(user.ID, c.Params("id"), req.DocumentIDs, false)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"activeDocumentIds": active})
}

func (h *DocumentHandler) ActivateDocuments(c *fiber.Ctx) error {
	var req struct {
		DocumentIDs []string `json:"documentIds"`
		ActivateAll bool     `json:"activateAll"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user := auth.CurrentUser(c)
	active, err := h.orchestrator.ActivateDocuments(user.ID, c.Params("id"), req.DocumentIDs, req.ActivateAll)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"activeDocumentIds": active})
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A file is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open upload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read upload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}

	user := auth.CurrentUser(c)
	doc, err := h.processor.IngestUpload(user.ID, c.Params("id"), ingestion.Upload{
		FileName: fileHeader.Filename,
		MIMEType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
		Data:     data,
	})
	if err != nil {
		logger.Error("Failed to ingest upload", zap.String("chat_id", c.Params("id")), zap.Error(err))
		return respondError(c, err)
	}

	metrics.DocumentsIngested.WithLabelValues(doc.FileType).Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"document": doc})
}

// IngestText creates a chat around a pasted text document.
func (h *DocumentHandler) IngestText(c *fiber.Ctx) error {
	var req struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		FileType string `json:"fileType"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user := auth.CurrentUser(c)
	chatRow, doc, err := h.processor.IngestText(user.ID, req.Title, req.Content, req.FileType)
	if err != nil {
		return respondError(c, err)
	}

	metrics.DocumentsIngested.WithLabelValues(doc.FileType).Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"chat":     chatRow,
		"document": doc,
	})
}
