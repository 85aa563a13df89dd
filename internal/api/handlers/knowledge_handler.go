package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/grantdesk/backend/internal/auth"
	"github.com/grantdesk/backend/internal/ingestion"
	"github.com/grantdesk/backend/internal/knowledge"
	"github.com/grantdesk/backend/internal/metrics"
	"github.com/grantdesk/backend/pkg/logger"
)

type KnowledgeHandler struct {
	library   *knowledge.Library
	processor *ingestion.Processor
}

func NewKnowledgeHandler(library *knowledge.Library, processor *ingestion.Processor) *KnowledgeHandler {
	return &KnowledgeHandler{
		library:   library,
		processor: processor,
	}
}

func (h *KnowledgeHandler) ListCategories(c *fiber.Ctx) error {
	cats, err := h.library.ListCategories(c.Context())
	if err != nil {
		logger.Error("Failed to list categories", zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"categories": cats})
}

func (h *KnowledgeHandler) CreateCategory(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		ParentID string `json:"parentId"`
		Password string `json:"password"`
		IsPublic *bool  `json:"isPublic"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	cat, err := h.library.CreateCategory(c.Context(), auth.CurrentUser(c), knowledge.CreateCategoryInput{
		Name:     req.Name,
		ParentID: req.ParentID,
		Password: req.Password,
		IsPublic: isPublic,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"category": cat})
}

func (h *KnowledgeHandler) VerifyPassword(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.library.VerifyPassword(c.Params("id"), req.Password); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"verified": true})
}

func (h *KnowledgeHandler) ListDocuments(c *fiber.Ctx) error {
	docs, err := h.library.ListDocuments(c.Query("categoryId"))
	if err != nil {
		logger.Error("Failed to list knowledge documents", zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"documents": docs})
}

func (h *KnowledgeHandler) GetDocument(c *fiber.Ctx) error {
	doc, err := h.library.GetDocument(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"document": doc})
}

func (h *KnowledgeHandler) CreateDocument(c *fiber.Ctx) error {
	var req struct {
		Title      string `json:"title"`
		Content    string `json:"content"`
		FileType   string `json:"fileType"`
		CategoryID string `json:"categoryId"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	doc, err := h.library.CreateDocument(auth.CurrentUser(c), knowledge.CreateDocumentInput{
		Title:      req.Title,
		Content:    req.Content,
		FileType:   req.FileType,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		return respondError(c, err)
	}

	metrics.DocumentsIngested.WithLabelValues(doc.FileType).Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"document": doc})
}

// UploadDocument ingests a file directly into a category.
func (h *KnowledgeHandler) UploadDocument(c *fiber.Ctx) error {
	categoryID := c.FormValue("categoryId")
	if categoryID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "categoryId is required",
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A file is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}

	doc, err := h.processor.IngestUploadToCategory(categoryID, ingestion.Upload{
		FileName: fileHeader.Filename,
		MIMEType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
		Data:     data,
	})
	if err != nil {
		logger.Error("Failed to ingest knowledge upload", zap.Error(err))
		return respondError(c, err)
	}

	metrics.DocumentsIngested.WithLabelValues(doc.FileType).Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"document": doc})
}
