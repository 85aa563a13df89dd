package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/grantdesk/backend/internal/auth"
	"github.com/grantdesk/backend/internal/deadline"
	"github.com/grantdesk/backend/internal/metrics"
	"github.com/grantdesk/backend/internal/project"
	"github.com/grantdesk/backend/pkg/logger"
)

type ProjectHandler struct {
	service  *project.Service
	detector *deadline.Detector
}

func NewProjectHandler(service *project.Service, detector *deadline.Detector) *ProjectHandler {
	return &ProjectHandler{
		service:  service,
		detector: detector,
	}
}

func (h *ProjectHandler) ListProjects(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)

	projects, err := h.service.List(user.ID)
	if err != nil {
		logger.Error("Failed to list projects", zap.String("user_id", user.ID), zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"projects": projects})
}

func (h *ProjectHandler) CreateProject(c *fiber.Ctx) error {
	var req project.ProjectInput

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user := auth.CurrentUser(c)
	created, err := h.service.Create(user.ID, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"project": created})
}

func (h *ProjectHandler) GetProject(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)

	found, err := h.service.Get(user.ID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"project": found})
}

func (h *ProjectHandler) UpdateProject(c *fiber.Ctx) error {
	var req project.ProjectInput

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user := auth.CurrentUser(c)
	updated, err := h.service.Update(user.ID, c.Params("id"), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"project": updated})
}

func (h *ProjectHandler) DeleteProject(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)

	if err := h.service.Delete(user.ID, c.Params("id")); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Project deleted"})
}

func (h *ProjectHandler) UpdateTask(c *fiber.Ctx) error {
	var req project.TaskInput

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user := auth.CurrentUser(c)
	task, err := h.service.UpdateTask(user.ID, c.Params("id"), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"task": task})
}

func (h *ProjectHandler) UpdateMilestone(c *fiber.Ctx) error {
	var req project.MilestoneInput

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user := auth.CurrentUser(c)
	milestone, err := h.service.UpdateMilestone(user.ID, c.Params("id"), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"milestone": milestone})
}

// DetectDeadlines materializes date mentions from a document as a project
// with tasks and milestones. Serves both /detect-deadlines and the
// /projects/generate-from-document alias.
func (h *ProjectHandler) DetectDeadlines(c *fiber.Ctx) error {
	var req struct {
		DocumentID string `json:"documentId"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.DocumentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "documentId is required",
		})
	}

	user := auth.CurrentUser(c)
	result, err := h.detector.Detect(c.Context(), user.ID, req.DocumentID)
	if err != nil {
		logger.Error("Deadline detection failed",
			zap.String("document_id", req.DocumentID),
			zap.Error(err),
		)
		return respondError(c, err)
	}

	for _, item := range result.CreatedItems {
		metrics.DeadlineItemsCreated.WithLabelValues(item.Type).Inc()
	}

	return c.JSON(result)
}
