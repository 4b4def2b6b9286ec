package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issue-service/internal/api/dto"
	"github.com/spec-kit/civic-issue-service/internal/service"
)

// IssuesHandler exposes the issue lifecycle.
type IssuesHandler struct {
	issues    *service.IssueService
	validator *dto.Validator
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issues *service.IssueService, validator *dto.Validator) *IssuesHandler {
	return &IssuesHandler{issues: issues, validator: validator}
}

// Create handles POST /issues.
func (h *IssuesHandler) Create(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	var req dto.CreateIssueRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return err
	}

	issue, err := h.issues.Create(c.UserContext(), principal.UserID, service.IssueCreateInput{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Address:     req.Address,
		Landmark:    req.Landmark,
		Category:    req.Category,
		Area:        req.Area,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewIssueResponse(issue)})
}

// List handles GET /issues?status=OPEN,IN_PROGRESS&page=1&page_size=20.
func (h *IssuesHandler) List(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		return err
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	issues, err := h.issues.ListForUser(c.UserContext(), principal.Actor(), service.IssueListFilter{
		Statuses: statuses,
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewIssueResponses(issues),
		"meta": fiber.Map{"page": page, "page_size": pageSize},
	})
}

// Get handles GET /issues/:id.
func (h *IssuesHandler) Get(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	issue, err := h.issues.Get(c.UserContext(), id, principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueResponse(issue)})
}

// Update handles PATCH /issues/:id.
func (h *IssuesHandler) Update(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateIssueRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return err
	}
	issue, err := h.issues.Update(c.UserContext(), id, principal.UserID, req.Patch())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueResponse(issue)})
}

// Delete handles DELETE /issues/:id.
func (h *IssuesHandler) Delete(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.issues.Delete(c.UserContext(), id, principal.UserID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Transition handles PATCH /issues/:id/status.
func (h *IssuesHandler) Transition(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return err
	}
	issue, err := h.issues.Transition(c.UserContext(), id, principal.Actor(), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueResponse(issue)})
}

// History handles GET /issues/:id/history.
func (h *IssuesHandler) History(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.issues.History(c.UserContext(), id, principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries)})
}
