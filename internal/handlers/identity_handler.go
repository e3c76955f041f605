package handlers

import (
	"euphony/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// IdentityHandler exposes identity provider administration.
type IdentityHandler struct {
	service  *services.IdentityService
	validate *validator.Validate
	logger   *logrus.Entry
}

// NewIdentityHandler creates a new IdentityHandler.
func NewIdentityHandler(service *services.IdentityService, logger *logrus.Entry) *IdentityHandler {
	return &IdentityHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers the identity routes behind the given guards.
func (h *IdentityHandler) RegisterRoutes(router fiber.Router, guards ...fiber.Handler) {
	identityRoutes := router.Group("/identity/users", guards...)
	identityRoutes.Get("/", h.HandleList)
	identityRoutes.Get("/:username", h.HandleFind)
	identityRoutes.Post("/", h.HandleCreate)
	identityRoutes.Put("/:id", h.HandleUpdate)
	identityRoutes.Delete("/:id", h.HandleDelete)
	identityRoutes.Get("/:id/roles", h.HandleRoles)
}

func (h *IdentityHandler) HandleList(c *fiber.Ctx) error {
	records, err := h.service.List(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(records)
}

func (h *IdentityHandler) HandleFind(c *fiber.Ctx) error {
	record, err := h.service.FindByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(record)
}

func (h *IdentityHandler) HandleCreate(c *fiber.Ctx) error {
	var req services.UserRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	record, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Identity created successfully",
		"identity": record,
	})
}

func (h *IdentityHandler) HandleUpdate(c *fiber.Ctx) error {
	var req services.UserRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.service.Update(c.UserContext(), c.Params("id"), req); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"message": "Identity updated successfully"})
}

func (h *IdentityHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *IdentityHandler) HandleRoles(c *fiber.Ctx) error {
	roles, err := h.service.Roles(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"roles": roles})
}
