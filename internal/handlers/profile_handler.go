package handlers

import (
	"euphony/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ProfileHandler handles HTTP requests for user profiles.
type ProfileHandler struct {
	service  *services.ProfileService
	validate *validator.Validate
	logger   *logrus.Entry
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(service *services.ProfileService, logger *logrus.Entry) *ProfileHandler {
	return &ProfileHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers the profile routes with the Fiber app.
func (h *ProfileHandler) RegisterRoutes(router fiber.Router) {
	profileRoutes := router.Group("/users/profile")
	profileRoutes.Get("/all", h.HandleGetProfiles)
	profileRoutes.Get("/search/:userId", h.HandleGetProfile)
	profileRoutes.Put("/update/:userId", h.HandleUpdateProfile)
	profileRoutes.Delete("/delete/:userId", h.HandleDeleteProfile)
}

func (h *ProfileHandler) HandleGetProfiles(c *fiber.Ctx) error {
	profiles, err := h.service.List(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(profiles)
}

func (h *ProfileHandler) HandleGetProfile(c *fiber.Ctx) error {
	profile, err := h.service.GetByUserID(c.UserContext(), c.Params("userId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(profile)
}

func (h *ProfileHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	var req services.ProfileRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	profile, err := h.service.Update(c.UserContext(), c.Params("userId"), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"message": "Profile updated successfully",
		"profile": profile,
	})
}

// HandleDeleteProfile deletes a profile. The matching identity is removed
// asynchronously from the caller's point of view.
func (h *ProfileHandler) HandleDeleteProfile(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("userId")); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
