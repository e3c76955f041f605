package handlers

import (
	"euphony/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// UserHandler handles HTTP requests for users.
type UserHandler struct {
	service  *services.UserService
	validate *validator.Validate
	logger   *logrus.Entry
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserService, logger *logrus.Entry) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers the user routes with the Fiber app.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/users")
	userRoutes.Get("/all", h.HandleGetUsers)
	userRoutes.Get("/search/:id", h.HandleGetUser)
	userRoutes.Post("/create", h.HandleCreateUser)
	userRoutes.Put("/update/:id", h.HandleUpdateUser)
	userRoutes.Delete("/delete/:id", h.HandleDeleteUser)
}

// HandleGetUsers retrieves all users.
func (h *UserHandler) HandleGetUsers(c *fiber.Ctx) error {
	users, err := h.service.List(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(users)
}

// HandleGetUser retrieves a single user by ID.
func (h *UserHandler) HandleGetUser(c *fiber.Ctx) error {
	user, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(user)
}

// HandleCreateUser provisions a new user in the identity provider and
// locally.
func (h *UserHandler) HandleCreateUser(c *fiber.Ctx) error {
	var req services.UserRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	user, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"id":      user.ID,
		"user":    user,
	})
}

// HandleUpdateUser updates a user in both stores.
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	var req services.UserRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	user, err := h.service.Update(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"user":    user,
	})
}

// HandleDeleteUser deletes a user from both stores.
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
