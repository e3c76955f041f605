package handlers

import (
	"euphony/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// PlaylistHandler handles HTTP requests for playlists and their songs.
type PlaylistHandler struct {
	service  *services.PlaylistService
	validate *validator.Validate
	logger   *logrus.Entry
}

// NewPlaylistHandler creates a new PlaylistHandler.
func NewPlaylistHandler(service *services.PlaylistService, logger *logrus.Entry) *PlaylistHandler {
	return &PlaylistHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers the playlist routes with the Fiber app.
func (h *PlaylistHandler) RegisterRoutes(router fiber.Router) {
	playlistRoutes := router.Group("/playlists")
	playlistRoutes.Get("/", h.HandleGetPlaylists)
	playlistRoutes.Post("/", h.HandleCreatePlaylist)
	playlistRoutes.Get("/:id", h.HandleGetPlaylist)
	playlistRoutes.Put("/:id", h.HandleUpdatePlaylist)
	playlistRoutes.Delete("/:id", h.HandleDeletePlaylist)
	playlistRoutes.Get("/:id/songs", h.HandleGetSongs)
	playlistRoutes.Post("/:playlistId/songs/:songId", h.HandleAddSong)
	playlistRoutes.Delete("/:playlistId/songs/:songId", h.HandleRemoveSong)
}

// HandleGetPlaylists lists all playlists, or those of ?user_id.
func (h *PlaylistHandler) HandleGetPlaylists(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if owner := c.Query("user_id"); owner != "" {
		playlists, err := h.service.ListByOwner(ctx, owner)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return c.JSON(playlists)
	}
	playlists, err := h.service.List(ctx)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(playlists)
}

func (h *PlaylistHandler) HandleGetPlaylist(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	playlist, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(playlist)
}

func (h *PlaylistHandler) HandleCreatePlaylist(c *fiber.Ctx) error {
	var req services.PlaylistRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	playlist, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(playlist)
}

func (h *PlaylistHandler) HandleUpdatePlaylist(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var req services.PlaylistRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	playlist, err := h.service.Update(c.UserContext(), id, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(playlist)
}

func (h *PlaylistHandler) HandleDeletePlaylist(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PlaylistHandler) HandleGetSongs(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	songs, err := h.service.ListSongs(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(songs)
}

// HandleAddSong adds a song to a playlist. Adding it twice is a conflict.
func (h *PlaylistHandler) HandleAddSong(c *fiber.Ctx) error {
	playlistID, songID, err := songPair(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.service.AddSong(c.UserContext(), playlistID, songID); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Song added to playlist"})
}

func (h *PlaylistHandler) HandleRemoveSong(c *fiber.Ctx) error {
	playlistID, songID, err := songPair(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.service.RemoveSong(c.UserContext(), playlistID, songID); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func songPair(c *fiber.Ctx) (uint, uint, error) {
	playlistID, err := paramID(c, "playlistId")
	if err != nil {
		return 0, 0, err
	}
	songID, err := paramID(c, "songId")
	if err != nil {
		return 0, 0, err
	}
	return playlistID, songID, nil
}
