package handlers

import (
	"strconv"

	"euphony/internal/apperr"
	"euphony/internal/models"
	"euphony/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// CatalogHandler serves artists, albums and songs.
type CatalogHandler struct {
	service  *services.CatalogService
	validate *validator.Validate
	logger   *logrus.Entry
}

func NewCatalogHandler(service *services.CatalogService, logger *logrus.Entry) *CatalogHandler {
	return &CatalogHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

func (h *CatalogHandler) RegisterRoutes(router fiber.Router) {
	catalogRoutes := router.Group("/catalog")
	catalogRoutes.Get("/artists", h.HandleGetArtists)
	catalogRoutes.Get("/artists/:id", h.HandleGetArtist)
	catalogRoutes.Post("/artists", h.HandleCreateArtist)
	catalogRoutes.Get("/albums", h.HandleGetAlbums)
	catalogRoutes.Get("/albums/:id", h.HandleGetAlbum)
	catalogRoutes.Post("/albums", h.HandleCreateAlbum)
	catalogRoutes.Get("/songs", h.HandleGetSongs)
	catalogRoutes.Get("/songs/:id", h.HandleGetSong)
	catalogRoutes.Post("/songs", h.HandleCreateSong)
}

func (h *CatalogHandler) HandleGetArtists(c *fiber.Ctx) error {
	artists, err := h.service.ListArtists(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(artists)
}

func (h *CatalogHandler) HandleGetArtist(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	artist, err := h.service.GetArtist(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(artist)
}

func (h *CatalogHandler) HandleCreateArtist(c *fiber.Ctx) error {
	var artist models.Artist
	if err := bind(c, h.validate, &artist); err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.service.CreateArtist(c.UserContext(), &artist); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(artist)
}

// HandleGetAlbums lists albums, filtered by ?artist_id when present.
func (h *CatalogHandler) HandleGetAlbums(c *fiber.Ctx) error {
	var artistID uint
	if raw := c.Query("artist_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return respondError(c, h.logger, apperr.Validation("", map[string]string{
				"artist_id": "'" + raw + "' is not a valid id",
			}))
		}
		artistID = uint(id)
	}
	albums, err := h.service.ListAlbums(c.UserContext(), artistID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(albums)
}

func (h *CatalogHandler) HandleGetAlbum(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	album, err := h.service.GetAlbum(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(album)
}

func (h *CatalogHandler) HandleCreateAlbum(c *fiber.Ctx) error {
	var album models.Album
	if err := bind(c, h.validate, &album); err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.service.CreateAlbum(c.UserContext(), &album); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(album)
}

func (h *CatalogHandler) HandleGetSongs(c *fiber.Ctx) error {
	songs, err := h.service.ListSongs(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(songs)
}

func (h *CatalogHandler) HandleGetSong(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	song, err := h.service.GetSong(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(song)
}

func (h *CatalogHandler) HandleCreateSong(c *fiber.Ctx) error {
	var song models.Song
	if err := bind(c, h.validate, &song); err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.service.CreateSong(c.UserContext(), &song); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(song)
}
