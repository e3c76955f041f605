package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"euphony/internal/apperr"
	"euphony/internal/logging"
	"euphony/internal/models"
	"euphony/internal/repositories"

	"github.com/sirupsen/logrus"
)

// PlaylistRequest is the input of playlist creation and update. The owner
// is only read on creation.
type PlaylistRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"max=1000"`
	IsPublic    bool   `json:"is_public"`
	CoverImage  string `json:"cover_image" validate:"omitempty,max=255,url"`
	UserID      string `json:"user_id" validate:"omitempty,uuid"`
}

// PlaylistService handles business logic for playlists and their songs.
type PlaylistService struct {
	playlists   repositories.PlaylistRepository
	memberships repositories.MembershipRepository
	users       repositories.UserRepository
	catalog     repositories.CatalogRepository
	logger      *logrus.Entry
	now         func() time.Time
}

// NewPlaylistService creates a new PlaylistService.
func NewPlaylistService(
	playlists repositories.PlaylistRepository,
	memberships repositories.MembershipRepository,
	users repositories.UserRepository,
	catalog repositories.CatalogRepository,
	logger *logrus.Entry,
) *PlaylistService {
	if logger == nil {
		logger = logging.Component(logging.Discard(), "playlists")
	}
	return &PlaylistService{
		playlists:   playlists,
		memberships: memberships,
		users:       users,
		catalog:     catalog,
		logger:      logger,
		now:         time.Now,
	}
}

// List retrieves all playlists.
func (s *PlaylistService) List(ctx context.Context) ([]models.Playlist, error) {
	return s.playlists.GetAll(ctx)
}

// ListByOwner retrieves the playlists of one user.
func (s *PlaylistService) ListByOwner(ctx context.Context, userID string) ([]models.Playlist, error) {
	return s.playlists.GetByOwner(ctx, userID)
}

// Get retrieves a playlist by ID.
func (s *PlaylistService) Get(ctx context.Context, id uint) (*models.Playlist, error) {
	return s.playlists.GetByID(ctx, id)
}

// Create stores a playlist for an existing user. The creation date is the
// current day and never changes afterwards.
func (s *PlaylistService) Create(ctx context.Context, req PlaylistRequest) (*models.Playlist, error) {
	const op = "playlists.create"
	if strings.TrimSpace(req.UserID) == "" {
		return nil, apperr.Validation(op, map[string]string{"user_id": "user_id is required"})
	}
	exists, err := s.users.Exists(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound(op, fmt.Sprintf("user with ID %s not found", req.UserID))
	}

	now := s.now().UTC()
	playlist := &models.Playlist{
		UserID:      req.UserID,
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		CoverImage:  req.CoverImage,
		CreatedOn:   time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}
	if err := s.playlists.Create(ctx, playlist); err != nil {
		return nil, err
	}

	s.logger.WithField("playlist_id", playlist.ID).WithField("user_id", playlist.UserID).Info("playlist created")
	return playlist, nil
}

// Update replaces the editable fields of a playlist.
func (s *PlaylistService) Update(ctx context.Context, id uint, req PlaylistRequest) (*models.Playlist, error) {
	playlist, err := s.playlists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	playlist.Name = req.Name
	playlist.Description = req.Description
	playlist.IsPublic = req.IsPublic
	playlist.CoverImage = req.CoverImage

	if err := s.playlists.Update(ctx, playlist); err != nil {
		return nil, err
	}
	return playlist, nil
}

// Delete removes a playlist and its song memberships.
func (s *PlaylistService) Delete(ctx context.Context, id uint) error {
	if err := s.playlists.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("playlist_id", id).Info("playlist deleted")
	return nil
}

// AddSong adds a song to a playlist. Adding a song that is already there is
// a conflict.
func (s *PlaylistService) AddSong(ctx context.Context, playlistID, songID uint) error {
	const op = "playlists.add_song"
	if err := s.checkPair(ctx, op, playlistID, songID); err != nil {
		return err
	}

	exists, err := s.memberships.Exists(ctx, playlistID, songID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict(op, fmt.Sprintf("song %d is already in playlist %d", songID, playlistID))
	}

	err = s.memberships.Add(ctx, &models.PlaylistSong{
		PlaylistID: playlistID,
		SongID:     songID,
		AddedAt:    s.now(),
	})
	if err != nil {
		return err
	}
	s.logger.WithField("playlist_id", playlistID).WithField("song_id", songID).Info("song added to playlist")
	return nil
}

// RemoveSong removes a song from a playlist. The pair must exist.
func (s *PlaylistService) RemoveSong(ctx context.Context, playlistID, songID uint) error {
	if err := s.checkPair(ctx, "playlists.remove_song", playlistID, songID); err != nil {
		return err
	}
	if err := s.memberships.Remove(ctx, playlistID, songID); err != nil {
		return err
	}
	s.logger.WithField("playlist_id", playlistID).WithField("song_id", songID).Info("song removed from playlist")
	return nil
}

// ListSongs returns the songs of a playlist in insertion order.
func (s *PlaylistService) ListSongs(ctx context.Context, playlistID uint) ([]models.Song, error) {
	if _, err := s.playlists.GetByID(ctx, playlistID); err != nil {
		return nil, err
	}
	return s.memberships.Songs(ctx, playlistID)
}

func (s *PlaylistService) checkPair(ctx context.Context, op string, playlistID, songID uint) error {
	if _, err := s.playlists.GetByID(ctx, playlistID); err != nil {
		return err
	}
	exists, err := s.catalog.SongExists(ctx, songID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound(op, fmt.Sprintf("song with ID %d not found", songID))
	}
	return nil
}
