package repositories

import (
	"context"

	"euphony/internal/models"
)

// PlaylistRepository defines the interface for playlist data access.
type PlaylistRepository interface {
	GetAll(ctx context.Context) ([]models.Playlist, error)
	GetByID(ctx context.Context, id uint) (*models.Playlist, error)
	GetByOwner(ctx context.Context, userID string) ([]models.Playlist, error)
	Create(ctx context.Context, playlist *models.Playlist) error
	Update(ctx context.Context, playlist *models.Playlist) error
	// Delete removes the playlist and its memberships.
	Delete(ctx context.Context, id uint) error
	// DeleteByOwner removes every playlist owned by userID and their
	// memberships.
	DeleteByOwner(ctx context.Context, userID string) error
}

// MembershipRepository manages the songs of a playlist.
type MembershipRepository interface {
	Exists(ctx context.Context, playlistID, songID uint) (bool, error)
	Add(ctx context.Context, membership *models.PlaylistSong) error
	Remove(ctx context.Context, playlistID, songID uint) error
	Songs(ctx context.Context, playlistID uint) ([]models.Song, error)
}
