package repositories

import (
	"context"

	"euphony/internal/models"
)

// CatalogRepository defines the interface for artists, albums and songs.
type CatalogRepository interface {
	GetArtists(ctx context.Context) ([]models.Artist, error)
	GetArtist(ctx context.Context, id uint) (*models.Artist, error)
	CreateArtist(ctx context.Context, artist *models.Artist) error
	GetAlbums(ctx context.Context, artistID uint) ([]models.Album, error)
	GetAlbum(ctx context.Context, id uint) (*models.Album, error)
	CreateAlbum(ctx context.Context, album *models.Album) error
	GetSongs(ctx context.Context) ([]models.Song, error)
	GetSong(ctx context.Context, id uint) (*models.Song, error)
	SongExists(ctx context.Context, id uint) (bool, error)
	CreateSong(ctx context.Context, song *models.Song) error
}
