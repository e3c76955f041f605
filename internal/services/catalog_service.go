package services

import (
	"context"

	"euphony/internal/models"
	"euphony/internal/repositories"
)

// CatalogService manages the artists, albums and songs playlists refer to.
type CatalogService struct {
	repo repositories.CatalogRepository
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(repo repositories.CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

func (s *CatalogService) ListArtists(ctx context.Context) ([]models.Artist, error) {
	return s.repo.GetArtists(ctx)
}

func (s *CatalogService) GetArtist(ctx context.Context, id uint) (*models.Artist, error) {
	return s.repo.GetArtist(ctx, id)
}

func (s *CatalogService) CreateArtist(ctx context.Context, artist *models.Artist) error {
	artist.ID = 0
	return s.repo.CreateArtist(ctx, artist)
}

// ListAlbums lists albums, optionally those of one artist.
func (s *CatalogService) ListAlbums(ctx context.Context, artistID uint) ([]models.Album, error) {
	return s.repo.GetAlbums(ctx, artistID)
}

func (s *CatalogService) GetAlbum(ctx context.Context, id uint) (*models.Album, error) {
	return s.repo.GetAlbum(ctx, id)
}

// CreateAlbum stores an album of an existing artist.
func (s *CatalogService) CreateAlbum(ctx context.Context, album *models.Album) error {
	if _, err := s.repo.GetArtist(ctx, album.ArtistID); err != nil {
		return err
	}
	album.ID = 0
	return s.repo.CreateAlbum(ctx, album)
}

func (s *CatalogService) ListSongs(ctx context.Context) ([]models.Song, error) {
	return s.repo.GetSongs(ctx)
}

func (s *CatalogService) GetSong(ctx context.Context, id uint) (*models.Song, error) {
	return s.repo.GetSong(ctx, id)
}

// CreateSong stores a song of an existing artist and, when given, album.
func (s *CatalogService) CreateSong(ctx context.Context, song *models.Song) error {
	if _, err := s.repo.GetArtist(ctx, song.ArtistID); err != nil {
		return err
	}
	if song.AlbumID != nil {
		if _, err := s.repo.GetAlbum(ctx, *song.AlbumID); err != nil {
			return err
		}
	}
	song.ID = 0
	song.PlayCount = 0
	return s.repo.CreateSong(ctx, song)
}
