package repositories

import (
	"context"
	"fmt"

	"euphony/internal/models"

	"gorm.io/gorm"
)

// GORMCatalogRepository is a GORM implementation of CatalogRepository.
type GORMCatalogRepository struct {
	db *gorm.DB
}

// NewGORMCatalogRepository creates a new instance of GORMCatalogRepository.
func NewGORMCatalogRepository(db *gorm.DB) *GORMCatalogRepository {
	return &GORMCatalogRepository{db: db}
}

func (r *GORMCatalogRepository) GetArtists(ctx context.Context) ([]models.Artist, error) {
	var artists []models.Artist
	if err := r.db.WithContext(ctx).Order("name").Find(&artists).Error; err != nil {
		return nil, translate("catalog.get_artists", err, "")
	}
	return artists, nil
}

func (r *GORMCatalogRepository) GetArtist(ctx context.Context, id uint) (*models.Artist, error) {
	var artist models.Artist
	if err := r.db.WithContext(ctx).First(&artist, id).Error; err != nil {
		return nil, translate("catalog.get_artist", err, fmt.Sprintf("artist with ID %d not found", id))
	}
	return &artist, nil
}

func (r *GORMCatalogRepository) CreateArtist(ctx context.Context, artist *models.Artist) error {
	if err := r.db.WithContext(ctx).Create(artist).Error; err != nil {
		return translate("catalog.create_artist", err, "")
	}
	return nil
}

// GetAlbums lists albums, restricted to one artist when artistID is non-zero.
func (r *GORMCatalogRepository) GetAlbums(ctx context.Context, artistID uint) ([]models.Album, error) {
	var albums []models.Album
	q := r.db.WithContext(ctx).Order("id")
	if artistID != 0 {
		q = q.Where("artist_id = ?", artistID)
	}
	if err := q.Find(&albums).Error; err != nil {
		return nil, translate("catalog.get_albums", err, "")
	}
	return albums, nil
}

func (r *GORMCatalogRepository) GetAlbum(ctx context.Context, id uint) (*models.Album, error) {
	var album models.Album
	if err := r.db.WithContext(ctx).First(&album, id).Error; err != nil {
		return nil, translate("catalog.get_album", err, fmt.Sprintf("album with ID %d not found", id))
	}
	return &album, nil
}

func (r *GORMCatalogRepository) CreateAlbum(ctx context.Context, album *models.Album) error {
	if err := r.db.WithContext(ctx).Create(album).Error; err != nil {
		return translate("catalog.create_album", err, "")
	}
	return nil
}

func (r *GORMCatalogRepository) GetSongs(ctx context.Context) ([]models.Song, error) {
	var songs []models.Song
	if err := r.db.WithContext(ctx).Order("id").Find(&songs).Error; err != nil {
		return nil, translate("catalog.get_songs", err, "")
	}
	return songs, nil
}

func (r *GORMCatalogRepository) GetSong(ctx context.Context, id uint) (*models.Song, error) {
	var song models.Song
	if err := r.db.WithContext(ctx).First(&song, id).Error; err != nil {
		return nil, translate("catalog.get_song", err, fmt.Sprintf("song with ID %d not found", id))
	}
	return &song, nil
}

func (r *GORMCatalogRepository) SongExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Song{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, translate("catalog.song_exists", err, "")
	}
	return count > 0, nil
}

func (r *GORMCatalogRepository) CreateSong(ctx context.Context, song *models.Song) error {
	if err := r.db.WithContext(ctx).Create(song).Error; err != nil {
		return translate("catalog.create_song", err, "")
	}
	return nil
}
