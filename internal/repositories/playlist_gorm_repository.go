package repositories

import (
	"context"
	"fmt"

	"euphony/internal/apperr"
	"euphony/internal/models"

	"gorm.io/gorm"
)

// GORMPlaylistRepository is a GORM implementation of PlaylistRepository.
type GORMPlaylistRepository struct {
	db *gorm.DB
}

// NewGORMPlaylistRepository creates a new instance of GORMPlaylistRepository.
func NewGORMPlaylistRepository(db *gorm.DB) *GORMPlaylistRepository {
	return &GORMPlaylistRepository{db: db}
}

func (r *GORMPlaylistRepository) GetAll(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	if err := r.db.WithContext(ctx).Order("id").Find(&playlists).Error; err != nil {
		return nil, translate("playlists.get_all", err, "")
	}
	return playlists, nil
}

func (r *GORMPlaylistRepository) GetByID(ctx context.Context, id uint) (*models.Playlist, error) {
	var playlist models.Playlist
	if err := r.db.WithContext(ctx).First(&playlist, id).Error; err != nil {
		return nil, translate("playlists.get", err, fmt.Sprintf("playlist with ID %d not found", id))
	}
	return &playlist, nil
}

func (r *GORMPlaylistRepository) GetByOwner(ctx context.Context, userID string) ([]models.Playlist, error) {
	var playlists []models.Playlist
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&playlists).Error; err != nil {
		return nil, translate("playlists.get_by_owner", err, "")
	}
	return playlists, nil
}

func (r *GORMPlaylistRepository) Create(ctx context.Context, playlist *models.Playlist) error {
	if err := r.db.WithContext(ctx).Create(playlist).Error; err != nil {
		return translate("playlists.create", err, "")
	}
	return nil
}

// Update writes the editable columns. Owner and creation date are fixed.
func (r *GORMPlaylistRepository) Update(ctx context.Context, playlist *models.Playlist) error {
	res := r.db.WithContext(ctx).Model(&models.Playlist{}).Where("id = ?", playlist.ID).Updates(map[string]interface{}{
		"name":        playlist.Name,
		"description": playlist.Description,
		"is_public":   playlist.IsPublic,
		"cover_image": playlist.CoverImage,
	})
	if res.Error != nil {
		return translate("playlists.update", res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("playlists.update", fmt.Sprintf("playlist with ID %d not found for update", playlist.ID))
	}
	return nil
}

func (r *GORMPlaylistRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", id).Delete(&models.PlaylistSong{}).Error; err != nil {
			return translate("playlists.delete", err, "")
		}
		res := tx.Delete(&models.Playlist{}, id)
		if res.Error != nil {
			return translate("playlists.delete", res.Error, "")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("playlists.delete", fmt.Sprintf("playlist with ID %d not found for deletion", id))
		}
		return nil
	})
}

func (r *GORMPlaylistRepository) DeleteByOwner(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&models.Playlist{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("playlist_id IN (?)", owned).Delete(&models.PlaylistSong{}).Error; err != nil {
			return translate("playlists.delete_by_owner", err, "")
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Playlist{}).Error; err != nil {
			return translate("playlists.delete_by_owner", err, "")
		}
		return nil
	})
}

// GORMMembershipRepository is a GORM implementation of MembershipRepository.
type GORMMembershipRepository struct {
	db *gorm.DB
}

// NewGORMMembershipRepository creates a new instance of GORMMembershipRepository.
func NewGORMMembershipRepository(db *gorm.DB) *GORMMembershipRepository {
	return &GORMMembershipRepository{db: db}
}

func (r *GORMMembershipRepository) Exists(ctx context.Context, playlistID, songID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PlaylistSong{}).
		Where("playlist_id = ? AND song_id = ?", playlistID, songID).
		Count(&count).Error
	if err != nil {
		return false, translate("memberships.exists", err, "")
	}
	return count > 0, nil
}

// Add inserts the pair. A duplicate pair is reported as a conflict.
func (r *GORMMembershipRepository) Add(ctx context.Context, membership *models.PlaylistSong) error {
	if err := r.db.WithContext(ctx).Create(membership).Error; err != nil {
		return translate("memberships.add", err, "")
	}
	return nil
}

func (r *GORMMembershipRepository) Remove(ctx context.Context, playlistID, songID uint) error {
	res := r.db.WithContext(ctx).
		Where("playlist_id = ? AND song_id = ?", playlistID, songID).
		Delete(&models.PlaylistSong{})
	if res.Error != nil {
		return translate("memberships.remove", res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("memberships.remove",
			fmt.Sprintf("song %d is not in playlist %d", songID, playlistID))
	}
	return nil
}

// Songs returns the songs of a playlist in the order they were added.
func (r *GORMMembershipRepository) Songs(ctx context.Context, playlistID uint) ([]models.Song, error) {
	var songs []models.Song
	err := r.db.WithContext(ctx).
		Joins("JOIN playlist_songs ON playlist_songs.song_id = songs.id").
		Where("playlist_songs.playlist_id = ?", playlistID).
		Order("playlist_songs.added_at, songs.id").
		Find(&songs).Error
	if err != nil {
		return nil, translate("memberships.songs", err, "")
	}
	return songs, nil
}
