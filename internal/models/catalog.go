package models

import "time"

// Artist, Album and Song are reference data for playlist membership.
type Artist struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Name      string `json:"name" gorm:"type:varchar(255);not null" validate:"required,max=255"`
	Biography string `json:"biography" validate:"omitempty,max=5000"`
	Country   string `json:"country" gorm:"type:varchar(100);not null" validate:"required,max=100"`
	Verified  bool   `json:"verified" gorm:"not null"`
}

type Album struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ArtistID    uint      `json:"artist_id" gorm:"index;not null" validate:"required"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null" validate:"required,max=255"`
	ReleaseDate time.Time `json:"release_date" gorm:"type:date"`
	CoverURL    string    `json:"cover_url"`
}

type Song struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	ArtistID        uint      `json:"artist_id" gorm:"index;not null" validate:"required"`
	AlbumID         *uint     `json:"album_id" gorm:"index"`
	Title           string    `json:"title" gorm:"type:varchar(255);not null" validate:"required,max=255"`
	DurationSeconds int       `json:"duration_seconds" gorm:"not null" validate:"gt=0"`
	Language        string    `json:"language" gorm:"type:varchar(50);not null" validate:"required,max=50"`
	ReleaseDate     time.Time `json:"release_date" gorm:"type:date"`
	FilePath        string    `json:"file_path" gorm:"uniqueIndex;type:varchar(255);not null" validate:"required,max=255"`
	PlayCount       int       `json:"play_count" gorm:"not null"`
}
