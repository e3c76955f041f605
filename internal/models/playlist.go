package models

import "time"

// Playlist is owned by exactly one user.
type Playlist struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"index;type:varchar(36);not null"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:varchar(1000)"`
	IsPublic    bool      `json:"is_public" gorm:"not null"`
	CoverImage  string    `json:"cover_image" gorm:"type:varchar(255)"`
	CreatedOn   time.Time `json:"created_on" gorm:"type:date;not null"`
}

// PlaylistSong is the membership of a song in a playlist. The pair is the
// primary key, so a song appears at most once per playlist.
type PlaylistSong struct {
	PlaylistID uint      `json:"playlist_id" gorm:"primaryKey;autoIncrement:false"`
	SongID     uint      `json:"song_id" gorm:"primaryKey;autoIncrement:false"`
	AddedAt    time.Time `json:"added_at"`
}
