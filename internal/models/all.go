package models

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Role{},
		&User{},
		&Profile{},
		&Artist{},
		&Album{},
		&Song{},
		&Playlist{},
		&PlaylistSong{},
	}
}
