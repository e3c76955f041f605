package services_test

import (
	"context"
	"testing"
	"time"

	"euphony/internal/apperr"
	"euphony/internal/database"
	"euphony/internal/models"
	"euphony/internal/repositories"
	"euphony/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type playlistEnv struct {
	svc     *services.PlaylistService
	catalog *services.CatalogService
	owner   *models.User
	song    *models.Song
}

func newPlaylistEnv(t *testing.T) *playlistEnv {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenInMemory(uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	users := repositories.NewGORMUserRepository(db)
	catalogRepo := repositories.NewGORMCatalogRepository(db)
	env := &playlistEnv{
		svc: services.NewPlaylistService(
			repositories.NewGORMPlaylistRepository(db),
			repositories.NewGORMMembershipRepository(db),
			users,
			catalogRepo,
			nil,
		),
		catalog: services.NewCatalogService(catalogRepo),
	}

	env.owner = &models.User{ID: uuid.NewString(), Username: "owner", Email: "owner@x.com", Active: true}
	require.NoError(t, users.Create(ctx, env.owner))

	artist := &models.Artist{Name: "Band", Country: "NL"}
	require.NoError(t, env.catalog.CreateArtist(ctx, artist))
	env.song = &models.Song{ArtistID: artist.ID, Title: "One", DurationSeconds: 200, Language: "en", FilePath: "/songs/one.mp3"}
	require.NoError(t, env.catalog.CreateSong(ctx, env.song))
	return env
}

func (e *playlistEnv) createPlaylist(t *testing.T) *models.Playlist {
	t.Helper()
	pl, err := e.svc.Create(context.Background(), services.PlaylistRequest{
		Name:   "Road trip",
		UserID: e.owner.ID,
	})
	require.NoError(t, err)
	return pl
}

func TestPlaylistService_Create(t *testing.T) {
	env := newPlaylistEnv(t)

	pl := env.createPlaylist(t)
	assert.NotZero(t, pl.ID)
	assert.Equal(t, env.owner.ID, pl.UserID)
	today := time.Now().UTC()
	assert.Equal(t, today.Format("2006-01-02"), pl.CreatedOn.Format("2006-01-02"))

	_, err := env.svc.Create(context.Background(), services.PlaylistRequest{Name: "Ghost", UserID: uuid.NewString()})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = env.svc.Create(context.Background(), services.PlaylistRequest{Name: "Nobody"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestPlaylistService_UpdateKeepsOwnerAndDate(t *testing.T) {
	ctx := context.Background()
	env := newPlaylistEnv(t)
	pl := env.createPlaylist(t)

	updated, err := env.svc.Update(ctx, pl.ID, services.PlaylistRequest{
		Name:     "Night drive",
		IsPublic: true,
		UserID:   uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Night drive", updated.Name)
	assert.True(t, updated.IsPublic)
	assert.Equal(t, env.owner.ID, updated.UserID)
	assert.Equal(t, pl.CreatedOn.Format("2006-01-02"), updated.CreatedOn.Format("2006-01-02"))

	_, err = env.svc.Update(ctx, 9999, services.PlaylistRequest{Name: "Missing"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestPlaylistService_AddSongTwiceIsConflict(t *testing.T) {
	ctx := context.Background()
	env := newPlaylistEnv(t)
	pl := env.createPlaylist(t)

	require.NoError(t, env.svc.AddSong(ctx, pl.ID, env.song.ID))
	err := env.svc.AddSong(ctx, pl.ID, env.song.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	songs, err := env.svc.ListSongs(ctx, pl.ID)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, env.song.ID, songs[0].ID)
}

func TestPlaylistService_RemoveSongTwiceIsNotFound(t *testing.T) {
	ctx := context.Background()
	env := newPlaylistEnv(t)
	pl := env.createPlaylist(t)
	require.NoError(t, env.svc.AddSong(ctx, pl.ID, env.song.ID))

	require.NoError(t, env.svc.RemoveSong(ctx, pl.ID, env.song.ID))
	err := env.svc.RemoveSong(ctx, pl.ID, env.song.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestPlaylistService_MissingSides(t *testing.T) {
	ctx := context.Background()
	env := newPlaylistEnv(t)
	pl := env.createPlaylist(t)

	tests := []struct {
		name       string
		playlistID uint
		songID     uint
	}{
		{"missing playlist", 9999, env.song.ID},
		{"missing song", pl.ID, 9999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, apperr.Is(env.svc.AddSong(ctx, tt.playlistID, tt.songID), apperr.KindNotFound))
			assert.True(t, apperr.Is(env.svc.RemoveSong(ctx, tt.playlistID, tt.songID), apperr.KindNotFound))
		})
	}
}

func TestPlaylistService_Delete(t *testing.T) {
	ctx := context.Background()
	env := newPlaylistEnv(t)
	pl := env.createPlaylist(t)
	require.NoError(t, env.svc.AddSong(ctx, pl.ID, env.song.ID))

	require.NoError(t, env.svc.Delete(ctx, pl.ID))
	_, err := env.svc.Get(ctx, pl.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(env.svc.Delete(ctx, pl.ID), apperr.KindNotFound))
	_, err = env.svc.ListSongs(ctx, pl.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCatalogService_CreateSongRequiresArtistAndAlbum(t *testing.T) {
	ctx := context.Background()
	env := newPlaylistEnv(t)

	err := env.catalog.CreateSong(ctx, &models.Song{ArtistID: 9999, Title: "x", DurationSeconds: 1, Language: "en", FilePath: "/x"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	album := uint(9999)
	err = env.catalog.CreateSong(ctx, &models.Song{ArtistID: env.song.ArtistID, AlbumID: &album, Title: "x", DurationSeconds: 1, Language: "en", FilePath: "/x"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = env.catalog.CreateSong(ctx, &models.Song{ArtistID: env.song.ArtistID, Title: "dup", DurationSeconds: 1, Language: "en", FilePath: env.song.FilePath})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}
