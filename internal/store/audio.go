package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/franz/media-index/internal/util"
)

// keyOf normalizes a name into the artist_key/album_key form.
func keyOf(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// upsertKeyed inserts name into a keyed table unless its key exists and
// returns the row id.
func (h *Handle) upsertKeyed(ctx context.Context, table, idCol, keyCol, nameCol, name string) (int64, error) {
	db, err := h.Writable(ctx)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(name) == "" {
		name = "<unknown>"
	}
	key := keyOf(name)

	_, err = db.ExecContext(ctx,
		fmt.Sprintf("INSERT OR IGNORE INTO %s (%s, %s) VALUES (?, ?)", table, keyCol, nameCol), key, name)
	if err != nil {
		return 0, storageError("failed to insert into "+table, err)
	}

	var id int64
	err = db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", idCol, table, keyCol), key).Scan(&id)
	if err != nil {
		return 0, storageError("failed to look up "+table, err)
	}
	return id, nil
}

// UpsertArtist returns the id of the artist, creating it if needed.
func (h *Handle) UpsertArtist(ctx context.Context, name string) (int64, error) {
	return h.upsertKeyed(ctx, "artists", "artist_id", "artist_key", "artist", name)
}

// UpsertAlbum returns the id of the album, creating it if needed.
func (h *Handle) UpsertAlbum(ctx context.Context, name string) (int64, error) {
	return h.upsertKeyed(ctx, "albums", "album_id", "album_key", "album", name)
}

// SetAlbumArt records the art file of an album, replacing any previous one.
func (h *Handle) SetAlbumArt(ctx context.Context, albumID int64, path string) error {
	db, err := h.Writable(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO album_art (album_id, _data) VALUES (?, ?)
		ON CONFLICT(album_id) DO UPDATE SET _data = excluded._data
	`, albumID, path)
	if err != nil {
		return storageError("failed to set album art", err)
	}
	return nil
}

// AlbumArtPath returns the art file of an album, if any.
func (h *Handle) AlbumArtPath(ctx context.Context, albumID int64) (string, bool, error) {
	db, err := h.Writable(ctx)
	if err != nil {
		return "", false, err
	}

	var path sql.NullString
	err = db.QueryRowContext(ctx, "SELECT _data FROM album_art WHERE album_id = ?", albumID).Scan(&path)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageError("failed to get album art", err)
	}
	return path.String, path.Valid, nil
}

// DeleteAlbum removes an album. Its album art row and file go with it.
func (h *Handle) DeleteAlbum(ctx context.Context, albumID int64) error {
	db, err := h.Writable(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM albums WHERE album_id = ?", albumID); err != nil {
		return storageError("failed to delete album", err)
	}
	return nil
}

func (h *Handle) requireExternal(what string) error {
	if h.opts.Internal {
		return fmt.Errorf("%s: %w on the internal volume", what, util.ErrUnsupported)
	}
	return nil
}

// InsertGenre returns the id of the genre called name, creating it if no
// genre of that name (ignoring case) exists.
func (h *Handle) InsertGenre(ctx context.Context, name string) (int64, error) {
	if err := h.requireExternal("genres"); err != nil {
		return 0, err
	}
	db, err := h.Writable(ctx)
	if err != nil {
		return 0, err
	}

	var id int64
	err = db.QueryRowContext(ctx, "SELECT _id FROM audio_genres WHERE name = ? COLLATE NOCASE", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, storageError("failed to look up genre", err)
	}

	res, err := db.ExecContext(ctx, "INSERT INTO audio_genres (name) VALUES (?)", name)
	if err != nil {
		return 0, storageError("failed to insert genre", err)
	}
	return res.LastInsertId()
}

// AddToGenre maps an audio file to a genre. Adding it twice is a no-op.
func (h *Handle) AddToGenre(ctx context.Context, audioID, genreID int64) error {
	if err := h.requireExternal("genres"); err != nil {
		return err
	}
	db, err := h.Writable(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, "INSERT INTO audio_genres_map (audio_id, genre_id) VALUES (?, ?)", audioID, genreID)
	if err != nil {
		return storageError("failed to add to genre", err)
	}
	return nil
}

// DeleteGenre removes a genre and, through its trigger, its members.
func (h *Handle) DeleteGenre(ctx context.Context, genreID int64) error {
	if err := h.requireExternal("genres"); err != nil {
		return err
	}
	db, err := h.Writable(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM audio_genres WHERE _id = ?", genreID); err != nil {
		return storageError("failed to delete genre", err)
	}
	return nil
}

// AddToPlaylist appends an audio file to a playlist file at the given
// position.
func (h *Handle) AddToPlaylist(ctx context.Context, playlistID, audioID int64, order int) error {
	if err := h.requireExternal("playlists"); err != nil {
		return err
	}
	db, err := h.Writable(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO audio_playlists_map (audio_id, playlist_id, play_order) VALUES (?, ?, ?)",
		audioID, playlistID, order)
	if err != nil {
		return storageError("failed to add to playlist", err)
	}
	return nil
}

// GenreMembers returns the number of files mapped to a genre.
func (h *Handle) GenreMembers(ctx context.Context, genreID int64) (int, error) {
	return h.countWhere(ctx, "audio_genres_map", "genre_id", genreID)
}

// PlaylistMembers returns the number of entries of a playlist.
func (h *Handle) PlaylistMembers(ctx context.Context, playlistID int64) (int, error) {
	return h.countWhere(ctx, "audio_playlists_map", "playlist_id", playlistID)
}

func (h *Handle) countWhere(ctx context.Context, table, column string, value int64) (int, error) {
	if err := h.requireExternal(table); err != nil {
		return 0, err
	}
	db, err := h.Writable(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	err = db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", table, column), value).Scan(&count)
	if err != nil {
		return 0, storageError("failed to count "+table, err)
	}
	return count, nil
}
