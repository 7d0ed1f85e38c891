package schema

// Trigger bodies call two functions the storage layer registers with the
// engine: _DELETE_FILE(path) and _OBJECT_REMOVED(id).
var (
	albumArtTriggers = []Object{
		{Kind: KindTrigger, Name: "albumart_cleanup1", Table: "albums",
			SQL: "CREATE TRIGGER albumart_cleanup1 DELETE ON albums BEGIN DELETE FROM album_art WHERE album_id = old.album_id;END"},
		{Kind: KindTrigger, Name: "albumart_cleanup2", Table: "album_art",
			SQL: "CREATE TRIGGER albumart_cleanup2 DELETE ON album_art BEGIN SELECT _DELETE_FILE(old._data);END"},
	}

	externalTriggers = []Object{
		{Kind: KindTrigger, Name: "audio_genres_cleanup", Table: "audio_genres",
			SQL: "CREATE TRIGGER audio_genres_cleanup DELETE ON audio_genres BEGIN DELETE FROM audio_genres_map WHERE genre_id = old._id;END"},
		{Kind: KindTrigger, Name: "audio_playlists_cleanup", Table: "files",
			SQL: "CREATE TRIGGER audio_playlists_cleanup DELETE ON files WHEN old.media_type=4" +
				" BEGIN DELETE FROM audio_playlists_map WHERE playlist_id = old._id;SELECT _DELETE_FILE(old._data);END"},
		{Kind: KindTrigger, Name: "files_cleanup", Table: "files",
			SQL: "CREATE TRIGGER files_cleanup DELETE ON files BEGIN SELECT _OBJECT_REMOVED(old._id);END"},
	}
)

func triggers(internal bool) []Object {
	var out []Object
	if !internal {
		out = append(out, externalTriggers...)
	}
	return append(out, albumArtTriggers...)
}
