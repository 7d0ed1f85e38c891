package schema

// Tables other than files. Playlist and genre tables only exist on removable
// (non-internal) volumes.
var (
	sharedTables = []Object{
		{Kind: KindTable, Name: "thumbnails", SQL: "CREATE TABLE thumbnails (_id INTEGER PRIMARY KEY,_data TEXT,image_id INTEGER,kind INTEGER,width INTEGER,height INTEGER)"},
		{Kind: KindTable, Name: "artists", SQL: "CREATE TABLE artists (artist_id INTEGER PRIMARY KEY,artist_key TEXT NOT NULL UNIQUE,artist TEXT NOT NULL)"},
		{Kind: KindTable, Name: "albums", SQL: "CREATE TABLE albums (album_id INTEGER PRIMARY KEY,album_key TEXT NOT NULL UNIQUE,album TEXT NOT NULL)"},
		{Kind: KindTable, Name: "album_art", SQL: "CREATE TABLE album_art (album_id INTEGER PRIMARY KEY,_data TEXT)"},
		{Kind: KindTable, Name: "videothumbnails", SQL: "CREATE TABLE videothumbnails (_id INTEGER PRIMARY KEY,_data TEXT,video_id INTEGER,kind INTEGER,width INTEGER,height INTEGER)"},
	}

	logTable = Object{Kind: KindTable, Name: "log", SQL: "CREATE TABLE log (time DATETIME, message TEXT)"}

	externalTables = []Object{
		{Kind: KindTable, Name: "audio_genres", SQL: "CREATE TABLE audio_genres (_id INTEGER PRIMARY KEY,name TEXT NOT NULL)"},
		{Kind: KindTable, Name: "audio_genres_map", SQL: "CREATE TABLE audio_genres_map (_id INTEGER PRIMARY KEY,audio_id INTEGER NOT NULL,genre_id INTEGER NOT NULL,UNIQUE (audio_id,genre_id) ON CONFLICT IGNORE)"},
		{Kind: KindTable, Name: "audio_playlists_map", SQL: "CREATE TABLE audio_playlists_map (_id INTEGER PRIMARY KEY,audio_id INTEGER NOT NULL,playlist_id INTEGER NOT NULL,play_order INTEGER NOT NULL)"},
	}
)

func tables(version int, internal bool) []Object {
	out := append([]Object{}, sharedTables...)
	out = append(out, Object{Kind: KindTable, Name: "files", SQL: filesTable(version)}, logTable)
	if !internal {
		out = append(out, externalTables...)
	}
	return out
}
