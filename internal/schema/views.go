package schema

import (
	"fmt"
	"strings"
)

type viewColumn struct {
	name  string
	since int
}

func p(names ...string) []viewColumn {
	cols := make([]viewColumn, len(names))
	for i, n := range names {
		cols[i] = viewColumn{n, VersionP}
	}
	return cols
}

func at(version int, names ...string) []viewColumn {
	cols := make([]viewColumn, len(names))
	for i, n := range names {
		cols[i] = viewColumn{n, version}
	}
	return cols
}

func concat(groups ...[]viewColumn) []viewColumn {
	var out []viewColumn
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func selectList(cols []viewColumn, version int) string {
	var names []string
	for _, c := range cols {
		if c.since <= version {
			names = append(names, c.name)
		}
	}
	return strings.Join(names, ",")
}

// Column projections of the per-type views.
var (
	audioMetaColumns = concat(
		p("_id", "_data", "_display_name", "_size", "mime_type", "date_added", "is_drm",
			"date_modified", "title", "title_key", "duration", "artist_id", "composer", "album_id",
			"track", "year", "is_ringtone", "is_music", "is_alarm", "is_notification", "is_podcast",
			"bookmark", "album_artist"),
		at(VersionOwnerPackage, "owner_package_name"),
		at(VersionHashAndPending, "is_pending"),
		at(VersionAudiobook, "is_audiobook"),
		at(VersionRelativePath, "relative_path"),
		at(VersionVolumeName, "volume_name"),
	)

	imagesColumns = concat(
		p("_id", "_data", "_size", "_display_name", "mime_type", "title", "date_added",
			"date_modified", "description", "picasa_id", "isprivate", "latitude", "longitude",
			"datetaken", "orientation", "mini_thumb_magic", "bucket_id", "bucket_display_name",
			"width", "height"),
		at(VersionOwnerPackage, "owner_package_name"),
		at(VersionColorSpaces, "color_standard", "color_transfer", "color_range"),
		at(VersionHashAndPending, "is_pending"),
		at(VersionRelativePath, "relative_path"),
		at(VersionVolumeName, "volume_name"),
	)

	videoColumns = concat(
		p("_id", "_data", "_display_name", "_size", "mime_type", "date_added", "date_modified",
			"title", "duration", "artist", "album", "resolution", "description", "isprivate", "tags",
			"category", "language", "mini_thumb_data", "latitude", "longitude", "datetaken",
			"mini_thumb_magic", "bucket_id", "bucket_display_name", "bookmark", "width", "height"),
		at(VersionOwnerPackage, "owner_package_name"),
		at(VersionColorSpaces, "color_standard", "color_transfer", "color_range"),
		at(VersionHashAndPending, "is_pending"),
		at(VersionRelativePath, "relative_path"),
		at(VersionVolumeName, "volume_name"),
	)

	playlistColumns = concat(
		p("_id", "_data", "name", "date_added", "date_modified"),
		at(VersionOwnerPackage, "owner_package_name"),
	)
)

const (
	artistsAlbumsMapView = "CREATE VIEW artists_albums_map AS SELECT DISTINCT artist_id, album_id FROM audio_meta"

	audioView = "CREATE VIEW audio as SELECT * FROM audio_meta LEFT OUTER JOIN artists" +
		" ON audio_meta.artist_id=artists.artist_id LEFT OUTER JOIN albums" +
		" ON audio_meta.album_id=albums.album_id"

	albumInfoView = "CREATE VIEW album_info AS SELECT audio.album_id AS _id, album, album_key," +
		" MIN(year) AS minyear, MAX(year) AS maxyear, artist, artist_id, artist_key," +
		" count(*) AS numsongs,album_art._data AS album_art FROM audio" +
		" LEFT OUTER JOIN album_art ON audio.album_id=album_art.album_id WHERE is_music=1" +
		" GROUP BY audio.album_id"

	searchHelperTitleView = "CREATE VIEW searchhelpertitle AS SELECT * FROM audio ORDER BY title_key"

	artistInfoView = "CREATE VIEW artist_info AS SELECT artist_id AS _id, artist, artist_key," +
		" COUNT(DISTINCT album_key) AS number_of_albums, COUNT(*) AS number_of_tracks" +
		" FROM audio WHERE is_music=1 GROUP BY artist_key"

	searchView = "CREATE VIEW search AS SELECT _id,'artist' AS mime_type,artist,NULL AS album," +
		"NULL AS title,artist AS text1,NULL AS text2,number_of_albums AS data1," +
		"number_of_tracks AS data2,artist_key AS match," +
		"'content://media/external/audio/artists/'||_id AS suggest_intent_data," +
		"1 AS grouporder FROM artist_info WHERE (artist!='<unknown>')" +
		" UNION ALL SELECT _id,'album' AS mime_type,artist,album," +
		"NULL AS title,album AS text1,artist AS text2,NULL AS data1," +
		"NULL AS data2,artist_key||' '||album_key AS match," +
		"'content://media/external/audio/albums/'||_id AS suggest_intent_data," +
		"2 AS grouporder FROM album_info WHERE (album!='<unknown>')" +
		" UNION ALL SELECT searchhelpertitle._id AS _id,mime_type,artist,album,title," +
		"title AS text1,artist AS text2,NULL AS data1," +
		"NULL AS data2,artist_key||' '||album_key||' '||title_key AS match," +
		"'content://media/external/audio/media/'||searchhelpertitle._id AS suggest_intent_data," +
		"3 AS grouporder FROM searchhelpertitle WHERE (title != '')"

	genresMapNoIDView = "CREATE VIEW audio_genres_map_noid AS SELECT audio_id,genre_id FROM audio_genres_map"
)

func typeView(name string, cols []viewColumn, mediaType, version int) Object {
	return Object{
		Kind: KindView,
		Name: name,
		SQL: fmt.Sprintf("CREATE VIEW %s AS SELECT %s FROM files WHERE media_type=%d",
			name, selectList(cols, version), mediaType),
	}
}

func view(name, sql string) Object {
	return Object{Kind: KindView, Name: name, SQL: sql}
}

// views returns view definitions in dependency order.
func views(version int, internal bool) []Object {
	out := []Object{
		typeView("audio_meta", audioMetaColumns, MediaTypeAudio, version),
		view("artists_albums_map", artistsAlbumsMapView),
		view("audio", audioView),
		view("album_info", albumInfoView),
		view("searchhelpertitle", searchHelperTitleView),
		view("artist_info", artistInfoView),
		view("search", searchView),
		typeView("images", imagesColumns, MediaTypeImage, version),
		typeView("video", videoColumns, MediaTypeVideo, version),
	}
	if !internal {
		out = append(out,
			typeView("audio_playlists", playlistColumns, MediaTypePlaylist, version),
			view("audio_genres_map_noid", genresMapNoIDView),
		)
	}
	return out
}
