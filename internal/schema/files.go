package schema

import "strings"

// Column is one column of the files table.
type Column struct {
	Name  string
	Type  string // declaration after the name, constraints included
	Since int    // first version carrying the column
}

// Def returns the column definition used by CREATE TABLE and ALTER TABLE.
func (c Column) Def() string {
	return c.Name + " " + c.Type
}

// filesColumns is ordered by Since. Within a version the order is the order
// in which the upgrade appends the columns, so a migrated table and a freshly
// created one end up with identical column positions.
var filesColumns = []Column{
	{"_id", "INTEGER PRIMARY KEY AUTOINCREMENT", VersionP},
	{"_data", "TEXT UNIQUE COLLATE NOCASE", VersionP},
	{"_size", "INTEGER", VersionP},
	{"format", "INTEGER", VersionP},
	{"parent", "INTEGER", VersionP},
	{"date_added", "INTEGER", VersionP},
	{"date_modified", "INTEGER", VersionP},
	{"mime_type", "TEXT", VersionP},
	{"title", "TEXT", VersionP},
	{"description", "TEXT", VersionP},
	{"_display_name", "TEXT", VersionP},
	{"picasa_id", "TEXT", VersionP},
	{"orientation", "INTEGER", VersionP},
	{"latitude", "DOUBLE", VersionP},
	{"longitude", "DOUBLE", VersionP},
	{"datetaken", "INTEGER", VersionP},
	{"mini_thumb_magic", "INTEGER", VersionP},
	{"bucket_id", "TEXT", VersionP},
	{"bucket_display_name", "TEXT", VersionP},
	{"isprivate", "INTEGER", VersionP},
	{"title_key", "TEXT", VersionP},
	{"artist_id", "INTEGER", VersionP},
	{"album_id", "INTEGER", VersionP},
	{"composer", "TEXT", VersionP},
	{"track", "INTEGER", VersionP},
	{"year", "INTEGER CHECK(year!=0)", VersionP},
	{"is_ringtone", "INTEGER", VersionP},
	{"is_music", "INTEGER", VersionP},
	{"is_alarm", "INTEGER", VersionP},
	{"is_notification", "INTEGER", VersionP},
	{"is_podcast", "INTEGER", VersionP},
	{"album_artist", "TEXT", VersionP},
	{"duration", "INTEGER", VersionP},
	{"bookmark", "INTEGER", VersionP},
	{"artist", "TEXT", VersionP},
	{"album", "TEXT", VersionP},
	{"resolution", "TEXT", VersionP},
	{"tags", "TEXT", VersionP},
	{"category", "TEXT", VersionP},
	{"language", "TEXT", VersionP},
	{"mini_thumb_data", "TEXT", VersionP},
	{"name", "TEXT", VersionP},
	{"media_type", "INTEGER", VersionP},
	{"old_id", "INTEGER", VersionP},
	{"is_drm", "INTEGER", VersionP},
	{"width", "INTEGER", VersionP},
	{"height", "INTEGER", VersionP},
	{"title_resource_uri", "TEXT", VersionP},

	{"owner_package_name", "TEXT DEFAULT NULL", VersionOwnerPackage},

	{"color_standard", "INTEGER", VersionColorSpaces},
	{"color_transfer", "INTEGER", VersionColorSpaces},
	{"color_range", "INTEGER", VersionColorSpaces},

	{"_hash", "BLOB DEFAULT NULL", VersionHashAndPending},
	{"is_pending", "INTEGER DEFAULT 0", VersionHashAndPending},

	{"is_download", "INTEGER DEFAULT 0", VersionDownloadInfo},
	{"download_uri", "TEXT DEFAULT NULL", VersionDownloadInfo},
	{"referer_uri", "TEXT DEFAULT NULL", VersionDownloadInfo},

	{"is_audiobook", "INTEGER DEFAULT 0", VersionAudiobook},

	{"relative_path", "TEXT DEFAULT NULL", VersionRelativePath},

	{"volume_name", "TEXT DEFAULT NULL", VersionVolumeName},
}

// Media types stored in files.media_type.
const (
	MediaTypeNone     = 0
	MediaTypeImage    = 1
	MediaTypeAudio    = 2
	MediaTypeVideo    = 3
	MediaTypePlaylist = 4
)

// FilesColumns returns the files columns present at version.
func FilesColumns(version int) []Column {
	var cols []Column
	for _, c := range filesColumns {
		if c.Since <= version {
			cols = append(cols, c)
		}
	}
	return cols
}

// ColumnsSince returns the files columns introduced exactly at version.
func ColumnsSince(version int) []Column {
	var cols []Column
	for _, c := range filesColumns {
		if c.Since == version {
			cols = append(cols, c)
		}
	}
	return cols
}

// HasColumn reports whether the files table carries name at version.
func HasColumn(version int, name string) bool {
	for _, c := range filesColumns {
		if c.Since <= version && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func filesTable(version int) string {
	cols := FilesColumns(version)
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c.Def()
	}
	return "CREATE TABLE files (" + strings.Join(defs, ", ") + ")"
}
