package schema

import "fmt"

type index struct {
	name    string
	table   string
	columns string
	since   int
}

func (i index) object() Object {
	return Object{
		Kind:  KindIndex,
		Name:  i.name,
		Table: i.table,
		SQL:   fmt.Sprintf("CREATE INDEX %s ON %s(%s)", i.name, i.table, i.columns),
	}
}

var allIndexes = []index{
	{"image_id_index", "thumbnails", "image_id", VersionP},
	{"album_idx", "albums", "album", VersionP},
	{"albumkey_index", "albums", "album_key", VersionP},
	{"artist_idx", "artists", "artist", VersionP},
	{"artistkey_index", "artists", "artist_key", VersionP},
	{"video_id_index", "videothumbnails", "video_id", VersionP},
	{"album_id_idx", "files", "album_id", VersionP},
	{"artist_id_idx", "files", "artist_id", VersionP},
	{"bucket_index", "files", "bucket_id,media_type,datetaken, _id", VersionP},
	{"bucket_name", "files", "bucket_id,media_type,bucket_display_name", VersionP},
	{"format_index", "files", "format", VersionP},
	{"media_type_index", "files", "media_type", VersionP},
	{"parent_index", "files", "parent", VersionP},
	{"path_index", "files", "_data", VersionP},
	{"sort_index", "files", "datetaken ASC, _id ASC", VersionP},
	{"title_idx", "files", "title", VersionP},
	{"titlekey_index", "files", "title_key", VersionP},

	{"owner_package_name_index", "files", "owner_package_name", VersionLookupIndexes},
	{"volume_name_index", "files", "volume_name", VersionLookupIndexes},
	{"relative_path_index", "files", "volume_name, relative_path", VersionLookupIndexes},
}

func indexes(version int) []Object {
	var out []Object
	for _, i := range allIndexes {
		if i.since <= version {
			out = append(out, i.object())
		}
	}
	return out
}

// IndexesSince returns the indexes introduced exactly at version.
func IndexesSince(version int) []Object {
	var out []Object
	for _, i := range allIndexes {
		if i.since == version {
			out = append(out, i.object())
		}
	}
	return out
}
