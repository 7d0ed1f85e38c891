package scan

import (
	"path/filepath"
	"strings"

	"github.com/franz/media-index/internal/schema"
)

type mediaKind struct {
	mediaType int
	mime      string
}

// extensions maps lower-case file extensions to the media type stored in
// files.media_type.
var extensions = map[string]mediaKind{
	".mp3":  {schema.MediaTypeAudio, "audio/mpeg"},
	".flac": {schema.MediaTypeAudio, "audio/flac"},
	".m4a":  {schema.MediaTypeAudio, "audio/mp4"},
	".m4b":  {schema.MediaTypeAudio, "audio/mp4"},
	".aac":  {schema.MediaTypeAudio, "audio/aac"},
	".ogg":  {schema.MediaTypeAudio, "audio/ogg"},
	".opus": {schema.MediaTypeAudio, "audio/opus"},
	".wav":  {schema.MediaTypeAudio, "audio/x-wav"},
	".aiff": {schema.MediaTypeAudio, "audio/x-aiff"},
	".aif":  {schema.MediaTypeAudio, "audio/x-aiff"},
	".wma":  {schema.MediaTypeAudio, "audio/x-ms-wma"},

	".jpg":  {schema.MediaTypeImage, "image/jpeg"},
	".jpeg": {schema.MediaTypeImage, "image/jpeg"},
	".png":  {schema.MediaTypeImage, "image/png"},
	".gif":  {schema.MediaTypeImage, "image/gif"},
	".webp": {schema.MediaTypeImage, "image/webp"},
	".heic": {schema.MediaTypeImage, "image/heic"},

	".mp4":  {schema.MediaTypeVideo, "video/mp4"},
	".mkv":  {schema.MediaTypeVideo, "video/x-matroska"},
	".webm": {schema.MediaTypeVideo, "video/webm"},
	".3gp":  {schema.MediaTypeVideo, "video/3gpp"},
	".mov":  {schema.MediaTypeVideo, "video/quicktime"},

	".m3u": {schema.MediaTypePlaylist, "audio/x-mpegurl"},
	".pls": {schema.MediaTypePlaylist, "audio/x-scpls"},
	".wpl": {schema.MediaTypePlaylist, "application/vnd.ms-wpl"},
}

// classify returns the media type and MIME type of path, or
// MediaTypeNone for files the index does not track.
func classify(path string) (int, string) {
	k, ok := extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return schema.MediaTypeNone, ""
	}
	return k.mediaType, k.mime
}

// Audiobooks are recognized by container only.
func isAudiobook(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".m4b")
}
