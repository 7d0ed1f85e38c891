// Package pathattr derives metadata attributes from stored media file paths.
//
// Every function here is pure and total: a path that does not match a known
// storage convention yields the absence value rather than an error. Matching is
// case-insensitive because the files._data column is declared COLLATE NOCASE.
package pathattr

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

// VolumeExternalPrimary is the volume name of the primary shared storage
// (/storage/emulated/<user>/).
const VolumeExternalPrimary = "external_primary"

// VolumeInternal is the volume name of the read-only system media partition.
const VolumeInternal = "internal"

var (
	// /storage/<volume>/[<user>/]Android/{data,media,obb,sandbox}/<package>[/...]
	ownedPath = regexp.MustCompile(`(?i)^/storage/[^/]+/(?:[0-9]+/)?Android/(?:data|media|obb|sandbox)/([^/]+)(?:/.*)?$`)

	// /storage/<volume>/[<user>/]Download/<anything>
	downloadPath = regexp.MustCompile(`(?i)^/storage/[^/]+/(?:[0-9]+/)?Download/.+`)

	// Volume root prefix: /storage/emulated/<user>/ or /storage/<volume>/
	volumeRoot = regexp.MustCompile(`(?i)^/storage/(?:emulated/[0-9]+/|[^/]+/)`)

	volumeID = regexp.MustCompile(`(?i)^/storage/([^/]+)/`)

	systemMedia = regexp.MustCompile(`(?i)^/system/media/`)
)

// OwnerPackageName returns the application identifier owning a file stored in
// app-private media storage. Only the first segment after the
// Android/{data,media,obb,sandbox} directory counts, so deeper paths resolve to
// the same owner.
func OwnerPackageName(p string) (string, bool) {
	m := ownedPath.FindStringSubmatch(p)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// IsDownload reports whether the path lives below a volume's Download directory.
func IsDownload(p string) bool {
	return downloadPath.MatchString(p)
}

// RelativePath returns the directory of p relative to its volume root, always
// ending in "/". A file directly at the volume root has relative path "/".
func RelativePath(p string) (string, bool) {
	loc := volumeRoot.FindStringIndex(p)
	if loc == nil {
		return "", false
	}
	rest := p[loc[1]:]
	idx := strings.LastIndex(rest, "/")
	if idx < 0 {
		return "/", true
	}
	return rest[:idx+1], true
}

// VolumeName returns the name of the storage volume holding p.
func VolumeName(p string) (string, bool) {
	if systemMedia.MatchString(p) {
		return VolumeInternal, true
	}
	m := volumeID.FindStringSubmatch(p)
	if m == nil {
		return "", false
	}
	if strings.EqualFold(m[1], "emulated") {
		return VolumeExternalPrimary, true
	}
	return strings.ToLower(m[1]), true
}

// Bucket returns the bucket identifier and display name for the directory
// holding p. The identifier is the 32-bit string hash of the lower-cased parent
// directory, which keeps ids stable with rows written by older scanners.
func Bucket(p string) (id string, displayName string) {
	if p == "" {
		return "", ""
	}
	parent := path.Dir(p)
	return strconv.Itoa(int(stringHash(strings.ToLower(parent)))), path.Base(parent)
}

// stringHash computes s[0]*31^(n-1) + ... + s[n-1] over UTF-16 code units
// with int32 overflow.
func stringHash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(c)
	}
	return h
}
