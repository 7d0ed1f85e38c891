package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/media-index/internal/pathattr"
	"github.com/franz/media-index/internal/schema"
)

// MediaRecord is one row of the files table. Fields whose column does not
// exist at the handle's version are ignored on write and left zero on read.
type MediaRecord struct {
	ID           int64
	Path         string
	Size         int64
	MediaType    int
	MimeType     string
	DisplayName  string
	Title        string
	Artist       string
	Album        string
	AlbumArtist  string
	Composer     string
	ArtistID     int64
	AlbumID      int64
	Track        int
	Year         int // 0 means unknown and is stored as NULL
	Duration     int64
	Width        int
	Height       int
	IsMusic      bool
	IsAudiobook  bool
	IsPending    bool
	DateAdded    int64
	DateModified int64

	// Derived from Path on write
	BucketID          string
	BucketDisplayName string
	OwnerPackageName  sql.NullString
	IsDownload        bool
	RelativePath      sql.NullString
	VolumeName        sql.NullString
}

type columnValue struct {
	name  string
	value any
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(i int64) any {
	if i == 0 {
		return nil
	}
	return i
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// derive fills the path derived attributes of rec.
func derive(rec *MediaRecord) {
	rec.BucketID, rec.BucketDisplayName = pathattr.Bucket(rec.Path)
	if pkg, ok := pathattr.OwnerPackageName(rec.Path); ok {
		rec.OwnerPackageName = sql.NullString{String: pkg, Valid: true}
	}
	rec.IsDownload = pathattr.IsDownload(rec.Path)
	if rel, ok := pathattr.RelativePath(rec.Path); ok {
		rec.RelativePath = sql.NullString{String: rel, Valid: true}
	}
	if vol, ok := pathattr.VolumeName(rec.Path); ok {
		rec.VolumeName = sql.NullString{String: vol, Valid: true}
	}
	if rec.DisplayName == "" {
		rec.DisplayName = filepath.Base(rec.Path)
	}
}

func (h *Handle) recordColumns(rec *MediaRecord) []columnValue {
	all := []columnValue{
		{"_data", rec.Path},
		{"_size", rec.Size},
		{"media_type", rec.MediaType},
		{"mime_type", nullString(rec.MimeType)},
		{"_display_name", nullString(rec.DisplayName)},
		{"title", nullString(rec.Title)},
		{"title_key", nullString(strings.ToLower(rec.Title))},
		{"artist", nullString(rec.Artist)},
		{"album", nullString(rec.Album)},
		{"album_artist", nullString(rec.AlbumArtist)},
		{"composer", nullString(rec.Composer)},
		{"artist_id", nullInt(rec.ArtistID)},
		{"album_id", nullInt(rec.AlbumID)},
		{"track", nullInt(int64(rec.Track))},
		{"year", nullInt(int64(rec.Year))},
		{"duration", nullInt(rec.Duration)},
		{"width", nullInt(int64(rec.Width))},
		{"height", nullInt(int64(rec.Height))},
		{"is_music", boolInt(rec.IsMusic)},
		{"date_added", rec.DateAdded},
		{"date_modified", rec.DateModified},
		{"bucket_id", rec.BucketID},
		{"bucket_display_name", rec.BucketDisplayName},
		{"owner_package_name", rec.OwnerPackageName},
		{"is_pending", boolInt(rec.IsPending)},
		{"is_download", boolInt(rec.IsDownload)},
		{"is_audiobook", boolInt(rec.IsAudiobook)},
		{"relative_path", rec.RelativePath},
		{"volume_name", rec.VolumeName},
	}

	out := all[:0]
	for _, cv := range all {
		if schema.HasColumn(h.target, cv.name) {
			out = append(out, cv)
		}
	}
	return out
}

// InsertFile inserts or updates a file record keyed by its path and sets
// rec.ID. Path derived attributes are computed here for every column the
// target version carries.
func (h *Handle) InsertFile(ctx context.Context, rec *MediaRecord) error {
	if rec.Path == "" {
		return fmt.Errorf("failed to insert file: empty path")
	}
	db, err := h.Writable(ctx)
	if err != nil {
		return err
	}

	derive(rec)
	if rec.DateAdded == 0 {
		rec.DateAdded = time.Now().Unix()
	}

	cols := h.recordColumns(rec)
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	values := make([]any, len(cols))
	var updates []string
	for i, cv := range cols {
		names[i] = cv.name
		marks[i] = "?"
		values[i] = cv.value
		if cv.name != "_data" && cv.name != "date_added" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", cv.name, cv.name))
		}
	}

	query := fmt.Sprintf(`INSERT INTO files (%s) VALUES (%s)
		ON CONFLICT(_data) DO UPDATE SET %s`,
		strings.Join(names, ", "), strings.Join(marks, ", "), strings.Join(updates, ", "))

	if _, err := db.ExecContext(ctx, query, values...); err != nil {
		return storageError("failed to insert file", err)
	}

	// On conflict update, LastInsertId is not the existing row
	if err := db.QueryRowContext(ctx, "SELECT _id FROM files WHERE _data = ?", rec.Path).Scan(&rec.ID); err != nil {
		return storageError("failed to get file ID", err)
	}

	return nil
}

func (h *Handle) selectColumns() string {
	cols := []string{
		"_id", "_data", "COALESCE(_size, 0)", "COALESCE(media_type, 0)",
		"COALESCE(mime_type, '')", "COALESCE(_display_name, '')",
		"COALESCE(title, '')", "COALESCE(artist, '')", "COALESCE(album, '')",
		"COALESCE(album_artist, '')", "COALESCE(composer, '')",
		"COALESCE(artist_id, 0)", "COALESCE(album_id, 0)",
		"COALESCE(track, 0)", "COALESCE(year, 0)", "COALESCE(duration, 0)",
		"COALESCE(width, 0)", "COALESCE(height, 0)", "COALESCE(is_music, 0)",
		"COALESCE(date_added, 0)", "COALESCE(date_modified, 0)",
		"COALESCE(bucket_id, '')", "COALESCE(bucket_display_name, '')",
	}
	for _, c := range derivedReadColumns {
		if schema.HasColumn(h.target, c) {
			cols = append(cols, c)
		} else {
			cols = append(cols, "NULL")
		}
	}
	return strings.Join(cols, ", ")
}

var derivedReadColumns = []string{
	"owner_package_name", "is_pending", "is_download", "is_audiobook", "relative_path", "volume_name",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*MediaRecord, error) {
	rec := &MediaRecord{}
	var isMusic int
	var isPending, isDownload, isAudiobook sql.NullInt64
	err := row.Scan(
		&rec.ID, &rec.Path, &rec.Size, &rec.MediaType,
		&rec.MimeType, &rec.DisplayName,
		&rec.Title, &rec.Artist, &rec.Album,
		&rec.AlbumArtist, &rec.Composer,
		&rec.ArtistID, &rec.AlbumID,
		&rec.Track, &rec.Year, &rec.Duration,
		&rec.Width, &rec.Height, &isMusic,
		&rec.DateAdded, &rec.DateModified,
		&rec.BucketID, &rec.BucketDisplayName,
		&rec.OwnerPackageName, &isPending, &isDownload, &isAudiobook,
		&rec.RelativePath, &rec.VolumeName,
	)
	if err != nil {
		return nil, err
	}
	rec.IsMusic = isMusic != 0
	rec.IsPending = isPending.Int64 != 0
	rec.IsDownload = isDownload.Int64 != 0
	rec.IsAudiobook = isAudiobook.Int64 != 0
	return rec, nil
}

// GetFileByPath retrieves a file by its path. The lookup is case
// insensitive. It returns nil if no row matches.
func (h *Handle) GetFileByPath(ctx context.Context, path string) (*MediaRecord, error) {
	db, err := h.Writable(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, "SELECT "+h.selectColumns()+" FROM files WHERE _data = ?", path)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("failed to get file", err)
	}
	return rec, nil
}

// ListFiles returns up to limit files ordered by path. A limit of 0 returns
// every file.
func (h *Handle) ListFiles(ctx context.Context, limit int) ([]*MediaRecord, error) {
	db, err := h.Writable(ctx)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + h.selectColumns() + " FROM files ORDER BY _data"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("failed to list files", err)
	}
	defer rows.Close()

	var out []*MediaRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storageError("failed to scan file", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountFiles returns the number of rows in files, or of the given media
// type when mediaType is positive.
func (h *Handle) CountFiles(ctx context.Context, mediaType int) (int, error) {
	db, err := h.Writable(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	if mediaType > 0 {
		err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE media_type = ?", mediaType).Scan(&count)
	} else {
		err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&count)
	}
	if err != nil {
		return 0, storageError("failed to count files", err)
	}
	return count, nil
}

// DeleteFile removes the row for path. Cleanup triggers fire the hooks.
// It reports whether a row was removed.
func (h *Handle) DeleteFile(ctx context.Context, path string) (bool, error) {
	db, err := h.Writable(ctx)
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM files WHERE _data = ?", path)
	if err != nil {
		return false, storageError("failed to delete file", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}
