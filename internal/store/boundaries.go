package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/franz/media-index/internal/pathattr"
	"github.com/franz/media-index/internal/schema"
)

// migrationTx is the context a boundary transformation runs in.
type migrationTx struct {
	ctx context.Context
	tx  *sql.Tx
}

// boundary moves the database from the previous version to version. Column
// and index additions come from the schema declaration; backfill derives
// values for the new columns of rows written by older versions.
type boundary struct {
	version  int
	name     string
	backfill func(m *migrationTx) (int64, error)
}

// boundaries is ordered by version and applied strictly in that order. Later
// backfills rely on columns added by earlier boundaries.
var boundaries = []boundary{
	{schema.VersionOwnerPackage, "owner package name", backfillOwnerPackage},
	{schema.VersionColorSpaces, "color spaces", nil},
	{schema.VersionHashAndPending, "hash and pending", nil},
	{schema.VersionDownloadInfo, "download info", backfillIsDownload},
	{schema.VersionAudiobook, "audiobooks", nil},
	{schema.VersionRelativePath, "relative path", backfillRelativePath},
	{schema.VersionVolumeName, "volume name", backfillVolumeName},
	{schema.VersionLookupIndexes, "lookup indexes", nil},
}

// boundariesBetween returns the boundaries b with from < b <= to.
func boundariesBetween(from, to int) []boundary {
	var out []boundary
	for _, b := range boundaries {
		if b.version > from && b.version <= to {
			out = append(out, b)
		}
	}
	return out
}

// apply runs the boundary. Every step skips work that is already present so
// a retried boundary converges on the same result.
func (b boundary) apply(m *migrationTx) (int64, error) {
	existing, err := columnNames(m.ctx, m.tx, "files")
	if err != nil {
		return 0, err
	}

	for _, c := range schema.ColumnsSince(b.version) {
		if existing[strings.ToLower(c.Name)] {
			continue
		}
		if _, err := m.tx.ExecContext(m.ctx, "ALTER TABLE files ADD COLUMN "+c.Def()); err != nil {
			return 0, fmt.Errorf("failed to add column %s: %w", c.Name, err)
		}
	}

	if err := createMissing(m.ctx, m.tx, schema.IndexesSince(b.version)); err != nil {
		return 0, err
	}

	if b.backfill == nil {
		return 0, nil
	}
	return b.backfill(m)
}

func createMissing(ctx context.Context, tx *sql.Tx, objects []schema.Object) error {
	var missing []schema.Object
	for _, o := range objects {
		var count int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", string(o.Kind), o.Name).Scan(&count)
		if err != nil {
			return storageError("failed to look up "+o.Name, err)
		}
		if count == 0 {
			missing = append(missing, o)
		}
	}
	return schema.Apply(ctx, tx, missing)
}

func columnNames(ctx context.Context, db schema.Queryer, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, storageError("failed to read columns of "+table, err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storageError("failed to scan column", err)
		}
		names[strings.ToLower(name)] = true
	}
	return names, rows.Err()
}

type pathRow struct {
	id   int64
	path string
}

// backfillPaths sets column for every row whose path derives a value. Rows
// without a value keep the column default, the explicit absence value.
func backfillPaths(m *migrationTx, column string, derive func(path string) (any, bool)) (int64, error) {
	rows, err := m.tx.QueryContext(m.ctx, "SELECT _id, _data FROM files WHERE _data IS NOT NULL")
	if err != nil {
		return 0, storageError("failed to query paths", err)
	}

	var pending []pathRow
	for rows.Next() {
		var r pathRow
		if err := rows.Scan(&r.id, &r.path); err != nil {
			rows.Close()
			return 0, storageError("failed to scan path", err)
		}
		pending = append(pending, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, storageError("failed to query paths", err)
	}
	rows.Close()

	stmt, err := m.tx.PrepareContext(m.ctx, fmt.Sprintf("UPDATE files SET %s = ? WHERE _id = ?", column))
	if err != nil {
		return 0, storageError("failed to prepare backfill of "+column, err)
	}
	defer stmt.Close()

	var updated int64
	for _, r := range pending {
		value, ok := derive(r.path)
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(m.ctx, value, r.id); err != nil {
			return updated, storageError(fmt.Sprintf("failed to backfill %s of row %d", column, r.id), err)
		}
		updated++
	}
	return updated, nil
}

func backfillOwnerPackage(m *migrationTx) (int64, error) {
	return backfillPaths(m, "owner_package_name", func(p string) (any, bool) {
		return pathattr.OwnerPackageName(p)
	})
}

func backfillIsDownload(m *migrationTx) (int64, error) {
	return backfillPaths(m, "is_download", func(p string) (any, bool) {
		if pathattr.IsDownload(p) {
			return 1, true
		}
		return nil, false
	})
}

func backfillRelativePath(m *migrationTx) (int64, error) {
	return backfillPaths(m, "relative_path", func(p string) (any, bool) {
		return pathattr.RelativePath(p)
	})
}

func backfillVolumeName(m *migrationTx) (int64, error) {
	return backfillPaths(m, "volume_name", func(p string) (any, bool) {
		return pathattr.VolumeName(p)
	})
}
