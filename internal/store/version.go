package store

import (
	"context"
	"fmt"

	"github.com/franz/media-index/internal/schema"
	"github.com/franz/media-index/internal/util"
)

// The schema version lives in the database header (PRAGMA user_version), so
// it is written by the same transaction as the structure it describes.
// SQLite initializes the field to 0, which is therefore read as "no marker";
// written versions are always positive.

// readVersion returns the stored version and whether a marker is present.
func readVersion(ctx context.Context, db schema.Queryer) (int, bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA user_version")
	if err != nil {
		return 0, false, storageError("failed to read schema version", err)
	}
	defer rows.Close()

	var version int64
	if rows.Next() {
		if err := rows.Scan(&version); err != nil {
			return 0, false, storageError("failed to scan schema version", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, storageError("failed to read schema version", err)
	}

	switch {
	case version == 0:
		return 0, false, nil
	case version < 0:
		util.WarnLog("Ignoring schema version marker %d: %v", version, ErrUnreadableVersion)
		return 0, false, nil
	}
	return int(version), true, nil
}

// writeVersion stores version in the database header.
func writeVersion(ctx context.Context, db schema.Executor, version int) error {
	if version <= 0 {
		return fmt.Errorf("invalid schema version %d", version)
	}
	// PRAGMA arguments cannot be bound
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return storageError("failed to write schema version", err)
	}
	return nil
}

// clearVersion removes the marker so the database reads as uninitialized.
func clearVersion(ctx context.Context, db schema.Executor) error {
	if _, err := db.ExecContext(ctx, "PRAGMA user_version = 0"); err != nil {
		return storageError("failed to clear schema version", err)
	}
	return nil
}
