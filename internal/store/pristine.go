package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/franz/media-index/internal/schema"
	"github.com/franz/media-index/internal/util"
)

// dropOrder lists kinds so that dependents go before what they reference.
var dropOrder = []schema.Kind{schema.KindTrigger, schema.KindView, schema.KindIndex, schema.KindTable}

type namedObject struct {
	kind schema.Kind
	name string
}

// MakePristine drops every user-defined table, index, view and trigger,
// leaving only engine bookkeeping. Running it on an empty database is a no-op.
func MakePristine(ctx context.Context, db schema.Executor) error {
	return dropKinds(ctx, db, dropOrder...)
}

// dropKinds drops every user object of the given kinds. Drops that fail for
// ordering reasons are retried in later passes; storage failures abort.
func dropKinds(ctx context.Context, db schema.Executor, kinds ...schema.Kind) error {
	var lastErr error

	// Each successful pass removes at least one object, so the number of
	// passes is bounded by the number of objects.
	for pass := 1; ; pass++ {
		objects, err := listObjects(ctx, db, kinds)
		if err != nil {
			return err
		}
		if len(objects) == 0 {
			return nil
		}

		dropped := 0
		for _, o := range objects {
			stmt := fmt.Sprintf("DROP %s IF EXISTS %s", strings.ToUpper(string(o.kind)), quoteIdent(o.name))
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				if isStorageFailure(err) {
					return storageError(fmt.Sprintf("failed to drop %s %s", o.kind, o.name), err)
				}
				lastErr = fmt.Errorf("failed to drop %s %s: %w", o.kind, o.name, err)
				util.DebugLog("Pristine: pass %d deferred %s %s: %v", pass, o.kind, o.name, err)
				continue
			}
			dropped++
		}

		if dropped == 0 {
			return lastErr
		}
	}
}

func listObjects(ctx context.Context, db schema.Queryer, kinds []schema.Kind) ([]namedObject, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT type, name FROM sqlite_master
		WHERE name NOT LIKE 'sqlite\_%' ESCAPE '\'
	`)
	if err != nil {
		return nil, storageError("failed to list schema objects", err)
	}
	defer rows.Close()

	byKind := make(map[schema.Kind][]namedObject)
	for rows.Next() {
		var kind, name string
		if err := rows.Scan(&kind, &name); err != nil {
			return nil, storageError("failed to scan schema object", err)
		}
		k := schema.Kind(kind)
		byKind[k] = append(byKind[k], namedObject{kind: k, name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("failed to list schema objects", err)
	}

	var out []namedObject
	for _, k := range kinds {
		out = append(out, byKind[k]...)
	}
	return out, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
