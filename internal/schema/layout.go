package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// ColumnInfo is one row of PRAGMA table_info.
type ColumnInfo struct {
	CID     int
	Name    string
	Type    string
	NotNull bool
	Default sql.NullString
	PK      int
}

// Layout is the observable structure of a database.
type Layout struct {
	Tables   map[string][]ColumnInfo
	Indexes  map[string]string
	Views    map[string]string
	Triggers map[string]string
}

// Count returns the number of objects in the layout.
func (l *Layout) Count() int {
	return len(l.Tables) + len(l.Indexes) + len(l.Views) + len(l.Triggers)
}

// Snapshot reads the layout of every user object of the database. Engine
// bookkeeping (names starting with sqlite_) is not included.
func Snapshot(ctx context.Context, db Queryer) (*Layout, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT type, name, COALESCE(sql, '') FROM sqlite_master
		WHERE name NOT LIKE 'sqlite\_%' ESCAPE '\'
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	layout := &Layout{
		Tables:   make(map[string][]ColumnInfo),
		Indexes:  make(map[string]string),
		Views:    make(map[string]string),
		Triggers: make(map[string]string),
	}

	var tableNames []string
	for rows.Next() {
		var kind, name, text string
		if err := rows.Scan(&kind, &name, &text); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan schema row: %w", err)
		}
		switch Kind(kind) {
		case KindTable:
			tableNames = append(tableNames, name)
		case KindIndex:
			layout.Indexes[name] = text
		case KindView:
			layout.Views[name] = text
		case KindTrigger:
			layout.Triggers[name] = text
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, name := range tableNames {
		cols, err := tableInfo(ctx, db, name)
		if err != nil {
			return nil, err
		}
		layout.Tables[name] = cols
	}

	return layout, nil
}

func tableInfo(ctx context.Context, db Queryer, table string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var c ColumnInfo
		if err := rows.Scan(&c.CID, &c.Name, &c.Type, &c.NotNull, &c.Default, &c.PK); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// Diff lists every difference between two layouts, sorted. An empty result
// means the structures are identical.
func Diff(want, got *Layout) []string {
	var diffs []string

	for name, wantCols := range want.Tables {
		gotCols, ok := got.Tables[name]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("table %s: missing", name))
			continue
		}
		diffs = append(diffs, diffColumns(name, wantCols, gotCols)...)
	}
	for name := range got.Tables {
		if _, ok := want.Tables[name]; !ok {
			diffs = append(diffs, fmt.Sprintf("table %s: unexpected", name))
		}
	}

	diffs = append(diffs, diffText(KindIndex, want.Indexes, got.Indexes)...)
	diffs = append(diffs, diffText(KindView, want.Views, got.Views)...)
	diffs = append(diffs, diffText(KindTrigger, want.Triggers, got.Triggers)...)

	sort.Strings(diffs)
	return diffs
}

func diffColumns(table string, want, got []ColumnInfo) []string {
	var diffs []string
	if len(want) != len(got) {
		diffs = append(diffs, fmt.Sprintf("table %s: %d columns, expected %d", table, len(got), len(want)))
	}
	for i := 0; i < len(want) && i < len(got); i++ {
		if want[i] != got[i] {
			diffs = append(diffs, fmt.Sprintf("table %s: column %d is %s %s, expected %s %s",
				table, i, got[i].Name, got[i].Type, want[i].Name, want[i].Type))
		}
	}
	return diffs
}

func diffText(kind Kind, want, got map[string]string) []string {
	var diffs []string
	for name, w := range want {
		g, ok := got[name]
		switch {
		case !ok:
			diffs = append(diffs, fmt.Sprintf("%s %s: missing", kind, name))
		case g != w:
			diffs = append(diffs, fmt.Sprintf("%s %s: definition differs", kind, name))
		}
	}
	for name := range got {
		if _, ok := want[name]; !ok {
			diffs = append(diffs, fmt.Sprintf("%s %s: unexpected", kind, name))
		}
	}
	return diffs
}
