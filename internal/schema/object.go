package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateObject indicates a schema object was created while an
	// object with the same name already existed.
	ErrDuplicateObject = errors.New("schema object already exists")

	// ErrUnsupportedVersion indicates a version outside [VersionP, Latest].
	ErrUnsupportedVersion = errors.New("unsupported schema version")
)

// Kind is the type of a schema object as recorded in sqlite_master.
type Kind string

const (
	KindTable   Kind = "table"
	KindIndex   Kind = "index"
	KindView    Kind = "view"
	KindTrigger Kind = "trigger"
)

// Object is one declarative schema object.
type Object struct {
	Kind  Kind
	Name  string
	Table string // table the object belongs to (indexes and triggers)
	SQL   string
}

// ConflictError reports the object that could not be created.
type ConflictError struct {
	Kind Kind
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

func (e *ConflictError) Unwrap() error {
	return ErrDuplicateObject
}

// Queryer is the read side of *sql.DB and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Executor is satisfied by *sql.DB and *sql.Tx.
type Executor interface {
	Queryer
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Filter returns the objects of the given kinds, preserving order.
func Filter(objects []Object, kinds ...Kind) []Object {
	var out []Object
	for _, o := range objects {
		for _, k := range kinds {
			if o.Kind == k {
				out = append(out, o)
				break
			}
		}
	}
	return out
}

// Names returns the object names in order.
func Names(objects []Object) []string {
	names := make([]string, len(objects))
	for i, o := range objects {
		names[i] = o.Name
	}
	return names
}

// Apply creates objects in order. It refuses to run if any object name is
// already taken; callers rebuilding a structure must reset it first.
func Apply(ctx context.Context, db Executor, objects []Object) error {
	existing, err := existingNames(ctx, db)
	if err != nil {
		return err
	}

	for _, o := range objects {
		if existing[strings.ToLower(o.Name)] {
			return &ConflictError{Kind: o.Kind, Name: o.Name}
		}
	}

	for _, o := range objects {
		if _, err := db.ExecContext(ctx, o.SQL); err != nil {
			if strings.Contains(err.Error(), "already exists") {
				return &ConflictError{Kind: o.Kind, Name: o.Name}
			}
			return fmt.Errorf("failed to create %s %s: %w", o.Kind, o.Name, err)
		}
	}

	return nil
}

func existingNames(ctx context.Context, db Queryer) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master")
	if err != nil {
		return nil, fmt.Errorf("failed to list schema objects: %w", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan schema object: %w", err)
		}
		names[strings.ToLower(name)] = true
	}
	return names, rows.Err()
}
