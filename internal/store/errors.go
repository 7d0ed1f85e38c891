package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/franz/media-index/internal/schema"
	"modernc.org/sqlite"
)

var (
	// ErrStructuralConflict indicates an object was created over an existing
	// one. It always means a reset was skipped.
	ErrStructuralConflict = schema.ErrDuplicateObject

	// ErrUnsupportedVersion indicates a target version with no layout.
	ErrUnsupportedVersion = schema.ErrUnsupportedVersion

	// ErrUnreadableVersion indicates the stored version marker could not be
	// interpreted. Open treats it as an uninitialized database.
	ErrUnreadableVersion = errors.New("unreadable schema version marker")

	// ErrBoundaryTransform indicates a version boundary could not complete.
	ErrBoundaryTransform = errors.New("schema boundary transformation failed")

	// ErrStorage indicates an I/O class failure of the storage engine.
	ErrStorage = errors.New("storage failure")

	// ErrSchemaMismatch indicates the database structure differs from the
	// declared layout.
	ErrSchemaMismatch = errors.New("schema does not match declared layout")

	// ErrClosed indicates use of a closed handle.
	ErrClosed = errors.New("database handle is closed")
)

// BoundaryError reports the boundary that failed during an upgrade.
type BoundaryError struct {
	Version int
	Name    string
	Err     error
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("boundary %d (%s): %v", e.Version, e.Name, e.Err)
}

func (e *BoundaryError) Unwrap() []error {
	return []error{ErrBoundaryTransform, e.Err}
}

// Primary SQLite result codes (the low byte of extended codes).
const (
	codeReadOnly = 8
	codeIOErr    = 10
	codeCorrupt  = 11
	codeFull     = 13
	codeCantOpen = 14
	codeNotADB   = 26
)

func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() & 0xff, true
	}
	return 0, false
}

// isStorageFailure reports whether err comes from the storage layer rather
// than from the statement itself.
func isStorageFailure(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	switch code {
	case codeReadOnly, codeIOErr, codeCorrupt, codeFull, codeCantOpen, codeNotADB:
		return true
	}
	return false
}

// isCorruption reports whether err means the file is not a usable database.
func isCorruption(err error) bool {
	if code, ok := sqliteCode(err); ok {
		return code == codeCorrupt || code == codeNotADB
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database")
}

// storageError marks err as ErrStorage when the engine reports an I/O class
// failure; other errors are returned unchanged.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isStorageFailure(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
