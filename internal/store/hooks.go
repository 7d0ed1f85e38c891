package store

import (
	"database/sql/driver"
	"sync"

	"github.com/franz/media-index/internal/util"
	"modernc.org/sqlite"
)

// Hooks receives the side effects fired by cleanup triggers. Each callback
// runs once per deleted row, on the goroutine executing the statement.
type Hooks interface {
	// DeleteFile is called with the path of a deleted album art or playlist
	// row whose backing file should be removed.
	DeleteFile(path string)

	// ObjectRemoved is called with the _id of every deleted files row.
	ObjectRemoved(id int64)
}

// LogHooks logs every callback at debug level.
type LogHooks struct{}

func (LogHooks) DeleteFile(path string) {
	util.DebugLog("Trigger: delete file %s", path)
}

func (LogHooks) ObjectRemoved(id int64) {
	util.DebugLog("Trigger: object %d removed", id)
}

// DiskHooks removes the backing file from disk.
type DiskHooks struct {
	Retry *util.RetryConfig
}

func (h DiskHooks) DeleteFile(path string) {
	if path == "" {
		return
	}
	if err := util.RetryableRemove(path, h.Retry); err != nil && !util.IsNotExist(err) {
		util.WarnLog("Failed to delete %s: %v", path, err)
	}
}

func (DiskHooks) ObjectRemoved(id int64) {
	util.DebugLog("Trigger: object %d removed", id)
}

var (
	hooksMu sync.RWMutex
	hooks   Hooks = LogHooks{}
)

// The functions are registered with the driver for every connection it
// opens, so they are process wide; SetHooks picks the receiver.
func init() {
	sqlite.MustRegisterScalarFunction("_DELETE_FILE", 1, deleteFileFunc)
	sqlite.MustRegisterScalarFunction("_OBJECT_REMOVED", 1, objectRemovedFunc)
}

// SetHooks installs h as the trigger callback receiver and returns a function
// restoring the previous one. A nil h restores the logging default.
func SetHooks(h Hooks) (restore func()) {
	if h == nil {
		h = LogHooks{}
	}

	hooksMu.Lock()
	prev := hooks
	hooks = h
	hooksMu.Unlock()

	return func() {
		hooksMu.Lock()
		hooks = prev
		hooksMu.Unlock()
	}
}

func currentHooks() Hooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return hooks
}

func deleteFileFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		currentHooks().DeleteFile(v)
	case []byte:
		currentHooks().DeleteFile(string(v))
	}
	return nil, nil
}

func objectRemovedFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if id, ok := args[0].(int64); ok {
		currentHooks().ObjectRemoved(id)
	}
	return nil, nil
}
