package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/media-index/internal/report"
	"github.com/franz/media-index/internal/schema"
	"github.com/franz/media-index/internal/util"
	"github.com/google/uuid"
)

// State classifies the stored version against the requested target.
type State int

const (
	// Uninitialized means no usable version marker is stored.
	Uninitialized State = iota
	// Stale means the stored version is older than the target.
	Stale
	// Ahead means the stored version is newer than the target.
	Ahead
	// Current means the stored version equals the target.
	Current
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Stale:
		return "stale"
	case Ahead:
		return "ahead"
	case Current:
		return "current"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func classify(stored int, present bool, target int) State {
	switch {
	case !present:
		return Uninitialized
	case stored < target:
		return Stale
	case stored > target:
		return Ahead
	default:
		return Current
	}
}

// MigrationResult describes one run of the migration engine.
type MigrationResult struct {
	RunID       string
	From        int  // stored version before the run
	FromPresent bool // whether a version marker was stored at all
	To          int
	State       State
	Rebuilt     bool  // the database was reset and created from scratch
	Boundaries  []int // boundaries applied in order
	Duration    time.Duration
}

// migrate brings the database to the handle's target version. Callers hold
// h.mu.
func (h *Handle) migrate(ctx context.Context) (*MigrationResult, error) {
	start := time.Now()

	stored, present, err := readVersion(ctx, h.db)
	if err != nil {
		return nil, err
	}

	res := &MigrationResult{
		RunID:       uuid.NewString(),
		From:        stored,
		FromPresent: present,
		To:          h.target,
		State:       classify(stored, present, h.target),
	}

	switch res.State {
	case Current:
		util.DebugLog("Schema: %s already at version %d", h.path, h.target)

	case Uninitialized:
		util.InfoLog("Schema: creating %s at version %d", h.path, h.target)
		err = h.createFresh(ctx, res)
		h.events().LogTransition(report.EventCreate, res.RunID, h.path, 0, h.target, time.Since(start), err)

	case Ahead:
		util.WarnLog("Schema: %s is at version %d, newer than %d; all data will be removed",
			h.path, stored, h.target)
		err = h.createFresh(ctx, res)
		h.events().LogTransition(report.EventDowngrade, res.RunID, h.path, stored, h.target, time.Since(start), err)

	case Stale:
		if stored < schema.MinUpgradeVersion {
			util.WarnLog("Schema: %s is at version %d, older than %d; rebuilding",
				h.path, stored, schema.MinUpgradeVersion)
			err = h.createFresh(ctx, res)
			h.events().LogTransition(report.EventRebuild, res.RunID, h.path, stored, h.target, time.Since(start), err)
			break
		}
		util.InfoLog("Schema: upgrading %s from version %d to %d", h.path, stored, h.target)
		err = h.upgrade(ctx, res)
		h.events().LogTransition(report.EventUpgrade, res.RunID, h.path, stored, h.target, time.Since(start), err)
	}

	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	if res.State != Current {
		util.DebugLog("Schema: %s reached version %d in %v", h.path, h.target, res.Duration)
	}
	return res, nil
}

// createFresh resets the database and creates the target layout in one
// transaction.
func (h *Handle) createFresh(ctx context.Context, res *MigrationResult) error {
	objects, err := schema.Build(h.target, h.opts.Internal)
	if err != nil {
		return err
	}

	res.Rebuilt = true
	return h.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := listObjects(ctx, tx, dropOrder)
		if err != nil {
			return err
		}
		if err := MakePristine(ctx, tx); err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
		if len(existing) > 0 {
			h.events().LogReset(res.RunID, h.path, len(existing))
		}
		if err := schema.Apply(ctx, tx, objects); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return writeVersion(ctx, tx, h.target)
	})
}

// upgrade applies each boundary after the stored version in its own
// transaction, then recreates views and triggers for the target.
func (h *Handle) upgrade(ctx context.Context, res *MigrationResult) error {
	for _, b := range boundariesBetween(res.From, h.target) {
		if err := ctx.Err(); err != nil {
			return err
		}

		bStart := time.Now()
		var rows int64
		err := h.inTx(ctx, func(tx *sql.Tx) error {
			var err error
			if rows, err = b.apply(&migrationTx{ctx: ctx, tx: tx}); err != nil {
				return err
			}
			return writeVersion(ctx, tx, b.version)
		})
		h.events().LogBoundary(res.RunID, h.path, b.version, b.name, rows, time.Since(bStart), err)
		if err != nil {
			return &BoundaryError{Version: b.version, Name: b.name, Err: err}
		}

		util.DebugLog("Schema: applied boundary %d (%s), %d rows updated", b.version, b.name, rows)
		res.Boundaries = append(res.Boundaries, b.version)
	}

	objects, err := schema.Build(h.target, h.opts.Internal)
	if err != nil {
		return err
	}
	derived := schema.Filter(objects, schema.KindView, schema.KindTrigger)

	return h.inTx(ctx, func(tx *sql.Tx) error {
		if err := dropKinds(ctx, tx, schema.KindTrigger, schema.KindView); err != nil {
			return fmt.Errorf("failed to drop views and triggers: %w", err)
		}
		if err := schema.Apply(ctx, tx, derived); err != nil {
			return fmt.Errorf("failed to recreate views and triggers: %w", err)
		}
		return writeVersion(ctx, tx, h.target)
	})
}

// inTx runs fn in a transaction that is committed only when fn succeeds.
func (h *Handle) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageError("failed to commit transaction", err)
	}
	return nil
}
