package projector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bdcore/internal/models"
	"bdcore/internal/store"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// maxTaskAttempts is the terminal retry cap per SyncTask: a task
// failing this many times stays failed until the operator intervenes.
const maxTaskAttempts = 3

// Destination-call backoff bounds for transient network errors.
const (
	destBackoffInitial = 1 * time.Second
	destBackoffMax     = 30 * time.Second
	destBackoffTries   = 5
)

// pendingDrainLimit bounds how many tasks one incremental pass drains
// per table.
const pendingDrainLimit = 500

// Projector drives full and incremental sync against one Destination.
type Projector struct {
	store    *store.Store
	dest     Destination
	renderer *Renderer
	log      *zap.Logger
	now      func() time.Time

	retryInitial time.Duration
	retryTries   uint64

	authSuppressed bool
}

// New constructs a Projector. filter may be nil; now is injectable for
// tests (nil means time.Now).
func New(st *store.Store, dest Destination, filter *FollowUpFilter, log *zap.Logger, now func() time.Time) *Projector {
	if now == nil {
		now = time.Now
	}
	return &Projector{
		store:        st,
		dest:         dest,
		renderer:     NewRenderer(st, filter),
		log:          log,
		now:          now,
		retryInitial: destBackoffInitial,
		retryTries:   destBackoffTries,
	}
}

// AcknowledgeAuth clears the authorization-failure latch so sync work
// resumes, after the operator has rotated or fixed credentials.
func (p *Projector) AcknowledgeAuth() {
	p.authSuppressed = false
}

// FullSync re-renders every projected table and atomically replaces
// the destination content, recording the per-row hashes that
// incremental sync later uses for conflict detection.
func (p *Projector) FullSync(ctx context.Context) error {
	if p.authSuppressed {
		return fmt.Errorf("%w: sync suppressed pending operator acknowledgement", ErrAuthorization)
	}

	for _, table := range ProjectedTables {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, rows, err := p.renderer.Table(table)
		if err != nil {
			return fmt.Errorf("render %s: %w", table, err)
		}
		if err := p.withBackoff(ctx, func() error {
			return p.dest.ReplaceTable(ctx, table, header, rows)
		}); err != nil {
			if errors.Is(err, ErrAuthorization) {
				p.authSuppressed = true
			}
			return fmt.Errorf("replace %s: %w", table, err)
		}

		writtenAt := p.now().UTC()
		for _, row := range rows {
			if len(row) == 0 {
				continue
			}
			if err := p.store.SetProjectionHash(table, row[0], rowHash(row), writtenAt); err != nil {
				return err
			}
		}
		p.log.Info("table replaced", zap.String("table", table), zap.Int("rows", len(rows)))
	}
	return nil
}

// IncrementalSync drains pending SyncTask rows FIFO per table. Each
// task transitions pending -> in_progress -> completed/failed/conflict;
// failed tasks below the attempt cap are returned to
// pending at the end of the pass.
func (p *Projector) IncrementalSync(ctx context.Context) error {
	if p.authSuppressed {
		return fmt.Errorf("%w: sync suppressed pending operator acknowledgement", ErrAuthorization)
	}

	tables, err := p.store.TablesWithPending()
	if err != nil {
		return err
	}

	for _, table := range tables {
		tasks, err := p.store.PendingSyncs(table, pendingDrainLimit)
		if err != nil {
			return err
		}
		for i := range tasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.processTask(ctx, &tasks[i])
			if p.authSuppressed {
				return fmt.Errorf("%w: sync suppressed pending operator acknowledgement", ErrAuthorization)
			}
		}
	}

	requeued, err := p.store.RequeueFailed(maxTaskAttempts)
	if err != nil {
		return err
	}
	if requeued > 0 {
		p.log.Info("failed sync tasks requeued", zap.Int64("count", requeued))
	}
	return nil
}

// processTask executes one SyncTask. Task-level failures are recorded
// on the task and absorbed; they never abort the pass.
func (p *Projector) processTask(ctx context.Context, task *models.SyncTask) {
	if err := p.store.MarkSyncInProgress(task.SyncID); err != nil {
		p.log.Warn("could not claim sync task", zap.String("sync_id", task.SyncID), zap.Error(err))
		return
	}

	err := p.syncRecord(ctx, task)
	switch {
	case err == nil:
		if err := p.store.MarkSyncCompleted(task.SyncID, p.now().UTC()); err != nil {
			p.log.Error("mark completed failed", zap.String("sync_id", task.SyncID), zap.Error(err))
		}

	case isConflict(err):
		if err := p.store.MarkSyncConflict(task.SyncID, err); err != nil {
			p.log.Error("mark conflict failed", zap.String("sync_id", task.SyncID), zap.Error(err))
		}
		p.log.Warn("sync conflict, destination row preserved",
			zap.String("sync_id", task.SyncID), zap.String("record", task.RecordID))

	default:
		if errors.Is(err, ErrAuthorization) {
			p.authSuppressed = true
		}
		if err := p.store.MarkSyncFailed(task.SyncID, err); err != nil {
			p.log.Error("mark failed failed", zap.String("sync_id", task.SyncID), zap.Error(err))
		}
		p.log.Warn("sync task failed",
			zap.String("sync_id", task.SyncID),
			zap.Int("attempts", task.Attempts+1),
			zap.Error(err))
	}
}

// syncRecord renders the current Store row and pushes it to the
// destination, refusing to overwrite a row that was edited externally
// since our last write.
func (p *Projector) syncRecord(ctx context.Context, task *models.SyncTask) error {
	header, row, found, err := p.renderer.Record(task.TableName, task.RecordID)
	if err != nil {
		return err
	}

	if task.Operation == models.SyncDelete || !found {
		return p.withBackoff(ctx, func() error {
			return p.dest.DeleteRow(ctx, task.TableName, task.RecordID)
		})
	}

	prevHash, err := p.store.ProjectionHash(task.TableName, task.RecordID)
	if err != nil {
		return err
	}
	if prevHash != "" {
		destRow, modTime, exists, err := p.dest.ReadRow(ctx, task.TableName, task.RecordID)
		if err != nil {
			return err
		}
		if exists && rowHash(destRow) != prevHash {
			if modTime.IsZero() {
				modTime = p.now().UTC()
			}
			return &ConflictError{LastModified: modTime}
		}
	}

	if err := p.withBackoff(ctx, func() error {
		return p.dest.UpsertRow(ctx, task.TableName, task.RecordID, header, row)
	}); err != nil {
		return err
	}
	return p.store.SetProjectionHash(task.TableName, task.RecordID, rowHash(row), p.now().UTC())
}

// withBackoff retries fn on transient errors: 1 s initial, 30 s cap,
// destBackoffTries attempts total. Authorization failures are
// permanent and surface immediately.
func (p *Projector) withBackoff(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.retryInitial
	bo.MaxInterval = destBackoffMax
	bo.MaxElapsedTime = 0

	wrapped := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrAuthorization) || isConflict(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, p.retryTries-1), ctx))
}

func isConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
