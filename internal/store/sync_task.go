package store

import (
	"fmt"
	"time"

	"bdcore/internal/models"
)

// EnqueueSync inserts a new outbound SyncTask in the pending state.
func (s *Store) EnqueueSync(t *models.SyncTask, tx *Tx) error {
	const q = `
		INSERT INTO sync_tasks (
			sync_id, table_name, record_id, operation, state, attempts,
			last_error, enqueued_at, completed_at
		) VALUES (
			:sync_id, :table_name, :record_id, :operation, :state, :attempts,
			:last_error, :enqueued_at, :completed_at
		)
	`
	_, err := namedExec(s.execer(tx), q, t)
	if err != nil {
		return fmt.Errorf("enqueue sync %s: %w", t.SyncID, err)
	}
	return nil
}

// EnqueueSyncOnce inserts a pending SyncTask for (table, record)
// unless one is already queued or running for the same pair. This is
// what keeps re-ingest and re-enrich passes from ballooning the queue:
// an unchanged record that already has an outstanding task gets
// nothing new.
func (s *Store) EnqueueSyncOnce(t *models.SyncTask, tx *Tx) (bool, error) {
	const q = `
		INSERT INTO sync_tasks (
			sync_id, table_name, record_id, operation, state, attempts,
			last_error, enqueued_at, completed_at
		)
		SELECT :sync_id, :table_name, :record_id, :operation, :state, :attempts,
			:last_error, :enqueued_at, :completed_at
		WHERE NOT EXISTS (
			SELECT 1 FROM sync_tasks
			WHERE table_name = :table_name
			  AND record_id  = :record_id
			  AND state IN ('pending', 'in_progress')
		)
	`
	res, err := namedExec(s.execer(tx), q, t)
	if err != nil {
		return false, fmt.Errorf("enqueue sync once %s/%s: %w", t.TableName, t.RecordID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TablesWithPending returns the distinct table names that currently
// have pending tasks, in name order, so incremental sync can drain
// each table's queue FIFO (cross-table ordering is unspecified).
func (s *Store) TablesWithPending() ([]string, error) {
	var tables []string
	const q = `SELECT DISTINCT table_name FROM sync_tasks WHERE state = 'pending' ORDER BY table_name`
	if err := s.db.Select(&tables, q); err != nil {
		return nil, fmt.Errorf("tables with pending syncs: %w", err)
	}
	return tables, nil
}

// PendingSyncs returns up to limit tasks in the pending state, FIFO by
// enqueue time: the projector's per-table work queue.
func (s *Store) PendingSyncs(tableName string, limit int) ([]models.SyncTask, error) {
	var rows []models.SyncTask
	const q = `
		SELECT * FROM sync_tasks
		WHERE table_name = ? AND state = 'pending'
		ORDER BY enqueued_at ASC
		LIMIT ?
	`
	if err := s.db.Select(&rows, q, tableName, limit); err != nil {
		return nil, fmt.Errorf("pending syncs for %s: %w", tableName, err)
	}
	return rows, nil
}

// MarkSyncInProgress transitions a pending task to in_progress,
// bumping its attempt counter. Returns an error if syncID is not
// currently pending; state transitions are strictly monotonic.
func (s *Store) MarkSyncInProgress(syncID string) error {
	const q = `
		UPDATE sync_tasks
		SET state = 'in_progress', attempts = attempts + 1
		WHERE sync_id = ? AND state = 'pending'
	`
	res, err := s.db.Exec(q, syncID)
	if err != nil {
		return fmt.Errorf("mark sync %s in_progress: %w", syncID, err)
	}
	return checkRowAffected(res, syncID)
}

// MarkSyncCompleted transitions an in_progress task to completed.
func (s *Store) MarkSyncCompleted(syncID string, completedAt time.Time) error {
	const q = `
		UPDATE sync_tasks
		SET state = 'completed', completed_at = ?
		WHERE sync_id = ? AND state = 'in_progress'
	`
	res, err := s.db.Exec(q, completedAt, syncID)
	if err != nil {
		return fmt.Errorf("mark sync %s completed: %w", syncID, err)
	}
	return checkRowAffected(res, syncID)
}

// MarkSyncFailed transitions an in_progress task to failed, recording
// the error. RequeueFailed later returns the same row to pending while
// its attempts stay below the cap; retries are capped, never infinite.
func (s *Store) MarkSyncFailed(syncID string, cause error) error {
	const q = `
		UPDATE sync_tasks
		SET state = 'failed', last_error = ?
		WHERE sync_id = ? AND state = 'in_progress'
	`
	res, err := s.db.Exec(q, cause.Error(), syncID)
	if err != nil {
		return fmt.Errorf("mark sync %s failed: %w", syncID, err)
	}
	return checkRowAffected(res, syncID)
}

// MarkSyncConflict transitions an in_progress task to conflict, the
// terminal state for a destination-side write that can't be reconciled
// automatically (e.g. a Sheets row edited out-of-band).
func (s *Store) MarkSyncConflict(syncID string, cause error) error {
	const q = `
		UPDATE sync_tasks
		SET state = 'conflict', last_error = ?
		WHERE sync_id = ? AND state = 'in_progress'
	`
	res, err := s.db.Exec(q, cause.Error(), syncID)
	if err != nil {
		return fmt.Errorf("mark sync %s conflict: %w", syncID, err)
	}
	return checkRowAffected(res, syncID)
}

// RequeueFailed returns failed tasks with attempts below maxAttempts
// to pending, for another pass. Tasks that have exhausted maxAttempts
// are left failed permanently.
func (s *Store) RequeueFailed(maxAttempts int) (int64, error) {
	const q = `
		UPDATE sync_tasks
		SET state = 'pending'
		WHERE state = 'failed' AND attempts < ?
	`
	res, err := s.db.Exec(q, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("requeue failed syncs: %w", err)
	}
	return res.RowsAffected()
}

func checkRowAffected(res interface{ RowsAffected() (int64, error) }, syncID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for sync %s: %w", syncID, err)
	}
	if n == 0 {
		return fmt.Errorf("sync %s: no matching row in expected prior state", syncID)
	}
	return nil
}
