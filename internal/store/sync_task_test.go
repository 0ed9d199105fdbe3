package store

import (
	"errors"
	"testing"
	"time"

	"bdcore/internal/models"
)

func pendingTask(id, table, record string) *models.SyncTask {
	return &models.SyncTask{
		SyncID:     id,
		TableName:  table,
		RecordID:   record,
		Operation:  models.SyncUpsert,
		State:      models.SyncPending,
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestEnqueueSyncOnceDeduplicates(t *testing.T) {
	s := openTestStore(t)

	inserted, err := s.EnqueueSyncOnce(pendingTask("s1", "contacts", "1"), nil)
	if err != nil || !inserted {
		t.Fatalf("first EnqueueSyncOnce: inserted=%v err=%v", inserted, err)
	}

	// Same (table, record) while the first is still pending: no-op.
	inserted, err = s.EnqueueSyncOnce(pendingTask("s2", "contacts", "1"), nil)
	if err != nil {
		t.Fatalf("second EnqueueSyncOnce: %v", err)
	}
	if inserted {
		t.Fatal("expected duplicate enqueue to be skipped")
	}

	// After completion a new task is accepted again.
	if err := s.MarkSyncInProgress("s1"); err != nil {
		t.Fatalf("MarkSyncInProgress: %v", err)
	}
	if err := s.MarkSyncCompleted("s1", time.Now().UTC()); err != nil {
		t.Fatalf("MarkSyncCompleted: %v", err)
	}
	inserted, err = s.EnqueueSyncOnce(pendingTask("s3", "contacts", "1"), nil)
	if err != nil || !inserted {
		t.Fatalf("post-completion EnqueueSyncOnce: inserted=%v err=%v", inserted, err)
	}
}

func TestSyncStateTransitionsAreMonotonic(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnqueueSync(pendingTask("s1", "leads", "lead_1"), nil); err != nil {
		t.Fatalf("EnqueueSync: %v", err)
	}

	// completed requires in_progress first.
	if err := s.MarkSyncCompleted("s1", time.Now().UTC()); err == nil {
		t.Fatal("expected completing a pending task to fail")
	}

	if err := s.MarkSyncInProgress("s1"); err != nil {
		t.Fatalf("MarkSyncInProgress: %v", err)
	}
	// A second claim must fail: the task is no longer pending.
	if err := s.MarkSyncInProgress("s1"); err == nil {
		t.Fatal("expected double claim to fail")
	}

	if err := s.MarkSyncFailed("s1", errors.New("transient")); err != nil {
		t.Fatalf("MarkSyncFailed: %v", err)
	}

	// Below the attempt cap the task is eligible for requeue.
	n, err := s.RequeueFailed(3)
	if err != nil || n != 1 {
		t.Fatalf("RequeueFailed = (%d, %v), want (1, nil)", n, err)
	}

	tasks, err := s.PendingSyncs("leads", 10)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("PendingSyncs = (%d, %v), want 1 task", len(tasks), err)
	}
	if tasks[0].Attempts != 1 {
		t.Errorf("attempts = %d, want 1", tasks[0].Attempts)
	}
}
