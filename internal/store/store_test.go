package store

import (
	"path/filepath"
	"testing"
	"time"

	"bdcore/internal/models"

	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertContactMergesCounters(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	c := &models.Contact{
		UserID: 1, Username: "alice", TotalMessages: 5,
		ActivityLevel: models.ActivityActive, FirstSeen: now, LastSeen: now,
	}
	if err := s.UpsertContact(c, nil); err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}

	c.TotalMessages = 10
	c.LastSeen = now.Add(time.Hour)
	if err := s.UpsertContact(c, nil); err != nil {
		t.Fatalf("UpsertContact (merge): %v", err)
	}

	got, err := s.GetContact(1)
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if got.TotalMessages != 10 {
		t.Fatalf("expected merged total_messages 10, got %d", got.TotalMessages)
	}
}

func TestUpsertMessageBatchIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	batch := []models.Message{
		{ChatID: 100, MessageID: 1, FromUserID: 1, Date: now, TextCipher: []byte("a")},
		{ChatID: 100, MessageID: 2, FromUserID: 1, Date: now.Add(time.Minute), TextCipher: []byte("b")},
	}

	if err := s.UpsertMessageBatch(batch); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := s.UpsertMessageBatch(batch); err != nil {
		t.Fatalf("replayed batch: %v", err)
	}

	msgs, err := s.UnenrichedMessages(100)
	if err != nil {
		t.Fatalf("UnenrichedMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 rows after replaying an identical batch, got %d", len(msgs))
	}
}

func TestWatermarkTracksLatestMessage(t *testing.T) {
	s := openTestStore(t)

	empty, err := s.Watermark(999)
	if err != nil {
		t.Fatalf("Watermark (empty): %v", err)
	}
	if !empty.IsZero() {
		t.Fatalf("expected zero watermark for unseen chat, got %v", empty)
	}

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	batch := []models.Message{
		{ChatID: 1, MessageID: 1, FromUserID: 1, Date: t1},
		{ChatID: 1, MessageID: 2, FromUserID: 1, Date: t2},
	}
	if err := s.UpsertMessageBatch(batch); err != nil {
		t.Fatalf("UpsertMessageBatch: %v", err)
	}

	wm, err := s.Watermark(1)
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	if !wm.Equal(t2) {
		t.Fatalf("expected watermark %v, got %v", t2, wm)
	}
}

func TestSyncTaskLifecycleIsMonotonic(t *testing.T) {
	s := openTestStore(t)

	task := &models.SyncTask{
		SyncID: "sync-1", TableName: "leads", RecordID: "lead-1",
		Operation: models.SyncUpsert, State: models.SyncPending,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := s.EnqueueSync(task, nil); err != nil {
		t.Fatalf("EnqueueSync: %v", err)
	}

	if err := s.MarkSyncInProgress("sync-1"); err != nil {
		t.Fatalf("MarkSyncInProgress: %v", err)
	}
	// Cannot re-enter in_progress from in_progress.
	if err := s.MarkSyncInProgress("sync-1"); err == nil {
		t.Fatalf("expected error re-marking an already in_progress task")
	}

	if err := s.MarkSyncCompleted("sync-1", time.Now().UTC()); err != nil {
		t.Fatalf("MarkSyncCompleted: %v", err)
	}
	// Completed is terminal: cannot fail it afterward.
	if err := s.MarkSyncFailed("sync-1", errBoom); err == nil {
		t.Fatalf("expected error failing an already completed task")
	}
}

func TestDashboardAggregatesByLeadQuality(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	for _, uid := range []int64{1, 2} {
		if err := s.UpsertContact(&models.Contact{UserID: uid, FirstSeen: now, LastSeen: now}, nil); err != nil {
			t.Fatalf("UpsertContact: %v", err)
		}
	}
	leads := []*models.Lead{
		{LeadID: "l1", UserID: 1, IntelligenceScore: 90, EstimatedValue: 1000, LeadQuality: models.LeadHot},
		{LeadID: "l2", UserID: 2, IntelligenceScore: 70, EstimatedValue: 500, LeadQuality: models.LeadHot},
	}
	for _, l := range leads {
		if err := s.UpsertLead(l, nil); err != nil {
			t.Fatalf("UpsertLead: %v", err)
		}
	}

	rows, err := s.Dashboard()
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if len(rows) != 1 || rows[0].Count != 2 {
		t.Fatalf("expected one hot-tier row with count 2, got %+v", rows)
	}
	if rows[0].AvgIntelligence != 80 {
		t.Fatalf("expected avg intelligence 80, got %v", rows[0].AvgIntelligence)
	}
}

type boom struct{ msg string }

func (b *boom) Error() string { return b.msg }

var errBoom = &boom{msg: "boom"}
