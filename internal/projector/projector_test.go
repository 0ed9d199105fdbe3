package projector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bdcore/internal/crypto"
	"bdcore/internal/models"
	"bdcore/internal/store"

	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// fakeDestination is an in-memory Destination with injectable
// failures, the projector-side analogue of the store test harness.
type fakeDestination struct {
	tables map[string]map[string][]string // table -> recordID -> row
	fail   error                          // returned by every write until cleared
}

func newFakeDestination() *fakeDestination {
	return &fakeDestination{tables: make(map[string]map[string][]string)}
}

func (d *fakeDestination) table(name string) map[string][]string {
	if d.tables[name] == nil {
		d.tables[name] = make(map[string][]string)
	}
	return d.tables[name]
}

func (d *fakeDestination) ReplaceTable(_ context.Context, table string, _ []string, rows [][]string) error {
	if d.fail != nil {
		return d.fail
	}
	fresh := make(map[string][]string)
	for _, row := range rows {
		if len(row) > 0 {
			fresh[row[0]] = row
		}
	}
	d.tables[table] = fresh
	return nil
}

func (d *fakeDestination) ReadRow(_ context.Context, table, recordID string) ([]string, time.Time, bool, error) {
	row, ok := d.table(table)[recordID]
	return row, fixedNow.Add(-time.Hour), ok, nil
}

func (d *fakeDestination) UpsertRow(_ context.Context, table, recordID string, _ []string, row []string) error {
	if d.fail != nil {
		return d.fail
	}
	d.table(table)[recordID] = row
	return nil
}

func (d *fakeDestination) DeleteRow(_ context.Context, table, recordID string) error {
	if d.fail != nil {
		return d.fail
	}
	delete(d.table(table), recordID)
	return nil
}

func newTestProjector(t *testing.T, filter *FollowUpFilter) (*Projector, *store.Store, *fakeDestination) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	dest := newFakeDestination()
	p := New(st, dest, filter, zap.NewNop(), func() time.Time { return fixedNow })
	p.retryInitial = time.Millisecond
	return p, st, dest
}

func seedContactAndLead(t *testing.T, st *store.Store, userID int64, username string) *models.Lead {
	t.Helper()
	if err := st.UpsertContact(&models.Contact{
		UserID: userID, Username: username, FirstName: "Test",
		TotalMessages: 10, ActivityLevel: models.ActivityModerate,
		FirstSeen: fixedNow.AddDate(0, 0, -10), LastSeen: fixedNow,
	}, nil); err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	lead := &models.Lead{
		LeadID: "lead_" + strings.TrimLeft(username, "@"), UserID: userID,
		IntelligenceScore: 70, BDScore: 56, ConversionLikelihood: 49,
		LeadQuality: models.LeadWarm, Priority: models.PriorityHigh,
		EstimatedValue: 21000, InvestmentCapacity: models.CapacityMedium,
		DealSizeCategory: models.DealMidMarket, RelationshipStrength: models.RelationshipStrong,
	}
	if err := st.UpsertLead(lead, nil); err != nil {
		t.Fatalf("UpsertLead: %v", err)
	}
	return lead
}

var syncSeq int

func enqueue(t *testing.T, st *store.Store, table, recordID string) *models.SyncTask {
	t.Helper()
	syncSeq++
	task := &models.SyncTask{
		SyncID:   fmt.Sprintf("sync_%s_%s_%d", table, recordID, syncSeq),
		TableName: table,
		RecordID: recordID, Operation: models.SyncUpsert,
		State: models.SyncPending, EnqueuedAt: fixedNow,
	}
	if err := st.EnqueueSync(task, nil); err != nil {
		t.Fatalf("EnqueueSync: %v", err)
	}
	return task
}

func taskState(t *testing.T, st *store.Store, syncID string) models.SyncState {
	t.Helper()
	var state string
	if err := st.DB().Get(&state, `SELECT state FROM sync_tasks WHERE sync_id = ?`, syncID); err != nil {
		t.Fatalf("read task state: %v", err)
	}
	return models.SyncState(state)
}

func TestFullSyncNeverExportsMessageText(t *testing.T) {
	p, st, dest := newTestProjector(t, nil)

	key := make([]byte, crypto.KeySize)
	copy(key, []byte("0123456789abcdef0123456789abcdef"))
	aead, _ := crypto.New(key)
	const secret = "confidential acquisition target"
	enc, _ := aead.Encrypt([]byte(secret))

	if err := st.UpsertChat(&models.Chat{ChatID: 1, ChatType: models.ChatPrivate}, nil); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}
	if err := st.UpsertMessageBatch([]models.Message{{
		ChatID: 1, MessageID: 1, FromUserID: 1, Date: fixedNow,
		TextCipher: enc, MessageType: "text",
	}}); err != nil {
		t.Fatalf("UpsertMessageBatch: %v", err)
	}

	if err := p.FullSync(context.Background()); err != nil {
		t.Fatalf("FullSync: %v", err)
	}

	for table, rows := range dest.tables {
		for _, row := range rows {
			for _, cell := range row {
				if strings.Contains(cell, secret) || strings.Contains(cell, "confidential") {
					t.Fatalf("table %s leaked message text in cell %q", table, cell)
				}
			}
		}
	}
	if len(dest.tables["messages"]) != 1 {
		t.Fatalf("expected 1 projected message row, got %d", len(dest.tables["messages"]))
	}
}

func TestIncrementalSyncCompletesTask(t *testing.T) {
	p, st, dest := newTestProjector(t, nil)
	seedContactAndLead(t, st, 1, "alice")
	task := enqueue(t, st, "contacts", "1")

	if err := p.IncrementalSync(context.Background()); err != nil {
		t.Fatalf("IncrementalSync: %v", err)
	}
	if got := taskState(t, st, task.SyncID); got != models.SyncCompleted {
		t.Fatalf("task state = %s, want completed", got)
	}
	if _, ok := dest.table("contacts")["1"]; !ok {
		t.Fatal("expected contact row written to destination")
	}
}

func TestExternalEditLandsInConflict(t *testing.T) {
	p, st, dest := newTestProjector(t, nil)
	seedContactAndLead(t, st, 1, "alice")

	// First sync establishes the row and its hash.
	first := enqueue(t, st, "contacts", "1")
	if err := p.IncrementalSync(context.Background()); err != nil {
		t.Fatalf("first IncrementalSync: %v", err)
	}
	if got := taskState(t, st, first.SyncID); got != models.SyncCompleted {
		t.Fatalf("first task state = %s, want completed", got)
	}

	// Someone edits the destination row out-of-band.
	edited := append([]string(nil), dest.table("contacts")["1"]...)
	edited[1] = "renamed-by-hand"
	dest.table("contacts")["1"] = edited

	second := enqueue(t, st, "contacts", "1")
	if err := p.IncrementalSync(context.Background()); err != nil {
		t.Fatalf("second IncrementalSync: %v", err)
	}
	if got := taskState(t, st, second.SyncID); got != models.SyncConflict {
		t.Fatalf("second task state = %s, want conflict", got)
	}
	// The hand edit survives.
	if dest.table("contacts")["1"][1] != "renamed-by-hand" {
		t.Fatal("projector overwrote an externally edited row")
	}
	var lastErr string
	if err := st.DB().Get(&lastErr, `SELECT last_error FROM sync_tasks WHERE sync_id = ?`, second.SyncID); err != nil {
		t.Fatalf("read last_error: %v", err)
	}
	if !strings.Contains(lastErr, "edited externally") {
		t.Fatalf("last_error = %q, want external-edit note", lastErr)
	}
}

func TestThreeFailuresAreTerminal(t *testing.T) {
	p, st, dest := newTestProjector(t, nil)
	seedContactAndLead(t, st, 1, "alice")
	task := enqueue(t, st, "contacts", "1")

	dest.fail = errors.New("destination unreachable")

	// Each pass claims the task (attempts++), fails it, and requeues it
	// while attempts stay under the cap.
	for i := 0; i < 3; i++ {
		if err := p.IncrementalSync(context.Background()); err != nil {
			t.Fatalf("IncrementalSync pass %d: %v", i+1, err)
		}
	}

	if got := taskState(t, st, task.SyncID); got != models.SyncFailed {
		t.Fatalf("task state = %s, want terminal failed", got)
	}

	// A further pass must not touch it again.
	if err := p.IncrementalSync(context.Background()); err != nil {
		t.Fatalf("post-terminal IncrementalSync: %v", err)
	}
	var attempts int
	if err := st.DB().Get(&attempts, `SELECT attempts FROM sync_tasks WHERE sync_id = ?`, task.SyncID); err != nil {
		t.Fatalf("read attempts: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want exactly 3", attempts)
	}
}

func TestAuthorizationFailureSuppressesSync(t *testing.T) {
	p, st, dest := newTestProjector(t, nil)
	seedContactAndLead(t, st, 1, "alice")
	enqueue(t, st, "contacts", "1")

	dest.fail = ErrAuthorization
	err := p.IncrementalSync(context.Background())
	if !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization surfaced, got %v", err)
	}

	// Further syncs are refused until the operator acknowledges.
	if err := p.IncrementalSync(context.Background()); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected suppressed sync, got %v", err)
	}

	dest.fail = nil
	p.AcknowledgeAuth()
	if err := p.IncrementalSync(context.Background()); err != nil {
		t.Fatalf("post-acknowledge IncrementalSync: %v", err)
	}
}

func TestFollowUpFilterExcludesDeniedUsernames(t *testing.T) {
	filter := &FollowUpFilter{Deny: []string{"teammate"}}
	filter.index()

	p, st, dest := newTestProjector(t, filter)
	seedContactAndLead(t, st, 1, "alice")

	if err := st.UpsertContact(&models.Contact{
		UserID: 2, Username: "teammate", FirstSeen: fixedNow, LastSeen: fixedNow,
	}, nil); err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	if err := st.UpsertLead(&models.Lead{
		LeadID: "lead_2", UserID: 2, IntelligenceScore: 90,
		LeadQuality: models.LeadHot, Priority: models.PriorityCritical,
	}, nil); err != nil {
		t.Fatalf("UpsertLead: %v", err)
	}

	if err := p.FullSync(context.Background()); err != nil {
		t.Fatalf("FullSync: %v", err)
	}

	leads := dest.tables["leads"]
	if len(leads) != 1 {
		t.Fatalf("expected 1 lead row after filtering, got %d", len(leads))
	}
	if _, ok := leads["2"]; ok {
		t.Fatal("denied username leaked into the leads projection")
	}
}
