package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestAcquireLockWritesOwnPID(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir, false, zap.NewNop())
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	raw, err := os.ReadFile(filepath.Join(dir, LockFileName))
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	pid, err := strconv.Atoi(string(raw))
	if err != nil || pid != os.Getpid() {
		t.Fatalf("lock file holds %q, want our pid %d", raw, os.Getpid())
	}
}

func TestSecondAcquireFailsAgainstLiveProcess(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir, false, zap.NewNop())
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	// Our own pid is live by definition.
	if _, err := AcquireLock(dir, false, zap.NewNop()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	// force takes the lock anyway.
	forced, err := AcquireLock(dir, true, zap.NewNop())
	if err != nil {
		t.Fatalf("forced AcquireLock: %v", err)
	}
	forced.Release()
}

func TestStaleLockIsReclaimed(t *testing.T) {
	dir := t.TempDir()
	// A pid far above any realistic pid space reads as dead.
	if err := os.WriteFile(filepath.Join(dir, LockFileName), []byte("999999999"), 0o644); err != nil {
		t.Fatalf("write stale lock: %v", err)
	}

	lock, err := AcquireLock(dir, false, zap.NewNop())
	if err != nil {
		t.Fatalf("AcquireLock over stale lock: %v", err)
	}
	lock.Release()
}

func TestReleaseRemovesLockFile(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir, false, zap.NewNop())
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
		t.Fatalf("lock file still present after Release: %v", err)
	}
}

func TestEnqueuedJobsRunAndErrorsAreAbsorbed(t *testing.T) {
	var ingests, enriches, syncs atomic.Int32

	funcs := Funcs{
		Ingest: func(context.Context) error { ingests.Add(1); return nil },
		Enrich: func(context.Context) error { enriches.Add(1); return errors.New("boom") },
		Sync:   func(context.Context) error { syncs.Add(1); return nil },
	}
	s, err := New(funcs, 3, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	s.Enqueue(JobIngest)
	s.Enqueue(JobEnrich) // fails; must not stop subsequent jobs
	s.Enqueue(JobIngest)
	s.Enqueue(JobSync)

	deadline := time.After(2 * time.Second)
	for ingests.Load() < 2 || enriches.Load() < 1 || syncs.Load() < 1 {
		select {
		case <-deadline:
			t.Fatalf("jobs did not run: ingest=%d enrich=%d sync=%d",
				ingests.Load(), enriches.Load(), syncs.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not drain after cancellation")
	}
}

func TestIngestAndEnrichShareOneWorker(t *testing.T) {
	var concurrent, peak atomic.Int32

	track := func(context.Context) error {
		n := concurrent.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		concurrent.Add(-1)
		return nil
	}

	s, err := New(Funcs{Ingest: track, Enrich: track}, 3, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	for i := 0; i < 4; i++ {
		s.Enqueue(JobIngest)
		s.Enqueue(JobEnrich)
	}
	time.Sleep(400 * time.Millisecond)
	cancel()
	<-done

	if peak.Load() > 1 {
		t.Fatalf("ingest/enrich overlapped: peak concurrency %d", peak.Load())
	}
}
