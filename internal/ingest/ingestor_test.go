package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
)

func newTestIngestor() *Ingestor {
	return &Ingestor{log: zap.NewNop(), retryInitial: time.Millisecond}
}

func TestWithRetrySustainedFloodWaitNeverAborts(t *testing.T) {
	i := newTestIngestor()

	// The server demands a wait on every one of the first 10 calls,
	// well past the transport-retry cap. A zero-second wait keeps the
	// test fast; the duration is irrelevant to the counting logic.
	calls := 0
	err := i.withRetry(context.Background(), func() error {
		calls++
		if calls <= 10 {
			return tgerr.New(420, "FLOOD_WAIT_0")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("sustained flood-wait aborted the dialog: %v", err)
	}
	if calls != 11 {
		t.Fatalf("expected 11 calls (10 flood-waits + success), got %d", calls)
	}
}

func TestWithRetryTransportErrorsHitTheCap(t *testing.T) {
	i := newTestIngestor()

	calls := 0
	err := i.withRetry(context.Background(), func() error {
		calls++
		return errors.New("connection reset")
	})
	if !errors.Is(err, ErrDialogFailed) {
		t.Fatalf("expected ErrDialogFailed after the transport cap, got %v", err)
	}
	// Initial call plus maxDialogRetries retried attempts.
	if calls != maxDialogRetries+1 {
		t.Fatalf("expected %d calls, got %d", maxDialogRetries+1, calls)
	}
}

func TestWithRetryFloodWaitDoesNotConsumeTransportBudget(t *testing.T) {
	i := newTestIngestor()

	// Interleave: each transport error is preceded by a flood-wait.
	// Only the transport errors count, so the budget still allows all
	// of them before the final success.
	var sequence []error
	for n := 0; n < maxDialogRetries; n++ {
		sequence = append(sequence, tgerr.New(420, "FLOOD_WAIT_0"), errors.New("timeout"))
	}

	calls := 0
	err := i.withRetry(context.Background(), func() error {
		if calls < len(sequence) {
			e := sequence[calls]
			calls++
			return e
		}
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("interleaved flood-waits exhausted the transport budget: %v", err)
	}
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	i := &Ingestor{log: zap.NewNop(), retryInitial: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := i.withRetry(ctx, func() error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
