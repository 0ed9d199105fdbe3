package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bdcore/internal/crypto"
	"bdcore/internal/models"
	"bdcore/internal/store"

	"github.com/cenkalti/backoff/v4"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
)

// BatchSize is the number of messages the Ingestor buffers before
// flushing a single atomic UpsertMessageBatch call.
const BatchSize = 500

// maxDialogRetries caps transport-error backoff attempts for a single
// dialog before it is abandoned for this run; the next scheduled
// ingest pass will pick its watermark back up. Flood-wait sleeps are
// not counted against it.
const maxDialogRetries = 6

// Transport-error backoff bounds. Flood-wait sleeps use the server's
// exact requested duration instead.
const (
	backoffInitial = 2 * time.Second
	backoffMax     = 60 * time.Second
)

// Progress is emitted after each dialog so callers (scheduler, CLI)
// can report ingest status without polling the Store.
type Progress struct {
	ChatID    int64
	Title     string
	Fetched   int
	Err       error
}

// Ingestor drives the Telegram client against the Store: one pass
// walks every dialog, fetching messages newer than that dialog's
// watermark, encrypting their text, and batching writes.
type Ingestor struct {
	tg    *TelegramClient
	store *store.Store
	aead  *crypto.AEAD
	log   *zap.Logger

	limit        int
	retryInitial time.Duration
}

// New constructs an Ingestor. limit bounds the number of messages
// fetched per dialog per pass (SYNC_LIMIT).
func New(tg *TelegramClient, st *store.Store, aead *crypto.AEAD, limit int, log *zap.Logger) *Ingestor {
	return &Ingestor{tg: tg, store: st, aead: aead, limit: limit, log: log, retryInitial: backoffInitial}
}

// Run walks every visible dialog and ingests new messages, reporting
// progress via onProgress as each dialog completes. A failure on one
// dialog is isolated: it is logged and reported, and the pass
// continues with the next dialog.
func (i *Ingestor) Run(ctx context.Context, onProgress func(Progress)) error {
	dialogs, err := i.tg.Dialogs(ctx)
	if err != nil {
		return fmt.Errorf("list dialogs: %w", err)
	}

	for _, d := range dialogs {
		if err := ctx.Err(); err != nil {
			return err
		}

		fetched, err := i.ingestDialog(ctx, d)
		if onProgress != nil {
			onProgress(Progress{ChatID: d.ChatID, Title: d.Title, Fetched: fetched, Err: err})
		}
		if err != nil {
			i.log.Warn("dialog ingest failed, continuing with next dialog",
				zap.Int64("chat_id", d.ChatID), zap.String("title", d.Title), zap.Error(err))
		}
	}
	return nil
}

func (i *Ingestor) ingestDialog(ctx context.Context, d Dialog) (int, error) {
	watermark, err := i.store.Watermark(d.ChatID)
	if err != nil {
		return 0, fmt.Errorf("read watermark: %w", err)
	}

	if err := i.upsertChatShell(d); err != nil {
		return 0, err
	}

	total := 0
	var batch []models.Message

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := i.store.UpsertMessageBatch(batch); err != nil {
			return fmt.Errorf("persist batch: %w", err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err = i.withRetry(ctx, func() error {
		return i.tg.History(ctx, d, watermark.Unix(), i.limit, func(page []RawMessage) error {
			for _, raw := range page {
				enc, err := i.aead.Encrypt([]byte(raw.Text))
				if err != nil {
					return fmt.Errorf("encrypt message %d/%d: %w", raw.ChatID, raw.MessageID, err)
				}
				msg := models.Message{
					ChatID:      raw.ChatID,
					MessageID:   raw.MessageID,
					FromUserID:  raw.FromUserID,
					Date:        time.Unix(raw.Date, 0).UTC(),
					TextCipher:  enc,
					MessageType: raw.MessageType,
					IsReply:     raw.IsReply,
					IsForwarded: raw.IsForwarded,
				}
				if raw.EditDate != 0 {
					t := time.Unix(raw.EditDate, 0).UTC()
					msg.EditDate = &t
				}
				batch = append(batch, msg)
				if len(batch) >= BatchSize {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			return nil
		})
	})
	if err != nil {
		return total, err
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// upsertChatShell writes/refreshes the Chat row before any messages
// land, so foreign-key-style joins downstream never race ahead of it.
func (i *Ingestor) upsertChatShell(d Dialog) error {
	return i.store.UpsertChat(&models.Chat{
		ChatID:   d.ChatID,
		ChatType: models.ChatType(d.ChatType),
		Title:    d.Title,
		Username: d.Username,
	}, nil)
}

// withRetry runs fn, retrying on flood-wait and transient transport
// errors. Flood-wait sleeps honor the server's exact requested
// duration and are never capped: the server has told us precisely how
// long to wait, and a long backfill can legitimately draw many of
// them in a row. Transport errors back off exponentially with jitter
// (2 s initial, 60 s cap), and only they count toward
// maxDialogRetries; past the cap the error is surfaced wrapped in
// ErrDialogFailed so the caller can isolate the dialog and continue
// the pass.
func (i *Ingestor) withRetry(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = i.retryInitial
	bo.MaxInterval = backoffMax
	bo.MaxElapsedTime = 0

	transportAttempts := 0
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var delay time.Duration
		if wait, ok := tgerr.FloodWait(err); ok {
			delay = wait
			i.log.Warn("flood wait, sleeping the requested duration",
				zap.Duration("wait", delay))
		} else {
			transportAttempts++
			if transportAttempts > maxDialogRetries {
				return fmt.Errorf("%w: exceeded %d transport retries: %v", ErrDialogFailed, maxDialogRetries, err)
			}
			delay = bo.NextBackOff()
			i.log.Warn("transport error, backing off",
				zap.Duration("wait", delay), zap.Int("attempt", transportAttempts), zap.Error(err))
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
