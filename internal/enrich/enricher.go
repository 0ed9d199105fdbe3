// Package enrich derives analytical columns from the encrypted message
// store in six idempotent stages: per-message signals, contact
// aggregation, keyword scoring, lead qualification, follow-up
// synthesis, and opportunity emission. All state lives in the Store;
// the Enricher holds only a transient working set per pass, so
// concurrent passes are forbidden (the Scheduler serializes enrich
// jobs) but back-to-back passes over unchanged data produce identical
// output.
package enrich

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bdcore/internal/crypto"
	"bdcore/internal/models"
	"bdcore/internal/store"

	"go.uber.org/zap"
)

// messageBatchSize is the signal-pass write-back transaction size.
const messageBatchSize = 1000

// scoreWindow caps the per-contact message corpus scoring scans: the
// most recent N messages. Older history still counts toward volume
// bonuses through the contact's total_messages counter.
const scoreWindow = 200

// Metrics counts row-level outcomes for one enrichment pass. Decrypt
// failures are isolated per row and surface only here, never as pass
// failures; data errors are swallowed with metrics.
type Metrics struct {
	MessagesEnriched int
	DecryptFailures  int
	ContactsUpdated  int
	LeadsQualified   int
	FollowUpsCreated int
	Opportunities    int
}

// Enricher runs the enrichment stages against the Store.
type Enricher struct {
	store     *store.Store
	aead      *crypto.AEAD
	sentiment SentimentStrategy
	log       *zap.Logger
	now       func() time.Time
}

// New constructs an Enricher with the default lexicon sentiment
// strategy. now is injectable for deterministic tests; pass nil for
// time.Now.
func New(st *store.Store, aead *crypto.AEAD, log *zap.Logger, now func() time.Time) *Enricher {
	if now == nil {
		now = time.Now
	}
	return &Enricher{
		store:     st,
		aead:      aead,
		sentiment: LexiconSentiment{},
		log:       log,
		now:       now,
	}
}

// WithSentiment swaps the sentiment strategy. The default lexicon is
// the scoring-contract baseline; substitutes must keep the three-way
// outcome shape.
func (e *Enricher) WithSentiment(s SentimentStrategy) *Enricher {
	e.sentiment = s
	return e
}

// Run executes one full enrichment pass: message signals, contact
// aggregation, then scoring through opportunities per contact. Stages
// run strictly in order; a row-level failure never aborts the pass.
func (e *Enricher) Run(ctx context.Context) (*Metrics, error) {
	m := &Metrics{}

	if err := e.enrichMessages(ctx, m); err != nil {
		return m, fmt.Errorf("message signals: %w", err)
	}
	if err := e.aggregateContacts(ctx, m); err != nil {
		return m, fmt.Errorf("contact aggregation: %w", err)
	}
	if err := e.qualifyContacts(ctx, m); err != nil {
		return m, fmt.Errorf("contact qualification: %w", err)
	}

	e.log.Info("enrichment pass complete",
		zap.Int("messages_enriched", m.MessagesEnriched),
		zap.Int("decrypt_failures", m.DecryptFailures),
		zap.Int("contacts_updated", m.ContactsUpdated),
		zap.Int("leads_qualified", m.LeadsQualified))
	return m, nil
}

// enrichMessages decrypts each unenriched message, derives its
// signal columns, and writes them back in batched transactions.
// Rows whose ciphertext fails to open stay unenriched and are skipped
// for the remainder of the pass.
func (e *Enricher) enrichMessages(ctx context.Context, m *Metrics) error {
	type key struct{ chat, msg int64 }
	skipped := make(map[key]bool)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := e.store.UnenrichedMessages(messageBatchSize + len(skipped))
		if err != nil {
			return err
		}

		var batch []models.Message
		for _, msg := range msgs {
			k := key{msg.ChatID, msg.MessageID}
			if skipped[k] {
				continue
			}
			plaintext, err := e.aead.Decrypt(msg.TextCipher)
			if err != nil {
				m.DecryptFailures++
				skipped[k] = true
				e.log.Warn("skipping undecryptable message",
					zap.Int64("chat_id", msg.ChatID),
					zap.Int64("message_id", msg.MessageID))
				continue
			}
			applySignals(&msg, string(plaintext), e.sentiment)
			batch = append(batch, msg)
		}

		if len(batch) == 0 {
			return nil
		}

		tx, err := e.store.BeginTx()
		if err != nil {
			return err
		}
		for i := range batch {
			if err := e.store.MarkEnriched(&batch[i], tx); err != nil {
				tx.Rollback()
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		m.MessagesEnriched += len(batch)
	}
}

// aggregateContacts recomputes per-contact counters and activity
// levels from the messages table, rebuilds every ChatParticipant row,
// and refreshes the chats table's denormalized counters. Everything is
// recomputed from scratch so a re-run over unchanged messages is a
// no-op rewrite of identical values.
func (e *Enricher) aggregateContacts(ctx context.Context, m *Metrics) error {
	contactAggs, err := e.store.ContactAggregates()
	if err != nil {
		return err
	}
	participantAggs, err := e.store.ParticipantAggregates()
	if err != nil {
		return err
	}
	chatAggs, err := e.store.ChatAggregates()
	if err != nil {
		return err
	}

	chats, err := e.store.AllChats()
	if err != nil {
		return err
	}
	chatByID := make(map[int64]models.Chat, len(chats))
	for _, c := range chats {
		chatByID[c.ChatID] = c
	}

	tx, err := e.store.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, agg := range contactAggs {
		if err := ctx.Err(); err != nil {
			return err
		}
		contact, changed, err := e.refreshedContact(agg, chatByID)
		if err != nil {
			return err
		}
		if err := e.store.UpsertContact(contact, tx); err != nil {
			return err
		}
		if changed {
			m.ContactsUpdated++
			if err := e.enqueueOnce(tx, "contacts", fmt.Sprintf("%d", contact.UserID)); err != nil {
				return err
			}
		}
	}

	for _, agg := range participantAggs {
		p := &models.ChatParticipant{
			ChatID:          agg.ChatID,
			UserID:          agg.UserID,
			MessageCount:    agg.MessageCount,
			FirstSeen:       agg.FirstSeen(),
			LastSeen:        agg.LastSeen(),
			EngagementLevel: engagementLevel(agg.MessageCount),
		}
		if err := e.store.UpsertChatParticipant(p, tx); err != nil {
			return err
		}
	}

	for _, agg := range chatAggs {
		if err := e.store.RefreshChatCounters(agg, tx); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// refreshedContact merges fresh aggregates into the existing Contact
// row (or a new shell). For private dialogs the chat row carries the
// peer's name, so a brand-new contact inherits it. The changed flag
// gates sync enqueueing: an unchanged contact produces no new task.
func (e *Enricher) refreshedContact(agg store.ContactAggregate, chatByID map[int64]models.Chat) (*models.Contact, bool, error) {
	contact, err := e.store.GetContact(agg.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		contact = &models.Contact{UserID: agg.UserID, FirstSeen: agg.FirstSeen()}
		if chat, ok := chatByID[agg.UserID]; ok && chat.ChatType == models.ChatPrivate {
			contact.Username = chat.Username
			contact.FirstName = chat.Title
		}
	} else if err != nil {
		return nil, false, err
	}

	changed := contact.TotalMessages != agg.TotalMessages ||
		contact.TotalChats != agg.TotalChats ||
		!contact.LastSeen.Equal(agg.LastSeen())

	contact.TotalMessages = agg.TotalMessages
	contact.TotalChats = agg.TotalChats
	contact.LastSeen = agg.LastSeen()
	if contact.FirstSeen.IsZero() || agg.FirstSeen().Before(contact.FirstSeen) {
		contact.FirstSeen = agg.FirstSeen()
	}
	contact.ActivityLevel = activityLevel(agg.TotalMessages)

	return contact, changed, nil
}

func activityLevel(total int) models.ActivityLevel {
	switch {
	case total > 100:
		return models.ActivityVeryActive
	case total > 50:
		return models.ActivityActive
	case total > 10:
		return models.ActivityModerate
	default:
		return models.ActivityOccasional
	}
}

func engagementLevel(count int) models.EngagementLevel {
	switch {
	case count > 50:
		return models.EngagementHigh
	case count > 10:
		return models.EngagementMedium
	default:
		return models.EngagementLow
	}
}

// enqueueOnce queues an outbound upsert for (table, recordID), unless
// an identical task is already outstanding.
func (e *Enricher) enqueueOnce(tx *store.Tx, table, recordID string) error {
	task := &models.SyncTask{
		SyncID:     fmt.Sprintf("sync_%s_%s_%d", table, recordID, e.now().UnixNano()),
		TableName:  table,
		RecordID:   recordID,
		Operation:  models.SyncUpsert,
		State:      models.SyncPending,
		EnqueuedAt: e.now().UTC(),
	}
	_, err := e.store.EnqueueSyncOnce(task, tx)
	return err
}
