package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bdcore/internal/models"
)

// UpsertMessageBatch writes msgs atomically and idempotently: a
// message already present (same chat_id, message_id) is left
// untouched except for edit_date, so ingestion is replay-safe and
// concurrent writers of the same key converge on one row.
func (s *Store) UpsertMessageBatch(msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO messages (
			chat_id, message_id, from_user_id, date, text_ciphertext,
			message_type, is_reply, is_forwarded, edit_date
		) VALUES (
			:chat_id, :message_id, :from_user_id, :date, :text_ciphertext,
			:message_type, :is_reply, :is_forwarded, :edit_date
		)
		ON CONFLICT(chat_id, message_id) DO UPDATE SET
			edit_date = excluded.edit_date
	`
	for i := range msgs {
		if _, err := namedExec(tx.tx, q, &msgs[i]); err != nil {
			return fmt.Errorf("upsert message (%d,%d): %w", msgs[i].ChatID, msgs[i].MessageID, err)
		}
	}

	return tx.Commit()
}

// UnenrichedMessages returns up to limit messages with enriched = 0,
// ordered by date, for the signal pass to process.
func (s *Store) UnenrichedMessages(limit int) ([]models.Message, error) {
	var msgs []models.Message
	const q = `SELECT * FROM messages WHERE enriched = 0 ORDER BY date ASC LIMIT ?`
	if err := s.db.Select(&msgs, q, limit); err != nil {
		return nil, fmt.Errorf("select unenriched messages: %w", err)
	}
	return msgs, nil
}

// MarkEnriched writes the derived per-message signals back for msg,
// setting enriched = 1.
func (s *Store) MarkEnriched(msg *models.Message, tx *Tx) error {
	const q = `
		UPDATE messages SET
			enriched                   = 1,
			word_count                 = :word_count,
			time_of_day                = :time_of_day,
			day_of_week                = :day_of_week,
			length_category            = :length_category,
			sentiment                  = :sentiment,
			contains_business_keywords = :contains_business_keywords,
			is_question                = :is_question,
			contains_media             = :contains_media,
			contains_links             = :contains_links,
			content_category           = :content_category
		WHERE chat_id = :chat_id AND message_id = :message_id
	`
	_, err := namedExec(s.execer(tx), q, msg)
	if err != nil {
		return fmt.Errorf("mark enriched (%d,%d): %w", msg.ChatID, msg.MessageID, err)
	}
	return nil
}

// MessagesByUser returns every enriched message authored by userID,
// the per-contact window the enricher scans.
func (s *Store) MessagesByUser(userID int64) ([]models.Message, error) {
	var msgs []models.Message
	const q = `SELECT * FROM messages WHERE from_user_id = ? AND enriched = 1 ORDER BY date ASC`
	if err := s.db.Select(&msgs, q, userID); err != nil {
		return nil, fmt.Errorf("select messages for user %d: %w", userID, err)
	}
	return msgs, nil
}

// Watermark returns the latest message date ingested for chatID, or
// the zero time if no messages exist yet. The Ingestor uses this to
// resume a dialog from where it left off instead of re-fetching history.
func (s *Store) Watermark(chatID int64) (time.Time, error) {
	var t time.Time
	const q = `SELECT date FROM messages WHERE chat_id = ? ORDER BY date DESC LIMIT 1`
	err := s.db.Get(&t, q, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("watermark for chat %d: %w", chatID, err)
	}
	return t, nil
}

// DistinctUserIDs returns every from_user_id that has authored at
// least one message, the enrichment driver's per-contact work list.
func (s *Store) DistinctUserIDs() ([]int64, error) {
	var ids []int64
	const q = `SELECT DISTINCT from_user_id FROM messages`
	if err := s.db.Select(&ids, q); err != nil {
		return nil, fmt.Errorf("distinct user ids: %w", err)
	}
	return ids, nil
}
