package store

import (
	"fmt"

	"bdcore/internal/models"
)

// UpsertChat inserts or merges a Chat row, keyed on chat_id. Identity
// columns (type, title, username) always take the incoming value; the
// message counters are owned by the Enricher's rollup refresh, so a
// shell upsert from the Ingestor never zeroes them out.
func (s *Store) UpsertChat(c *models.Chat, tx *Tx) error {
	const q = `
		INSERT INTO chats (
			chat_id, chat_type, title, username, participant_count,
			first_message_date, last_message_date, total_messages
		) VALUES (
			:chat_id, :chat_type, :title, :username, :participant_count,
			:first_message_date, :last_message_date, :total_messages
		)
		ON CONFLICT(chat_id) DO UPDATE SET
			chat_type           = excluded.chat_type,
			title                = excluded.title,
			username             = excluded.username,
			participant_count    = CASE WHEN excluded.participant_count > 0
			                            THEN excluded.participant_count
			                            ELSE chats.participant_count END
	`
	_, err := namedExec(s.execer(tx), q, c)
	if err != nil {
		return fmt.Errorf("upsert chat %d: %w", c.ChatID, err)
	}
	return nil
}

// GetChat returns the Chat for chatID, or sql.ErrNoRows if absent.
func (s *Store) GetChat(chatID int64) (*models.Chat, error) {
	var c models.Chat
	const q = `SELECT * FROM chats WHERE chat_id = ?`
	if err := s.db.Get(&c, q, chatID); err != nil {
		return nil, fmt.Errorf("get chat %d: %w", chatID, err)
	}
	return &c, nil
}

// ListChats returns every known chat, most recently active first.
func (s *Store) ListChats() ([]models.Chat, error) {
	var chats []models.Chat
	const q = `SELECT * FROM chats ORDER BY last_message_date DESC`
	if err := s.db.Select(&chats, q); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}
