package store

import (
	"database/sql"
	"fmt"
	"time"

	"bdcore/internal/models"
)

// Listing queries used by the projector's full-sync mode, which
// re-renders every projected table from scratch. Each
// returns rows in a stable order so consecutive full syncs of an
// unchanged store produce byte-identical worksheets.

// AllContacts returns every contact, ordered by user_id.
func (s *Store) AllContacts() ([]models.Contact, error) {
	var rows []models.Contact
	if err := s.db.Select(&rows, `SELECT * FROM contacts ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("all contacts: %w", err)
	}
	return rows, nil
}

// AllChats returns every chat, ordered by chat_id.
func (s *Store) AllChats() ([]models.Chat, error) {
	var rows []models.Chat
	if err := s.db.Select(&rows, `SELECT * FROM chats ORDER BY chat_id`); err != nil {
		return nil, fmt.Errorf("all chats: %w", err)
	}
	return rows, nil
}

// AllLeads returns every lead, ordered by user_id.
func (s *Store) AllLeads() ([]models.Lead, error) {
	var rows []models.Lead
	if err := s.db.Select(&rows, `SELECT * FROM leads ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("all leads: %w", err)
	}
	return rows, nil
}

// AllParticipants returns every chat_participants row, ordered by
// (chat_id, user_id).
func (s *Store) AllParticipants() ([]models.ChatParticipant, error) {
	var rows []models.ChatParticipant
	if err := s.db.Select(&rows, `SELECT * FROM chat_participants ORDER BY chat_id, user_id`); err != nil {
		return nil, fmt.Errorf("all participants: %w", err)
	}
	return rows, nil
}

// AllMessages returns every message row ordered by (chat_id,
// message_id). The projection layer is responsible for never rendering
// the ciphertext column; this method hands over the full row
// because the metadata columns live beside it.
func (s *Store) AllMessages() ([]models.Message, error) {
	var rows []models.Message
	if err := s.db.Select(&rows, `SELECT * FROM messages ORDER BY chat_id, message_id`); err != nil {
		return nil, fmt.Errorf("all messages: %w", err)
	}
	return rows, nil
}

// GetLeadByID returns the Lead for leadID (the "lead_<user_id>"
// synthetic key), or sql.ErrNoRows.
func (s *Store) GetLeadByID(leadID string) (*models.Lead, error) {
	var l models.Lead
	if err := s.db.Get(&l, `SELECT * FROM leads WHERE lead_id = ?`, leadID); err != nil {
		return nil, fmt.Errorf("get lead %s: %w", leadID, err)
	}
	return &l, nil
}

// ProjectionHash returns the last row hash the Sync Projector wrote
// for (table, record), or "" if the row has never been projected. The
// projector compares it against the destination's current row to
// detect out-of-band edits before overwriting anything.
func (s *Store) ProjectionHash(table, recordID string) (string, error) {
	var hash string
	const q = `SELECT row_hash FROM projection_state WHERE table_name = ? AND record_id = ?`
	err := s.db.Get(&hash, q, table, recordID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("projection hash %s/%s: %w", table, recordID, err)
	}
	return hash, nil
}

// SetProjectionHash records the hash of the row just written to the
// destination for (table, record).
func (s *Store) SetProjectionHash(table, recordID, hash string, writtenAt time.Time) error {
	const q = `
		INSERT INTO projection_state (table_name, record_id, row_hash, written_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name, record_id) DO UPDATE SET
			row_hash   = excluded.row_hash,
			written_at = excluded.written_at
	`
	if _, err := s.db.Exec(q, table, recordID, hash, writtenAt); err != nil {
		return fmt.Errorf("set projection hash %s/%s: %w", table, recordID, err)
	}
	return nil
}

// GetMessage returns one message by its natural key, used by
// incremental sync to re-render a single projection row.
func (s *Store) GetMessage(chatID, messageID int64) (*models.Message, error) {
	var m models.Message
	const q = `SELECT * FROM messages WHERE chat_id = ? AND message_id = ?`
	if err := s.db.Get(&m, q, chatID, messageID); err != nil {
		return nil, fmt.Errorf("get message (%d,%d): %w", chatID, messageID, err)
	}
	return &m, nil
}
