package store

import (
	"fmt"

	"bdcore/internal/models"
)

// UpsertContact inserts a new Contact or merges counters into an
// existing one, keyed on user_id: one Contact row per Telegram user.
func (s *Store) UpsertContact(c *models.Contact, tx *Tx) error {
	const q = `
		INSERT INTO contacts (
			user_id, username, first_name, last_name, phone,
			is_bot, is_verified, is_premium,
			total_messages, total_chats, activity_level,
			first_seen, last_seen
		) VALUES (
			:user_id, :username, :first_name, :last_name, :phone,
			:is_bot, :is_verified, :is_premium,
			:total_messages, :total_chats, :activity_level,
			:first_seen, :last_seen
		)
		ON CONFLICT(user_id) DO UPDATE SET
			username        = excluded.username,
			first_name      = excluded.first_name,
			last_name       = excluded.last_name,
			phone           = excluded.phone,
			is_bot          = excluded.is_bot,
			is_verified     = excluded.is_verified,
			is_premium      = excluded.is_premium,
			total_messages  = excluded.total_messages,
			total_chats     = excluded.total_chats,
			activity_level  = excluded.activity_level,
			last_seen       = excluded.last_seen
	`
	_, err := namedExec(s.execer(tx), q, c)
	if err != nil {
		return fmt.Errorf("upsert contact %d: %w", c.UserID, err)
	}
	return nil
}

// GetContact returns the Contact for userID, or sql.ErrNoRows if absent.
func (s *Store) GetContact(userID int64) (*models.Contact, error) {
	var c models.Contact
	const q = `SELECT * FROM contacts WHERE user_id = ?`
	if err := s.db.Get(&c, q, userID); err != nil {
		return nil, fmt.Errorf("get contact %d: %w", userID, err)
	}
	return &c, nil
}

// SearchContacts returns contacts whose username, first_name, or
// last_name contains query (case-insensitive), most recently active first.
func (s *Store) SearchContacts(query string, limit int) ([]models.Contact, error) {
	var contacts []models.Contact
	const q = `
		SELECT * FROM contacts
		WHERE username LIKE '%' || ? || '%' COLLATE NOCASE
		   OR first_name LIKE '%' || ? || '%' COLLATE NOCASE
		   OR last_name LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY last_seen DESC
		LIMIT ?
	`
	if err := s.db.Select(&contacts, q, query, query, query, limit); err != nil {
		return nil, fmt.Errorf("search contacts %q: %w", query, err)
	}
	return contacts, nil
}
