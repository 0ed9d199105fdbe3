package store

import (
	"fmt"

	"bdcore/internal/models"
)

// UpsertChatParticipant replaces the (chat_id, user_id) row wholesale.
// The enricher rebuilds ChatParticipant rows fresh from the Message
// table on every pass, so this is a full overwrite, not a merge.
func (s *Store) UpsertChatParticipant(p *models.ChatParticipant, tx *Tx) error {
	const q = `
		INSERT INTO chat_participants (
			chat_id, user_id, message_count, first_seen, last_seen, engagement_level
		) VALUES (
			:chat_id, :user_id, :message_count, :first_seen, :last_seen, :engagement_level
		)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
			message_count    = excluded.message_count,
			first_seen       = excluded.first_seen,
			last_seen        = excluded.last_seen,
			engagement_level = excluded.engagement_level
	`
	_, err := namedExec(s.execer(tx), q, p)
	if err != nil {
		return fmt.Errorf("upsert chat_participant (%d,%d): %w", p.ChatID, p.UserID, err)
	}
	return nil
}

// ParticipantsByChat returns every participant row for chatID.
func (s *Store) ParticipantsByChat(chatID int64) ([]models.ChatParticipant, error) {
	var rows []models.ChatParticipant
	const q = `SELECT * FROM chat_participants WHERE chat_id = ? ORDER BY message_count DESC`
	if err := s.db.Select(&rows, q, chatID); err != nil {
		return nil, fmt.Errorf("list participants for chat %d: %w", chatID, err)
	}
	return rows, nil
}

// ChatsByUser returns every chat_participants row for userID, the
// per-contact fan-out needed to rebuild cross-chat aggregates.
func (s *Store) ChatsByUser(userID int64) ([]models.ChatParticipant, error) {
	var rows []models.ChatParticipant
	const q = `SELECT * FROM chat_participants WHERE user_id = ? ORDER BY chat_id`
	if err := s.db.Select(&rows, q, userID); err != nil {
		return nil, fmt.Errorf("list chats for user %d: %w", userID, err)
	}
	return rows, nil
}
