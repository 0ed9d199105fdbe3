package store

import (
	"fmt"
	"time"
)

// Rollup queries over the messages table, the inputs to contact and
// participant aggregation. Aggregate expressions lose SQLite's declared column type, so MIN/MAX
// dates are selected as unix seconds and converted in Go rather than
// relying on the driver's decltype-based time parsing.

// ParticipantAggregate is one (chat_id, user_id) rollup, the raw
// material for ChatParticipant rows.
type ParticipantAggregate struct {
	ChatID        int64 `db:"chat_id"`
	UserID        int64 `db:"user_id"`
	MessageCount  int   `db:"message_count"`
	FirstSeenUnix int64 `db:"first_seen"`
	LastSeenUnix  int64 `db:"last_seen"`
}

// FirstSeen and LastSeen convert the unix rollups back to UTC times.
func (a ParticipantAggregate) FirstSeen() time.Time { return time.Unix(a.FirstSeenUnix, 0).UTC() }
func (a ParticipantAggregate) LastSeen() time.Time  { return time.Unix(a.LastSeenUnix, 0).UTC() }

// ParticipantAggregates groups the messages table by (chat_id,
// from_user_id). Messages without a resolvable author (from_user_id =
// 0, e.g. channel broadcasts) are excluded.
func (s *Store) ParticipantAggregates() ([]ParticipantAggregate, error) {
	var rows []ParticipantAggregate
	const q = `
		SELECT
			chat_id,
			from_user_id                                       AS user_id,
			COUNT(*)                                           AS message_count,
			CAST(strftime('%s', MIN(date)) AS INTEGER)         AS first_seen,
			CAST(strftime('%s', MAX(date)) AS INTEGER)         AS last_seen
		FROM messages
		WHERE from_user_id != 0
		GROUP BY chat_id, from_user_id
		ORDER BY chat_id, from_user_id
	`
	if err := s.db.Select(&rows, q); err != nil {
		return nil, fmt.Errorf("participant aggregates: %w", err)
	}
	return rows, nil
}

// ContactAggregate is one per-contact rollup across every chat.
type ContactAggregate struct {
	UserID        int64 `db:"user_id"`
	TotalMessages int   `db:"total_messages"`
	TotalChats    int   `db:"total_chats"`
	FirstSeenUnix int64 `db:"first_seen"`
	LastSeenUnix  int64 `db:"last_seen"`
}

func (a ContactAggregate) FirstSeen() time.Time { return time.Unix(a.FirstSeenUnix, 0).UTC() }
func (a ContactAggregate) LastSeen() time.Time  { return time.Unix(a.LastSeenUnix, 0).UTC() }

// ContactAggregates groups the messages table by author.
func (s *Store) ContactAggregates() ([]ContactAggregate, error) {
	var rows []ContactAggregate
	const q = `
		SELECT
			from_user_id                                       AS user_id,
			COUNT(*)                                           AS total_messages,
			COUNT(DISTINCT chat_id)                            AS total_chats,
			CAST(strftime('%s', MIN(date)) AS INTEGER)         AS first_seen,
			CAST(strftime('%s', MAX(date)) AS INTEGER)         AS last_seen
		FROM messages
		WHERE from_user_id != 0
		GROUP BY from_user_id
		ORDER BY from_user_id
	`
	if err := s.db.Select(&rows, q); err != nil {
		return nil, fmt.Errorf("contact aggregates: %w", err)
	}
	return rows, nil
}

// ChatAggregate is one per-chat rollup from the messages table.
type ChatAggregate struct {
	ChatID           int64 `db:"chat_id"`
	TotalMessages    int   `db:"total_messages"`
	FirstMessageUnix int64 `db:"first_message_date"`
	LastMessageUnix  int64 `db:"last_message_date"`
}

func (a ChatAggregate) FirstMessageDate() time.Time { return time.Unix(a.FirstMessageUnix, 0).UTC() }
func (a ChatAggregate) LastMessageDate() time.Time  { return time.Unix(a.LastMessageUnix, 0).UTC() }

// ChatAggregates groups the messages table by chat, used to refresh
// each Chat row's denormalized counters.
func (s *Store) ChatAggregates() ([]ChatAggregate, error) {
	var rows []ChatAggregate
	const q = `
		SELECT
			chat_id,
			COUNT(*)                                           AS total_messages,
			CAST(strftime('%s', MIN(date)) AS INTEGER)         AS first_message_date,
			CAST(strftime('%s', MAX(date)) AS INTEGER)         AS last_message_date
		FROM messages
		GROUP BY chat_id
		ORDER BY chat_id
	`
	if err := s.db.Select(&rows, q); err != nil {
		return nil, fmt.Errorf("chat aggregates: %w", err)
	}
	return rows, nil
}

// RefreshChatCounters writes a ChatAggregate's rollup back onto the
// chats row without touching the identity columns the Ingestor owns.
func (s *Store) RefreshChatCounters(a ChatAggregate, tx *Tx) error {
	const q = `
		UPDATE chats SET
			total_messages     = ?,
			first_message_date = ?,
			last_message_date  = ?
		WHERE chat_id = ?
	`
	e := s.execer(tx)
	if _, err := e.Exec(q, a.TotalMessages, a.FirstMessageDate(), a.LastMessageDate(), a.ChatID); err != nil {
		return fmt.Errorf("refresh chat counters %d: %w", a.ChatID, err)
	}
	return nil
}
