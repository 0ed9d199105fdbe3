package store

import (
	"fmt"

	"bdcore/internal/models"
)

// UpsertFollowUp inserts a new FollowUp or refreshes the outreach
// content of an existing one, keyed on follow_up_id. Status is NOT
// overwritten on conflict: an already-sent follow-up must not be
// flipped back to pending by a re-run of enrichment; transitions go
// through MarkFollowUpStatus.
func (s *Store) UpsertFollowUp(f *models.FollowUp, tx *Tx) error {
	const q = `
		INSERT INTO follow_ups (
			follow_up_id, lead_id, action_type, description, priority,
			due_date, status, created_at
		) VALUES (
			:follow_up_id, :lead_id, :action_type, :description, :priority,
			:due_date, :status, :created_at
		)
		ON CONFLICT(follow_up_id) DO UPDATE SET
			description = excluded.description,
			priority    = excluded.priority,
			due_date    = excluded.due_date
	`
	_, err := namedExec(s.execer(tx), q, f)
	if err != nil {
		return fmt.Errorf("upsert follow_up %s: %w", f.FollowUpID, err)
	}
	return nil
}

// PendingFollowUps returns every follow-up still awaiting action,
// nearest due date first.
func (s *Store) PendingFollowUps() ([]models.FollowUp, error) {
	var rows []models.FollowUp
	const q = `SELECT * FROM follow_ups WHERE status = 'pending' ORDER BY due_date ASC`
	if err := s.db.Select(&rows, q); err != nil {
		return nil, fmt.Errorf("pending follow_ups: %w", err)
	}
	return rows, nil
}

// FollowUpsByLead returns every follow-up generated for leadID.
func (s *Store) FollowUpsByLead(leadID string) ([]models.FollowUp, error) {
	var rows []models.FollowUp
	const q = `SELECT * FROM follow_ups WHERE lead_id = ? ORDER BY created_at DESC`
	if err := s.db.Select(&rows, q, leadID); err != nil {
		return nil, fmt.Errorf("follow_ups for lead %s: %w", leadID, err)
	}
	return rows, nil
}

// MarkFollowUpStatus transitions a follow-up's status.
func (s *Store) MarkFollowUpStatus(followUpID string, status models.FollowUpStatus) error {
	const q = `UPDATE follow_ups SET status = ? WHERE follow_up_id = ?`
	if _, err := s.db.Exec(q, status, followUpID); err != nil {
		return fmt.Errorf("mark follow_up %s as %s: %w", followUpID, status, err)
	}
	return nil
}
