package store

import (
	"fmt"

	"bdcore/internal/models"
)

// UpsertOpportunity inserts or updates the pipeline record derived
// from a qualified Lead, keyed on opportunity_id.
func (s *Store) UpsertOpportunity(o *models.Opportunity, tx *Tx) error {
	const q = `
		INSERT INTO opportunities (
			opportunity_id, lead_id, opportunity_type, estimated_value,
			probability, timeline, stage, next_steps
		) VALUES (
			:opportunity_id, :lead_id, :opportunity_type, :estimated_value,
			:probability, :timeline, :stage, :next_steps
		)
		ON CONFLICT(opportunity_id) DO UPDATE SET
			opportunity_type = excluded.opportunity_type,
			estimated_value  = excluded.estimated_value,
			probability      = excluded.probability,
			timeline         = excluded.timeline,
			stage            = excluded.stage,
			next_steps       = excluded.next_steps
	`
	_, err := namedExec(s.execer(tx), q, o)
	if err != nil {
		return fmt.Errorf("upsert opportunity %s: %w", o.OpportunityID, err)
	}
	return nil
}

// OpportunitiesByLead returns every opportunity derived from leadID.
func (s *Store) OpportunitiesByLead(leadID string) ([]models.Opportunity, error) {
	var rows []models.Opportunity
	const q = `SELECT * FROM opportunities WHERE lead_id = ?`
	if err := s.db.Select(&rows, q, leadID); err != nil {
		return nil, fmt.Errorf("opportunities for lead %s: %w", leadID, err)
	}
	return rows, nil
}

// OpportunitiesByStage returns every opportunity at the given pipeline
// stage, highest estimated_value first.
func (s *Store) OpportunitiesByStage(stage models.OpportunityStage) ([]models.Opportunity, error) {
	var rows []models.Opportunity
	const q = `SELECT * FROM opportunities WHERE stage = ? ORDER BY estimated_value DESC`
	if err := s.db.Select(&rows, q, stage); err != nil {
		return nil, fmt.Errorf("opportunities at stage %s: %w", stage, err)
	}
	return rows, nil
}
