package store

import (
	"fmt"

	"bdcore/internal/models"
)

// UpsertLead inserts or replaces the qualification record for a
// Contact, keyed on user_id. Scoring recomputes every field on each
// enrichment pass, so this is a full overwrite; re-running over
// unchanged input yields the same row.
func (s *Store) UpsertLead(l *models.Lead, tx *Tx) error {
	const q = `
		INSERT INTO leads (
			lead_id, user_id, bd_score, intelligence_score, conversion_likelihood,
			lead_quality, priority, estimated_value, investment_capacity,
			deal_size_category, relationship_strength,
			business_keywords, investment_keywords, technology_expertise,
			decision_maker_signals, network_influence, trust_indicators, financial_indicators,
			personalized_message, meeting_agenda, call_to_action, follow_up_timing
		) VALUES (
			:lead_id, :user_id, :bd_score, :intelligence_score, :conversion_likelihood,
			:lead_quality, :priority, :estimated_value, :investment_capacity,
			:deal_size_category, :relationship_strength,
			:business_keywords, :investment_keywords, :technology_expertise,
			:decision_maker_signals, :network_influence, :trust_indicators, :financial_indicators,
			:personalized_message, :meeting_agenda, :call_to_action, :follow_up_timing
		)
		ON CONFLICT(user_id) DO UPDATE SET
			bd_score               = excluded.bd_score,
			intelligence_score      = excluded.intelligence_score,
			conversion_likelihood   = excluded.conversion_likelihood,
			lead_quality            = excluded.lead_quality,
			priority                = excluded.priority,
			estimated_value         = excluded.estimated_value,
			investment_capacity     = excluded.investment_capacity,
			deal_size_category      = excluded.deal_size_category,
			relationship_strength   = excluded.relationship_strength,
			business_keywords       = excluded.business_keywords,
			investment_keywords     = excluded.investment_keywords,
			technology_expertise    = excluded.technology_expertise,
			decision_maker_signals  = excluded.decision_maker_signals,
			network_influence       = excluded.network_influence,
			trust_indicators        = excluded.trust_indicators,
			financial_indicators    = excluded.financial_indicators,
			personalized_message    = excluded.personalized_message,
			meeting_agenda          = excluded.meeting_agenda,
			call_to_action          = excluded.call_to_action,
			follow_up_timing        = excluded.follow_up_timing
	`
	_, err := namedExec(s.execer(tx), q, l)
	if err != nil {
		return fmt.Errorf("upsert lead for user %d: %w", l.UserID, err)
	}
	return nil
}

// GetLead returns the Lead for userID, or sql.ErrNoRows if the
// contact has not yet been qualified.
func (s *Store) GetLead(userID int64) (*models.Lead, error) {
	var l models.Lead
	const q = `SELECT * FROM leads WHERE user_id = ?`
	if err := s.db.Get(&l, q, userID); err != nil {
		return nil, fmt.Errorf("get lead for user %d: %w", userID, err)
	}
	return &l, nil
}

// LeadsByQuality returns every Lead at the given tier, highest
// intelligence_score first.
func (s *Store) LeadsByQuality(q models.LeadQuality) ([]models.Lead, error) {
	var leads []models.Lead
	const query = `SELECT * FROM leads WHERE lead_quality = ? ORDER BY intelligence_score DESC`
	if err := s.db.Select(&leads, query, q); err != nil {
		return nil, fmt.Errorf("leads by quality %s: %w", q, err)
	}
	return leads, nil
}

// TopLeads returns the top-N leads by intelligence_score, used for the
// dashboard aggregate and for operator-facing reports.
func (s *Store) TopLeads(limit int) ([]models.Lead, error) {
	var leads []models.Lead
	const q = `SELECT * FROM leads ORDER BY intelligence_score DESC LIMIT ?`
	if err := s.db.Select(&leads, q, limit); err != nil {
		return nil, fmt.Errorf("top leads: %w", err)
	}
	return leads, nil
}
