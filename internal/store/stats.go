package store

import "fmt"

// Stats is a snapshot of row counts across the core tables, exposed
// for operator visibility (e.g. a CLI `status` subcommand).
type Stats struct {
	Contacts     int64 `db:"contacts"`
	Chats        int64 `db:"chats"`
	Messages     int64 `db:"messages"`
	Leads        int64 `db:"leads"`
	HotLeads     int64 `db:"hot_leads"`
	FollowUps    int64 `db:"follow_ups"`
	Opportunities int64 `db:"opportunities"`
	PendingSyncs int64 `db:"pending_syncs"`
}

// GetStats returns row counts across every core table in one round trip.
func (s *Store) GetStats() (*Stats, error) {
	var st Stats
	const q = `
		SELECT
			(SELECT COUNT(*) FROM contacts)                              AS contacts,
			(SELECT COUNT(*) FROM chats)                                 AS chats,
			(SELECT COUNT(*) FROM messages)                              AS messages,
			(SELECT COUNT(*) FROM leads)                                 AS leads,
			(SELECT COUNT(*) FROM leads WHERE lead_quality = 'hot')      AS hot_leads,
			(SELECT COUNT(*) FROM follow_ups WHERE status = 'pending')   AS follow_ups,
			(SELECT COUNT(*) FROM opportunities)                         AS opportunities,
			(SELECT COUNT(*) FROM sync_tasks WHERE state = 'pending')    AS pending_syncs
	`
	if err := s.db.Get(&st, q); err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &st, nil
}

// DashboardRow is one line of the sync-bound aggregate worksheet: a
// per-lead-quality rollup the
// Sync Projector writes to a dedicated "dashboard" tab/file alongside
// the per-table projections.
type DashboardRow struct {
	LeadQuality      string  `db:"lead_quality"`
	Count            int64   `db:"count"`
	AvgIntelligence  float64 `db:"avg_intelligence"`
	TotalEstValue    float64 `db:"total_est_value"`
}

// Dashboard returns one aggregate row per lead_quality tier, the
// source data for the Sync Projector's dashboard worksheet.
func (s *Store) Dashboard() ([]DashboardRow, error) {
	var rows []DashboardRow
	const q = `
		SELECT
			lead_quality,
			COUNT(*) AS count,
			AVG(intelligence_score) AS avg_intelligence,
			SUM(estimated_value) AS total_est_value
		FROM leads
		GROUP BY lead_quality
		ORDER BY avg_intelligence DESC
	`
	if err := s.db.Select(&rows, q); err != nil {
		return nil, fmt.Errorf("dashboard aggregate: %w", err)
	}
	return rows, nil
}

// Vacuum reclaims space after large deletes/updates. SQLite's VACUUM
// rewrites the entire file, so callers should run it during
// scheduled low-traffic windows only.
func (s *Store) Vacuum() error {
	if _, err := s.db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}
