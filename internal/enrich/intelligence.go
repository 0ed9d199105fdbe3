package enrich

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"bdcore/internal/models"
	"bdcore/internal/taxonomy"

	"go.uber.org/zap"
)

// leadThreshold is the minimum intelligence score at which a Lead row
// is created. A contact dropping back below it keeps its Lead but is
// demoted to cold/low rather than deleted.
const leadThreshold = 25

// intelligence is the per-contact working set the scoring and
// synthesis stages share. All counters are integers; floats appear
// only at the final score casts, so identical input reproduces
// identical output bit for bit.
type intelligence struct {
	score int

	hits          map[taxonomy.Category][]string
	scanned       int // window messages whose ciphertext opened
	positives     int
	businessMsgs  int
	totalWords    int
	recent30Days  int
	distinctChats int
}

// qualifyContacts drives taxonomy scoring, lead tiering, follow-up
// synthesis, and opportunity emission for every contact with at least
// one message, one transaction per contact.
func (e *Enricher) qualifyContacts(ctx context.Context, m *Metrics) error {
	userIDs, err := e.store.DistinctUserIDs()
	if err != nil {
		return err
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if userID == 0 {
			continue
		}
		if err := e.qualifyContact(userID, m); err != nil {
			return fmt.Errorf("qualify contact %d: %w", userID, err)
		}
	}
	return nil
}

func (e *Enricher) qualifyContact(userID int64, m *Metrics) error {
	contact, err := e.store.GetContact(userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // no aggregates yet; nothing to score
	} else if err != nil {
		return err
	}

	msgs, err := e.store.MessagesByUser(userID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	intel := e.analyze(contact, msgs, m)

	existing, err := e.store.GetLead(userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if intel.score < leadThreshold {
		if existing == nil {
			return nil
		}
		return e.demoteLead(existing)
	}

	lead := e.buildLead(contact, existing, intel)

	tx, err := e.store.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.store.UpsertLead(lead, tx); err != nil {
		return err
	}
	m.LeadsQualified++

	if leadChanged(existing, lead) {
		if err := e.enqueueOnce(tx, "leads", lead.LeadID); err != nil {
			return err
		}
	}

	if lead.Priority == models.PriorityCritical || lead.Priority == models.PriorityHigh {
		if err := e.synthesizeFollowUp(lead, intel, tx); err != nil {
			return err
		}
		m.FollowUpsCreated++
	}

	if intel.score > 60 && (lead.InvestmentCapacity == models.CapacityHigh || lead.InvestmentCapacity == models.CapacityMedium) {
		if err := e.emitOpportunity(lead, intel, tx); err != nil {
			return err
		}
		m.Opportunities++
	}

	return tx.Commit()
}

// analyze accumulates taxonomy hits over the contact's
// most recent scoreWindow messages, fold in the volume/sentiment/
// ratio/recency/multi-chat bonuses, and clamp to [0, 100].
func (e *Enricher) analyze(contact *models.Contact, msgs []models.Message, m *Metrics) *intelligence {
	window := msgs
	if len(window) > scoreWindow {
		window = window[len(window)-scoreWindow:]
	}

	intel := &intelligence{
		hits:          make(map[taxonomy.Category][]string),
		distinctChats: contact.TotalChats,
	}

	cutoff := e.now().UTC().AddDate(0, 0, -30)
	for _, msg := range msgs {
		if msg.Date.After(cutoff) {
			intel.recent30Days++
		}
	}

	for _, msg := range window {
		plaintext, err := e.aead.Decrypt(msg.TextCipher)
		if err != nil {
			m.DecryptFailures++
			continue
		}
		text := string(plaintext)

		intel.scanned++
		intel.totalWords += msg.WordCount
		if msg.Sentiment == models.SentimentPositive {
			intel.positives++
		}
		if msg.ContainsBusinessKeywords {
			intel.businessMsgs++
		}
		for cat, phrases := range taxonomy.Hits(text) {
			intel.hits[cat] = append(intel.hits[cat], phrases...)
		}
	}

	score := 0
	for _, cat := range taxonomy.All {
		score += len(intel.hits[cat]) * taxonomy.Weight[cat]
	}

	switch total := contact.TotalMessages; {
	case total > 200:
		score += 25
	case total > 50:
		score += 15
	case total > 10:
		score += 5
	}

	if n := intel.scanned; n > 0 {
		if 5*intel.positives > 3*n { // positive ratio > 0.6
			score += 10
		}
		switch {
		case 10*intel.businessMsgs > 3*n: // business ratio > 0.3
			score += 15
		case 10*intel.businessMsgs > n: // business ratio > 0.1
			score += 8
		}
		if intel.totalWords > 20*n { // mean word count > 20
			score += 10
		}
	}

	switch {
	case intel.recent30Days > 10:
		score += 15
	case intel.recent30Days > 0:
		score += 8
	}

	if multiChat := 2 * intel.distinctChats; multiChat > 20 {
		score += 20
	} else {
		score += multiChat
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	intel.score = score
	return intel
}

// buildLead computes tiering, derived scores, estimated value, and
// the typed keyword lists, assembled fresh each pass.
func (e *Enricher) buildLead(contact *models.Contact, existing *models.Lead, intel *intelligence) *models.Lead {
	lead := &models.Lead{
		LeadID:               fmt.Sprintf("lead_%d", contact.UserID),
		UserID:               contact.UserID,
		IntelligenceScore:    float64(intel.score),
		BDScore:              minF(float64(intel.score*8)/10, 100),
		ConversionLikelihood: minF(float64(intel.score*7)/10, 100),
	}

	switch {
	case intel.score >= 80:
		lead.LeadQuality = models.LeadHot
		lead.Priority = models.PriorityCritical
		lead.InvestmentCapacity = models.CapacityHigh
		lead.DealSizeCategory = models.DealEnterprise
	case intel.score >= 60:
		lead.LeadQuality = models.LeadWarm
		lead.Priority = models.PriorityHigh
		lead.InvestmentCapacity = models.CapacityMedium
		lead.DealSizeCategory = models.DealMidMarket
	case intel.score >= 40:
		lead.LeadQuality = models.LeadWarm
		lead.Priority = models.PriorityMedium
		lead.InvestmentCapacity = models.CapacityMedium
		// Deal size is unchanged in this band; a fresh lead starts small.
		lead.DealSizeCategory = models.DealStartup
		if existing != nil {
			lead.DealSizeCategory = existing.DealSizeCategory
		}
	default: // 25–39
		lead.LeadQuality = models.LeadCold
		lead.Priority = models.PriorityLow
		lead.InvestmentCapacity = models.CapacityLow
		lead.DealSizeCategory = models.DealStartup
	}

	switch {
	case intel.score >= 70:
		lead.RelationshipStrength = models.RelationshipStrong
	case intel.score >= 40:
		lead.RelationshipStrength = models.RelationshipModerate
	default:
		lead.RelationshipStrength = models.RelationshipWeak
	}

	lead.InvestmentKeywords = dedup(intel.hits[taxonomy.InvestmentTier1], intel.hits[taxonomy.InvestmentTier2])
	lead.TechnologyExpertise = dedup(intel.hits[taxonomy.Technology], intel.hits[taxonomy.CryptoDeFi])
	lead.DecisionMakerSignals = dedup(intel.hits[taxonomy.DecisionMakers])
	lead.NetworkInfluence = dedup(intel.hits[taxonomy.NetworkInfluence])
	lead.FinancialIndicators = dedup(intel.hits[taxonomy.FinancialServices], intel.hits[taxonomy.WealthIndicators])
	lead.TrustIndicators = dedup(intel.hits[taxonomy.SolutionOriented])
	lead.BusinessKeywords = dedup(
		intel.hits[taxonomy.BusinessDevelopment],
		intel.hits[taxonomy.UrgencyTiming],
		intel.hits[taxonomy.PainPoints],
		intel.hits[taxonomy.ConferenceEvents],
	)

	value := float64(intel.score * 100)
	if len(lead.InvestmentKeywords) > 0 {
		value *= 3
	}
	if len(intel.hits[taxonomy.WealthIndicators]) > 0 {
		value *= 2.5
	}
	if len(lead.DecisionMakerSignals) > 0 {
		value *= 2
	}
	if len(lead.NetworkInfluence) > 0 {
		value *= 1.8
	}
	lead.EstimatedValue = minF(value, 100000)

	return lead
}

// demoteLead handles a contact that slid back under the
// threshold keeps its Lead row but is marked cold/low.
func (e *Enricher) demoteLead(lead *models.Lead) error {
	if lead.LeadQuality == models.LeadCold && lead.Priority == models.PriorityLow {
		return nil
	}
	lead.LeadQuality = models.LeadCold
	lead.Priority = models.PriorityLow

	tx, err := e.store.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.store.UpsertLead(lead, tx); err != nil {
		return err
	}
	if err := e.enqueueOnce(tx, "leads", lead.LeadID); err != nil {
		return err
	}
	e.log.Info("lead demoted below threshold", zap.String("lead_id", lead.LeadID))
	return tx.Commit()
}

func leadChanged(old, cur *models.Lead) bool {
	if old == nil {
		return true
	}
	return old.IntelligenceScore != cur.IntelligenceScore ||
		old.LeadQuality != cur.LeadQuality ||
		old.Priority != cur.Priority ||
		old.EstimatedValue != cur.EstimatedValue
}

// dedup concatenates lists and removes duplicates while preserving
// first-seen order, returning a fresh slice every call.
func dedup(lists ...[]string) models.StringList {
	seen := make(map[string]bool)
	var out models.StringList
	for _, list := range lists {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
