package enrich

import (
	"fmt"

	"bdcore/internal/models"
	"bdcore/internal/store"
	"bdcore/internal/taxonomy"
)

// The opportunity pipeline. A Lead with score > 60 and
// high/medium investment capacity yields exactly one Opportunity,
// keyed off the lead ID so re-runs converge on the same row.

// opportunityNextSteps is the canonical 3-item playbook per
// opportunity type.
var opportunityNextSteps = map[string]models.StringList{
	"investment": {
		"Share investment overview deck",
		"Schedule discovery call",
		"Confirm allocation range and timeline",
	},
	"partnership": {
		"Map partnership scope and owners",
		"Set up stakeholder intro call",
		"Draft collaboration outline",
	},
}

func opportunityType(intel *intelligence) string {
	if len(intel.hits[taxonomy.InvestmentTier1]) > 0 || len(intel.hits[taxonomy.InvestmentTier2]) > 0 {
		return "investment"
	}
	return "partnership"
}

func opportunityTimeline(score int) string {
	if score >= 80 {
		return "1-3 months"
	}
	return "3-6 months"
}

func (e *Enricher) emitOpportunity(lead *models.Lead, intel *intelligence, tx *store.Tx) error {
	oppType := opportunityType(intel)
	opp := &models.Opportunity{
		OpportunityID:   fmt.Sprintf("opp_%s", lead.LeadID),
		LeadID:          lead.LeadID,
		OpportunityType: oppType,
		EstimatedValue:  lead.EstimatedValue,
		Probability:     clampProbability(float64(int(lead.IntelligenceScore)) / 100),
		Timeline:        opportunityTimeline(int(lead.IntelligenceScore)),
		Stage:           models.StageQualification,
		NextSteps:       append(models.StringList(nil), opportunityNextSteps[oppType]...),
	}
	return e.store.UpsertOpportunity(opp, tx)
}

func clampProbability(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
