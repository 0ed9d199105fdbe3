package enrich

import (
	"fmt"
	"strings"
	"time"

	"bdcore/internal/models"
	"bdcore/internal/store"
	"bdcore/internal/taxonomy"
)

// Follow-up synthesis for critical/high-priority leads. The
// template set and slot vocabulary follow the original outreach
// playbook: one message per lead, keyed by which signal families the
// taxonomy surfaced, with a conference-connection opener and the first
// taxonomy hit as the shared topic.

type followUpTemplate struct {
	message      string
	agenda       string
	callToAction string
}

var followUpTemplates = map[string]followUpTemplate{
	"investment": {
		message:      "Hi %s, great connecting at %s! Given your interest in %s, I wanted to share an opportunity that fits your investment focus. Worth a quick call?",
		agenda:       "1. Recap of %s discussion 2. Opportunity overview and terms 3. Allocation next steps",
		callToAction: "Book a 30-minute intro call",
	},
	"partnership": {
		message:      "Hi %s, following up from %s. Your work around %s lines up well with what we're building. Open to exploring a partnership?",
		agenda:       "1. Mutual intros 2. Where %s overlaps 3. Pilot scope and owners",
		callToAction: "Schedule a partnership scoping call",
	},
	"technical": {
		message:      "Hi %s, enjoyed the %s conversations. Your depth on %s stood out, and I'd value your perspective on our roadmap. Got 20 minutes this week?",
		agenda:       "1. Product walkthrough 2. Deep dive on %s 3. Advisory or collaboration options",
		callToAction: "Set up a technical walkthrough",
	},
	"default": {
		message:      "Hi %s, good to connect at %s! Would love to continue the %s conversation. Are you around for a quick catch-up?",
		agenda:       "1. Catch-up 2. Current priorities around %s 3. Ways to help each other",
		callToAction: "Propose a coffee chat or call",
	},
}

// templateKey picks the template by signal precedence: investment >
// partnership > technical > default.
func templateKey(intel *intelligence) string {
	switch {
	case len(intel.hits[taxonomy.InvestmentTier1]) > 0 || len(intel.hits[taxonomy.InvestmentTier2]) > 0:
		return "investment"
	case len(intel.hits[taxonomy.BusinessDevelopment]) > 0:
		return "partnership"
	case len(intel.hits[taxonomy.Technology]) > 0 || len(intel.hits[taxonomy.CryptoDeFi]) > 0:
		return "technical"
	default:
		return "default"
	}
}

// conferenceConnection infers the opener's event slot from taxonomy
// hits: crypto beats technology beats investment-only.
func conferenceConnection(intel *intelligence) string {
	switch {
	case len(intel.hits[taxonomy.CryptoDeFi]) > 0:
		return "Crypto/DeFi Summit"
	case len(intel.hits[taxonomy.Technology]) > 0:
		return "Tech Innovation Conference"
	case len(intel.hits[taxonomy.InvestmentTier1]) > 0 || len(intel.hits[taxonomy.InvestmentTier2]) > 0:
		return "Investment & VC Summit"
	default:
		return "Business Networking Event"
	}
}

// sharedTopic is the first taxonomy hit in the stable category order,
// so re-runs over unchanged data pick the same topic.
func sharedTopic(intel *intelligence) string {
	for _, cat := range taxonomy.All {
		if phrases := intel.hits[cat]; len(phrases) > 0 {
			return phrases[0]
		}
	}
	return "business development"
}

func followUpTiming(score int) string {
	switch {
	case score > 70:
		return "this week"
	case score > 50:
		return "next week"
	default:
		return "coming weeks"
	}
}

// dueDateFor maps priority to the outreach deadline.
func dueDateFor(p models.Priority, now time.Time) time.Time {
	switch p {
	case models.PriorityCritical:
		return now.AddDate(0, 0, 1)
	case models.PriorityHigh:
		return now.AddDate(0, 0, 7)
	default:
		return now.AddDate(0, 0, 30)
	}
}

// synthesizeFollowUp renders the lead's outreach artifacts in place
// and emits the matching FollowUp row. The follow-up ID is derived
// from the lead ID, so re-runs update the same row instead of
// multiplying pending work.
func (e *Enricher) synthesizeFollowUp(lead *models.Lead, intel *intelligence, tx *store.Tx) error {
	contact, err := e.store.GetContact(lead.UserID)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(contact.FirstName)
	if name == "" {
		name = contact.Username
	}
	if name == "" {
		name = "there"
	}

	tpl := followUpTemplates[templateKey(intel)]
	conference := conferenceConnection(intel)
	topic := sharedTopic(intel)

	lead.PersonalizedMessage = fmt.Sprintf(tpl.message, name, conference, topic)
	lead.MeetingAgenda = fmt.Sprintf(tpl.agenda, topic)
	lead.CallToAction = tpl.callToAction
	lead.FollowUpTiming = followUpTiming(int(lead.IntelligenceScore))

	if err := e.store.UpsertLead(lead, tx); err != nil {
		return err
	}

	now := e.now().UTC()
	followUp := &models.FollowUp{
		FollowUpID:  fmt.Sprintf("fu_%s", lead.LeadID),
		LeadID:      lead.LeadID,
		ActionType:  "outreach_message",
		Description: lead.PersonalizedMessage,
		Priority:    lead.Priority,
		DueDate:     dueDateFor(lead.Priority, now),
		Status:      models.FollowUpPending,
		CreatedAt:   now,
	}
	return e.store.UpsertFollowUp(followUp, tx)
}
