// Package taxonomy holds the fixed business-keyword taxonomy the
// enricher scores against: thirteen categories of lowercase phrases,
// matched whole-phrase and case-insensitively.
package taxonomy

import "strings"

// Category names the taxonomy's thirteen fixed buckets.
type Category string

const (
	InvestmentTier1    Category = "investment_tier1"
	InvestmentTier2    Category = "investment_tier2"
	CryptoDeFi         Category = "crypto_defi"
	BusinessDevelopment Category = "business_development"
	Technology         Category = "technology"
	FinancialServices  Category = "financial_services"
	DecisionMakers     Category = "decision_makers"
	UrgencyTiming      Category = "urgency_timing"
	WealthIndicators   Category = "wealth_indicators"
	NetworkInfluence   Category = "network_influence"
	PainPoints         Category = "pain_points"
	SolutionOriented   Category = "solution_oriented"
	ConferenceEvents   Category = "conference_events"
)

// Weight is the per-hit contribution to intelligence_score, additive
// and clamped at 100 by the caller.
var Weight = map[Category]int{
	InvestmentTier1:     3,
	DecisionMakers:      4,
	WealthIndicators:    5,
	NetworkInfluence:    3,
	Technology:          2,
	InvestmentTier2:     1,
	CryptoDeFi:          1,
	BusinessDevelopment: 1,
	FinancialServices:   1,
	UrgencyTiming:       1,
	PainPoints:          1,
	SolutionOriented:    1,
	ConferenceEvents:    1,
}

// Phrases is the fixed taxonomy: lowercase, whole-phrase match tokens
// per category.
var Phrases = map[Category][]string{
	InvestmentTier1: {
		"investment", "investor", "invest", "funding", "capital", "venture", "equity",
		"angel", "seed", "series", "round", "raise", "valuation", "portfolio",
		"fund", "allocation", "lp", "gp", "accredited", "institutional",
	},
	InvestmentTier2: {
		"roi", "return", "yield", "dividend", "profit", "revenue", "multiple",
		"exit", "ipo", "acquisition", "buyout", "merger", "syndicate",
		"deal", "due diligence", "term sheet", "closing", "commitment",
	},
	CryptoDeFi: {
		"crypto", "cryptocurrency", "bitcoin", "ethereum", "defi", "protocol",
		"token", "tokenomics", "yield farming", "liquidity", "staking",
		"blockchain", "smart contract", "dao", "dapp", "web3", "nft",
		"airdrop", "mining", "validator", "governance", "treasury",
	},
	BusinessDevelopment: {
		"partnership", "collaboration", "strategic", "alliance", "joint venture",
		"integration", "synergy", "expansion",
		"growth", "scale", "market", "opportunity", "revenue share",
	},
	Technology: {
		"ai", "artificial intelligence", "machine learning", "ml", "algorithm",
		"automation", "api", "platform", "infrastructure", "cloud",
		"saas", "software", "development", "innovation", "tech stack",
	},
	FinancialServices: {
		"fintech", "payments", "banking", "lending", "credit", "insurance",
		"wealth management", "trading", "derivatives", "forex", "commodities",
		"hedge fund", "private equity", "asset management", "brokerage",
	},
	DecisionMakers: {
		"ceo", "founder", "co-founder", "president", "cto", "cfo", "coo",
		"director", "vp", "vice president", "head of", "lead", "manager",
		"owner", "partner", "principal", "board", "executive", "c-suite",
	},
	UrgencyTiming: {
		"urgent", "urgently", "asap", "immediately", "deadline", "timeline", "schedule",
		"time-sensitive", "priority", "rush", "expedite", "critical",
		"soon", "quickly", "fast track", "accelerate",
	},
	WealthIndicators: {
		"million", "billion", "fortune", "wealthy", "affluent", "hnw",
		"uhnw", "qualified", "sophisticated", "institutional",
		"family office", "endowment", "foundation", "trust",
	},
	NetworkInfluence: {
		"network", "connections", "influential", "thought leader", "speaker",
		"advisor", "board member", "mentor", "limited partner",
		"community", "ecosystem", "industry leader", "expert",
	},
	PainPoints: {
		"problem", "challenge", "issue", "struggling", "difficulty",
		"bottleneck", "obstacle", "barrier", "friction", "inefficiency",
		"costly", "expensive", "time-consuming", "manual", "outdated",
	},
	SolutionOriented: {
		"solution", "solve", "fix", "improve", "optimize", "streamline",
		"automate", "enhance", "upgrade", "innovate", "transform",
		"revolutionize", "disrupt", "modernize", "digitize",
	},
	ConferenceEvents: {
		"conference", "summit", "event", "meetup", "networking", "speaking",
		"presentation", "panel", "workshop", "demo", "showcase",
		"expo", "convention", "gathering", "forum",
	},
}

// All lists every category in a stable order, used wherever the
// Enricher needs to iterate the taxonomy deterministically.
var All = []Category{
	InvestmentTier1, InvestmentTier2, CryptoDeFi, BusinessDevelopment,
	Technology, FinancialServices, DecisionMakers, UrgencyTiming,
	WealthIndicators, NetworkInfluence, PainPoints, SolutionOriented,
	ConferenceEvents,
}

// Hits counts whole-phrase, case-insensitive matches of text against
// every category in the taxonomy, returning the matched phrase for
// each hit (duplicates included; callers decide whether to dedupe).
func Hits(text string) map[Category][]string {
	lower := strings.ToLower(text)
	out := make(map[Category][]string)
	for _, cat := range All {
		for _, phrase := range Phrases[cat] {
			if containsWholePhrase(lower, phrase) {
				out[cat] = append(out[cat], phrase)
			}
		}
	}
	return out
}

// ContainsBusinessKeyword reports whether text contains at least one
// taxonomy hit in any category, the per-message signal the enricher
// writes to Message.ContainsBusinessKeywords.
func ContainsBusinessKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, cat := range All {
		for _, phrase := range Phrases[cat] {
			if containsWholePhrase(lower, phrase) {
				return true
			}
		}
	}
	return false
}

// containsWholePhrase matches phrase as a whole token/phrase within
// lowered text: bounded by non-letter/digit runes (or string edges) on
// both sides, so "ai" does not match inside "said".
func containsWholePhrase(lowerText, phrase string) bool {
	idx := 0
	for {
		pos := strings.Index(lowerText[idx:], phrase)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(phrase)

		leftOK := start == 0 || !isWordRune(rune(lowerText[start-1]))
		rightOK := end == len(lowerText) || !isWordRune(rune(lowerText[end]))
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
		if idx >= len(lowerText) {
			return false
		}
	}
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
