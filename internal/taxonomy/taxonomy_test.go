package taxonomy

import "testing"

func TestHitsMatchesWholePhrasesOnly(t *testing.T) {
	hits := Hits("We said the AI platform needs funding")

	// "ai" must match as a standalone token, not inside "said".
	found := false
	for _, p := range hits[Technology] {
		if p == "ai" {
			found = true
		}
	}
	if !found {
		t.Error("expected standalone 'ai' to hit technology")
	}
	if len(hits[InvestmentTier1]) == 0 {
		t.Error("expected 'funding' to hit investment_tier1")
	}
}

func TestNoFalsePositiveInsideWords(t *testing.T) {
	if ContainsBusinessKeyword("he said something plain") {
		t.Error("'said' must not match 'ai'")
	}
}

func TestMultiWordPhrase(t *testing.T) {
	hits := Hits("we need due diligence before the family office signs")
	if len(hits[InvestmentTier2]) == 0 {
		t.Error("expected 'due diligence' to hit investment_tier2")
	}
	if len(hits[WealthIndicators]) == 0 {
		t.Error("expected 'family office' to hit wealth_indicators")
	}
}

func TestCaseInsensitive(t *testing.T) {
	if !ContainsBusinessKeyword("FUNDING secured") {
		t.Error("matching must be case-insensitive")
	}
}

func TestEveryCategoryHasWeightAndPhrases(t *testing.T) {
	for _, cat := range All {
		if Weight[cat] == 0 {
			t.Errorf("category %s has no weight", cat)
		}
		if len(Phrases[cat]) == 0 {
			t.Errorf("category %s has no phrases", cat)
		}
	}
}
