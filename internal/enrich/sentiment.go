package enrich

import "strings"

// SentimentStrategy classifies a message's tone. The scoring contract
// (the positive-ratio bonus) only depends on the three-way
// outcome, so a future model-backed strategy can replace the lexicon
// without touching the score arithmetic.
type SentimentStrategy interface {
	Classify(text string) Sentiment
}

// Sentiment is re-exported here so strategies don't need to import the
// models package for a single constant set.
type Sentiment = string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// LexiconSentiment is the default strategy: count hits against two
// fixed word lists and compare. Crude, but its output feeds a single
// ratio bonus, so continuity matters more than accuracy.
type LexiconSentiment struct{}

var positiveWords = map[string]bool{
	"good": true, "great": true, "excellent": true, "awesome": true,
	"amazing": true, "love": true, "happy": true, "excited": true,
	"interested": true, "perfect": true, "thanks": true, "thank": true,
	"appreciate": true, "wonderful": true, "fantastic": true,
	"yes": true, "definitely": true, "profit": true, "success": true,
	"win": true, "glad": true, "best": true,
}

var negativeWords = map[string]bool{
	"bad": true, "terrible": true, "awful": true, "hate": true,
	"angry": true, "disappointed": true, "problem": true, "issue": true,
	"no": true, "never": true, "unfortunately": true, "loss": true,
	"fail": true, "failure": true, "wrong": true, "difficult": true,
	"scam": true, "worst": true, "annoying": true, "broken": true,
}

// Classify tokenizes text on whitespace/punctuation boundaries and
// compares positive vs negative hit counts.
func (LexiconSentiment) Classify(text string) Sentiment {
	pos, neg := 0, 0
	for _, tok := range tokenize(text) {
		if positiveWords[tok] {
			pos++
		}
		if negativeWords[tok] {
			neg++
		}
	}
	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// tokenize lowercases text and splits it into alphanumeric runs.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}
