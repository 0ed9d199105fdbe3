package enrich

import (
	"strings"
	"time"

	"bdcore/internal/models"
	"bdcore/internal/taxonomy"
)

// Per-message signal derivation. Everything here is a pure function
// of the decrypted text and the message's metadata, so the pass is
// trivially re-runnable.

// Word-count bands for length_category: a 0-word message is short, a
// 20-word message is medium.
const (
	shortMax = 9
	longMin  = 31
)

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func lengthCategory(words int) models.LengthCategory {
	switch {
	case words <= shortMax:
		return models.LengthShort
	case words >= longMin:
		return models.LengthLong
	default:
		return models.LengthMedium
	}
}

func timeOfDay(t time.Time) models.TimeOfDay {
	switch h := t.UTC().Hour(); {
	case h >= 6 && h < 12:
		return models.Morning
	case h >= 12 && h < 18:
		return models.Afternoon
	case h >= 18 && h < 23:
		return models.Evening
	default:
		return models.Night
	}
}

var interrogatives = map[string]bool{
	"what": true, "who": true, "when": true, "where": true, "why": true,
	"how": true, "which": true, "is": true, "are": true, "do": true,
	"does": true, "did": true, "can": true, "could": true, "will": true,
	"would": true, "should": true, "shall": true,
}

func isQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	fields := strings.Fields(strings.ToLower(trimmed))
	return len(fields) > 0 && interrogatives[fields[0]]
}

var linkMarkers = []string{"http://", "https://", "www.", "t.me/"}

func containsLinks(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range linkMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

var casualWords = map[string]bool{
	"hi": true, "hello": true, "hey": true, "lol": true, "haha": true,
	"thanks": true, "ok": true, "okay": true, "cool": true, "nice": true,
	"bye": true, "morning": true, "cheers": true,
}

// contentCategory applies the fixed precedence business > technical >
// casual, with social as the residual bucket. A hit in any business
// taxonomy category wins; technology-only hits classify as technical.
func contentCategory(text string, hits map[taxonomy.Category][]string) models.ContentCategory {
	businessHits := 0
	for cat, phrases := range hits {
		if cat == taxonomy.Technology {
			continue
		}
		businessHits += len(phrases)
	}
	if businessHits > 0 {
		return models.ContentBusiness
	}
	if len(hits[taxonomy.Technology]) > 0 {
		return models.ContentTechnical
	}
	for _, tok := range tokenize(text) {
		if casualWords[tok] {
			return models.ContentCasual
		}
	}
	return models.ContentSocial
}

// applySignals fills every enrichment column on msg from its
// decrypted plaintext.
func applySignals(msg *models.Message, text string, sentiment SentimentStrategy) {
	hits := taxonomy.Hits(text)
	words := wordCount(text)

	msg.WordCount = words
	msg.LengthCategory = lengthCategory(words)
	msg.TimeOfDay = timeOfDay(msg.Date)
	msg.DayOfWeek = msg.Date.UTC().Weekday().String()
	msg.Sentiment = models.Sentiment(sentiment.Classify(text))
	msg.ContainsBusinessKeywords = len(hits) > 0
	msg.IsQuestion = isQuestion(text)
	msg.ContainsMedia = msg.MessageType != "text"
	msg.ContainsLinks = containsLinks(text)
	msg.ContentCategory = contentCategory(text, hits)
	msg.Enriched = true
}
