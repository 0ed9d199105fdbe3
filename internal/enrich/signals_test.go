package enrich

import (
	"strings"
	"testing"
	"time"

	"bdcore/internal/models"
	"bdcore/internal/taxonomy"
)

func TestLengthCategoryBoundaries(t *testing.T) {
	cases := []struct {
		words int
		want  models.LengthCategory
	}{
		{0, models.LengthShort},
		{9, models.LengthShort},
		{10, models.LengthMedium},
		{20, models.LengthMedium},
		{30, models.LengthMedium},
		{31, models.LengthLong},
	}
	for _, tc := range cases {
		if got := lengthCategory(tc.words); got != tc.want {
			t.Errorf("lengthCategory(%d) = %s, want %s", tc.words, got, tc.want)
		}
	}
}

func TestTimeOfDayBuckets(t *testing.T) {
	cases := []struct {
		hour int
		want models.TimeOfDay
	}{
		{6, models.Morning},
		{11, models.Morning},
		{12, models.Afternoon},
		{17, models.Afternoon},
		{18, models.Evening},
		{22, models.Evening},
		{23, models.Night},
		{3, models.Night},
	}
	for _, tc := range cases {
		ts := time.Date(2025, 6, 1, tc.hour, 30, 0, 0, time.UTC)
		if got := timeOfDay(ts); got != tc.want {
			t.Errorf("timeOfDay(hour=%d) = %s, want %s", tc.hour, got, tc.want)
		}
	}
}

func TestIsQuestion(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"are you free tomorrow?", true},
		{"What do you think about the deal", true},
		{"how about next week  ", true},
		{"let's meet tomorrow", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isQuestion(tc.text); got != tc.want {
			t.Errorf("isQuestion(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestContainsLinks(t *testing.T) {
	if !containsLinks("check https://example.com for details") {
		t.Error("expected https URL to count as a link")
	}
	if !containsLinks("join t.me/somegroup") {
		t.Error("expected t.me link to count")
	}
	if containsLinks("no links here") {
		t.Error("did not expect a link")
	}
}

func TestContentCategoryPrecedence(t *testing.T) {
	cases := []struct {
		text string
		want models.ContentCategory
	}{
		{"looking for investment in an ai platform", models.ContentBusiness}, // business beats technical
		{"our api runs on cloud infrastructure", models.ContentTechnical},
		{"hey, how was your weekend", models.ContentCasual},
		{"see you at the park", models.ContentSocial},
	}
	for _, tc := range cases {
		got := contentCategory(tc.text, taxonomy.Hits(tc.text))
		if got != tc.want {
			t.Errorf("contentCategory(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestLexiconSentiment(t *testing.T) {
	s := LexiconSentiment{}
	cases := []struct {
		text string
		want Sentiment
	}{
		{"this is great, love it", SentimentPositive},
		{"terrible idea, hate the terms", SentimentNegative},
		{"meeting at noon", SentimentNeutral},
		{"good deal but a bad timeline, still good", SentimentPositive},
	}
	for _, tc := range cases {
		if got := s.Classify(tc.text); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestApplySignalsSetsEveryColumn(t *testing.T) {
	msg := &models.Message{
		MessageType: "text",
		Date:        time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), // Monday morning
	}
	text := "Are you interested in a funding round for our platform? " +
		strings.Repeat("details ", 15)
	applySignals(msg, text, LexiconSentiment{})

	if !msg.Enriched {
		t.Fatal("expected message marked enriched")
	}
	if !msg.ContainsBusinessKeywords {
		t.Error("expected business keywords detected")
	}
	if !msg.IsQuestion {
		t.Error("expected question detected")
	}
	if msg.TimeOfDay != models.Morning || msg.DayOfWeek != "Monday" {
		t.Errorf("got time_of_day=%s day=%s", msg.TimeOfDay, msg.DayOfWeek)
	}
	if msg.ContentCategory != models.ContentBusiness {
		t.Errorf("got content_category=%s, want business", msg.ContentCategory)
	}
}
