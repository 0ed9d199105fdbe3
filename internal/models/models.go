// Package models defines the closed record types that cross component
// boundaries: every field is explicit, and list-valued columns are
// plain slices built fresh per enrichment pass rather than shared or
// defaulted in a struct literal.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is a list-valued column persisted as a JSON array in a
// single TEXT/BLOB column. Each enrichment pass builds a fresh slice
// (see package doc) rather than mutating one shared across rows.
type StringList []string

// Value implements driver.Valuer, serializing nil as "[]" rather than
// SQL NULL so downstream consumers never need a null check.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models: cannot scan %T into StringList", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("models: invalid StringList JSON: %w", err)
	}
	*l = out
	return nil
}

// ActivityLevel classifies a Contact by message volume.
type ActivityLevel string

const (
	ActivityVeryActive ActivityLevel = "very_active"
	ActivityActive     ActivityLevel = "active"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityOccasional ActivityLevel = "occasional"
)

// Contact is a Telegram user observed in at least one ingested message.
type Contact struct {
	UserID         int64         `db:"user_id"`
	Username       string        `db:"username"`
	FirstName      string        `db:"first_name"`
	LastName       string        `db:"last_name"`
	Phone          string        `db:"phone"`
	IsBot          bool          `db:"is_bot"`
	IsVerified     bool          `db:"is_verified"`
	IsPremium      bool          `db:"is_premium"`
	TotalMessages  int           `db:"total_messages"`
	TotalChats     int           `db:"total_chats"`
	ActivityLevel  ActivityLevel `db:"activity_level"`
	FirstSeen      time.Time     `db:"first_seen"`
	LastSeen       time.Time     `db:"last_seen"`
}

// ChatType enumerates the kinds of Telegram dialogs the Ingestor observes.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// Chat is a Telegram dialog as seen by the authenticated user.
type Chat struct {
	ChatID            int64     `db:"chat_id"`
	ChatType          ChatType  `db:"chat_type"`
	Title             string    `db:"title"`
	Username          string    `db:"username"`
	ParticipantCount  int       `db:"participant_count"`
	FirstMessageDate  time.Time `db:"first_message_date"`
	LastMessageDate   time.Time `db:"last_message_date"`
	TotalMessages     int       `db:"total_messages"`
}

// EngagementLevel classifies a ChatParticipant by message volume within a chat.
type EngagementLevel string

const (
	EngagementHigh   EngagementLevel = "high"
	EngagementMedium EngagementLevel = "medium"
	EngagementLow    EngagementLevel = "low"
)

// ChatParticipant is a derived row rebuilt idempotently by the Enricher
// for every (chat_id, user_id) pair observed in Messages.
type ChatParticipant struct {
	ChatID          int64           `db:"chat_id"`
	UserID          int64           `db:"user_id"`
	MessageCount    int             `db:"message_count"`
	FirstSeen       time.Time       `db:"first_seen"`
	LastSeen        time.Time       `db:"last_seen"`
	EngagementLevel EngagementLevel `db:"engagement_level"`
}

// TimeOfDay buckets a Message.Date into a coarse daypart.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

// LengthCategory buckets a Message by word count.
type LengthCategory string

const (
	LengthShort  LengthCategory = "short"
	LengthMedium LengthCategory = "medium"
	LengthLong   LengthCategory = "long"
)

// Sentiment is the coarse, lexicon-derived tone of a Message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ContentCategory is the Enricher's precedence classification of a Message:
// business > technical > casual (social is the residual default).
type ContentCategory string

const (
	ContentBusiness  ContentCategory = "business"
	ContentTechnical ContentCategory = "technical"
	ContentCasual    ContentCategory = "casual"
	ContentSocial    ContentCategory = "social"
)

// Message is a single ingested message. Text is always stored as
// ciphertext; every other field below the dividing line is an
// enrichment column written back by the per-message signal pass.
type Message struct {
	ChatID       int64     `db:"chat_id"`
	MessageID    int64     `db:"message_id"`
	FromUserID   int64     `db:"from_user_id"`
	Date         time.Time `db:"date"`
	TextCipher   []byte    `db:"text_ciphertext"`
	MessageType  string    `db:"message_type"`
	IsReply      bool      `db:"is_reply"`
	IsForwarded  bool      `db:"is_forwarded"`
	EditDate     *time.Time `db:"edit_date"`

	// Enrichment columns. Zero values mean "not yet enriched".
	Enriched                  bool            `db:"enriched"`
	WordCount                 int             `db:"word_count"`
	TimeOfDay                 TimeOfDay       `db:"time_of_day"`
	DayOfWeek                 string          `db:"day_of_week"`
	LengthCategory            LengthCategory  `db:"length_category"`
	Sentiment                 Sentiment       `db:"sentiment"`
	ContainsBusinessKeywords  bool            `db:"contains_business_keywords"`
	IsQuestion                bool            `db:"is_question"`
	ContainsMedia             bool            `db:"contains_media"`
	ContainsLinks             bool            `db:"contains_links"`
	ContentCategory           ContentCategory `db:"content_category"`
}

// Conversation is a derived projection of a contact's presence in a
// chat with aggregate signals, read by collaborators rather than
// mutated directly.
type Conversation struct {
	ChatID            int64     `db:"chat_id"`
	UserID            int64     `db:"user_id"`
	MessageCount      int       `db:"message_count"`
	BusinessRelevance float64   `db:"business_relevance"`
	FirstDate         time.Time `db:"first_date"`
	LastDate          time.Time `db:"last_date"`
}

// LeadQuality is the qualification tier assigned during scoring.
type LeadQuality string

const (
	LeadHot  LeadQuality = "hot"
	LeadWarm LeadQuality = "warm"
	LeadCold LeadQuality = "cold"
)

// Priority is the outreach urgency assigned alongside LeadQuality.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Capacity classifies the contact's inferred ability to invest.
type Capacity string

const (
	CapacityHigh   Capacity = "high"
	CapacityMedium Capacity = "medium"
	CapacityLow    Capacity = "low"
)

// DealSize classifies the estimated scale of the opportunity.
type DealSize string

const (
	DealEnterprise DealSize = "enterprise"
	DealMidMarket  DealSize = "mid-market"
	DealStartup    DealSize = "startup"
)

// RelationshipStrength summarizes how close the tracked relationship is.
type RelationshipStrength string

const (
	RelationshipStrong   RelationshipStrength = "strong"
	RelationshipModerate RelationshipStrength = "moderate"
	RelationshipWeak     RelationshipStrength = "weak"
)

// Lead is the qualification record for a Contact whose intelligence
// score has crossed the Enricher's threshold. List-valued fields are
// built fresh each enrichment pass (see Package doc) and never shared
// across Lead instances.
type Lead struct {
	LeadID               string               `db:"lead_id"`
	UserID               int64                `db:"user_id"`
	BDScore              float64              `db:"bd_score"`
	IntelligenceScore    float64              `db:"intelligence_score"`
	ConversionLikelihood float64              `db:"conversion_likelihood"`
	LeadQuality          LeadQuality          `db:"lead_quality"`
	Priority             Priority             `db:"priority"`
	EstimatedValue       float64              `db:"estimated_value"`
	InvestmentCapacity   Capacity             `db:"investment_capacity"`
	DealSizeCategory     DealSize             `db:"deal_size_category"`
	RelationshipStrength RelationshipStrength `db:"relationship_strength"`

	BusinessKeywords      StringList `db:"business_keywords"`
	InvestmentKeywords    StringList `db:"investment_keywords"`
	TechnologyExpertise   StringList `db:"technology_expertise"`
	DecisionMakerSignals  StringList `db:"decision_maker_signals"`
	NetworkInfluence      StringList `db:"network_influence"`
	TrustIndicators       StringList `db:"trust_indicators"`
	FinancialIndicators   StringList `db:"financial_indicators"`

	PersonalizedMessage string `db:"personalized_message"`
	MeetingAgenda       string `db:"meeting_agenda"`
	CallToAction        string `db:"call_to_action"`
	FollowUpTiming      string `db:"follow_up_timing"`
}

// FollowUpStatus tracks the outreach lifecycle.
type FollowUpStatus string

const (
	FollowUpPending FollowUpStatus = "pending"
	FollowUpSent    FollowUpStatus = "sent"
	FollowUpDone    FollowUpStatus = "done"
	FollowUpFailed  FollowUpStatus = "failed"
)

// FollowUp is an actionable outreach step generated alongside a
// qualified Lead.
type FollowUp struct {
	FollowUpID  string         `db:"follow_up_id"`
	LeadID      string         `db:"lead_id"`
	ActionType  string         `db:"action_type"`
	Description string         `db:"description"`
	Priority    Priority       `db:"priority"`
	DueDate     time.Time      `db:"due_date"`
	Status      FollowUpStatus `db:"status"`
	CreatedAt   time.Time      `db:"created_at"`
}

// OpportunityStage tracks the pipeline stage of an Opportunity.
type OpportunityStage string

const (
	StageIdentified   OpportunityStage = "identified"
	StageQualification OpportunityStage = "qualification"
	StageProposal     OpportunityStage = "proposal"
	StageClosing      OpportunityStage = "closing"
)

// Opportunity is an investment/partnership opportunity derived from a
// qualified Lead.
type Opportunity struct {
	OpportunityID   string           `db:"opportunity_id"`
	LeadID          string           `db:"lead_id"`
	OpportunityType string           `db:"opportunity_type"`
	EstimatedValue  float64          `db:"estimated_value"`
	Probability     float64          `db:"probability"`
	Timeline        string           `db:"timeline"`
	Stage           OpportunityStage `db:"stage"`
	NextSteps       StringList       `db:"next_steps"`
}

// SyncOperation is the outbound mutation a SyncTask represents.
type SyncOperation string

const (
	SyncUpsert SyncOperation = "upsert"
	SyncDelete SyncOperation = "delete"
)

// SyncState is a SyncTask's lifecycle position. Transitions are
// monotonic per attempt: pending -> in_progress -> {completed|failed|conflict}.
// failed may re-enter pending via retry policy; completed is terminal.
type SyncState string

const (
	SyncPending    SyncState = "pending"
	SyncInProgress SyncState = "in_progress"
	SyncCompleted  SyncState = "completed"
	SyncFailed     SyncState = "failed"
	SyncConflict   SyncState = "conflict"
)

// SyncTask is one unit of outbound projection work.
type SyncTask struct {
	SyncID      string        `db:"sync_id"`
	TableName   string        `db:"table_name"`
	RecordID    string        `db:"record_id"`
	Operation   SyncOperation `db:"operation"`
	State       SyncState     `db:"state"`
	Attempts    int           `db:"attempts"`
	LastError   string        `db:"last_error"`
	EnqueuedAt  time.Time     `db:"enqueued_at"`
	CompletedAt *time.Time    `db:"completed_at"`
}
