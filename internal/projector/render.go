package projector

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bdcore/internal/models"
	"bdcore/internal/store"
)

// ProjectedTables is the fixed, ordered set of destination tables.
// Column order per table is stable and part of the
// external interface.
var ProjectedTables = []string{
	"contacts", "organizations", "interactions", "leads",
	"messages", "chat_groups", "dashboard",
}

// Renderer turns Store rows into flat string rows: complex columns as
// JSON text, timestamps as "YYYY-MM-DD HH:MM:SS", booleans as textual
// true/false. Message text never appears in any rendering: the
// ciphertext column is simply never read here.
type Renderer struct {
	store  *store.Store
	filter *FollowUpFilter
}

// NewRenderer constructs a Renderer. filter may be nil for no
// username filtering on the leads projection.
func NewRenderer(st *store.Store, filter *FollowUpFilter) *Renderer {
	return &Renderer{store: st, filter: filter}
}

const timeLayout = "2006-01-02 15:04:05"

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func fmtBool(b bool) string {
	return strconv.FormatBool(b)
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func fmtInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// Table renders one full projected table.
func (r *Renderer) Table(table string) (header []string, rows [][]string, err error) {
	switch table {
	case "contacts":
		return r.contacts()
	case "organizations":
		return r.organizations()
	case "interactions":
		return r.interactions()
	case "leads":
		return r.leads()
	case "messages":
		return r.messages()
	case "chat_groups":
		return r.chatGroups()
	case "dashboard":
		return r.dashboard()
	default:
		return nil, nil, fmt.Errorf("projector: unknown table %q", table)
	}
}

var contactHeader = []string{
	"user_id", "username", "first_name", "last_name", "phone",
	"is_bot", "is_verified", "is_premium", "total_messages",
	"total_chats", "activity_level", "first_seen", "last_seen",
}

func contactRow(c *models.Contact) []string {
	return []string{
		fmtInt(c.UserID), c.Username, c.FirstName, c.LastName, c.Phone,
		fmtBool(c.IsBot), fmtBool(c.IsVerified), fmtBool(c.IsPremium),
		strconv.Itoa(c.TotalMessages), strconv.Itoa(c.TotalChats),
		string(c.ActivityLevel), fmtTime(c.FirstSeen), fmtTime(c.LastSeen),
	}
}

func (r *Renderer) contacts() ([]string, [][]string, error) {
	contacts, err := r.store.AllContacts()
	if err != nil {
		return nil, nil, err
	}
	rows := make([][]string, 0, len(contacts))
	for i := range contacts {
		rows = append(rows, contactRow(&contacts[i]))
	}
	return contactHeader, rows, nil
}

// leadHeader joins contact identity with lead qualification, in the
// column order external consumers rely on.
var leadHeader = []string{
	"user_id", "username", "first_name", "last_name", "phone",
	"total_messages", "activity_level", "intelligence_score", "bd_score",
	"conversion_likelihood", "lead_quality", "priority", "estimated_value",
	"investment_capacity", "deal_size_category", "relationship_strength",
	"last_interaction",
}

func leadRow(l *models.Lead, c *models.Contact) []string {
	return []string{
		fmtInt(c.UserID), c.Username, c.FirstName, c.LastName, c.Phone,
		strconv.Itoa(c.TotalMessages), string(c.ActivityLevel),
		fmtFloat(l.IntelligenceScore), fmtFloat(l.BDScore),
		fmtFloat(l.ConversionLikelihood), string(l.LeadQuality),
		string(l.Priority), fmtFloat(l.EstimatedValue),
		string(l.InvestmentCapacity), string(l.DealSizeCategory),
		string(l.RelationshipStrength), fmtTime(c.LastSeen),
	}
}

func (r *Renderer) leads() ([]string, [][]string, error) {
	leads, err := r.store.AllLeads()
	if err != nil {
		return nil, nil, err
	}
	var rows [][]string
	for i := range leads {
		contact, err := r.store.GetContact(leads[i].UserID)
		if err != nil {
			return nil, nil, err
		}
		if r.filter != nil && !r.filter.Allowed(contact.Username) {
			continue
		}
		rows = append(rows, leadRow(&leads[i], contact))
	}
	return leadHeader, rows, nil
}

// messageHeader is the message metadata projection. Text is never
// exported.
var messageHeader = []string{
	"chat_id", "message_id", "from_user_id", "date", "message_type",
	"is_reply", "is_forwarded", "word_count", "time_of_day",
	"day_of_week", "sentiment", "contains_business_keywords",
	"content_category",
}

func messageRow(m *models.Message) []string {
	return []string{
		fmtInt(m.ChatID), fmtInt(m.MessageID), fmtInt(m.FromUserID),
		fmtTime(m.Date), m.MessageType, fmtBool(m.IsReply),
		fmtBool(m.IsForwarded), strconv.Itoa(m.WordCount),
		string(m.TimeOfDay), m.DayOfWeek, string(m.Sentiment),
		fmtBool(m.ContainsBusinessKeywords), string(m.ContentCategory),
	}
}

func (r *Renderer) messages() ([]string, [][]string, error) {
	msgs, err := r.store.AllMessages()
	if err != nil {
		return nil, nil, err
	}
	rows := make([][]string, 0, len(msgs))
	for i := range msgs {
		rows = append(rows, messageRow(&msgs[i]))
	}
	return messageHeader, rows, nil
}

var organizationHeader = []string{
	"chat_id", "title", "username", "chat_type", "participant_count",
	"total_messages", "first_message_date", "last_message_date",
}

// organizations projects supergroups and channels: the dialogs that
// represent companies, funds, and communities rather than small talk.
func (r *Renderer) organizations() ([]string, [][]string, error) {
	chats, err := r.store.AllChats()
	if err != nil {
		return nil, nil, err
	}
	var rows [][]string
	for _, c := range chats {
		if c.ChatType != models.ChatSupergroup && c.ChatType != models.ChatChannel {
			continue
		}
		rows = append(rows, []string{
			fmtInt(c.ChatID), c.Title, c.Username, string(c.ChatType),
			strconv.Itoa(c.ParticipantCount), strconv.Itoa(c.TotalMessages),
			fmtTime(c.FirstMessageDate), fmtTime(c.LastMessageDate),
		})
	}
	return organizationHeader, rows, nil
}

var chatGroupHeader = []string{
	"chat_id", "title", "chat_type", "participant_count",
	"total_messages", "last_message_date",
}

func (r *Renderer) chatGroups() ([]string, [][]string, error) {
	chats, err := r.store.AllChats()
	if err != nil {
		return nil, nil, err
	}
	var rows [][]string
	for _, c := range chats {
		if c.ChatType != models.ChatGroup && c.ChatType != models.ChatSupergroup {
			continue
		}
		rows = append(rows, []string{
			fmtInt(c.ChatID), c.Title, string(c.ChatType),
			strconv.Itoa(c.ParticipantCount), strconv.Itoa(c.TotalMessages),
			fmtTime(c.LastMessageDate),
		})
	}
	return chatGroupHeader, rows, nil
}

var interactionHeader = []string{
	"chat_id", "user_id", "message_count", "engagement_level",
	"first_seen", "last_seen",
}

func interactionRow(p *models.ChatParticipant) []string {
	return []string{
		fmtInt(p.ChatID), fmtInt(p.UserID), strconv.Itoa(p.MessageCount),
		string(p.EngagementLevel), fmtTime(p.FirstSeen), fmtTime(p.LastSeen),
	}
}

func (r *Renderer) interactions() ([]string, [][]string, error) {
	parts, err := r.store.AllParticipants()
	if err != nil {
		return nil, nil, err
	}
	rows := make([][]string, 0, len(parts))
	for i := range parts {
		rows = append(rows, interactionRow(&parts[i]))
	}
	return interactionHeader, rows, nil
}

var dashboardHeader = []string{"metric", "value"}

// dashboard synthesizes the aggregate worksheet: global counters first,
// then one block per lead-quality tier.
func (r *Renderer) dashboard() ([]string, [][]string, error) {
	stats, err := r.store.GetStats()
	if err != nil {
		return nil, nil, err
	}
	tiers, err := r.store.Dashboard()
	if err != nil {
		return nil, nil, err
	}

	rows := [][]string{
		{"total_contacts", fmtInt(stats.Contacts)},
		{"total_chats", fmtInt(stats.Chats)},
		{"total_messages", fmtInt(stats.Messages)},
		{"total_leads", fmtInt(stats.Leads)},
		{"hot_leads", fmtInt(stats.HotLeads)},
		{"pending_follow_ups", fmtInt(stats.FollowUps)},
		{"opportunities", fmtInt(stats.Opportunities)},
		{"pending_syncs", fmtInt(stats.PendingSyncs)},
	}
	for _, t := range tiers {
		rows = append(rows,
			[]string{fmt.Sprintf("leads_%s_count", t.LeadQuality), fmtInt(t.Count)},
			[]string{fmt.Sprintf("leads_%s_avg_score", t.LeadQuality), fmtFloat(t.AvgIntelligence)},
			[]string{fmt.Sprintf("leads_%s_est_value", t.LeadQuality), fmtFloat(t.TotalEstValue)},
		)
	}
	return dashboardHeader, rows, nil
}

// Record renders the single projection row for (table, recordID), the
// incremental-sync path. Record IDs: contacts use the user_id,
// leads use the lead_id, messages use "chat_id:message_id"; any other
// table returns an error. A missing Store row returns
// found = false so the caller can treat the task as a delete.
func (r *Renderer) Record(table, recordID string) (header, row []string, found bool, err error) {
	switch table {
	case "contacts":
		userID, err := strconv.ParseInt(recordID, 10, 64)
		if err != nil {
			return nil, nil, false, fmt.Errorf("bad contact record id %q: %w", recordID, err)
		}
		c, err := r.store.GetContact(userID)
		if errors.Is(err, sql.ErrNoRows) {
			return contactHeader, nil, false, nil
		} else if err != nil {
			return nil, nil, false, err
		}
		return contactHeader, contactRow(c), true, nil

	case "leads":
		l, err := r.store.GetLeadByID(recordID)
		if errors.Is(err, sql.ErrNoRows) {
			return leadHeader, nil, false, nil
		} else if err != nil {
			return nil, nil, false, err
		}
		c, err := r.store.GetContact(l.UserID)
		if err != nil {
			return nil, nil, false, err
		}
		if r.filter != nil && !r.filter.Allowed(c.Username) {
			return leadHeader, nil, false, nil
		}
		return leadHeader, leadRow(l, c), true, nil

	case "messages":
		chatID, msgID, err := splitCompositeID(recordID)
		if err != nil {
			return nil, nil, false, err
		}
		m, err := r.store.GetMessage(chatID, msgID)
		if errors.Is(err, sql.ErrNoRows) {
			return messageHeader, nil, false, nil
		} else if err != nil {
			return nil, nil, false, err
		}
		return messageHeader, messageRow(m), true, nil

	default:
		return nil, nil, false, fmt.Errorf("projector: table %q does not support incremental records", table)
	}
}

func splitCompositeID(recordID string) (int64, int64, error) {
	parts := strings.SplitN(recordID, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad composite record id %q", recordID)
	}
	a, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad composite record id %q: %w", recordID, err)
	}
	b, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad composite record id %q: %w", recordID, err)
	}
	return a, b, nil
}
