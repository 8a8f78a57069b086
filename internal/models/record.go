package models

import (
	"strings"
	"time"
)

// Status is the value written to the Status_Finale column.
type Status string

const (
	StatusInProgress Status = "in corso"
	StatusAbandoned  Status = "abbandonato"
	StatusCompleted  Status = "completato"
)

// State is a position in the landing flow. States only move forward.
type State int

const (
	StateLanded State = iota
	StateFormStarted
	StateStep2
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateLanded:
		return "landed"
	case StateFormStarted:
		return "form_started"
	case StateStep2:
		return "step2"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

// Columns is the fixed header row of the tracking sheet.
var Columns = []string{
	"Session_ID",
	"Timestamp_Apertura",
	"Timestamp_Inizio_Form",
	"Timestamp_Step2",
	"Timestamp_Completamento",
	"Dove_Trovato_QR",
	"Fascia_Eta",
	"Sesso",
	"Provincia_Nascita",
	"Titolo_Studio",
	"Status_Finale",
	"Completato",
	"User_Agent",
	"Data_Creazione",
}

const (
	// CreationLayout is the format of the Data_Creazione column.
	CreationLayout = "2006-01-02 15:04:05"

	completedYes = "Sì"
	completedNo  = "No"
)

// Record is one visitor session, keyed by SessionID. It maps 1:1 onto a sheet row.
type Record struct {
	SessionID     string     `json:"session_id" firestore:"sessionId"`
	OpenedAt      *time.Time `json:"page_open_timestamp,omitempty" firestore:"openedAt,omitempty"`
	FormStartedAt *time.Time `json:"form_started_timestamp,omitempty" firestore:"formStartedAt,omitempty"`
	Step2At       *time.Time `json:"step2_timestamp,omitempty" firestore:"step2At,omitempty"`
	CompletedAt   *time.Time `json:"completion_timestamp,omitempty" firestore:"completedAt,omitempty"`
	QRLocation    string     `json:"qr_location" firestore:"qrLocation,omitempty"`
	AgeRange      string     `json:"age_range" firestore:"ageRange,omitempty"`
	Gender        string     `json:"gender" firestore:"gender,omitempty"`
	BirthProvince string     `json:"birth_province" firestore:"birthProvince,omitempty"`
	Education     string     `json:"education" firestore:"education,omitempty"`
	Status        Status     `json:"status" firestore:"status,omitempty"`
	Completed     bool       `json:"completed" firestore:"completed"`
	UserAgent     string     `json:"user_agent" firestore:"userAgent,omitempty"`
	CreatedAt     time.Time  `json:"created_at" firestore:"createdAt,omitempty"`

	// Tracked is false for automated visitors; those are never persisted.
	Tracked bool `json:"-" firestore:"-"`
}

// State derives the flow position from the stamped timestamps.
func (r Record) State() State {
	switch {
	case r.CompletedAt != nil:
		return StateCompleted
	case r.Step2At != nil:
		return StateStep2
	case r.FormStartedAt != nil:
		return StateFormStarted
	default:
		return StateLanded
	}
}

// Clone returns a deep copy so callers never share timestamp pointers with the store.
func (r Record) Clone() Record {
	out := r
	out.OpenedAt = cloneTime(r.OpenedAt)
	out.FormStartedAt = cloneTime(r.FormStartedAt)
	out.Step2At = cloneTime(r.Step2At)
	out.CompletedAt = cloneTime(r.CompletedAt)
	return out
}

// Row renders the record in Columns order.
func (r Record) Row() []string {
	completed := completedNo
	if r.Completed {
		completed = completedYes
	}
	created := ""
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.Format(CreationLayout)
	}
	return []string{
		r.SessionID,
		formatTime(r.OpenedAt),
		formatTime(r.FormStartedAt),
		formatTime(r.Step2At),
		formatTime(r.CompletedAt),
		r.QRLocation,
		r.AgeRange,
		r.Gender,
		r.BirthProvince,
		r.Education,
		string(r.Status),
		completed,
		r.UserAgent,
		created,
	}
}

// RecordFromRow parses a sheet row written by Row. Short rows are padded with blanks,
// unparseable timestamps are left nil.
func RecordFromRow(row []string) Record {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	rec := Record{
		SessionID:     cell(0),
		OpenedAt:      parseTime(cell(1)),
		FormStartedAt: parseTime(cell(2)),
		Step2At:       parseTime(cell(3)),
		CompletedAt:   parseTime(cell(4)),
		QRLocation:    cell(5),
		AgeRange:      cell(6),
		Gender:        cell(7),
		BirthProvince: cell(8),
		Education:     cell(9),
		Status:        Status(cell(10)),
		Completed:     isYes(cell(11)),
		UserAgent:     cell(12),
		Tracked:       true,
	}
	if created := parseTime(cell(13)); created != nil {
		rec.CreatedAt = *created
	}
	return rec
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	CreationLayout,
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func isYes(s string) bool {
	switch strings.ToLower(s) {
	case "sì", "si", "yes", "true":
		return true
	}
	return false
}
