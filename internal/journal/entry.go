// Package journal models the daily quiet-time entry: a structured reflection
// written against a recommended verse. An entry starts as the day's single
// draft and becomes permanent history when committed.
package journal

import (
	"time"

	"github.com/google/uuid"

	"quiettime/internal/fault"
	"quiettime/internal/verse"
)

// Status is the lifecycle state of an entry.
type Status int

const (
	StatusDraft Status = iota
	StatusCommitted
)

func (s Status) String() string {
	if s == StatusCommitted {
		return "committed"
	}
	return "draft"
}

// Template selects the journaling structure.
type Template string

const (
	TemplateSOAP Template = "SOAP" // Observation / Application / Prayer
	TemplateACTS Template = "ACTS" // Adoration / Confession / Thanksgiving / Supplication
)

// templateFields lists the reflection fields each template carries.
var templateFields = map[Template][]string{
	TemplateSOAP: {"observation", "application", "prayer"},
	TemplateACTS: {"adoration", "confession", "thanksgiving", "supplication"},
}

// Fields returns the field names for the template, in display order.
func (t Template) Fields() []string {
	return templateFields[t]
}

// Valid reports whether t is a known template.
func (t Template) Valid() bool {
	_, ok := templateFields[t]
	return ok
}

// Entry is one quiet-time record. Once Status is StatusCommitted, only the
// favorite flag and reflection fields may still change; everything else is
// permanent history until the user explicitly deletes the entry.
type Entry struct {
	ID             string
	Verse          verse.Verse
	SecondaryVerse *verse.Verse
	Status         Status
	Template       Template
	Fields         map[string]string
	IsFavorite     bool
	UpdatedAt      time.Time
	CommittedAt    *time.Time
}

// NewDraft creates today's draft around a verse.
func NewDraft(v verse.Verse, template Template, now time.Time) (Entry, error) {
	if !template.Valid() {
		return Entry{}, fault.ValidationFailed("unknown journal template: " + string(template))
	}
	return Entry{
		ID:        uuid.NewString(),
		Verse:     v,
		Status:    StatusDraft,
		Template:  template,
		Fields:    make(map[string]string),
		UpdatedAt: now,
	}, nil
}

// Validate checks structural invariants: known template, field names
// belonging to it, and a constructed verse.
func (e Entry) Validate() error {
	if e.ID == "" {
		return fault.ValidationFailed("entry id is empty")
	}
	if !e.Template.Valid() {
		return fault.ValidationFailed("unknown journal template: " + string(e.Template))
	}
	allowed := make(map[string]bool, 4)
	for _, f := range e.Template.Fields() {
		allowed[f] = true
	}
	for name := range e.Fields {
		if !allowed[name] {
			return fault.ValidationFailed("field " + name + " does not belong to template " + string(e.Template))
		}
	}
	if e.Verse.Chapter <= 0 || e.Verse.VerseNumber <= 0 {
		return fault.ValidationFailed("entry verse is not constructed")
	}
	return nil
}

// Committed returns a copy transitioned to permanent history.
func (e Entry) Committed(now time.Time) Entry {
	e.Status = StatusCommitted
	e.UpdatedAt = now
	e.CommittedAt = &now
	return e
}
