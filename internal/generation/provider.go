// Package generation defines the verse-generation provider contract and its
// two production implementations: a direct Gemini HTTP client and a client
// for the authenticated callable proxy endpoints. Response schemas are
// strict; a response that does not match them is a failure, never a guess.
package generation

import (
	"context"
	"fmt"

	"quiettime/internal/fault"
)

// Request is the structured generation request. Mood carries the user's
// normalized situational text; Note, Nickname and Gender are optional tone
// hints. SafeMode asks the provider for a conservative generation and is set
// when moderation returned a needs-review verdict.
type Request struct {
	Locale   string `json:"locale"`
	Mood     string `json:"mood"`
	Note     string `json:"note,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Gender   string `json:"gender,omitempty"`
	SafeMode bool   `json:"-"`
}

// RawRecommendation is the lightweight "recommend" response. All fields are
// required; extra fields are a decode error.
type RawRecommendation struct {
	VerseRef  string `json:"verseRef"`
	Rationale string `json:"rationale"`
}

// Safety reports provider-side moderation of a full generation. A "blocked"
// status is a moderation failure, not a successful generation.
type Safety struct {
	Status string `json:"status"` // "ok" or "blocked"
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// RawExplanation is the full "generate" response, including the verse body
// and the Korean explanation. Strict schema: every field below is required
// except VerseTextEN.
type RawExplanation struct {
	VerseRef    string   `json:"verseRef"`
	VerseText   string   `json:"verseText"`
	VerseTextEN string   `json:"verseTextEN,omitempty"`
	Rationale   string   `json:"rationale"`
	Tags        []string `json:"tags"` // 1 to 5 entries
	Safety      Safety   `json:"safety"`
}

// Provider produces verse recommendations. Implementations must be safe for
// concurrent use and honor context cancellation.
type Provider interface {
	Recommend(ctx context.Context, req Request) (RawRecommendation, error)
	GenerateExplanation(ctx context.Context, req Request) (RawExplanation, error)
}

// Validate enforces the required-field contract after a strict decode.
func (r RawRecommendation) Validate() error {
	if r.VerseRef == "" || r.Rationale == "" {
		return fault.Network("incomplete recommendation response", nil)
	}
	return nil
}

// Validate enforces the required-field and tag-count contract.
func (r RawExplanation) Validate() error {
	if r.VerseRef == "" || r.VerseText == "" || r.Rationale == "" {
		return fault.Network("incomplete generation response", nil)
	}
	if len(r.Tags) < 1 || len(r.Tags) > 5 {
		return fault.Network(fmt.Sprintf("generation response carries %d tags, want 1-5", len(r.Tags)), nil)
	}
	if r.Safety.Status != "ok" && r.Safety.Status != "blocked" {
		return fault.Network("generation response missing safety status", nil)
	}
	return nil
}
