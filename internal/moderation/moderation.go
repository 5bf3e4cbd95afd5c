// Package moderation defines the content-safety verdict model and the
// provider interface the generation pipeline calls before spending money on
// a generation request. Moderation is stricter than, and separate from, the
// on-device pre-filter.
package moderation

import "context"

// Decision tags a moderation verdict.
type Decision int

const (
	DecisionAllowed Decision = iota
	DecisionNeedsReview
	DecisionBlocked
)

func (d Decision) String() string {
	switch d {
	case DecisionAllowed:
		return "allowed"
	case DecisionNeedsReview:
		return "needs_review"
	case DecisionBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Verdict is the (tag, reason) pair. Reason is empty exactly when the
// decision is DecisionAllowed.
type Verdict struct {
	Decision Decision
	Reason   string
}

// Allowed returns the permissive verdict.
func Allowed() Verdict { return Verdict{Decision: DecisionAllowed} }

// NeedsReview returns a review verdict carrying the category reason.
func NeedsReview(reason string) Verdict {
	return Verdict{Decision: DecisionNeedsReview, Reason: reason}
}

// Blocked returns a blocking verdict carrying the category reason.
func Blocked(reason string) Verdict {
	return Verdict{Decision: DecisionBlocked, Reason: reason}
}

// Report is the full provider response.
type Report struct {
	Verdict    Verdict
	Confidence float64 // in [0,1]
	Categories []string
}

// Provider classifies text for safety. Implementations must be safe for
// concurrent use.
type Provider interface {
	Moderate(ctx context.Context, text string) (Report, error)
}
