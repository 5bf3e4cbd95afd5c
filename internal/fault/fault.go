// Package fault defines the fixed taxonomy of domain errors shared by the
// recommendation pipeline, the journal services, and the CLI boundary.
// Collaborator-specific errors (HTTP status codes, sql errors, provider SDK
// errors) are translated into exactly one Kind at the service boundary and
// never leak past it.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidationFailed
	KindRateLimited
	KindModerationBlocked
	KindNetwork
	KindConfiguration
	KindUnauthorized
	KindNotFound
	KindInvalidVerseRef
)

// String returns the snake_case name used in logs and message keys.
func (k Kind) String() string {
	switch k {
	case KindValidationFailed:
		return "validation_failed"
	case KindRateLimited:
		return "rate_limited"
	case KindModerationBlocked:
		return "moderation_blocked"
	case KindNetwork:
		return "network"
	case KindConfiguration:
		return "configuration"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindInvalidVerseRef:
		return "invalid_verse_ref"
	default:
		return "unknown"
	}
}

// Error is the single error type crossing use-case boundaries.
type Error struct {
	Kind   Kind
	Msg    string // human-readable detail (reason for moderation, ref for parse failures)
	Amount int    // retained for rate-limit errors: the daily max that was hit
	cause  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is(err, &Error{Kind: k}) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

// Constructors for the kinds that carry a conventional payload.

func ValidationFailed(msg string) *Error { return New(KindValidationFailed, msg) }

func RateLimited() *Error { return New(KindRateLimited, "") }

func ModerationBlocked(reason string) *Error { return New(KindModerationBlocked, reason) }

func Network(msg string, cause error) *Error { return Wrap(KindNetwork, msg, cause) }

func Configuration(msg string) *Error { return New(KindConfiguration, msg) }

func Unauthorized() *Error { return New(KindUnauthorized, "") }

func NotFound(what string) *Error { return New(KindNotFound, what) }

func InvalidVerseRef(ref string) *Error { return New(KindInvalidVerseRef, ref) }

func Unknownf(format string, args ...interface{}) *Error {
	return New(KindUnknown, fmt.Sprintf(format, args...))
}

// KindOf extracts the Kind from an error chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// UserMessageKey maps an error to the localization key the UI should render.
// RateLimited and ModerationBlocked are expected outcomes and get specific
// messages; everything else collapses to a generic retry prompt.
func UserMessageKey(err error) string {
	switch KindOf(err) {
	case KindRateLimited:
		return "error.rate_limited"
	case KindModerationBlocked:
		return "error.moderation_blocked"
	case KindValidationFailed:
		return "error.validation_failed"
	case KindUnauthorized:
		return "error.sign_in_required"
	case KindNotFound:
		return "error.not_found"
	case KindInvalidVerseRef:
		return "error.bad_verse_reference"
	default:
		return "error.retry_generic"
	}
}
