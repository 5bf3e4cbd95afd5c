package prefilter

// Decision is the tag of a Verdict.
type Decision int

const (
	// DecisionAllow means the text may be sent to the network pipeline.
	DecisionAllow Decision = iota
	// DecisionNeedsReview means the text is suspicious but not rejected;
	// callers may continue, typically in a safer generation mode.
	DecisionNeedsReview
	// DecisionBlock means the text must not leave the device.
	DecisionBlock
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionNeedsReview:
		return "needs_review"
	case DecisionBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Verdict is the (tag, code) pair produced by the final reduction. Code is
// empty exactly when Decision is DecisionAllow.
type Verdict struct {
	Decision Decision
	Code     string
}

// Allow returns the allowing verdict.
func Allow() Verdict { return Verdict{Decision: DecisionAllow} }

// NeedsReview returns a review verdict carrying the triggering code.
func NeedsReview(code string) Verdict {
	return Verdict{Decision: DecisionNeedsReview, Code: code}
}

// Block returns a blocking verdict carrying the triggering code.
func Block(code string) Verdict {
	return Verdict{Decision: DecisionBlock, Code: code}
}

// Blocked reports whether the verdict forbids sending the text anywhere.
func (v Verdict) Blocked() bool { return v.Decision == DecisionBlock }

// Diagnostic codes emitted by the pipeline stages, in stage order.
const (
	CodeEmptyAfterNormalize   = "empty_after_normalize"
	CodeLenZero               = "len_zero"
	CodeLenTooShort           = "len_too_short"
	CodeLenTruncated          = "len_truncated"
	CodeMeaninglessRepetition = "meaningless_repetition"
	CodeOnlyControlChars      = "only_control_chars"
	CodeURLOrContact          = "url_or_contact_detected"
	CodeGibberishOrSymbols    = "gibberish_or_symbols"
	CodeUnsupportedLangHint   = "unsupported_lang_hint"
)

// blockClassCodes are the codes that force a Block verdict. They are exactly
// the codes produced by the short-circuiting stages.
var blockClassCodes = map[string]bool{
	CodeEmptyAfterNormalize: true,
	CodeLenZero:             true,
	CodeLenTooShort:         true,
	CodeOnlyControlChars:    true,
}

// hintKeys maps a diagnostic code to the localization key shown to the user.
// Codes without an entry produce no hint.
var hintKeys = map[string]string{
	CodeLenTruncated:          "warning.text_truncated",
	CodeMeaninglessRepetition: "warning.meaningless_repetition",
	CodeURLOrContact:          "warning.contact_or_ad",
	CodeGibberishOrSymbols:    "warning.gibberish",
	CodeUnsupportedLangHint:   "warning.unsupported_language",
}

// Hint is a user-facing advisory attached to a non-blocking diagnostic.
type Hint struct {
	MessageKey string
}

// Result is the full output of Filter.
type Result struct {
	NormalizedText string
	Verdict        Verdict
	Codes          []string
	Hints          []Hint
}

// addCode appends a diagnostic (once) plus its hint, preserving stage order.
func (r *Result) addCode(code string) {
	for _, c := range r.Codes {
		if c == code {
			return
		}
	}
	r.Codes = append(r.Codes, code)
	if key, ok := hintKeys[code]; ok {
		r.Hints = append(r.Hints, Hint{MessageKey: key})
	}
}

// reduce computes the final verdict from the accumulated codes: any
// block-class code wins, else the first code demands review, else allow.
func (r *Result) reduce() {
	for _, c := range r.Codes {
		if blockClassCodes[c] {
			r.Verdict = Block(c)
			return
		}
	}
	if len(r.Codes) > 0 {
		r.Verdict = NeedsReview(r.Codes[0])
		return
	}
	r.Verdict = Allow()
}
