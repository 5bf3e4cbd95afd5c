package verse

import (
	"strconv"
	"strings"

	"quiettime/internal/fault"
)

// ParseRef parses a human-readable reference of the form
// "Book Chapter:Verse". The book name may contain spaces ("Song of Songs",
// "고린도전서"); the last space-separated token must be exactly
// "<chapter>:<verse>" with both sides positive integers. Anything else fails
// with an InvalidVerseRef error - a reference like "Genesis 3" is rejected,
// not guessed at.
func ParseRef(ref string) (book string, chapter, verseNumber int, err error) {
	tokens := strings.Split(ref, " ")
	if len(tokens) < 2 {
		return "", 0, 0, fault.InvalidVerseRef(ref)
	}
	for _, tok := range tokens {
		if tok == "" { // double space or leading/trailing space
			return "", 0, 0, fault.InvalidVerseRef(ref)
		}
	}

	last := tokens[len(tokens)-1]
	chapter, verseNumber, ok := parseChapterVerse(last)
	if !ok {
		return "", 0, 0, fault.InvalidVerseRef(ref)
	}

	book = strings.Join(tokens[:len(tokens)-1], " ")
	return book, chapter, verseNumber, nil
}

// parseChapterVerse accepts exactly "<int>:<int>" with positive values.
// Signs and stray characters are rejected outright.
func parseChapterVerse(s string) (chapter, verseNum int, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	chapter, ok = parsePositiveInt(parts[0])
	if !ok {
		return 0, 0, false
	}
	verseNum, ok = parsePositiveInt(parts[1])
	if !ok {
		return 0, 0, false
	}
	return chapter, verseNum, true
}

func parsePositiveInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// FromRef parses ref, infers the translation from ref and text, and builds
// the full Verse. This is the mapper the orchestrator uses on provider
// output; a parse failure discards the whole result.
func FromRef(ref, text string) (Verse, error) {
	book, chapter, verseNumber, err := ParseRef(ref)
	if err != nil {
		return Verse{}, err
	}
	return New(book, chapter, verseNumber, text, InferTranslation(ref, text))
}
