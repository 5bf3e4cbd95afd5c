// Package verse holds the scripture passage entity and the parser that turns
// a provider's free-form "Book Chapter:Verse" reference into a validated
// value. Everything here is pure; failures are reported, never guessed
// around.
package verse

import (
	"fmt"
	"unicode"

	"quiettime/internal/fault"
)

// Default translation codes, selected by the script of the reference text.
const (
	TranslationKorean = "KRV"
	TranslationLatin  = "NIV"
)

// Verse is an immutable scripture passage. Construct it with New so the
// chapter and verse number invariants hold.
type Verse struct {
	Book        string
	Chapter     int
	VerseNumber int
	Text        string
	Translation string
}

// New validates and builds a Verse.
func New(book string, chapter, verseNumber int, text, translation string) (Verse, error) {
	if book == "" {
		return Verse{}, fault.ValidationFailed("verse book must not be empty")
	}
	if chapter <= 0 {
		return Verse{}, fault.ValidationFailed(fmt.Sprintf("chapter must be positive, got %d", chapter))
	}
	if verseNumber <= 0 {
		return Verse{}, fault.ValidationFailed(fmt.Sprintf("verse number must be positive, got %d", verseNumber))
	}
	return Verse{
		Book:        book,
		Chapter:     chapter,
		VerseNumber: verseNumber,
		Text:        text,
		Translation: translation,
	}, nil
}

// Reference returns the derived identity, "Book Chapter:Verse".
func (v Verse) Reference() string {
	return fmt.Sprintf("%s %d:%d", v.Book, v.Chapter, v.VerseNumber)
}

// InferTranslation picks the default translation code for a reference and
// body: Hangul anywhere in either means the Korean default, otherwise the
// Latin-script default.
func InferTranslation(ref, text string) string {
	if containsHangul(ref) || containsHangul(text) {
		return TranslationKorean
	}
	return TranslationLatin
}

func containsHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}
