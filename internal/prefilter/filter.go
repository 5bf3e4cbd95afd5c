// Package prefilter implements the on-device normalization and classification
// pass that every piece of free-form user text goes through before any
// network call. The pipeline is a fixed sequence of pure stages over Unicode
// text: whitespace normalization, grapheme-aware length validation, repeat
// reduction, control-character stripping, and a set of non-blocking
// heuristics (contact info, symbol ratio, script ratio). Rejection is always
// expressed as a verdict value; Filter never returns an error.
package prefilter

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// Filter runs the full pipeline over raw user text. It is a pure, total
// function: same input and config always produce the same Result, and it is
// safe for any number of concurrent callers.
func Filter(raw string, cfg Config) Result {
	cfg = cfg.withDefaults()
	var res Result

	// Stage 1: whitespace and zero-width normalization.
	text := normalizeWhitespace(raw)
	if text == "" {
		res.NormalizedText = ""
		res.addCode(CodeEmptyAfterNormalize)
		res.reduce()
		return res
	}

	// Stage 2: length validation in grapheme clusters.
	length := uniseg.GraphemeClusterCount(text)
	if length == 0 {
		res.NormalizedText = ""
		res.addCode(CodeLenZero)
		res.reduce()
		return res
	}
	if length < cfg.MinLen {
		res.NormalizedText = text
		res.addCode(CodeLenTooShort)
		res.reduce()
		return res
	}
	if length > cfg.MaxLen {
		text = truncateGraphemes(text, cfg.MaxLen)
		res.addCode(CodeLenTruncated)
	}

	// Stage 3: repeat reduction.
	pre := uniseg.GraphemeClusterCount(text)
	text = collapseCharRuns(text, cfg.ReduceRepeatThreshold)
	text = collapseTokenRuns(text, cfg.MaxSameTokenRepeat)
	post := uniseg.GraphemeClusterCount(text)
	if pre > 0 && post*5 <= pre {
		res.addCode(CodeMeaninglessRepetition)
	}

	// Stage 4: control-character stripping.
	text = stripControl(text)
	if strings.TrimSpace(text) == "" {
		res.NormalizedText = ""
		res.addCode(CodeOnlyControlChars)
		res.reduce()
		return res
	}

	// Stage 5: contact / URL / advertisement heuristic.
	if looksLikeContactOrAd(text) {
		res.addCode(CodeURLOrContact)
	}

	// Stages 6 and 7: symbol-ratio and script-ratio heuristics share one
	// pass over the visible characters.
	visible, symbolic, supported := classifyRunes(text)
	if visible > 0 {
		if float64(symbolic)/float64(visible) > symbolRatioLimit {
			res.addCode(CodeGibberishOrSymbols)
		}
		if supported > 0 && float64(supported)/float64(visible) < supportedScriptFloor {
			res.addCode(CodeUnsupportedLangHint)
		}
	}

	// Stage 8: final verdict reduction.
	res.NormalizedText = text
	res.reduce()
	return res
}

const (
	symbolRatioLimit     = 0.8
	supportedScriptFloor = 0.1
)

// zero-width characters commonly pasted from chat apps and web pages.
func isZeroWidth(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\ufeff':
		return true
	}
	return false
}

// normalizeWhitespace trims the text, strips zero-width characters, converts
// tabs to spaces, collapses whitespace runs to a single space, and caps
// consecutive newlines at two. Newlines inside a whitespace run survive the
// collapse so paragraph structure is preserved.
func normalizeWhitespace(s string) string {
	// CRLF pairs count as a single line break; stray CRs are treated as LF.
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(s))

	newlines := 0 // newlines seen in the current whitespace run
	inRun := false
	wrote := false // anything non-whitespace written yet (implicit left trim)

	flushRun := func() {
		if !inRun || !wrote {
			inRun = false
			newlines = 0
			return
		}
		switch {
		case newlines == 0:
			b.WriteByte(' ')
		case newlines == 1:
			b.WriteByte('\n')
		default:
			b.WriteString("\n\n")
		}
		inRun = false
		newlines = 0
	}

	for _, r := range s {
		if isZeroWidth(r) {
			continue
		}
		if r == '\r' {
			r = '\n'
		}
		if r == '\t' {
			r = ' '
		}
		if unicode.IsSpace(r) {
			inRun = true
			if r == '\n' {
				newlines++
			}
			continue
		}
		flushRun()
		b.WriteRune(r)
		wrote = true
	}
	// Trailing whitespace run is dropped (right trim).
	return b.String()
}

// truncateGraphemes cuts s to at most max grapheme clusters, never splitting
// a cluster.
func truncateGraphemes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	var (
		rest  = s
		state = -1
		end   int
	)
	for i := 0; i < max && len(rest) > 0; i++ {
		var cluster string
		cluster, rest, _, state = uniseg.StepString(rest, state)
		end += len(cluster)
	}
	return s[:end]
}

// collapseCharRuns reduces any run of threshold or more identical runes to
// exactly two copies.
func collapseCharRuns(s string, threshold int) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		run := j - i
		if run >= threshold {
			run = 2
		}
		for k := 0; k < run; k++ {
			out = append(out, runes[i])
		}
		i = j
	}
	return string(out)
}

// collapseTokenRuns reduces runs of a short repeated token ("ㅠㅠㅠ…",
// "하하하하…", "123123123…") to three repetitions. Tokens of one to three
// runes are considered, shortest first so a one-rune pattern is not consumed
// as a degenerate longer token.
func collapseTokenRuns(s string, maxRepeat int) string {
	runes := []rune(s)
	for tokenLen := 1; tokenLen <= 3; tokenLen++ {
		runes = collapseTokenRunsOfLen(runes, tokenLen, maxRepeat)
	}
	return string(runes)
}

func collapseTokenRunsOfLen(runes []rune, tokenLen, maxRepeat int) []rune {
	out := make([]rune, 0, len(runes))
	for i := 0; i < len(runes); {
		if i+tokenLen > len(runes) {
			out = append(out, runes[i:]...)
			break
		}
		token := runes[i : i+tokenLen]
		count := 1
		for i+(count+1)*tokenLen <= len(runes) && runesEqual(runes[i+count*tokenLen:i+(count+1)*tokenLen], token) {
			count++
		}
		if count >= maxRepeat {
			for k := 0; k < 3; k++ {
				out = append(out, token...)
			}
			i += count * tokenLen
			continue
		}
		out = append(out, runes[i])
		i++
	}
	return out
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// stripControl removes C0 controls (except tab, newline, carriage return),
// DEL, and all C1 controls.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

var (
	urlPattern    = regexp.MustCompile(`(?i)https?://\S+`)
	wwwPattern    = regexp.MustCompile(`(?i)\bwww\.\S+`)
	domainPattern = regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9-]*\.(?:com|net|org|io|co|kr|me|app|info)\b`)
	phonePattern  = regexp.MustCompile(`\b\d{2,4}[-. ]\d{3,4}[-. ]\d{4}\b|\b01[016789]\d{7,8}\b`)
)

// messengerKeywords are matched case-insensitively as substrings. These are
// the handles people paste when advertising or soliciting contact.
var messengerKeywords = []string{
	"kakao", "카카오", "카톡", "telegram", "텔레그램",
	"whatsapp", "wechat", "위챗", "라인아이디", "인스타",
}

func looksLikeContactOrAd(s string) bool {
	if urlPattern.MatchString(s) || wwwPattern.MatchString(s) ||
		domainPattern.MatchString(s) || phonePattern.MatchString(s) {
		return true
	}
	lower := strings.ToLower(s)
	for _, kw := range messengerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// classifyRunes counts, over the visible (non-whitespace) runes of s:
// the total, how many are emoji/symbol/punctuation, and how many belong to
// the supported scripts (Hangul and Latin).
func classifyRunes(s string) (visible, symbolic, supported int) {
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		visible++
		if isSymbolic(r) {
			symbolic++
		}
		if isSupportedScript(r) {
			supported++
		}
	}
	return visible, symbolic, supported
}

func isSymbolic(r rune) bool {
	if unicode.IsSymbol(r) || unicode.IsPunct(r) {
		return true
	}
	// Pictographic blocks not fully covered by the symbol categories.
	return (r >= 0x1F000 && r <= 0x1FAFF) || (r >= 0x2600 && r <= 0x27BF)
}

func isSupportedScript(r rune) bool {
	if unicode.Is(unicode.Hangul, r) || unicode.Is(unicode.Latin, r) {
		return true
	}
	return false
}
