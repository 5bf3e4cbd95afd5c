package prefilter

import (
	"strings"
	"testing"

	"github.com/rivo/uniseg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filterDefault(s string) Result {
	return Filter(s, DefaultConfig())
}

func TestWhitespaceOnlyInputIsBlocked(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"\t\t",
		"\n\n\n",
		"\u200b\u200c\u200d\ufeff",
		" \u200b \ufeff ",
	}
	for _, in := range inputs {
		res := filterDefault(in)
		assert.Equal(t, Block(CodeEmptyAfterNormalize), res.Verdict, "input %q", in)
		assert.Equal(t, "", res.NormalizedText, "input %q", in)
	}
}

func TestWhitespaceNormalization(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trim and collapse spaces", "  hello   world  ", "hello world"},
		{"tabs become spaces", "hello\tworld", "hello world"},
		{"zero width stripped", "he\u200bllo", "hello"},
		{"single newline kept", "line one\nline two", "line one\nline two"},
		{"triple newline capped at two", "a\n\n\n\nb", "a\n\nb"},
		{"spaces around newline collapse into it", "a  \n  b", "a\nb"},
		{"carriage returns normalized", "a\r\nb", "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := filterDefault(tt.in)
			assert.Equal(t, tt.want, res.NormalizedText)
		})
	}
}

func TestLongInputIsTruncatedAtGraphemeBoundary(t *testing.T) {
	cfg := DefaultConfig()
	in := strings.Repeat("가a", 400) // 800 graphemes
	res := Filter(in, cfg)

	assert.LessOrEqual(t, uniseg.GraphemeClusterCount(res.NormalizedText), cfg.MaxLen)
	assert.Contains(t, res.Codes, CodeLenTruncated)
	assert.Contains(t, res.Hints, Hint{MessageKey: "warning.text_truncated"})
	// Truncation alone does not block.
	assert.Equal(t, DecisionNeedsReview, res.Verdict.Decision)
}

func TestTruncationKeepsEmojiClustersIntact(t *testing.T) {
	cfg := Config{MaxLen: 3}
	in := "a가" + "\U0001F468\u200d\U0001F469\u200d\U0001F467" + "bcd"
	// Zero-width joiners are stripped in stage 1, so the family emoji
	// decomposes into individual pictographs; each remains a full cluster.
	res := Filter(in, cfg)
	assert.Equal(t, 3, uniseg.GraphemeClusterCount(res.NormalizedText))
}

func TestRepeatReduction(t *testing.T) {
	res := filterDefault("ㅋㅋㅋㅋㅋㅋㅋㅋㅋㅋ")
	assert.Equal(t, "ㅋㅋ", res.NormalizedText)
	assert.Contains(t, res.Codes, CodeMeaninglessRepetition)
	assert.Equal(t, NeedsReview(CodeMeaninglessRepetition), res.Verdict)
}

func TestTokenRunReduction(t *testing.T) {
	// A two-rune token repeated 12 times collapses to 3 repetitions.
	res := filterDefault(strings.Repeat("하호", 12) + " 너무 웃겨")
	assert.Equal(t, "하호하호하호 너무 웃겨", res.NormalizedText)
}

func TestShortRunsAreUntouched(t *testing.T) {
	res := filterDefault("음... 글쎄요")
	assert.Equal(t, "음... 글쎄요", res.NormalizedText)
	assert.Empty(t, res.Codes)
}

func TestControlOnlyInputIsBlocked(t *testing.T) {
	res := filterDefault("\x00\x01\x02")
	assert.Equal(t, Block(CodeOnlyControlChars), res.Verdict)
	assert.Equal(t, "", res.NormalizedText)
}

func TestControlCharactersAreStripped(t *testing.T) {
	res := filterDefault("hel\x07lo there")
	assert.Equal(t, "hello there", res.NormalizedText)
	assert.Equal(t, Allow(), res.Verdict)
}

func TestContactAndURLDetection(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"https url", "오늘 너무 힘들어요 https://example.com 봐주세요"},
		{"www", "www.example.com 에서 만나요"},
		{"bare domain", "visit example.com for details"},
		{"korean mobile number", "연락주세요 01012345678"},
		{"dashed phone", "call me 010-1234-5678 anytime"},
		{"messenger keyword", "카톡 아이디 알려줄게"},
		{"keyword case insensitive", "add me on KaKao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := filterDefault(tt.in)
			assert.Contains(t, res.Codes, CodeURLOrContact)
			assert.NotEqual(t, DecisionAllow, res.Verdict.Decision)
		})
	}
}

func TestSymbolRatioHeuristic(t *testing.T) {
	res := filterDefault("!!!???***$$$##@@@&&&^^^~~ ok")
	assert.Contains(t, res.Codes, CodeGibberishOrSymbols)

	clean := filterDefault("오늘 하루도 감사했습니다!")
	assert.NotContains(t, clean.Codes, CodeGibberishOrSymbols)
}

func TestScriptRatioHeuristic(t *testing.T) {
	// Mostly Cyrillic with a single Latin letter: supported ratio under 10%
	// while still nonzero.
	res := filterDefault("Сегодня был очень тяжёлый день и вечер x")
	if assert.Contains(t, res.Codes, CodeUnsupportedLangHint) {
		assert.Equal(t, DecisionNeedsReview, res.Verdict.Decision)
	}

	// Entirely unsupported script stays silent: the hint requires at least
	// one supported character.
	none := filterDefault("Сегодня был тяжёлый день")
	assert.NotContains(t, none.Codes, CodeUnsupportedLangHint)
}

func TestPlainKoreanInputIsAllowed(t *testing.T) {
	res := filterDefault("오늘은 힘든 하루였어요")
	assert.Equal(t, Allow(), res.Verdict)
	assert.Empty(t, res.Codes)
	assert.Empty(t, res.Hints)
	assert.Equal(t, "오늘은 힘든 하루였어요", res.NormalizedText)
}

func TestFilterIsIdempotentOnItsOutput(t *testing.T) {
	inputs := []string{
		"  hello   world  ",
		"ㅋㅋㅋㅋㅋㅋㅋㅋㅋㅋ 그래도 괜찮아",
		strings.Repeat("가a", 400),
		"오늘은 힘든 하루였어요",
		strings.Repeat("하하", 12),
		"visit example.com for details",
		"a\n\n\n\nb\t\tc",
	}
	for _, in := range inputs {
		first := filterDefault(in)
		if first.Verdict.Blocked() {
			continue
		}
		second := filterDefault(first.NormalizedText)
		assert.Equal(t, first.NormalizedText, second.NormalizedText, "input %q", in)
	}
}

func TestBlockCodePrecedence(t *testing.T) {
	// A result that carries a block-class code must block regardless of
	// earlier advisory codes.
	var res Result
	res.addCode(CodeLenTruncated)
	res.addCode(CodeOnlyControlChars)
	res.reduce()
	assert.Equal(t, Block(CodeOnlyControlChars), res.Verdict)
}

func TestFirstCodeWinsForReview(t *testing.T) {
	var res Result
	res.addCode(CodeURLOrContact)
	res.addCode(CodeGibberishOrSymbols)
	res.reduce()
	assert.Equal(t, NeedsReview(CodeURLOrContact), res.Verdict)
}

func TestCodesAreNotDuplicated(t *testing.T) {
	var res Result
	res.addCode(CodeURLOrContact)
	res.addCode(CodeURLOrContact)
	assert.Equal(t, []string{CodeURLOrContact}, res.Codes)
	assert.Len(t, res.Hints, 1)
}

func TestMinLenRejection(t *testing.T) {
	res := Filter("hi", Config{MinLen: 5})
	require.Equal(t, Block(CodeLenTooShort), res.Verdict)
}

func TestConfigDefaultsFillZeroFields(t *testing.T) {
	cfg := Config{MaxLen: 20}.withDefaults()
	assert.Equal(t, 1, cfg.MinLen)
	assert.Equal(t, 20, cfg.MaxLen)
	assert.Equal(t, 5, cfg.ReduceRepeatThreshold)
	assert.Equal(t, 10, cfg.MaxSameTokenRepeat)
}
