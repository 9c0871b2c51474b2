package split

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChain(t *testing.T, opts ...Option) *Chain {
	t.Helper()
	c, err := New(opts...)
	require.NoError(t, err)
	return c
}

// assertCover checks that spans are ordered, contiguous and rebuild text.
func assertCover(t *testing.T, text string, spans []Span) {
	t.Helper()
	var sb strings.Builder
	offset := 0
	for i, s := range spans {
		assert.Equal(t, i, s.Ordinal, "ordinal")
		assert.Equal(t, offset, s.Start, "span %d start", i)
		assert.Equal(t, text[s.Start:s.End], s.Text, "span %d text", i)
		assert.NotEmpty(t, s.Text, "span %d empty", i)
		offset = s.End
		sb.WriteString(s.Text)
	}
	assert.Equal(t, len(text), offset)
	assert.Equal(t, text, sb.String())
}

func TestChain_EmptyInput(t *testing.T) {
	c := newChain(t)
	assert.Empty(t, c.Split(""))
}

func TestChain_ShortDocumentIsOneSection(t *testing.T) {
	c := newChain(t)
	text := "Devices shall fail safe on loss of power."
	spans := c.Split(text)
	require.Len(t, spans, 1)
	assert.Equal(t, text, spans[0].Text)
	assert.Empty(t, spans[0].Label)
}

func TestChain_MarkdownHeadings(t *testing.T) {
	c := newChain(t)
	text := "# Scope\nThis standard applies to robots.\n\n## Terms\nA robot is a machine.\n# Requirements\nRobots shall stop.\n"
	spans := c.Split(text)
	require.Len(t, spans, 3)
	assert.Equal(t, "Scope", spans[0].Label)
	assert.Equal(t, "Terms", spans[1].Label)
	assert.Equal(t, "Requirements", spans[2].Label)
	assertCover(t, text, spans)
}

func TestChain_Preamble(t *testing.T) {
	c := newChain(t)

	t.Run("text before first heading is its own section", func(t *testing.T) {
		text := "Foreword text.\n# Scope\nbody\n"
		spans := c.Split(text)
		require.Len(t, spans, 2)
		assert.Empty(t, spans[0].Label)
		assert.Equal(t, "Foreword text.\n", spans[0].Text)
		assert.Equal(t, "Scope", spans[1].Label)
		assertCover(t, text, spans)
	})

	t.Run("blank preamble merges into first heading", func(t *testing.T) {
		text := "\n\n  \n# Scope\nbody\n"
		spans := c.Split(text)
		require.Len(t, spans, 1)
		assert.Equal(t, "Scope", spans[0].Label)
		assertCover(t, text, spans)
	})
}

func TestChain_PlainTextHeadings(t *testing.T) {
	c := newChain(t)
	text := strings.Join([]string{
		"GENERAL REQUIREMENTS",
		"All equipment shall be grounded.",
		"4.2 Hazard analysis",
		"Hazards shall be listed.",
		"Annex A: Informative examples",
		"Example text.",
		"1. This numbered sentence ends with a period.",
		"More body text.",
	}, "\n")

	spans := c.Split(text)
	require.Len(t, spans, 3)
	assert.Equal(t, "GENERAL REQUIREMENTS", spans[0].Label)
	assert.Equal(t, "4.2 Hazard analysis", spans[1].Label)
	assert.Equal(t, "Annex A: Informative examples", spans[2].Label)
	assertCover(t, text, spans)
}

func TestHeadingLabel(t *testing.T) {
	tests := []struct {
		line  string
		label string
		ok    bool
	}{
		{"# Scope", "Scope", true},
		{"### 5.1 Risk ###", "5.1 Risk", true},
		{"#hashtag", "", false},
		{"7 Verification", "7 Verification", true},
		{"2024 was a busy year", "", false},
		{"Section 3: Definitions", "Section 3: Definitions", true},
		{"Part II", "Part II", true},
		{"ISO 26262-6:2018", "", false},
		{"    INDENTED CODE", "", false},
		{"the quick brown fox", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			label, ok := headingLabel(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.label, label)
		})
	}
}

func TestChain_ParagraphPacking(t *testing.T) {
	c := newChain(t, WithWindowSize(20), WithMaxSectionChars(20))
	text := "alpha one\n\nbeta two\n\ngamma three"
	spans := c.Split(text)
	require.Len(t, spans, 3)
	assert.Equal(t, "alpha one\n\n", spans[0].Text)
	assert.Equal(t, "beta two\n\n", spans[1].Text)
	assert.Equal(t, "gamma three", spans[2].Text)
	assertCover(t, text, spans)
}

func TestChain_WindowFallback(t *testing.T) {
	c := newChain(t, WithWindowSize(8), WithMaxSectionChars(8))
	text := "hello world foo"
	spans := c.Split(text)
	require.Len(t, spans, 3)
	assert.Equal(t, "hello ", spans[0].Text)
	assert.Equal(t, "world ", spans[1].Text)
	assert.Equal(t, "foo", spans[2].Text)
}

func TestWindows_HardCut(t *testing.T) {
	spans := Windows(5).Split("abcdefghij")
	require.Len(t, spans, 2)
	assert.Equal(t, "abcde", spans[0].Text)
	assert.Equal(t, "fghij", spans[1].Text)
}

func TestWindows_RuneBoundaries(t *testing.T) {
	text := strings.Repeat("héllø wörld ", 20) + "終わり"
	spans := Windows(7).Split(text)
	for _, s := range spans {
		assert.True(t, utf8.ValidString(s.Text), "span %d splits a rune", s.Ordinal)
		assert.LessOrEqual(t, utf8.RuneCountInString(s.Text), 7)
	}
	assertCover(t, text, spans)
}

func TestChain_OversizedHeadingSection(t *testing.T) {
	c := newChain(t, WithWindowSize(10), WithMaxSectionChars(10))
	text := "# Big\n" + strings.Repeat("word ", 10)
	spans := c.Split(text)
	require.Greater(t, len(spans), 1)
	assert.Equal(t, "Big (part 1)", spans[0].Label)
	for _, s := range spans {
		assert.True(t, strings.HasPrefix(s.Label, "Big (part "), s.Label)
	}
	assertCover(t, text, spans)
}

func TestHeadings(t *testing.T) {
	spans := Headings("no headings here")
	require.Len(t, spans, 1)
	assert.Empty(t, Headings(""))
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithWindowSize(0))
	assert.Error(t, err)

	_, err = New(WithWindowSize(100), WithMaxSectionChars(50))
	assert.Error(t, err)
}

func TestSplitters_Reconstruct(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pieces := []string{
		"# Heading\n", "## Sub heading\n", "plain words ", "\n", "\n\n", "\r\n",
		"ANNEX B\n", "3.1 Scope\n", "ünïcödé ", "漢字テキスト", "\t", "   ",
	}

	var inputs []string
	for i := 0; i < 50; i++ {
		var sb strings.Builder
		n := rng.Intn(60)
		for j := 0; j < n; j++ {
			sb.WriteString(pieces[rng.Intn(len(pieces))])
		}
		inputs = append(inputs, sb.String())
	}
	inputs = append(inputs, " ", "\n", "x", strings.Repeat("a", 5000))

	splitters := map[string]Splitter{
		"chain":    newChain(t, WithWindowSize(16), WithMaxSectionChars(32)),
		"default":  newChain(t),
		"headings": Func(Headings),
		"windows":  Windows(9),
	}

	for name, s := range splitters {
		t.Run(name, func(t *testing.T) {
			for _, text := range inputs {
				spans := s.Split(text)
				if text == "" {
					assert.Empty(t, spans)
					continue
				}
				require.NotEmpty(t, spans)
				assertCover(t, text, spans)
			}
		})
	}
}
