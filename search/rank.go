package search

import (
	"cmp"
	"slices"
	"unicode/utf8"

	"github.com/poiesic/stdgap/core"
)

// SnippetLength is the display length of result text, in characters.
const SnippetLength = 300

// Rank scores candidates against query and returns the k best, highest
// score first. Equal scores are ordered by section ordinal, then document
// ID, then section ID. Candidates without a vector are skipped.
func Rank(query []float32, candidates []*core.Section, k int) ([]*core.SearchResult, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	top := newTopK(k)
	for _, section := range candidates {
		if !section.Embedded() {
			continue
		}
		if err := top.offer(query, section); err != nil {
			return nil, err
		}
	}
	return top.results(), nil
}

// topK keeps the k best results seen so far.
type topK struct {
	k    int
	best []*core.SearchResult
}

func newTopK(k int) *topK {
	return &topK{k: k, best: make([]*core.SearchResult, 0, min(k, 64))}
}

func (t *topK) offer(query []float32, section *core.Section) error {
	score, err := Cosine(query, section.Vector)
	if err != nil {
		return err
	}
	result := &core.SearchResult{Section: section, Score: score}
	if len(t.best) == t.k && compareResults(result, t.best[len(t.best)-1]) >= 0 {
		return nil
	}
	i, _ := slices.BinarySearchFunc(t.best, result, compareResults)
	t.best = slices.Insert(t.best, i, result)
	if len(t.best) > t.k {
		t.best = t.best[:t.k]
	}
	return nil
}

func (t *topK) results() []*core.SearchResult {
	return t.best
}

// compareResults orders better results first.
func compareResults(a, b *core.SearchResult) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Section.Ordinal, b.Section.Ordinal); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Section.DocumentId, b.Section.DocumentId); c != 0 {
		return c
	}
	return cmp.Compare(a.Section.Id, b.Section.Id)
}

// Snippet shortens text to at most n characters for display,
// marking the cut with an ellipsis.
func Snippet(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}
