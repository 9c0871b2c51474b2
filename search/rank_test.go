package search

import (
	"testing"

	"github.com/poiesic/stdgap/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func section(id, doc core.ID, ordinal int, vector ...float32) *core.Section {
	return &core.Section{Id: id, DocumentId: doc, Ordinal: ordinal, Vector: vector}
}

func TestRank(t *testing.T) {
	candidates := []*core.Section{
		section(1, 1, 0, 1, 0, 0),
		section(2, 1, 1, 0.6, 0.8, 0),
		section(3, 1, 2, 0, 0, 1),
	}

	t.Run("query equals a section vector", func(t *testing.T) {
		results, err := Rank([]float32{0.6, 0.8, 0}, candidates, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, core.ID(2), results[0].Section.Id)
		assert.Equal(t, core.ID(1), results[1].Section.Id)
	})

	t.Run("k larger than candidates returns all", func(t *testing.T) {
		results, err := Rank([]float32{1, 1, 1}, candidates, 10)
		require.NoError(t, err)
		assert.Len(t, results, 3)
		for i := 0; i < len(results)-1; i++ {
			assert.GreaterOrEqual(t, results[i].Score, results[i+1].Score)
		}
	})

	t.Run("invalid k", func(t *testing.T) {
		_, err := Rank([]float32{1, 0, 0}, candidates, 0)
		assert.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Rank([]float32{1, 0}, candidates, 1)
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})

	t.Run("unembedded candidates skipped", func(t *testing.T) {
		results, err := Rank([]float32{1, 0}, []*core.Section{section(9, 1, 0)}, 3)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestRank_TieBreaking(t *testing.T) {
	candidates := []*core.Section{
		section(10, 2, 3, 1, 0),
		section(11, 2, 1, 1, 0),
		section(12, 1, 1, 1, 0),
		section(13, 1, 0, 0, 1),
	}
	results, err := Rank([]float32{1, 0}, candidates, 4)
	require.NoError(t, err)

	ids := make([]core.ID, len(results))
	for i, r := range results {
		ids[i] = r.Section.Id
	}
	// Equal scores by ordinal, then document ID.
	assert.Equal(t, []core.ID{12, 11, 10, 13}, ids)
}

func TestRank_ZeroQuery(t *testing.T) {
	results, err := Rank([]float32{0, 0}, []*core.Section{section(1, 1, 0, 1, 0)}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].Score)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("short", 300))
	assert.Equal(t, "ab...", Snippet("abcdef", 2))
	assert.Equal(t, "über...", Snippet("überlong", 4))
}
