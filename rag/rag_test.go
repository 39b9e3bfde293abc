package rag_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/agentforge/rag"
)

type fakeBackend struct {
	matches     []rag.Match
	lastTopK    int
	searchCalls int
}

func (f *fakeBackend) Search(ctx context.Context, query string, topK int) ([]rag.Match, error) {
	f.searchCalls++
	f.lastTopK = topK
	if topK > len(f.matches) {
		topK = len(f.matches)
	}
	return append([]rag.Match(nil), f.matches[:topK]...), nil
}

func scored(id string, score float64, entity string) rag.Match {
	return rag.Match{ID: id, Score: score, Entity: entity, Metadata: map[string]any{"kind": entity}}
}

func TestSimilaritySearchInflatesTopKViaStrategy(t *testing.T) {
	backend := &fakeBackend{matches: []rag.Match{
		scored("a", 0.9, "doc"), scored("b", 0.8, "doc"), scored("c", 0.7, "doc"),
		scored("d", 0.6, "doc"), scored("e", 0.5, "doc"),
	}}
	_, err := rag.SimilaritySearch(context.Background(), backend, "q", 2, rag.Options{
		Strategy: rag.Multiplier(2),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, backend.lastTopK)
}

func TestSimilaritySearchTruncatesToOriginalTopK(t *testing.T) {
	backend := &fakeBackend{matches: []rag.Match{
		scored("a", 0.9, "doc"), scored("b", 0.8, "doc"), scored("c", 0.7, "doc"), scored("d", 0.6, "doc"),
	}}
	out, err := rag.SimilaritySearch(context.Background(), backend, "q", 2, rag.Options{Strategy: rag.Offset(2)})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestSimilaritySearchDropsBelowThreshold(t *testing.T) {
	backend := &fakeBackend{matches: []rag.Match{scored("a", 0.9, "doc"), scored("b", 0.2, "doc")}}
	out, err := rag.SimilaritySearch(context.Background(), backend, "q", 2, rag.Options{SimilarityThreshold: 0.5})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestSimilaritySearchAppliesMetadataAndEntityFilter(t *testing.T) {
	backend := &fakeBackend{matches: []rag.Match{
		scored("a", 0.9, "doc"), scored("b", 0.85, "image"), scored("c", 0.8, "doc"),
	}}
	out, err := rag.SimilaritySearch(context.Background(), backend, "q", 5, rag.Options{
		Filter: rag.And(rag.EntityEquals("doc"), rag.MetadataEquals(map[string]any{"kind": "doc"})),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID)
}

func TestSimilaritySearchBoundsInflationByMaxTopK(t *testing.T) {
	backend := &fakeBackend{matches: []rag.Match{scored("a", 0.9, "doc")}}
	_, err := rag.SimilaritySearch(context.Background(), backend, "q", 10, rag.Options{
		Strategy: rag.Multiplier(10),
		MaxTopK:  15,
	})
	require.NoError(t, err)
	assert.Equal(t, 15, backend.lastTopK)
}

func TestSimilaritySearchRejectsNonPositiveTopK(t *testing.T) {
	_, err := rag.SimilaritySearch(context.Background(), &fakeBackend{}, "q", 0, rag.Options{})
	assert.Error(t, err)
}

func TestExpectedPassRateInflatesProportionally(t *testing.T) {
	backend := &fakeBackend{matches: make([]rag.Match, 20)}
	for i := range backend.matches {
		backend.matches[i] = scored("x", 1, "doc")
	}
	_, err := rag.SimilaritySearch(context.Background(), backend, "q", 5, rag.Options{
		Strategy: rag.ExpectedPassRate(0.25),
	})
	require.NoError(t, err)
	assert.Equal(t, 21, backend.lastTopK)
}
