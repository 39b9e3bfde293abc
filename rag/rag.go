// Package rag implements the core's post-filtering helper for the "RAG /
// vector store surface" of §6: a backend-agnostic similaritySearch that
// inflates topK when the backend can't natively filter by metadata or
// entity, filters in memory, then truncates back to the caller's original
// topK. The vector store backend itself is out of scope (§1 "Out of
// scope": "vector search back-ends") and is taken as a caller-supplied
// Backend; this package owns only the inflate-filter-truncate algorithm §6
// specifies.
package rag

import (
	"context"
	"fmt"
	"sort"
)

// Match is one ranked hit a Backend returns.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
	Entity   string
	Content  string
}

// Backend performs the underlying vector similarity search without any
// metadata/entity filtering of its own; SimilaritySearch supplies that
// filtering in memory when Backend can't.
type Backend interface {
	Search(ctx context.Context, query string, topK int) ([]Match, error)
}

// InflationStrategy computes an inflated topK to request from Backend so
// that, after in-memory filtering, at least the caller's original topK
// matches are likely to survive (§6: "multiplier / offset / expected-pass-
// rate, each bounded by maxTopK").
type InflationStrategy func(topK int) int

// Multiplier inflates topK by a constant factor, requesting
// floor(topK*factor)+1, e.g. Multiplier(3) requests 3x the caller's topK
// plus one.
func Multiplier(factor float64) InflationStrategy {
	return func(topK int) int {
		if factor <= 1 {
			return topK
		}
		return int(float64(topK)*factor) + 1
	}
}

// Offset inflates topK by a constant additive amount.
func Offset(n int) InflationStrategy {
	return func(topK int) int {
		if n <= 0 {
			return topK
		}
		return topK + n
	}
}

// ExpectedPassRate inflates topK assuming only rate (in (0,1]) of raw
// matches will survive the in-memory filter, requesting floor(topK/rate)+1,
// e.g. ExpectedPassRate(0.25) requests 4x the caller's topK plus one.
func ExpectedPassRate(rate float64) InflationStrategy {
	return func(topK int) int {
		if rate <= 0 || rate >= 1 {
			return topK
		}
		return int(float64(topK)/rate) + 1
	}
}

// Filter reports whether a Match should survive the in-memory
// metadataFilter/entityFilter pass of §6. A nil Filter matches everything.
type Filter func(Match) bool

// MetadataEquals returns a Filter requiring m.Metadata[key] == value for
// every (key, value) pair in want.
func MetadataEquals(want map[string]any) Filter {
	return func(m Match) bool {
		for k, v := range want {
			got, ok := m.Metadata[k]
			if !ok || got != v {
				return false
			}
		}
		return true
	}
}

// EntityEquals returns a Filter requiring m.Entity to be one of entities.
func EntityEquals(entities ...string) Filter {
	set := make(map[string]bool, len(entities))
	for _, e := range entities {
		set[e] = true
	}
	return func(m Match) bool { return set[m.Entity] }
}

// And combines filters, requiring all to pass. A nil filter in the list is
// skipped.
func And(filters ...Filter) Filter {
	return func(m Match) bool {
		for _, f := range filters {
			if f != nil && !f(m) {
				return false
			}
		}
		return true
	}
}

// Options configures SimilaritySearch.
type Options struct {
	// SimilarityThreshold drops matches scoring below it before filtering.
	SimilarityThreshold float64
	// Filter applies metadataFilter/entityFilter in memory; nil matches
	// everything.
	Filter Filter
	// Strategy inflates topK before querying Backend; defaults to
	// Multiplier(2) when nil.
	Strategy InflationStrategy
	// MaxTopK bounds the inflated topK regardless of Strategy's output
	// (§6 "each bounded by maxTopK"). Zero means no bound.
	MaxTopK int
}

// SimilaritySearch implements §6's similaritySearch(query, topK,
// similarityThreshold, metadataFilter?, entityFilter?) → ranked list: it
// inflates topK via opts.Strategy (bounded by opts.MaxTopK), queries
// backend, drops matches below opts.SimilarityThreshold, applies
// opts.Filter, re-sorts by descending score, and truncates to the original
// topK.
func SimilaritySearch(ctx context.Context, backend Backend, query string, topK int, opts Options) ([]Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("rag: topK must be positive, got %d", topK)
	}

	strategy := opts.Strategy
	if strategy == nil {
		strategy = Multiplier(2)
	}
	inflated := strategy(topK)
	if inflated < topK {
		inflated = topK
	}
	if opts.MaxTopK > 0 && inflated > opts.MaxTopK {
		inflated = opts.MaxTopK
	}

	raw, err := backend.Search(ctx, query, inflated)
	if err != nil {
		return nil, fmt.Errorf("rag: backend search: %w", err)
	}

	out := make([]Match, 0, len(raw))
	for _, m := range raw {
		if m.Score < opts.SimilarityThreshold {
			continue
		}
		if opts.Filter != nil && !opts.Filter(m) {
			continue
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}
