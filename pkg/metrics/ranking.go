// Package metrics implements the ranking and text scoring used to
// evaluate memory retrieval and answer generation.
package metrics

import "math"

// RankingScore holds the ranking metrics for a single query at one cutoff.
type RankingScore struct {
	// Precision is the fraction of the cutoff occupied by relevant results.
	Precision float64 `json:"precision"`

	// Recall is the fraction of the gold set found within the cutoff.
	Recall float64 `json:"recall"`

	// F1 is the harmonic mean of precision and recall.
	F1 float64 `json:"f1"`

	// NDCG is the rank-discounted gain normalized against the ideal ordering.
	NDCG float64 `json:"ndcg"`

	// Defined is false when the gold set is empty. Recall and nDCG have no
	// denominator in that case, so the query must be excluded from averages
	// rather than scored zero.
	Defined bool `json:"defined"`
}

// PrecisionAtK computes |top-k ∩ gold| / k.
func PrecisionAtK(retrieved, gold []string, k int) float64 {
	if k <= 0 {
		return 0
	}
	return float64(hitsAtK(retrieved, gold, k)) / float64(k)
}

// RecallAtK computes |top-k ∩ gold| / |gold|. The second return value is
// false when the gold set is empty and the metric is undefined.
func RecallAtK(retrieved, gold []string, k int) (float64, bool) {
	goldSet := uniqueSet(gold)
	if len(goldSet) == 0 {
		return 0, false
	}
	if k <= 0 {
		return 0, true
	}
	return float64(hitsAtK(retrieved, gold, k)) / float64(len(goldSet)), true
}

// F1AtK computes the harmonic mean of precision@k and recall@k, zero when
// both are zero. Undefined whenever recall is undefined.
func F1AtK(retrieved, gold []string, k int) (float64, bool) {
	recall, defined := RecallAtK(retrieved, gold, k)
	if !defined {
		return 0, false
	}
	precision := PrecisionAtK(retrieved, gold, k)
	if precision+recall == 0 {
		return 0, true
	}
	return 2 * precision * recall / (precision + recall), true
}

// NDCGAtK computes normalized discounted cumulative gain with binary
// relevance, discounting each rank r by log2(r+1). The ideal DCG places one
// relevant result at each of the first min(|gold|, k) ranks. Undefined when
// the gold set is empty.
func NDCGAtK(retrieved, gold []string, k int) (float64, bool) {
	goldSet := uniqueSet(gold)
	if len(goldSet) == 0 {
		return 0, false
	}
	if k <= 0 {
		return 0, true
	}
	topK := retrieved
	if len(topK) > k {
		topK = topK[:k]
	}
	var dcg float64
	seen := make(map[string]struct{}, len(topK))
	for rank, id := range topK {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := goldSet[id]; ok {
			dcg += 1 / math.Log2(float64(rank)+2)
		}
	}
	ideal := len(goldSet)
	if ideal > k {
		ideal = k
	}
	var idcg float64
	for rank := 0; rank < ideal; rank++ {
		idcg += 1 / math.Log2(float64(rank)+2)
	}
	return dcg / idcg, true
}

// RankingAtK computes all four ranking metrics for one query at one cutoff.
func RankingAtK(retrieved, gold []string, k int) RankingScore {
	recall, defined := RecallAtK(retrieved, gold, k)
	if !defined {
		return RankingScore{}
	}
	f1, _ := F1AtK(retrieved, gold, k)
	ndcg, _ := NDCGAtK(retrieved, gold, k)
	return RankingScore{
		Precision: PrecisionAtK(retrieved, gold, k),
		Recall:    recall,
		F1:        f1,
		NDCG:      ndcg,
		Defined:   true,
	}
}

// hitsAtK counts distinct retrieved ids within the cutoff that appear in
// the gold set.
func hitsAtK(retrieved, gold []string, k int) int {
	goldSet := uniqueSet(gold)
	topK := retrieved
	if len(topK) > k {
		topK = topK[:k]
	}
	seen := make(map[string]struct{}, len(topK))
	hits := 0
	for _, id := range topK {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := goldSet[id]; ok {
			hits++
		}
	}
	return hits
}

func uniqueSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
