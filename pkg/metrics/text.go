package metrics

import (
	"math"
	"strings"
)

// TextScore holds the text-quality metrics for one generated answer
// against its reference.
type TextScore struct {
	F1     float64 `json:"f1"`
	BLEU1  float64 `json:"bleu_1"`
	ROUGE1 float64 `json:"rouge_1"`
	ROUGE2 float64 `json:"rouge_2"`
	ROUGEL float64 `json:"rouge_l"`

	// Cosine is the embedding similarity, present only when an embedder
	// scored the pair.
	Cosine float64 `json:"cosine,omitempty"`
}

// TokenF1 computes token-level F1 between a prediction and a reference
// over normalized tokens. Two empty texts score 1, one empty text scores 0.
func TokenF1(prediction, reference string) float64 {
	pred := NormalizeTokens(prediction)
	ref := NormalizeTokens(reference)
	if len(pred) == 0 || len(ref) == 0 {
		if len(pred) == 0 && len(ref) == 0 {
			return 1
		}
		return 0
	}
	common := overlapCount(pred, ref)
	precision := float64(common) / float64(len(pred))
	recall := float64(common) / float64(len(ref))
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// BLEU1 computes unigram BLEU with a brevity penalty for predictions
// shorter than the reference.
func BLEU1(prediction, reference string) float64 {
	pred := NormalizeTokens(prediction)
	ref := NormalizeTokens(reference)
	if len(pred) == 0 {
		if len(ref) == 0 {
			return 1
		}
		return 0
	}
	matches := overlapCount(pred, ref)
	precision := float64(matches) / float64(len(pred))
	if len(pred) >= len(ref) {
		return precision
	}
	penalty := math.Exp(1 - float64(len(ref))/float64(len(pred)))
	return penalty * precision
}

// ROUGE1 computes unigram ROUGE F1.
func ROUGE1(prediction, reference string) float64 {
	return rougeN(NormalizeTokens(prediction), NormalizeTokens(reference), 1)
}

// ROUGE2 computes bigram ROUGE F1.
func ROUGE2(prediction, reference string) float64 {
	return rougeN(NormalizeTokens(prediction), NormalizeTokens(reference), 2)
}

// ROUGEL computes ROUGE F1 over the longest common subsequence of tokens.
func ROUGEL(prediction, reference string) float64 {
	pred := NormalizeTokens(prediction)
	ref := NormalizeTokens(reference)
	if len(pred) == 0 || len(ref) == 0 {
		if len(pred) == 0 && len(ref) == 0 {
			return 1
		}
		return 0
	}
	lcs := lcsLength(pred, ref)
	precision := float64(lcs) / float64(len(pred))
	recall := float64(lcs) / float64(len(ref))
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// ScoreText computes every lexical metric for one prediction/reference pair.
// Cosine is left zero; callers with embeddings set it separately.
func ScoreText(prediction, reference string) TextScore {
	return TextScore{
		F1:     TokenF1(prediction, reference),
		BLEU1:  BLEU1(prediction, reference),
		ROUGE1: ROUGE1(prediction, reference),
		ROUGE2: ROUGE2(prediction, reference),
		ROUGEL: ROUGEL(prediction, reference),
	}
}

// Cosine computes cosine similarity between two embedding vectors. A zero
// vector or mismatched lengths score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// overlapCount counts prediction tokens matched against reference tokens,
// clipping each reference token to its occurrence count.
func overlapCount(pred, ref []string) int {
	counts := make(map[string]int, len(ref))
	for _, t := range ref {
		counts[t]++
	}
	common := 0
	for _, t := range pred {
		if counts[t] > 0 {
			common++
			counts[t]--
		}
	}
	return common
}

func rougeN(pred, ref []string, n int) float64 {
	if len(pred) < n || len(ref) < n {
		if len(pred) == 0 && len(ref) == 0 {
			return 1
		}
		return 0
	}
	predGrams := ngramCounts(pred, n)
	refGrams := ngramCounts(ref, n)
	matches := 0
	for gram, count := range predGrams {
		if refCount, ok := refGrams[gram]; ok {
			matches += min(count, refCount)
		}
	}
	totalPred := len(pred) - n + 1
	totalRef := len(ref) - n + 1
	precision := float64(matches) / float64(totalPred)
	recall := float64(matches) / float64(totalRef)
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

func ngramCounts(tokens []string, n int) map[string]int {
	grams := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		grams[strings.Join(tokens[i:i+n], " ")]++
	}
	return grams
}

// lcsLength computes the longest common subsequence length with two rows
// of DP state.
func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(curr[j-1], prev[j])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
