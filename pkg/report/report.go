// Package report scores retrieval results against gold labels and
// aggregates per-query evaluations into the run's summary artifacts.
//
// Macro averages weight each conversation equally (mean of
// per-conversation means); micro averages weight each query equally
// (mean over all pooled queries). Queries whose gold set is empty are
// undefined and excluded from both, never silently scored zero.
package report

import (
	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/metrics"
	"github.com/papercomputeco/membench/pkg/retrieval"
)

// DefaultCutoffs are the stock evaluation cutoffs.
var DefaultCutoffs = []int{3, 5, 10}

// QueryEvaluation scores one retrieval result against its gold units at
// every cutoff.
type QueryEvaluation struct {
	QuestionID     string `json:"question_id"`
	ConversationID string `json:"conv_id"`
	Category       string `json:"category,omitempty"`

	// GoldUnitIDs are the resolved relevant unit ids.
	GoldUnitIDs []string `json:"gold_unit_ids"`

	// Defined is false when the gold set is empty; undefined queries
	// are excluded from averages.
	Defined bool `json:"defined"`

	// Scores holds the ranking metrics keyed by cutoff.
	Scores map[int]metrics.RankingScore `json:"scores"`
}

// CutoffAverages is one averaged ranking score set at one cutoff.
type CutoffAverages struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	NDCG      float64 `json:"ndcg"`
}

// RankingSummary holds macro and micro averages per cutoff.
type RankingSummary struct {
	Macro map[int]CutoffAverages `json:"macro_avgs"`
	Micro map[int]CutoffAverages `json:"micro_avgs"`
}

// EvaluateQuery scores one retrieval result against its resolved gold
// unit ids at each cutoff.
func EvaluateQuery(result retrieval.Result, goldUnitIDs []string, cutoffs []int) QueryEvaluation {
	retrieved := make([]string, 0, len(result.Chunks))
	for _, c := range result.Chunks {
		retrieved = append(retrieved, c.UnitID)
	}

	eval := QueryEvaluation{
		QuestionID:     result.QuestionID,
		ConversationID: result.ConversationID,
		Category:       result.Category,
		GoldUnitIDs:    goldUnitIDs,
		Scores:         make(map[int]metrics.RankingScore, len(cutoffs)),
	}

	for _, k := range cutoffs {
		score := metrics.RankingAtK(retrieved, goldUnitIDs, k)
		eval.Scores[k] = score
		eval.Defined = score.Defined
	}

	return eval
}

// Evaluator scores retrieval results, resolving each query's evidence
// keys into gold unit ids first.
type Evaluator struct {
	resolver GoldResolver
	cutoffs  []int
	logger   *zap.Logger
}

// EvaluatorConfig is the configuration options for the evaluator.
type EvaluatorConfig struct {
	// Resolver maps evidence keys to stored unit ids. Nil treats
	// evidence keys as unit ids directly.
	Resolver GoldResolver

	// Cutoffs are the evaluation ks (defaults to 3, 5, 10).
	Cutoffs []int

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(c *EvaluatorConfig) *Evaluator {
	cutoffs := c.Cutoffs
	if len(cutoffs) == 0 {
		cutoffs = append([]int(nil), DefaultCutoffs...)
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Evaluator{
		resolver: c.Resolver,
		cutoffs:  cutoffs,
		logger:   logger,
	}
}

// Cutoffs returns the evaluator's cutoff set.
func (e *Evaluator) Cutoffs() []int {
	return append([]int(nil), e.cutoffs...)
}

// Evaluate scores every successful retrieval result. The second return
// value counts results excluded for carrying a retrieval error.
func (e *Evaluator) Evaluate(results []retrieval.Result) ([]QueryEvaluation, int) {
	evals := make([]QueryEvaluation, 0, len(results))
	failed := 0

	for _, result := range results {
		if result.Error != "" {
			failed++
			continue
		}

		evals = append(evals, EvaluateQuery(result, e.gold(result), e.cutoffs))
	}

	return evals, failed
}

// gold resolves a result's evidence keys into gold unit ids.
func (e *Evaluator) gold(result retrieval.Result) []string {
	if e.resolver == nil {
		return dedupe(result.Evidences)
	}

	ids, err := e.resolver.Resolve(result.ConversationID, result.Evidences)
	if err != nil {
		e.logger.Warn("gold resolution failed, using evidence keys verbatim",
			zap.String("conversation", result.ConversationID),
			zap.Error(err),
		)
		return dedupe(result.Evidences)
	}

	return ids
}

// Aggregate computes macro and micro averages over the defined queries.
func Aggregate(evals []QueryEvaluation, cutoffs []int) RankingSummary {
	var defined []QueryEvaluation
	for _, e := range evals {
		if e.Defined {
			defined = append(defined, e)
		}
	}

	byConv := make(map[string][]QueryEvaluation)
	var convOrder []string
	for _, e := range defined {
		if _, ok := byConv[e.ConversationID]; !ok {
			convOrder = append(convOrder, e.ConversationID)
		}
		byConv[e.ConversationID] = append(byConv[e.ConversationID], e)
	}

	summary := RankingSummary{
		Macro: make(map[int]CutoffAverages, len(cutoffs)),
		Micro: make(map[int]CutoffAverages, len(cutoffs)),
	}

	for _, k := range cutoffs {
		summary.Micro[k] = meanAtK(defined, k)

		convMeans := make([]CutoffAverages, 0, len(convOrder))
		for _, id := range convOrder {
			convMeans = append(convMeans, meanAtK(byConv[id], k))
		}
		summary.Macro[k] = meanOf(convMeans)
	}

	return summary
}

// AggregateByCategory computes per-category summaries over queries that
// carry a category label.
func AggregateByCategory(evals []QueryEvaluation, cutoffs []int) map[string]RankingSummary {
	byCategory := make(map[string][]QueryEvaluation)
	for _, e := range evals {
		if e.Category == "" {
			continue
		}
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	if len(byCategory) == 0 {
		return nil
	}

	out := make(map[string]RankingSummary, len(byCategory))
	for category, catEvals := range byCategory {
		out[category] = Aggregate(catEvals, cutoffs)
	}

	return out
}

// meanAtK averages the cutoff scores of the given defined queries.
func meanAtK(evals []QueryEvaluation, k int) CutoffAverages {
	if len(evals) == 0 {
		return CutoffAverages{}
	}

	var sum CutoffAverages
	for _, e := range evals {
		score := e.Scores[k]
		sum.Precision += score.Precision
		sum.Recall += score.Recall
		sum.F1 += score.F1
		sum.NDCG += score.NDCG
	}

	n := float64(len(evals))
	return CutoffAverages{
		Precision: sum.Precision / n,
		Recall:    sum.Recall / n,
		F1:        sum.F1 / n,
		NDCG:      sum.NDCG / n,
	}
}

// meanOf averages already-averaged score sets, weighting each equally.
func meanOf(list []CutoffAverages) CutoffAverages {
	if len(list) == 0 {
		return CutoffAverages{}
	}

	var sum CutoffAverages
	for _, a := range list {
		sum.Precision += a.Precision
		sum.Recall += a.Recall
		sum.F1 += a.F1
		sum.NDCG += a.NDCG
	}

	n := float64(len(list))
	return CutoffAverages{
		Precision: sum.Precision / n,
		Recall:    sum.Recall / n,
		F1:        sum.F1 / n,
		NDCG:      sum.NDCG / n,
	}
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
