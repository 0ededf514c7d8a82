package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/papercomputeco/membench/pkg/generate"
	"github.com/papercomputeco/membench/pkg/metrics"
	"github.com/papercomputeco/membench/pkg/retrieval"
)

// SchemaVersion is the current artifact schema.
const SchemaVersion = 1

// RetrievalResultsPath names the raw per-query results artifact.
func RetrievalResultsPath(resultsDir, runID string) string {
	return filepath.Join(resultsDir, "retrieval_results_"+runID+".json")
}

// RetrievalEvalPath names the ranking evaluation artifact.
func RetrievalEvalPath(resultsDir, runID string) string {
	return filepath.Join(resultsDir, "retrieval_eval_"+runID+".json")
}

// GenerationEvalPath names the generation evaluation artifact.
func GenerationEvalPath(resultsDir, runID string) string {
	return filepath.Join(resultsDir, "generation_eval_"+runID+".json")
}

// PipelineManifestPath names the finalized run manifest artifact.
func PipelineManifestPath(resultsDir, runID string) string {
	return filepath.Join(resultsDir, "pipeline_manifest_"+runID+".json")
}

// RetrievalResults is the raw results artifact.
type RetrievalResults struct {
	SchemaVersion int                `json:"schema_version"`
	RunID         string             `json:"run_id"`
	CreatedAt     time.Time          `json:"created_at"`
	TopN          int                `json:"top_n,omitempty"`
	Results       []retrieval.Result `json:"results"`
}

// NewRetrievalResults assembles the raw results artifact.
func NewRetrievalResults(runID string, topN int, results []retrieval.Result) *RetrievalResults {
	if results == nil {
		results = []retrieval.Result{}
	}

	return &RetrievalResults{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
		TopN:          topN,
		Results:       results,
	}
}

// RetrievalEval is the ranking evaluation artifact.
type RetrievalEval struct {
	SchemaVersion int       `json:"schema_version"`
	RunID         string    `json:"run_id"`
	CreatedAt     time.Time `json:"created_at"`
	Cutoffs       []int     `json:"cutoffs"`

	RankingSummary
	Categories map[string]RankingSummary `json:"category_avgs,omitempty"`

	Conversations int `json:"conversations"`
	TotalQueries  int `json:"total_queries"`

	// DefinedQueries counts queries with a non-empty gold set; only
	// those feed the averages.
	DefinedQueries int `json:"defined_queries"`

	// FailedQueries counts results excluded for retrieval errors.
	FailedQueries int `json:"failed_queries,omitempty"`

	PerQuery []QueryEvaluation `json:"per_query"`
}

// BuildRetrievalEval assembles the ranking evaluation artifact from
// per-query evaluations.
func BuildRetrievalEval(runID string, evals []QueryEvaluation, cutoffs []int, failedQueries int) *RetrievalEval {
	conversations := make(map[string]struct{})
	defined := 0
	for _, e := range evals {
		conversations[e.ConversationID] = struct{}{}
		if e.Defined {
			defined++
		}
	}

	if evals == nil {
		evals = []QueryEvaluation{}
	}

	return &RetrievalEval{
		SchemaVersion:  SchemaVersion,
		RunID:          runID,
		CreatedAt:      time.Now().UTC(),
		Cutoffs:        cutoffs,
		RankingSummary: Aggregate(evals, cutoffs),
		Categories:     AggregateByCategory(evals, cutoffs),
		Conversations:  len(conversations),
		TotalQueries:   len(evals),
		DefinedQueries: defined,
		FailedQueries:  failedQueries,
		PerQuery:       evals,
	}
}

// TextAverages is the mean text score over a set of scored answers.
type TextAverages struct {
	Count  int     `json:"count"`
	F1     float64 `json:"f1"`
	BLEU1  float64 `json:"bleu_1"`
	ROUGE1 float64 `json:"rouge_1"`
	ROUGE2 float64 `json:"rouge_2"`
	ROUGEL float64 `json:"rouge_l"`
	Cosine float64 `json:"cosine,omitempty"`
}

// GenerationEval is the generation evaluation artifact.
type GenerationEval struct {
	SchemaVersion int       `json:"schema_version"`
	RunID         string    `json:"run_id"`
	CreatedAt     time.Time `json:"created_at"`

	Overall    TextAverages            `json:"overall"`
	Categories map[string]TextAverages `json:"by_category,omitempty"`

	Answers []generate.Answer `json:"answers"`
}

// BuildGenerationEval assembles the generation evaluation artifact.
func BuildGenerationEval(runID string, answers []generate.Answer) *GenerationEval {
	if answers == nil {
		answers = []generate.Answer{}
	}

	return &GenerationEval{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
		Overall:       AggregateText(answers),
		Categories:    AggregateTextByCategory(answers),
		Answers:       answers,
	}
}

// AggregateText averages text scores over successfully generated
// answers.
func AggregateText(answers []generate.Answer) TextAverages {
	var sum metrics.TextScore
	count := 0

	for _, a := range answers {
		if a.Error != "" {
			continue
		}
		sum.F1 += a.Score.F1
		sum.BLEU1 += a.Score.BLEU1
		sum.ROUGE1 += a.Score.ROUGE1
		sum.ROUGE2 += a.Score.ROUGE2
		sum.ROUGEL += a.Score.ROUGEL
		sum.Cosine += a.Score.Cosine
		count++
	}

	if count == 0 {
		return TextAverages{}
	}

	n := float64(count)
	return TextAverages{
		Count:  count,
		F1:     sum.F1 / n,
		BLEU1:  sum.BLEU1 / n,
		ROUGE1: sum.ROUGE1 / n,
		ROUGE2: sum.ROUGE2 / n,
		ROUGEL: sum.ROUGEL / n,
		Cosine: sum.Cosine / n,
	}
}

// AggregateTextByCategory averages text scores per category label.
func AggregateTextByCategory(answers []generate.Answer) map[string]TextAverages {
	byCategory := make(map[string][]generate.Answer)
	for _, a := range answers {
		if a.Category == "" {
			continue
		}
		byCategory[a.Category] = append(byCategory[a.Category], a)
	}

	if len(byCategory) == 0 {
		return nil
	}

	out := make(map[string]TextAverages, len(byCategory))
	for category, catAnswers := range byCategory {
		out[category] = AggregateText(catAnswers)
	}

	return out
}

// WriteJSON writes v as indented JSON at path through a same-directory
// temp file renamed into place, so readers never observe a partial
// artifact.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("setting artifact permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming artifact into place: %w", err)
	}

	return nil
}

// ReadJSON loads a JSON artifact into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading artifact: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing artifact: %w", err)
	}

	return nil
}
