package report_test

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/membench/pkg/generate"
	"github.com/papercomputeco/membench/pkg/memory/amem"
	"github.com/papercomputeco/membench/pkg/metrics"
	"github.com/papercomputeco/membench/pkg/report"
	"github.com/papercomputeco/membench/pkg/retrieval"
)

func TestReport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Report Suite")
}

// rankedResult builds a successful retrieval result whose chunks carry
// the given unit ids in rank order.
func rankedResult(questionID, conversationID string, unitIDs ...string) retrieval.Result {
	chunks := make([]retrieval.Chunk, 0, len(unitIDs))
	for i, id := range unitIDs {
		chunks = append(chunks, retrieval.Chunk{
			Rank:   i + 1,
			UnitID: id,
			Score:  1.0 - float64(i)*0.1,
		})
	}

	return retrieval.Result{
		QuestionID:     questionID,
		ConversationID: conversationID,
		Chunks:         chunks,
	}
}

// flatEval builds an evaluation whose every metric scores the same value
// at cutoff 3.
func flatEval(questionID, conversationID, category string, value float64) report.QueryEvaluation {
	return report.QueryEvaluation{
		QuestionID:     questionID,
		ConversationID: conversationID,
		Category:       category,
		GoldUnitIDs:    []string{"unit_00000"},
		Defined:        true,
		Scores: map[int]metrics.RankingScore{
			3: {Precision: value, Recall: value, F1: value, NDCG: value, Defined: true},
		},
	}
}

type staticResolver map[string]string

func (r staticResolver) Resolve(conversationID string, evidences []string) ([]string, error) {
	ids := make([]string, 0, len(evidences))
	for _, key := range evidences {
		if id, ok := r[key]; ok {
			ids = append(ids, id)
			continue
		}
		ids = append(ids, key)
	}
	return ids, nil
}

type failingResolver struct{}

func (failingResolver) Resolve(string, []string) ([]string, error) {
	return nil, errors.New("sidecar missing")
}

var _ = Describe("EvaluateQuery", func() {
	It("scores retrieved chunks in rank order at each cutoff", func() {
		result := rankedResult("q1", "conv-1",
			"unit_00000", "unit_00001", "unit_00002", "unit_00003", "unit_00004")
		gold := []string{"unit_00000", "unit_00003"}

		eval := report.EvaluateQuery(result, gold, []int{3, 5})

		Expect(eval.QuestionID).To(Equal("q1"))
		Expect(eval.ConversationID).To(Equal("conv-1"))
		Expect(eval.GoldUnitIDs).To(Equal(gold))
		Expect(eval.Defined).To(BeTrue())

		idcg := 1/math.Log2(2) + 1/math.Log2(3)

		at3 := eval.Scores[3]
		Expect(at3.Precision).To(BeNumerically("~", 1.0/3.0, 1e-9))
		Expect(at3.Recall).To(BeNumerically("~", 0.5, 1e-9))
		Expect(at3.F1).To(BeNumerically("~", 0.4, 1e-9))
		Expect(at3.NDCG).To(BeNumerically("~", (1/math.Log2(2))/idcg, 1e-9))

		at5 := eval.Scores[5]
		Expect(at5.Precision).To(BeNumerically("~", 0.4, 1e-9))
		Expect(at5.Recall).To(BeNumerically("~", 1.0, 1e-9))
		Expect(at5.NDCG).To(BeNumerically("~", (1/math.Log2(2)+1/math.Log2(5))/idcg, 1e-9))
	})

	It("marks queries with an empty gold set undefined", func() {
		result := rankedResult("q1", "conv-1", "unit_00000")

		eval := report.EvaluateQuery(result, nil, []int{3})

		Expect(eval.Defined).To(BeFalse())
		Expect(eval.Scores[3].Defined).To(BeFalse())
		Expect(eval.Scores[3].Recall).To(BeZero())
	})
})

var _ = Describe("Evaluator", func() {
	It("defaults to cutoffs 3, 5, 10", func() {
		ev := report.NewEvaluator(&report.EvaluatorConfig{})

		Expect(ev.Cutoffs()).To(Equal([]int{3, 5, 10}))
	})

	It("returns a copy of its cutoffs", func() {
		ev := report.NewEvaluator(&report.EvaluatorConfig{Cutoffs: []int{5}})

		got := ev.Cutoffs()
		got[0] = 99
		Expect(ev.Cutoffs()).To(Equal([]int{5}))
	})

	It("treats evidence keys as unit ids when no resolver is set", func() {
		ev := report.NewEvaluator(&report.EvaluatorConfig{Cutoffs: []int{3}})
		result := rankedResult("q1", "conv-1", "s1:0")
		result.Evidences = []string{"s1:0", "s1:0", "s1:2"}

		evals, failed := ev.Evaluate([]retrieval.Result{result})

		Expect(failed).To(BeZero())
		Expect(evals).To(HaveLen(1))
		Expect(evals[0].GoldUnitIDs).To(Equal([]string{"s1:0", "s1:2"}))
		Expect(evals[0].Scores[3].Recall).To(BeNumerically("~", 0.5, 1e-9))
	})

	It("resolves evidence keys through the resolver", func() {
		ev := report.NewEvaluator(&report.EvaluatorConfig{
			Resolver: staticResolver{"s1:0": "unit_00000"},
			Cutoffs:  []int{3},
		})
		result := rankedResult("q1", "conv-1", "unit_00000")
		result.Evidences = []string{"s1:0"}

		evals, _ := ev.Evaluate([]retrieval.Result{result})

		Expect(evals[0].GoldUnitIDs).To(Equal([]string{"unit_00000"}))
		Expect(evals[0].Scores[3].Recall).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("falls back to verbatim evidence keys when resolution fails", func() {
		ev := report.NewEvaluator(&report.EvaluatorConfig{
			Resolver: failingResolver{},
			Cutoffs:  []int{3},
		})
		result := rankedResult("q1", "conv-1", "unit_00000")
		result.Evidences = []string{"s1:0"}

		evals, failed := ev.Evaluate([]retrieval.Result{result})

		Expect(failed).To(BeZero())
		Expect(evals).To(HaveLen(1))
		Expect(evals[0].GoldUnitIDs).To(Equal([]string{"s1:0"}))
	})

	It("excludes errored results and counts them", func() {
		ev := report.NewEvaluator(&report.EvaluatorConfig{Cutoffs: []int{3}})
		good := rankedResult("q1", "conv-1", "unit_00000")
		good.Evidences = []string{"unit_00000"}
		bad := retrieval.Result{QuestionID: "q2", ConversationID: "conv-1", Error: "memory backend unavailable"}

		evals, failed := ev.Evaluate([]retrieval.Result{good, bad})

		Expect(evals).To(HaveLen(1))
		Expect(failed).To(Equal(1))
		Expect(evals[0].QuestionID).To(Equal("q1"))
	})
})

var _ = Describe("Aggregate", func() {
	It("weights conversations equally in macro and queries equally in micro", func() {
		// Three conversations, five queries. Only conv-a's single
		// query scores; conv-b contributes three zeros and conv-c one.
		evals := []report.QueryEvaluation{
			flatEval("q1", "conv-a", "", 1.0),
			flatEval("q2", "conv-b", "", 0.0),
			flatEval("q3", "conv-b", "", 0.0),
			flatEval("q4", "conv-b", "", 0.0),
			flatEval("q5", "conv-c", "", 0.0),
		}

		summary := report.Aggregate(evals, []int{3})

		Expect(summary.Macro[3].F1).To(BeNumerically("~", 1.0/3.0, 1e-9))
		Expect(summary.Macro[3].NDCG).To(BeNumerically("~", 1.0/3.0, 1e-9))
		Expect(summary.Micro[3].F1).To(BeNumerically("~", 1.0/5.0, 1e-9))
		Expect(summary.Micro[3].NDCG).To(BeNumerically("~", 1.0/5.0, 1e-9))
	})

	It("matches macro and micro when every conversation has one query", func() {
		evals := []report.QueryEvaluation{
			flatEval("q1", "conv-a", "", 1.0),
			flatEval("q2", "conv-b", "", 0.0),
		}

		summary := report.Aggregate(evals, []int{3})

		Expect(summary.Macro[3].F1).To(BeNumerically("~", 0.5, 1e-9))
		Expect(summary.Micro[3].F1).To(BeNumerically("~", 0.5, 1e-9))
	})

	It("excludes undefined queries from both averages", func() {
		undefinedEval := report.QueryEvaluation{
			QuestionID:     "q3",
			ConversationID: "conv-a",
			Scores:         map[int]metrics.RankingScore{3: {}},
		}
		evals := []report.QueryEvaluation{
			flatEval("q1", "conv-a", "", 1.0),
			flatEval("q2", "conv-a", "", 0.0),
			undefinedEval,
		}

		summary := report.Aggregate(evals, []int{3})

		Expect(summary.Micro[3].F1).To(BeNumerically("~", 0.5, 1e-9))
		Expect(summary.Macro[3].F1).To(BeNumerically("~", 0.5, 1e-9))
	})

	It("returns zero averages when no query is defined", func() {
		summary := report.Aggregate(nil, []int{3})

		Expect(summary.Macro[3]).To(Equal(report.CutoffAverages{}))
		Expect(summary.Micro[3]).To(Equal(report.CutoffAverages{}))
	})
})

var _ = Describe("AggregateByCategory", func() {
	It("aggregates each labeled category independently", func() {
		evals := []report.QueryEvaluation{
			flatEval("q1", "conv-a", "1", 1.0),
			flatEval("q2", "conv-a", "1", 0.0),
			flatEval("q3", "conv-b", "2", 1.0),
			flatEval("q4", "conv-b", "", 0.0),
		}

		byCategory := report.AggregateByCategory(evals, []int{3})

		Expect(byCategory).To(HaveLen(2))
		Expect(byCategory["1"].Micro[3].F1).To(BeNumerically("~", 0.5, 1e-9))
		Expect(byCategory["2"].Micro[3].F1).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("returns nil when no query carries a category", func() {
		evals := []report.QueryEvaluation{flatEval("q1", "conv-a", "", 1.0)}

		Expect(report.AggregateByCategory(evals, []int{3})).To(BeNil())
	})
})

var _ = Describe("SidecarResolver", func() {
	var indexDir string

	writeSidecar := func(conversationID string, records []amem.UnitRecord) {
		dir := filepath.Join(indexDir, conversationID)
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())

		data, err := json.Marshal(records)
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(filepath.Join(dir, "units.json"), data, 0o644)).To(Succeed())
	}

	BeforeEach(func() {
		indexDir = GinkgoT().TempDir()
		writeSidecar("conv-1", []amem.UnitRecord{
			{ID: "unit_00000", SessionID: "s1", UserIndex: 0, ReplyIndex: 1},
			{ID: "unit_00001", SessionID: "s1", UserIndex: 2, ReplyIndex: -1},
		})
	})

	It("maps user and reply message positions to the covering unit", func() {
		resolver := report.NewSidecarResolver(indexDir)

		ids, err := resolver.Resolve("conv-1", []string{"s1:0", "s1:1", "s1:2"})

		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"unit_00000", "unit_00001"}))
	})

	It("keeps unresolvable evidence keys verbatim", func() {
		resolver := report.NewSidecarResolver(indexDir)

		ids, err := resolver.Resolve("conv-1", []string{"s1:0", "s9:7"})

		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"unit_00000", "s9:7"}))
	})

	It("errors when the conversation has no units sidecar", func() {
		resolver := report.NewSidecarResolver(indexDir)

		_, err := resolver.Resolve("conv-missing", []string{"s1:0"})

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("units sidecar"))
	})
})

var _ = Describe("BuildRetrievalEval", func() {
	It("counts conversations, queries, and defined queries", func() {
		evals := []report.QueryEvaluation{
			flatEval("q1", "conv-a", "1", 1.0),
			flatEval("q2", "conv-a", "1", 0.0),
			{QuestionID: "q3", ConversationID: "conv-b", Scores: map[int]metrics.RankingScore{3: {}}},
		}

		artifact := report.BuildRetrievalEval("20250615_134501", evals, []int{3}, 2)

		Expect(artifact.SchemaVersion).To(Equal(report.SchemaVersion))
		Expect(artifact.RunID).To(Equal("20250615_134501"))
		Expect(artifact.Cutoffs).To(Equal([]int{3}))
		Expect(artifact.Conversations).To(Equal(2))
		Expect(artifact.TotalQueries).To(Equal(3))
		Expect(artifact.DefinedQueries).To(Equal(2))
		Expect(artifact.FailedQueries).To(Equal(2))
		Expect(artifact.PerQuery).To(HaveLen(3))
		Expect(artifact.Macro[3].F1).To(BeNumerically("~", 0.5, 1e-9))
		Expect(artifact.Categories).To(HaveKey("1"))
	})

	It("marshals the summary under macro_avgs and micro_avgs", func() {
		artifact := report.BuildRetrievalEval("20250615_134501",
			[]report.QueryEvaluation{flatEval("q1", "conv-a", "1", 1.0)}, []int{3}, 0)

		data, err := json.Marshal(artifact)
		Expect(err).NotTo(HaveOccurred())

		var keys map[string]json.RawMessage
		Expect(json.Unmarshal(data, &keys)).To(Succeed())
		Expect(keys).To(HaveKey("macro_avgs"))
		Expect(keys).To(HaveKey("micro_avgs"))
		Expect(keys).To(HaveKey("category_avgs"))
		Expect(keys).To(HaveKey("per_query"))
		Expect(keys).To(HaveKey("schema_version"))
	})

	It("produces an empty but valid artifact from no evaluations", func() {
		artifact := report.BuildRetrievalEval("20250615_134501", nil, []int{3}, 0)

		Expect(artifact.Conversations).To(BeZero())
		Expect(artifact.PerQuery).NotTo(BeNil())
		Expect(artifact.PerQuery).To(BeEmpty())
	})
})

var _ = Describe("AggregateText", func() {
	It("averages scores over successfully generated answers", func() {
		answers := []generate.Answer{
			{QuestionID: "q1", Score: metrics.TextScore{F1: 1.0, ROUGE1: 1.0, Cosine: 0.8}},
			{QuestionID: "q2", Score: metrics.TextScore{F1: 0.5, ROUGE1: 0.5, Cosine: 0.4}},
			{QuestionID: "q3", Error: "model overloaded", Score: metrics.TextScore{F1: 1.0}},
		}

		avgs := report.AggregateText(answers)

		Expect(avgs.Count).To(Equal(2))
		Expect(avgs.F1).To(BeNumerically("~", 0.75, 1e-9))
		Expect(avgs.ROUGE1).To(BeNumerically("~", 0.75, 1e-9))
		Expect(avgs.Cosine).To(BeNumerically("~", 0.6, 1e-9))
	})

	It("returns the zero value when no answer succeeded", func() {
		answers := []generate.Answer{{QuestionID: "q1", Error: "model overloaded"}}

		Expect(report.AggregateText(answers)).To(Equal(report.TextAverages{}))
	})
})

var _ = Describe("BuildGenerationEval", func() {
	It("aggregates overall and per-category averages", func() {
		answers := []generate.Answer{
			{QuestionID: "q1", Category: "1", Score: metrics.TextScore{F1: 1.0}},
			{QuestionID: "q2", Category: "4", Score: metrics.TextScore{F1: 0.5}},
		}

		artifact := report.BuildGenerationEval("20250615_134501", answers)

		Expect(artifact.SchemaVersion).To(Equal(report.SchemaVersion))
		Expect(artifact.Overall.Count).To(Equal(2))
		Expect(artifact.Overall.F1).To(BeNumerically("~", 0.75, 1e-9))
		Expect(artifact.Categories).To(HaveLen(2))
		Expect(artifact.Categories["1"].F1).To(BeNumerically("~", 1.0, 1e-9))

		data, err := json.Marshal(artifact)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"overall"`))
		Expect(string(data)).To(ContainSubstring(`"by_category"`))
	})
})

var _ = Describe("Artifact paths", func() {
	It("names artifacts by kind and run id", func() {
		Expect(report.RetrievalResultsPath("results", "20250615_134501")).
			To(Equal(filepath.Join("results", "retrieval_results_20250615_134501.json")))
		Expect(report.RetrievalEvalPath("results", "20250615_134501")).
			To(Equal(filepath.Join("results", "retrieval_eval_20250615_134501.json")))
		Expect(report.GenerationEvalPath("results", "20250615_134501")).
			To(Equal(filepath.Join("results", "generation_eval_20250615_134501.json")))
		Expect(report.PipelineManifestPath("results", "20250615_134501")).
			To(Equal(filepath.Join("results", "pipeline_manifest_20250615_134501.json")))
	})
})

var _ = Describe("WriteJSON", func() {
	It("round-trips an artifact through disk", func() {
		dir := GinkgoT().TempDir()
		path := report.RetrievalEvalPath(dir, "20250615_134501")
		artifact := report.BuildRetrievalEval("20250615_134501",
			[]report.QueryEvaluation{flatEval("q1", "conv-a", "1", 1.0)}, []int{3}, 0)

		Expect(report.WriteJSON(path, artifact)).To(Succeed())

		var loaded report.RetrievalEval
		Expect(report.ReadJSON(path, &loaded)).To(Succeed())
		Expect(loaded.RunID).To(Equal("20250615_134501"))
		Expect(loaded.TotalQueries).To(Equal(1))
		Expect(loaded.Macro[3].F1).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("creates missing parent directories", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "nested", "results", "artifact.json")

		Expect(report.WriteJSON(path, map[string]int{"answer": 42})).To(Succeed())

		var loaded map[string]int
		Expect(report.ReadJSON(path, &loaded)).To(Succeed())
		Expect(loaded).To(HaveKeyWithValue("answer", 42))
	})

	It("leaves no temp files behind", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "artifact.json")

		Expect(report.WriteJSON(path, map[string]string{"k": "v"})).To(Succeed())

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(strings.HasPrefix(entries[0].Name(), ".tmp-")).To(BeFalse())
	})

	It("errors when reading a missing artifact", func() {
		err := report.ReadJSON(filepath.Join(GinkgoT().TempDir(), "absent.json"), &struct{}{})

		Expect(err).To(HaveOccurred())
	})
})
