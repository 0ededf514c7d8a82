package metrics_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/membench/pkg/metrics"
)

var _ = Describe("Ranking metrics", func() {
	retrieved := []string{"u1", "u2", "u3", "u4", "u5"}
	gold := []string{"u1", "u3", "u9"}

	Describe("PrecisionAtK", func() {
		It("divides hits by the cutoff", func() {
			Expect(metrics.PrecisionAtK(retrieved, gold, 3)).To(BeNumerically("~", 2.0/3.0, 1e-9))
		})

		It("still divides by k when fewer results were retrieved", func() {
			Expect(metrics.PrecisionAtK([]string{"u1"}, gold, 5)).To(BeNumerically("~", 0.2, 1e-9))
		})

		It("is zero for a non-positive cutoff", func() {
			Expect(metrics.PrecisionAtK(retrieved, gold, 0)).To(BeZero())
		})

		It("counts duplicated retrieved ids once", func() {
			Expect(metrics.PrecisionAtK([]string{"u1", "u1", "u1"}, gold, 3)).To(BeNumerically("~", 1.0/3.0, 1e-9))
		})
	})

	Describe("RecallAtK", func() {
		It("divides hits by the gold set size", func() {
			recall, defined := metrics.RecallAtK(retrieved, gold, 5)
			Expect(defined).To(BeTrue())
			Expect(recall).To(BeNumerically("~", 2.0/3.0, 1e-9))
		})

		It("is undefined for an empty gold set", func() {
			_, defined := metrics.RecallAtK(retrieved, nil, 5)
			Expect(defined).To(BeFalse())
		})

		It("is monotonically non-decreasing in k", func() {
			prev := 0.0
			for k := 1; k <= len(retrieved)+2; k++ {
				recall, defined := metrics.RecallAtK(retrieved, gold, k)
				Expect(defined).To(BeTrue())
				Expect(recall).To(BeNumerically(">=", prev))
				prev = recall
			}
		})

		It("reaches full recall when every gold id is retrieved", func() {
			recall, _ := metrics.RecallAtK([]string{"u9", "u3", "u1"}, gold, 3)
			Expect(recall).To(BeNumerically("~", 1.0, 1e-9))
		})
	})

	Describe("F1AtK", func() {
		It("is the harmonic mean of precision and recall", func() {
			// precision@3 = 2/3, recall@3 = 2/3.
			f1, defined := metrics.F1AtK(retrieved, gold, 3)
			Expect(defined).To(BeTrue())
			Expect(f1).To(BeNumerically("~", 2.0/3.0, 1e-9))
		})

		It("is zero when nothing relevant is retrieved", func() {
			f1, defined := metrics.F1AtK([]string{"x", "y"}, gold, 2)
			Expect(defined).To(BeTrue())
			Expect(f1).To(BeZero())
		})

		It("is undefined for an empty gold set", func() {
			_, defined := metrics.F1AtK(retrieved, nil, 3)
			Expect(defined).To(BeFalse())
		})
	})

	Describe("NDCGAtK", func() {
		It("equals one when the top-k matches the gold set in any order", func() {
			ndcg, defined := metrics.NDCGAtK([]string{"u9", "u1", "u3"}, gold, 3)
			Expect(defined).To(BeTrue())
			Expect(ndcg).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("discounts relevant results at lower ranks", func() {
			// Single gold id at rank 2: DCG = 1/log2(3), IDCG = 1.
			ndcg, defined := metrics.NDCGAtK([]string{"x", "a"}, []string{"a"}, 2)
			Expect(defined).To(BeTrue())
			Expect(ndcg).To(BeNumerically("~", 1.0/math.Log2(3), 1e-9))
		})

		It("normalizes the ideal over min(gold, k)", func() {
			// Gold has 3 ids but only 2 ranks fit; perfect top-2 scores 1.
			ndcg, defined := metrics.NDCGAtK([]string{"u1", "u3"}, gold, 2)
			Expect(defined).To(BeTrue())
			Expect(ndcg).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("is undefined for an empty gold set", func() {
			_, defined := metrics.NDCGAtK(retrieved, nil, 3)
			Expect(defined).To(BeFalse())
		})
	})

	Describe("RankingAtK", func() {
		It("bundles all four metrics", func() {
			score := metrics.RankingAtK(retrieved, gold, 3)
			Expect(score.Defined).To(BeTrue())
			Expect(score.Precision).To(BeNumerically("~", 2.0/3.0, 1e-9))
			Expect(score.Recall).To(BeNumerically("~", 2.0/3.0, 1e-9))
			Expect(score.F1).To(BeNumerically("~", 2.0/3.0, 1e-9))
			Expect(score.NDCG).To(BeNumerically(">", 0))
		})

		It("returns an undefined score for an empty gold set", func() {
			score := metrics.RankingAtK(retrieved, nil, 3)
			Expect(score.Defined).To(BeFalse())
			Expect(score.Precision).To(BeZero())
			Expect(score.Recall).To(BeZero())
		})
	})
})
