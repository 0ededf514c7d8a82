package metrics_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/membench/pkg/metrics"
)

var _ = Describe("Text metrics", func() {
	Describe("NormalizeTokens", func() {
		It("lowercases, strips punctuation, and drops stopwords", func() {
			tokens := metrics.NormalizeTokens("The Whale swims, quickly!")
			Expect(tokens).To(Equal([]string{"whale", "swims", "quickly"}))
		})

		It("keeps digits", func() {
			tokens := metrics.NormalizeTokens("caught 3 fish")
			Expect(tokens).To(Equal([]string{"caught", "3", "fish"}))
		})

		It("returns nil for empty text", func() {
			Expect(metrics.NormalizeTokens("")).To(BeNil())
		})
	})

	Describe("TokenF1", func() {
		It("scores partial overlap", func() {
			// Tokens: [blue whale swims] vs [whale swims fast].
			// common=2, precision=2/3, recall=2/3.
			score := metrics.TokenF1("blue whale swims", "whale swims fast")
			Expect(score).To(BeNumerically("~", 2.0/3.0, 1e-9))
		})

		It("scores identical answers as one", func() {
			Expect(metrics.TokenF1("red panda", "red panda")).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("scores disjoint answers as zero", func() {
			Expect(metrics.TokenF1("red panda", "blue whale")).To(BeZero())
		})

		It("scores two empty answers as one", func() {
			Expect(metrics.TokenF1("", "")).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("scores one empty answer as zero", func() {
			Expect(metrics.TokenF1("", "whale")).To(BeZero())
		})

		It("clips repeated prediction tokens to reference counts", func() {
			// Prediction repeats "whale" three times, reference has it once.
			score := metrics.TokenF1("whale whale whale", "whale")
			// common=1, precision=1/3, recall=1 -> F1 = 0.5.
			Expect(score).To(BeNumerically("~", 0.5, 1e-9))
		})
	})

	Describe("BLEU1", func() {
		It("is unigram precision when the prediction is not shorter", func() {
			score := metrics.BLEU1("blue whale swims", "whale swims fast")
			Expect(score).To(BeNumerically("~", 2.0/3.0, 1e-9))
		})

		It("applies a brevity penalty to short predictions", func() {
			// Tokens: [whale] vs [whale swims fast]; precision=1, bp=exp(1-3).
			score := metrics.BLEU1("whale", "whale swims fast")
			Expect(score).To(BeNumerically("~", math.Exp(-2), 1e-9))
		})

		It("scores an empty prediction against a non-empty reference as zero", func() {
			Expect(metrics.BLEU1("", "whale")).To(BeZero())
		})
	})

	Describe("ROUGE", func() {
		It("computes unigram F1", func() {
			score := metrics.ROUGE1("blue whale swims", "whale swims fast")
			Expect(score).To(BeNumerically("~", 2.0/3.0, 1e-9))
		})

		It("computes bigram F1", func() {
			// Bigrams: [big red, red fox, fox jumps] vs [red fox, fox jumps, jumps high].
			score := metrics.ROUGE2("big red fox jumps", "red fox jumps high")
			Expect(score).To(BeNumerically("~", 2.0/3.0, 1e-9))
		})

		It("scores zero bigram overlap for reordered tokens", func() {
			Expect(metrics.ROUGE2("alpha beta", "beta alpha")).To(BeZero())
		})

		It("computes LCS F1", func() {
			// Tokens: [alpha beta gamma delta] vs [alpha gamma beta delta], LCS=3.
			score := metrics.ROUGEL("alpha beta gamma delta", "alpha gamma beta delta")
			Expect(score).To(BeNumerically("~", 0.75, 1e-9))
		})

		It("scores two empty texts as one", func() {
			Expect(metrics.ROUGEL("", "")).To(BeNumerically("~", 1.0, 1e-9))
		})
	})

	Describe("ScoreText", func() {
		It("fills every lexical metric", func() {
			score := metrics.ScoreText("blue whale swims", "whale swims fast")
			Expect(score.F1).To(BeNumerically("~", 2.0/3.0, 1e-9))
			Expect(score.BLEU1).To(BeNumerically("~", 2.0/3.0, 1e-9))
			Expect(score.ROUGE1).To(BeNumerically("~", 2.0/3.0, 1e-9))
			Expect(score.ROUGEL).To(BeNumerically(">", 0))
			Expect(score.Cosine).To(BeZero())
		})
	})

	Describe("Cosine", func() {
		It("scores identical vectors as one", func() {
			Expect(metrics.Cosine([]float32{1, 0}, []float32{1, 0})).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("scores orthogonal vectors as zero", func() {
			Expect(metrics.Cosine([]float32{1, 0}, []float32{0, 1})).To(BeZero())
		})

		It("scores a 45 degree pair", func() {
			Expect(metrics.Cosine([]float32{1, 1}, []float32{1, 0})).To(BeNumerically("~", 1/math.Sqrt2, 1e-6))
		})

		It("scores zero vectors and mismatched lengths as zero", func() {
			Expect(metrics.Cosine([]float32{0, 0}, []float32{1, 0})).To(BeZero())
			Expect(metrics.Cosine([]float32{1}, []float32{1, 0})).To(BeZero())
		})
	})
})
