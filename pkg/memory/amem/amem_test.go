package amem_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/dataset"
	"github.com/papercomputeco/membench/pkg/llm"
	"github.com/papercomputeco/membench/pkg/memory"
	"github.com/papercomputeco/membench/pkg/memory/amem"
	testutils "github.com/papercomputeco/membench/pkg/utils/test"
)

var _ = Describe("Adapter", func() {
	var (
		ctx      context.Context
		dir      string
		embedder *testutils.MockEmbedder
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		embedder = testutils.NewMockEmbedder()
		embedder.Dimensions = 64
	})

	newAdapter := func(notes llm.Provider) *amem.Adapter {
		adapter, err := amem.NewAdapter(amem.Config{
			IndexDir:       dir,
			VectorProvider: "sqlitevec",
			Dimensions:     64,
		}, embedder, notes, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		return adapter
	}

	unit := func(turn int, content string) dataset.Unit {
		return dataset.Unit{
			ConversationID: "conv-1",
			TurnIndex:      turn,
			Content:        content,
			SessionID:      "s1",
			UserIndex:      turn * 2,
			ReplyIndex:     turn*2 + 1,
		}
	}

	Describe("NewAdapter", func() {
		It("requires an index directory", func() {
			_, err := amem.NewAdapter(amem.Config{}, embedder, nil, zap.NewNop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("index directory"))
		})

		It("requires an embedder", func() {
			_, err := amem.NewAdapter(amem.Config{IndexDir: dir}, nil, nil, zap.NewNop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("embedder"))
		})
	})

	Describe("Insert", func() {
		It("returns stable zero-padded unit ids", func() {
			adapter := newAdapter(nil)
			defer adapter.Close()

			id, err := adapter.Insert(ctx, "conv-1", unit(0, "User: I adopted a golden retriever puppy\nAssistant: That is wonderful news"))
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("unit_00000"))

			id, err = adapter.Insert(ctx, "conv-1", unit(1, "User: The weather in Paris was rainy\nAssistant: Pack an umbrella"))
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("unit_00001"))
		})

		It("wraps embedder failures in ErrUnavailable", func() {
			embedder.FailOn = "unreachable"
			adapter := newAdapter(nil)
			defer adapter.Close()

			_, err := adapter.Insert(ctx, "conv-1", unit(0, "User: unreachable backend\nAssistant: indeed"))
			Expect(err).To(MatchError(memory.ErrUnavailable))
		})
	})

	Describe("Query", func() {
		It("fails with ErrIndexNotReady before the index is marked complete", func() {
			adapter := newAdapter(nil)
			defer adapter.Close()

			_, err := adapter.Insert(ctx, "conv-1", unit(0, "User: hello\nAssistant: hi"))
			Expect(err).NotTo(HaveOccurred())

			_, err = adapter.Query(ctx, "conv-1", "hello", 5)
			Expect(err).To(MatchError(memory.ErrIndexNotReady))
		})

		It("returns the most relevant unit first once complete", func() {
			adapter := newAdapter(nil)
			defer adapter.Close()

			_, err := adapter.Insert(ctx, "conv-1", unit(0, "User: I adopted a golden retriever puppy\nAssistant: That is wonderful news"))
			Expect(err).NotTo(HaveOccurred())
			_, err = adapter.Insert(ctx, "conv-1", unit(1, "User: The weather in Paris was rainy\nAssistant: Pack an umbrella"))
			Expect(err).NotTo(HaveOccurred())
			Expect(adapter.MarkComplete(ctx, "conv-1")).To(Succeed())

			matches, err := adapter.Query(ctx, "conv-1", "retriever puppy", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].UnitID).To(Equal("unit_00000"))
			Expect(matches[0].Content).To(ContainSubstring("golden retriever"))
		})

		It("caps results at topN", func() {
			adapter := newAdapter(nil)
			defer adapter.Close()

			for i, content := range []string{
				"User: first\nAssistant: one",
				"User: second\nAssistant: two",
				"User: third\nAssistant: three",
			} {
				_, err := adapter.Insert(ctx, "conv-1", unit(i, content))
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(adapter.MarkComplete(ctx, "conv-1")).To(Succeed())

			matches, err := adapter.Query(ctx, "conv-1", "first second third", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
		})

		It("never returns units from another conversation", func() {
			adapter := newAdapter(nil)
			defer adapter.Close()

			a := unit(0, "User: my cat is named Whiskers\nAssistant: Cute name")
			b := dataset.Unit{
				ConversationID: "conv-2",
				TurnIndex:      0,
				Content:        "User: my dog is named Rex\nAssistant: Good boy",
				SessionID:      "s1",
				UserIndex:      0,
				ReplyIndex:     1,
			}
			_, err := adapter.Insert(ctx, "conv-1", a)
			Expect(err).NotTo(HaveOccurred())
			_, err = adapter.Insert(ctx, "conv-2", b)
			Expect(err).NotTo(HaveOccurred())
			Expect(adapter.MarkComplete(ctx, "conv-1")).To(Succeed())

			matches, err := adapter.Query(ctx, "conv-1", "dog named Rex", 10)
			Expect(err).NotTo(HaveOccurred())
			for _, m := range matches {
				Expect(m.Content).NotTo(ContainSubstring("Rex"))
			}
		})
	})

	Describe("Consolidate", func() {
		It("links recent notes to their neighbors", func() {
			adapter := newAdapter(nil)
			defer adapter.Close()

			for i, content := range []string{
				"User: I love hiking in the mountains\nAssistant: Which trails",
				"User: Mountain hiking is my weekend hobby\nAssistant: Sounds healthy",
				"User: My favorite trail is in the Alps\nAssistant: Beautiful area",
			} {
				_, err := adapter.Insert(ctx, "conv-1", unit(i, content))
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(adapter.Consolidate(ctx, "conv-1")).To(Succeed())
			Expect(adapter.MarkComplete(ctx, "conv-1")).To(Succeed())

			records, err := amem.ReadUnits(dir, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))

			linked := 0
			for _, r := range records {
				if len(r.Links) > 0 {
					linked++
					Expect(r.Links).NotTo(ContainElement(r.ID))
				}
			}
			Expect(linked).To(BeNumerically(">", 0))
		})
	})

	Describe("MarkComplete", func() {
		It("persists the units sidecar and completion marker", func() {
			adapter := newAdapter(nil)
			defer adapter.Close()

			_, err := adapter.Insert(ctx, "conv-1", unit(0, "User: I started learning piano\nAssistant: Great instrument"))
			Expect(err).NotTo(HaveOccurred())

			Expect(adapter.Completed("conv-1")).To(BeFalse())
			Expect(adapter.MarkComplete(ctx, "conv-1")).To(Succeed())
			Expect(adapter.Completed("conv-1")).To(BeTrue())

			records, err := amem.ReadUnits(dir, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].ID).To(Equal("unit_00000"))
			Expect(records[0].SessionID).To(Equal("s1"))
			Expect(records[0].UserIndex).To(Equal(0))
			Expect(records[0].ReplyIndex).To(Equal(1))
			Expect(records[0].Content).To(ContainSubstring("piano"))
			Expect(records[0].Keywords).NotTo(BeEmpty())
		})
	})

	Describe("note generation", func() {
		It("uses the configured provider's enrichment", func() {
			notes := testutils.NewMockChatProvider(`{"keywords": ["piano", "lessons"], "context": "The user started piano lessons.", "tags": ["hobbies"]}`)
			adapter := newAdapter(notes)
			defer adapter.Close()

			_, err := adapter.Insert(ctx, "conv-1", unit(0, "User: I started learning piano\nAssistant: Great instrument"))
			Expect(err).NotTo(HaveOccurred())
			Expect(adapter.MarkComplete(ctx, "conv-1")).To(Succeed())

			Expect(notes.Requests).To(HaveLen(1))

			records, err := amem.ReadUnits(dir, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].Keywords).To(Equal([]string{"piano", "lessons"}))
			Expect(records[0].Context).To(Equal("The user started piano lessons."))
			Expect(records[0].Tags).To(Equal([]string{"hobbies"}))
		})

		It("tolerates reasoning traces around the JSON", func() {
			notes := testutils.NewMockChatProvider("<think>what matters here?</think>\nHere you go:\n" +
				`{"keywords": ["garden"], "context": "Gardening talk.", "tags": []}`)
			adapter := newAdapter(notes)
			defer adapter.Close()

			_, err := adapter.Insert(ctx, "conv-1", unit(0, "User: my garden is blooming\nAssistant: lovely"))
			Expect(err).NotTo(HaveOccurred())
			Expect(adapter.MarkComplete(ctx, "conv-1")).To(Succeed())

			records, err := amem.ReadUnits(dir, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].Keywords).To(Equal([]string{"garden"}))
		})

		It("falls back to heuristic keywords on unparsable replies", func() {
			notes := testutils.NewMockChatProvider("sorry, I cannot help with that")
			adapter := newAdapter(notes)
			defer adapter.Close()

			_, err := adapter.Insert(ctx, "conv-1", unit(0, "User: I started learning piano\nAssistant: Great instrument"))
			Expect(err).NotTo(HaveOccurred())
			Expect(adapter.MarkComplete(ctx, "conv-1")).To(Succeed())

			records, err := amem.ReadUnits(dir, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].Keywords).To(ContainElement("piano"))
		})
	})
})
