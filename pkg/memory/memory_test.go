package memory_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/membench/pkg/memory"
)

func TestMemory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Memory Suite")
}

var _ = Describe("SortMatches", func() {
	It("orders by descending score", func() {
		matches := []memory.Match{
			{UnitID: "a", Score: 0.2, Sequence: 0},
			{UnitID: "b", Score: 0.9, Sequence: 1},
			{UnitID: "c", Score: 0.5, Sequence: 2},
		}
		memory.SortMatches(matches)

		Expect(matches[0].UnitID).To(Equal("b"))
		Expect(matches[1].UnitID).To(Equal("c"))
		Expect(matches[2].UnitID).To(Equal("a"))
	})

	It("breaks score ties by insertion sequence", func() {
		matches := []memory.Match{
			{UnitID: "late", Score: 0.5, Sequence: 7},
			{UnitID: "early", Score: 0.5, Sequence: 2},
			{UnitID: "middle", Score: 0.5, Sequence: 4},
		}
		memory.SortMatches(matches)

		Expect(matches[0].UnitID).To(Equal("early"))
		Expect(matches[1].UnitID).To(Equal("middle"))
		Expect(matches[2].UnitID).To(Equal("late"))
	})

	It("keeps ties deterministic across mixed scores", func() {
		matches := []memory.Match{
			{UnitID: "a", Score: 0.9, Sequence: 5},
			{UnitID: "b", Score: 0.5, Sequence: 1},
			{UnitID: "c", Score: 0.9, Sequence: 3},
			{UnitID: "d", Score: 0.5, Sequence: 0},
		}
		memory.SortMatches(matches)

		Expect([]string{matches[0].UnitID, matches[1].UnitID, matches[2].UnitID, matches[3].UnitID}).
			To(Equal([]string{"c", "a", "d", "b"}))
	})
})
