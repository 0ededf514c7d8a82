package dataset_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/membench/pkg/dataset"
)

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	It("loads conversations with sessions and QAs", func() {
		path := write("data.json", `[
			{
				"conv_id": "c1",
				"dialogs": [
					{
						"session_id": "s1",
						"datetime": "2024-05-01",
						"messages": [
							{"role": "user", "content": "hi"},
							{"role": "assistant", "content": "hello"}
						]
					}
				],
				"qas": [
					{
						"question_id": "q1",
						"question": "What was said first?",
						"answer": "hi",
						"evidences": ["s1:0"],
						"category": "recall"
					}
				]
			}
		]`)

		convs, err := dataset.Load(path, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(convs).To(HaveLen(1))
		Expect(convs[0].ID).To(Equal("c1"))
		Expect(convs[0].Sessions).To(HaveLen(1))
		Expect(convs[0].Sessions[0].Messages).To(HaveLen(2))
		Expect(convs[0].QAs).To(HaveLen(1))
		Expect(convs[0].QAs[0].Evidences).To(ConsistOf("s1:0"))
		Expect(convs[0].QAs[0].Category).To(Equal(dataset.Category("recall")))
	})

	It("accepts numeric categories", func() {
		path := write("data.json", `[
			{
				"conv_id": "c1",
				"dialogs": [],
				"qas": [{"question_id": "q1", "question": "x", "category": 3}]
			}
		]`)

		convs, err := dataset.Load(path, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(convs[0].QAs[0].Category).To(Equal(dataset.Category("3")))
	})

	It("assigns ids to conversations missing one", func() {
		path := write("data.json", `[
			{"dialogs": []},
			{"conv_id": "named", "dialogs": []},
			{"dialogs": []}
		]`)

		convs, err := dataset.Load(path, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(convs[0].ID).To(Equal("conv_0"))
		Expect(convs[1].ID).To(Equal("named"))
		Expect(convs[2].ID).To(Equal("conv_2"))
	})

	It("rejects duplicate conversation ids", func() {
		path := write("data.json", `[
			{"conv_id": "same", "dialogs": []},
			{"conv_id": "same", "dialogs": []}
		]`)

		_, err := dataset.Load(path, 0)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("duplicate conversation id"))
	})

	It("caps the number of conversations at the limit", func() {
		path := write("data.json", `[
			{"conv_id": "a", "dialogs": []},
			{"conv_id": "b", "dialogs": []},
			{"conv_id": "c", "dialogs": []}
		]`)

		convs, err := dataset.Load(path, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(convs).To(HaveLen(2))
		Expect(convs[0].ID).To(Equal("a"))
		Expect(convs[1].ID).To(Equal("b"))
	})

	It("fails for a missing file", func() {
		_, err := dataset.Load(filepath.Join(dir, "nope.json"), 0)
		Expect(err).To(HaveOccurred())
	})

	It("fails for invalid JSON", func() {
		path := write("bad.json", `{"not": "an array"}`)
		_, err := dataset.Load(path, 0)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("parsing dataset"))
	})
})
