package dataset_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/membench/pkg/dataset"
)

func conv(id string, sessions ...dataset.Session) dataset.Conversation {
	return dataset.Conversation{ID: id, Sessions: sessions}
}

var _ = Describe("ExtractTurns", func() {
	It("pairs adjacent user and assistant messages", func() {
		c := conv("c1", dataset.Session{
			ID:       "s1",
			Datetime: "2024-01-01",
			Messages: []dataset.Message{
				{Role: "user", Content: "hi there"},
				{Role: "assistant", Content: "hello"},
				{Role: "user", Content: "how are you"},
				{Role: "assistant", Content: "fine"},
			},
		})

		units, err := dataset.ExtractTurns(c)
		Expect(err).NotTo(HaveOccurred())
		Expect(units).To(HaveLen(2))

		Expect(units[0].Content).To(Equal("User: hi there\nAssistant: hello"))
		Expect(units[0].UserIndex).To(Equal(0))
		Expect(units[0].ReplyIndex).To(Equal(1))
		Expect(units[0].TurnIndex).To(Equal(0))
		Expect(units[0].SessionID).To(Equal("s1"))
		Expect(units[0].Timestamp).To(Equal("2024-01-01"))
		Expect(units[0].Partial()).To(BeFalse())

		Expect(units[1].Content).To(Equal("User: how are you\nAssistant: fine"))
		Expect(units[1].UserIndex).To(Equal(2))
		Expect(units[1].ReplyIndex).To(Equal(3))
		Expect(units[1].TurnIndex).To(Equal(1))
	})

	It("references only message indices that exist, with the initiator first", func() {
		c := conv("c1", dataset.Session{
			ID: "s1",
			Messages: []dataset.Message{
				{Role: "assistant", Content: "welcome"},
				{Role: "user", Content: "question"},
				{Role: "assistant", Content: "answer"},
			},
		})

		units, err := dataset.ExtractTurns(c)
		Expect(err).NotTo(HaveOccurred())

		for _, u := range units {
			Expect(u.UserIndex).To(SatisfyAll(
				BeNumerically(">=", 0),
				BeNumerically("<", len(c.Sessions[0].Messages)),
			))
			Expect(u.UserRole).NotTo(BeElementOf("assistant", "system", "model"))
			if !u.Partial() {
				Expect(u.ReplyIndex).To(SatisfyAll(
					BeNumerically(">", u.UserIndex),
					BeNumerically("<", len(c.Sessions[0].Messages)),
				))
			}
		}
	})

	It("skips leading responder messages", func() {
		c := conv("c1", dataset.Session{
			ID: "s1",
			Messages: []dataset.Message{
				{Role: "system", Content: "be nice"},
				{Role: "assistant", Content: "hello!"},
				{Role: "user", Content: "hi"},
				{Role: "assistant", Content: "hey"},
			},
		})

		units, err := dataset.ExtractTurns(c)
		Expect(err).NotTo(HaveOccurred())
		Expect(units).To(HaveLen(1))
		Expect(units[0].UserIndex).To(Equal(2))
		Expect(units[0].ReplyIndex).To(Equal(3))
	})

	It("emits a partial unit for a dangling user turn", func() {
		c := conv("c1", dataset.Session{
			ID: "s1",
			Messages: []dataset.Message{
				{Role: "user", Content: "anyone home"},
			},
		})

		units, err := dataset.ExtractTurns(c)
		Expect(err).NotTo(HaveOccurred())
		Expect(units).To(HaveLen(1))
		Expect(units[0].Content).To(Equal("User: anyone home"))
		Expect(units[0].Partial()).To(BeTrue())
		Expect(units[0].ReplyIndex).To(Equal(-1))
	})

	It("emits a partial unit when two initiator messages are adjacent", func() {
		c := conv("c1", dataset.Session{
			ID: "s1",
			Messages: []dataset.Message{
				{Role: "user", Content: "first thought"},
				{Role: "user", Content: "second thought"},
				{Role: "assistant", Content: "reply to second"},
			},
		})

		units, err := dataset.ExtractTurns(c)
		Expect(err).NotTo(HaveOccurred())
		Expect(units).To(HaveLen(2))

		Expect(units[0].Content).To(Equal("User: first thought"))
		Expect(units[0].Partial()).To(BeTrue())

		Expect(units[1].Content).To(Equal("User: second thought\nAssistant: reply to second"))
		Expect(units[1].UserIndex).To(Equal(1))
		Expect(units[1].ReplyIndex).To(Equal(2))
	})

	It("pairs named speakers by role change", func() {
		c := conv("c1", dataset.Session{
			ID: "s1",
			Messages: []dataset.Message{
				{Role: "Caroline", Content: "did you see the show"},
				{Role: "Melanie", Content: "I loved it"},
			},
		})

		units, err := dataset.ExtractTurns(c)
		Expect(err).NotTo(HaveOccurred())
		Expect(units).To(HaveLen(1))
		Expect(units[0].UserRole).To(Equal("Caroline"))
		Expect(units[0].ReplyRole).To(Equal("Melanie"))
	})

	It("drops initiator messages with empty content", func() {
		c := conv("c1", dataset.Session{
			ID: "s1",
			Messages: []dataset.Message{
				{Role: "user", Content: ""},
				{Role: "assistant", Content: "hm?"},
				{Role: "user", Content: "sorry, typo"},
				{Role: "assistant", Content: "no worries"},
			},
		})

		units, err := dataset.ExtractTurns(c)
		Expect(err).NotTo(HaveOccurred())
		Expect(units).To(HaveLen(1))
		Expect(units[0].Content).To(Equal("User: sorry, typo\nAssistant: no worries"))
	})

	It("treats an empty reply as no reply", func() {
		c := conv("c1", dataset.Session{
			ID: "s1",
			Messages: []dataset.Message{
				{Role: "user", Content: "hello"},
				{Role: "assistant", Content: ""},
			},
		})

		units, err := dataset.ExtractTurns(c)
		Expect(err).NotTo(HaveOccurred())
		Expect(units).To(HaveLen(1))
		Expect(units[0].Partial()).To(BeTrue())
		Expect(units[0].Content).To(Equal("User: hello"))
	})

	It("numbers turns across sessions in extraction order", func() {
		c := conv("c1",
			dataset.Session{
				ID: "s1",
				Messages: []dataset.Message{
					{Role: "user", Content: "a"},
					{Role: "assistant", Content: "b"},
				},
			},
			dataset.Session{
				ID: "s2",
				Messages: []dataset.Message{
					{Role: "user", Content: "c"},
					{Role: "assistant", Content: "d"},
				},
			},
		)

		units, err := dataset.ExtractTurns(c)
		Expect(err).NotTo(HaveOccurred())
		Expect(units).To(HaveLen(2))
		Expect(units[0].TurnIndex).To(Equal(0))
		Expect(units[0].SessionID).To(Equal("s1"))
		Expect(units[1].TurnIndex).To(Equal(1))
		Expect(units[1].SessionID).To(Equal("s2"))
	})

	It("fails with ErrMalformedConversation when every message is a responder", func() {
		c := conv("c1", dataset.Session{
			ID: "s1",
			Messages: []dataset.Message{
				{Role: "assistant", Content: "hello"},
				{Role: "system", Content: "config"},
			},
		})

		_, err := dataset.ExtractTurns(c)
		Expect(err).To(MatchError(dataset.ErrMalformedConversation))
		Expect(err.Error()).To(ContainSubstring("c1"))
	})

	It("fails with ErrMalformedConversation for an empty conversation", func() {
		_, err := dataset.ExtractTurns(conv("empty"))
		Expect(err).To(MatchError(dataset.ErrMalformedConversation))
	})

	It("defaults a missing session id", func() {
		c := conv("c1", dataset.Session{
			Messages: []dataset.Message{
				{Role: "user", Content: "hey"},
				{Role: "assistant", Content: "ho"},
			},
		})

		units, err := dataset.ExtractTurns(c)
		Expect(err).NotTo(HaveOccurred())
		Expect(units[0].SessionID).To(Equal("unknown"))
	})
})

var _ = Describe("EvidenceKeys", func() {
	It("covers both halves of a full unit", func() {
		u := dataset.Unit{SessionID: "s1", UserIndex: 4, ReplyIndex: 5}
		Expect(u.EvidenceKeys()).To(ConsistOf("s1:4", "s1:5"))
	})

	It("covers only the user half of a partial unit", func() {
		u := dataset.Unit{SessionID: "s1", UserIndex: 4, ReplyIndex: -1}
		Expect(u.EvidenceKeys()).To(ConsistOf("s1:4"))
	})
})
