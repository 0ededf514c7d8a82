package memory_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/membench/pkg/memory"
)

var _ = Describe("RetryPolicy", func() {
	fast := memory.RetryPolicy{
		Attempts:  3,
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	}

	It("returns immediately on success", func() {
		calls := 0
		err := fast.Do(context.Background(), func() error {
			calls++
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("retries transient failures until success", func() {
		calls := 0
		err := fast.Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("%w: backend warming up", memory.ErrUnavailable)
			}
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(3))
	})

	It("does not retry permanent failures", func() {
		permanent := errors.New("schema mismatch")
		calls := 0
		err := fast.Do(context.Background(), func() error {
			calls++
			return permanent
		})

		Expect(err).To(MatchError(permanent))
		Expect(calls).To(Equal(1))
	})

	It("gives up after the attempt budget", func() {
		calls := 0
		err := fast.Do(context.Background(), func() error {
			calls++
			return fmt.Errorf("%w: still down", memory.ErrUnavailable)
		})

		Expect(err).To(MatchError(memory.ErrUnavailable))
		Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		Expect(calls).To(Equal(3))
	})

	It("stops during backoff when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())

		calls := 0
		err := memory.RetryPolicy{Attempts: 5, BaseDelay: time.Minute}.Do(ctx, func() error {
			calls++
			cancel()
			return fmt.Errorf("%w: still down", memory.ErrUnavailable)
		})

		Expect(err).To(MatchError(context.Canceled))
		Expect(calls).To(Equal(1))
	})

	It("runs exactly once with a zero-value policy", func() {
		calls := 0
		err := memory.RetryPolicy{}.Do(context.Background(), func() error {
			calls++
			return fmt.Errorf("%w: still down", memory.ErrUnavailable)
		})

		Expect(err).To(MatchError(memory.ErrUnavailable))
		Expect(calls).To(Equal(1))
	})

	It("has a default policy with a positive budget", func() {
		p := memory.DefaultRetryPolicy()
		Expect(p.Attempts).To(BeNumerically(">", 1))
		Expect(p.BaseDelay).To(BeNumerically(">", 0))
		Expect(p.MaxDelay).To(BeNumerically(">=", p.BaseDelay))
	})
})
